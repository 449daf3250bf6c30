package saftcr

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
)

// DefaultNamespace is the SAF-T Cash Register profile's default XML
// namespace (spec.md §6).
const DefaultNamespace = "urn:StandardAuditFile-Taxation-CashRegister:DK"

// LoadResult is the outcome of the Document Loader: the parsed (and
// possibly repaired) document, its Line Map snapshot, and whether an
// encoding fix was applied.
type LoadResult struct {
	Doc           *etree.Document
	LineMap       *LineMap
	EncodingFixed bool
	Findings      []Finding
}

// LoadDocument runs the healing sequence of spec.md §4.1 against the file
// at path: direct parse, UTF-8 re-encode, raw-ampersand escape, and (after a
// successful parse) a repair of the root element's default namespace,
// decided by inspecting its xmlns attribute; schema is not consulted. It
// never returns a partial document: either LoadResult.Doc is a valid tree,
// or err is non-nil (terminal XML_FILE_CORRUPT, §4.1).
func LoadDocument(path string, schema *SchemaIndex) (*LoadResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("saftcr: cannot read file: %w", err)
	}

	var findings []Finding
	doc, healed, fixed, herr := healAndParse(raw, &findings)
	if herr != nil {
		return nil, fmt.Errorf("saftcr: %s: %w", KindXMLFileCorrupt, herr)
	}

	lm, err := buildLineMap(healed, doc)
	if err != nil {
		return nil, fmt.Errorf("saftcr: cannot build line map: %w", err)
	}

	result := &LoadResult{Doc: doc, LineMap: lm, EncodingFixed: fixed, Findings: findings}
	return result, nil
}

// healAndParse executes the ordered healing sequence and returns the parsed
// document, the (possibly rewritten) bytes that were ultimately parsed, and
// whether step 2 (encoding repair) fired.
func healAndParse(raw []byte, findings *[]Finding) (*etree.Document, []byte, bool, error) {
	// Step 1: direct parse.
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err == nil {
		return finishParse(doc, raw, false, findings)
	}

	// Step 2: not proper UTF-8 -> re-read as Latin-1 bytes, re-encode to
	// UTF-8, reparse.
	if !utf8.Valid(raw) {
		reencoded := latin1ToUTF8(raw)
		doc2 := etree.NewDocument()
		if err := doc2.ReadFromBytes(reencoded); err == nil {
			*findings = append(*findings, Finding{Check: CheckXMLRead, Status: StatusError, ErrorKind: KindXMLFileEncodingCorrupt})
			return finishParse(doc2, reencoded, true, findings)
		}
		raw = reencoded
	}

	// Step 3: raw ampersand entity error -> escape bare "&" and reparse.
	escaped := escapeRawAmpersands(raw)
	if !bytes.Equal(escaped, raw) {
		doc3 := etree.NewDocument()
		if err := doc3.ReadFromBytes(escaped); err == nil {
			return finishParse(doc3, escaped, false, findings)
		}
	}

	return nil, nil, false, fmt.Errorf("xml parse failed after all healing steps")
}

// finishParse applies step 4 (namespace repair) after a successful parse:
// if the root element declares no default namespace at all, inject
// DefaultNamespace; if it declares the wrong one, replace it. Either
// sub-case is unambiguous once observed, per spec.md §4.1 step 4.
func finishParse(doc *etree.Document, raw []byte, encodingFixed bool, findings *[]Finding) (*etree.Document, []byte, bool, error) {
	root := doc.Root()
	if root == nil {
		return doc, raw, encodingFixed, nil
	}
	if root.SelectAttr("xmlns") == nil {
		root.CreateAttr("xmlns", DefaultNamespace)
		*findings = append(*findings, Finding{Check: CheckXMLRead, Status: StatusError, ErrorKind: KindXMLNamespaceRepaired})
	} else if ns := root.SelectAttrValue("xmlns", ""); ns != DefaultNamespace {
		root.RemoveAttr("xmlns")
		root.CreateAttr("xmlns", DefaultNamespace)
		*findings = append(*findings, Finding{Check: CheckXMLRead, Status: StatusError, ErrorKind: KindXMLNamespaceRepaired})
	} else {
		return doc, raw, encodingFixed, nil
	}

	var buf bytes.Buffer
	doc.Indent(2)
	if _, err := doc.WriteTo(&buf); err != nil {
		return doc, raw, encodingFixed, nil
	}
	return doc, buf.Bytes(), encodingFixed, nil
}

// latin1ToUTF8 reinterprets raw as Latin-1 (ISO-8859-1) and re-encodes it as
// UTF-8, byte for byte: every Latin-1 byte is a single Unicode code point.
func latin1ToUTF8(raw []byte) []byte {
	out := make([]rune, len(raw))
	for i, b := range raw {
		out[i] = rune(b)
	}
	return []byte(string(out))
}

// escapeRawAmpersands replaces every "&" that does not begin a recognized
// XML entity or character reference with "&amp;" (spec.md §4.1 step 3).
func escapeRawAmpersands(raw []byte) []byte {
	s := string(raw)
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '&' {
			sb.WriteByte(s[i])
			continue
		}
		if isKnownEntityAt(s, i) {
			sb.WriteByte(s[i])
			continue
		}
		sb.WriteString("&amp;")
	}
	return []byte(sb.String())
}

func isKnownEntityAt(s string, i int) bool {
	rest := s[i:]
	for _, ent := range []string{"&amp;", "&lt;", "&gt;", "&apos;", "&quot;"} {
		if strings.HasPrefix(rest, ent) {
			return true
		}
	}
	if strings.HasPrefix(rest, "&#") {
		j := i + 2
		for j < len(s) && s[j] != ';' {
			j++
		}
		return j < len(s) && s[j] == ';'
	}
	return false
}
