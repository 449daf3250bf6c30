package saftcr

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/beevik/etree"
)

// lineEntry is one Line Map record: the original source row of an element,
// and whether the element was inserted by the Structure Validator.
type lineEntry struct {
	row        int
	isSynthetic bool
}

// LineMap records the original source-line of every parsed element. It is
// taken as a snapshot immediately after parse, before structural repair
// (spec.md §4.4, §9 "Design Notes"): synthetic insertions extend it, they
// never overwrite an original entry.
type LineMap struct {
	rows map[*etree.Element]lineEntry
}

func newLineMap() *LineMap {
	return &LineMap{rows: make(map[*etree.Element]lineEntry)}
}

// Row returns the source row for el, or (0, false) if untracked.
func (lm *LineMap) Row(el *etree.Element) (int, bool) {
	e, ok := lm.rows[el]
	if !ok {
		return 0, false
	}
	return e.row, true
}

// IsSynthetic reports whether el was inserted by the Structure Validator.
func (lm *LineMap) IsSynthetic(el *etree.Element) bool {
	e, ok := lm.rows[el]
	return ok && e.isSynthetic
}

// recordOriginal stamps el with its original source row, as observed by the
// document loader's synchronized pre-order walk.
func (lm *LineMap) recordOriginal(el *etree.Element, row int) {
	lm.rows[el] = lineEntry{row: row}
}

// recordSynthetic registers a structurally-inserted element, inheriting the
// row of a reference element (its parent, or the element it was inserted
// next to), per spec.md §4.4.
func (lm *LineMap) recordSynthetic(el *etree.Element, referenceRow int) {
	lm.rows[el] = lineEntry{row: referenceRow, isSynthetic: true}
}

// buildLineMap performs two synchronized passes over the same raw XML
// bytes: a streaming encoding/xml pass that records the 1-based source line
// of every StartElement in document order, and an etree pass that builds
// the mutable DOM used by every subsequent validator. Because both passes
// visit start tags in identical document order, the Nth StartElement line
// number can be assigned to the Nth element visited by a pre-order walk of
// the etree document. beevik/etree does not track source positions itself,
// so this reconstructs them rather than adding a vendored XML parser.
// BuildLineMap is the exported form of buildLineMap, for callers (such as
// the report writer) that need a Line Map for a document they parsed
// themselves outside of LoadDocument.
func BuildLineMap(raw []byte, doc *etree.Document) (*LineMap, error) {
	return buildLineMap(raw, doc)
}

func buildLineMap(raw []byte, doc *etree.Document) (*LineMap, error) {
	lines, err := startElementLines(raw)
	if err != nil {
		return nil, err
	}

	lm := newLineMap()
	i := 0
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if i < len(lines) {
			lm.recordOriginal(el, lines[i])
			i++
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return lm, nil
}

// startElementLines returns, in document order, the 1-based line number on
// which every XML start element begins.
func startElementLines(raw []byte) ([]int, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var lines []int
	var lastOffset int64
	for {
		off := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if _, ok := tok.(xml.StartElement); ok {
			lines = append(lines, lineAtOffset(raw, off))
		}
		lastOffset = dec.InputOffset()
	}
	_ = lastOffset
	return lines, nil
}

// lineAtOffset converts a byte offset into a 1-based line number by
// counting newlines in raw[:offset].
func lineAtOffset(raw []byte, offset int64) int {
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(raw)) {
		offset = int64(len(raw))
	}
	return 1 + bytes.Count(raw[:offset], []byte("\n"))
}
