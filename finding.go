package saftcr

import (
	"fmt"
	"sort"
)

// Check identifies which of the five validation passes (naming, structure,
// certificate, signature, value) produced a Finding, plus the raw XML
// reading step that happens before them. Ordering matters: check_rank in
// spec.md §3 is this type's natural order.
type Check int

const (
	CheckXMLRead Check = iota
	CheckNaming
	CheckStructure
	CheckCertificate
	CheckSignature
	CheckValue
)

func (c Check) String() string {
	switch c {
	case CheckXMLRead:
		return "xml_read"
	case CheckNaming:
		return "naming"
	case CheckStructure:
		return "structure"
	case CheckCertificate:
		return "certificate"
	case CheckSignature:
		return "signature"
	case CheckValue:
		return "value"
	default:
		return "unknown"
	}
}

// Status is the per-finding outcome.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "error"
}

// ErrorKind is the closed vocabulary of error classifications produced by
// the five validators, named after spec.md §4's component sections.
type ErrorKind string

const (
	KindOK ErrorKind = "OK"

	// Document Loader (§4.1)
	KindXMLFileCorrupt          ErrorKind = "XML_FILE_CORRUPT"
	KindXMLFileEncodingCorrupt  ErrorKind = "XML_FILE_ENCODING_CORRUPT"
	KindXMLNamespaceRepaired    ErrorKind = "XML_NAMESPACE_REPAIRED"
	KindCannotDoCheckReadError  ErrorKind = "CANNOT_DO_CHECK_DUE_TO_READ_ERROR"

	// Naming Validator (§4.3)
	KindFilename ErrorKind = "FILENAME"

	// Structure Validator (§4.4) — the finding's ErrorKind carries the XSD
	// error type name as reported by the schema-validation pass.
	KindSchemavElementContent  ErrorKind = "SCHEMAV_ELEMENT_CONTENT"
	KindSchemavOutOfSequence   ErrorKind = "SCHEMAV_OUT_OF_SEQUENCE"

	// Certificate Validator (§4.5)
	KindCertificateCompleteError     ErrorKind = "CERTIFICATE_COMPLETE_ERROR"
	KindCertificateOCSPCompleteError ErrorKind = "CERTIFICATE_OCSP_COMPLETE_ERROR"
	KindCertificateNotTrustedIssuer  ErrorKind = "CERTIFICATE_NOT_TRUSTED_ISSUER"
	KindCertificateRevoked           ErrorKind = "CERTIFICATE_REVOKED"
	KindCertificateUnknown           ErrorKind = "CERTIFICATE_UNKNOWN"
	KindCertificateExpired           ErrorKind = "CERTIFICATE_EXPIRED"
	KindCertificateNotValidYet       ErrorKind = "CERTIFICATE_NOT_VALID_YET"
	KindNoCertificate                ErrorKind = "NO_CERTIFICATE"
	KindCertificateCouldNotRun       ErrorKind = "CERTIFICATE_COULD_NOT_RUN"

	// Signature Validator (§4.6)
	KindCannotGetPublicKey      ErrorKind = "CANNOT_GET_PUBLIC_KEY"
	KindSignatureBreak          ErrorKind = "SIGNATURE_BREAK"
	KindSignatureNotVerified    ErrorKind = "SIGNATURE_NOT_VERIFIED"
	KindSignatureCompleteError  ErrorKind = "SIGNATURE_COMPLETE_ERROR"
	KindNoSignature             ErrorKind = "NO_SIGNATURE"

	// Value Validator (§4.7)
	KindEventReportTotalCashSales    ErrorKind = "EVENT_REPORT_TOTAL_CASH_SALES"
	KindEventReportTips              ErrorKind = "EVENT_REPORT_TIPS"
	KindEventReportGrandTotalSales   ErrorKind = "EVENT_REPORT_GRAND_TOTAL_SALES"
	KindEventReportCouldNotRun       ErrorKind = "EVENT_REPORT_COULD_NOT_RUN"
	KindContinuousNumberingPerRegister ErrorKind = "CONTINOUS_NUMBERING_PR_CASH_REGISTER"
	KindNotContinuousNumbering       ErrorKind = "NOT_CONTINOUS_NUMBERING"
	KindValueDoesNotContainNr        ErrorKind = "VALUE_DOES_NOT_CONTAIN_NR"
	KindNoRelationToBasicsFound      ErrorKind = "NO_RELATION_TO_BASICS_FOUND"
	KindNoRelationToArticlesFound    ErrorKind = "NO_RELATION_TO_ARTICLES_FOUND"
	KindElementNotFoundWhenExpected  ErrorKind = "ELEMENT_NOT_FOUND_WHEN_EXPECTED"
	KindWrongPredefinedBasicUsed     ErrorKind = "WRONG_PREDEFINED_BASIC_USED"
	KindValueCompleteError           ErrorKind = "VALUE_COMPLETE_ERROR"
)

// Finding is an immutable validation result. Two findings are equal iff
// (Check, SourceRow) match (spec.md §3).
type Finding struct {
	Check       Check
	Status      Status
	ErrorKind   ErrorKind
	ElementTag  string
	SourceRow   int // 0 means "no row" (null-rows sort last)
	HasRow      bool
	AuditTrail  string
	Parameters  []string
}

// Key returns the (Check, SourceRow) dedup/equality key.
func (f Finding) Key() (Check, int, bool) {
	return f.Check, f.SourceRow, f.HasRow
}

func (f Finding) String() string {
	if f.HasRow {
		return fmt.Sprintf("%s[%s]@%d: %s", f.Check, f.Status, f.SourceRow, f.ErrorKind)
	}
	return fmt.Sprintf("%s[%s]: %s", f.Check, f.Status, f.ErrorKind)
}

// okFinding builds the synthetic "ok" finding the Report Aggregator injects
// for every check that produced no error finding (§4.8).
func okFinding(c Check) Finding {
	return Finding{Check: c, Status: StatusOK, ErrorKind: KindOK}
}

// dedupFindings removes findings that share a (Check, SourceRow) key,
// keeping the first occurrence (§3, §8 "Finding dedup invariant"). Only
// findings that carry a row are deduplicated; row-less findings are all
// kept.
func dedupFindings(in []Finding) []Finding {
	seen := make(map[string]bool, len(in))
	out := make([]Finding, 0, len(in))
	for _, f := range in {
		k := fmt.Sprintf("%d|%d|%v", f.Check, f.SourceRow, f.HasRow)
		if f.HasRow {
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, f)
	}
	return out
}

// sortFindings orders lexicographically on (check_rank, source_row
// ascending, null-rows last) per spec.md §3.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Check != b.Check {
			return a.Check < b.Check
		}
		if a.HasRow != b.HasRow {
			return a.HasRow // rows before null-rows
		}
		if !a.HasRow {
			return false
		}
		return a.SourceRow < b.SourceRow
	})
}

// Prefix is the file-level classification of spec.md §4.8 / §7.
type Prefix string

const (
	PrefixOK   Prefix = "OK_"
	PrefixFlag Prefix = "FLAG_"
	PrefixNOK  Prefix = "NOK_"
)

// computePrefix implements the "Prefix total order" property (§8): NOK
// dominates FLAG dominates OK.
func computePrefix(findings []Finding) Prefix {
	sawValueError := false
	for _, f := range findings {
		if f.Status != StatusError {
			continue
		}
		if f.Check == CheckValue {
			sawValueError = true
			continue
		}
		return PrefixNOK
	}
	if sawValueError {
		return PrefixFlag
	}
	return PrefixOK
}
