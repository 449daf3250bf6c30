package saftcr

// Report is the final aggregated outcome of one file analysis: the full,
// deduplicated, sorted finding list plus the computed file prefix
// (spec.md §4.8).
type Report struct {
	Prefix   Prefix
	Findings []Finding
}

// allChecks enumerates every check the Report Aggregator guarantees an
// entry for, in check_rank order.
var allChecks = []Check{CheckXMLRead, CheckNaming, CheckStructure, CheckCertificate, CheckSignature, CheckValue}

// Aggregate injects a synthetic ok finding for every check that produced no
// error finding, deduplicates, sorts, and computes the file prefix
// (spec.md §4.8).
func Aggregate(findings []Finding) Report {
	hasError := make(map[Check]bool)
	for _, f := range findings {
		if f.Status == StatusError {
			hasError[f.Check] = true
		}
	}

	out := make([]Finding, len(findings))
	copy(out, findings)
	for _, c := range allChecks {
		if !hasError[c] {
			out = append(out, okFinding(c))
		}
	}

	out = dedupFindings(out)
	sortFindings(out)

	return Report{Prefix: computePrefix(out), Findings: out}
}
