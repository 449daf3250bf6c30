package saftcr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDedupFindingsKeepsFirstPerKey(t *testing.T) {
	in := []Finding{
		{Check: CheckStructure, SourceRow: 10, HasRow: true, ErrorKind: KindSchemavOutOfSequence},
		{Check: CheckStructure, SourceRow: 10, HasRow: true, ErrorKind: KindSchemavElementContent},
		{Check: CheckStructure, SourceRow: 11, HasRow: true, ErrorKind: KindSchemavOutOfSequence},
	}
	out := dedupFindings(in)
	if len(out) != 2 {
		t.Fatalf("got %d findings, want 2", len(out))
	}
	if out[0].ErrorKind != KindSchemavOutOfSequence {
		t.Errorf("dedup did not keep the first occurrence")
	}
}

func TestDedupFindingsKeepsAllRowless(t *testing.T) {
	in := []Finding{
		{Check: CheckCertificate, ErrorKind: KindNoCertificate},
		{Check: CheckCertificate, ErrorKind: KindNoCertificate},
	}
	out := dedupFindings(in)
	if len(out) != 2 {
		t.Fatalf("rowless findings should not be deduped against each other, got %d", len(out))
	}
}

func TestSortFindingsOrdersByCheckThenRow(t *testing.T) {
	in := []Finding{
		{Check: CheckValue, SourceRow: 5, HasRow: true},
		{Check: CheckNaming, HasRow: false},
		{Check: CheckStructure, SourceRow: 2, HasRow: true},
		{Check: CheckStructure, SourceRow: 1, HasRow: true},
		{Check: CheckStructure, HasRow: false},
	}
	sortFindings(in)

	want := []Check{CheckNaming, CheckStructure, CheckStructure, CheckStructure, CheckValue}
	for i, c := range want {
		if in[i].Check != c {
			t.Fatalf("position %d: got check %v, want %v", i, in[i].Check, c)
		}
	}
	if in[1].SourceRow != 1 || in[2].SourceRow != 2 {
		t.Error("structure findings with rows are not sorted ascending")
	}
	if in[3].HasRow {
		t.Error("null-row structure finding did not sort last among structure findings")
	}
}

func TestComputePrefixTotalOrder(t *testing.T) {
	cases := []struct {
		name     string
		findings []Finding
		want     Prefix
	}{
		{"all ok", []Finding{okFinding(CheckStructure), okFinding(CheckValue)}, PrefixOK},
		{"value error only", []Finding{{Check: CheckValue, Status: StatusError}}, PrefixFlag},
		{"structure error dominates", []Finding{
			{Check: CheckValue, Status: StatusError},
			{Check: CheckStructure, Status: StatusError},
		}, PrefixNOK},
	}
	for _, tc := range cases {
		if got := computePrefix(tc.findings); got != tc.want {
			t.Errorf("%s: computePrefix() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDedupThenSortMatchesExpectedFindingSet(t *testing.T) {
	in := []Finding{
		{Check: CheckValue, SourceRow: 5, HasRow: true, ErrorKind: KindEventReportTips},
		{Check: CheckStructure, SourceRow: 2, HasRow: true, ErrorKind: KindSchemavOutOfSequence},
		{Check: CheckStructure, SourceRow: 2, HasRow: true, ErrorKind: KindSchemavElementContent},
		{Check: CheckCertificate, ErrorKind: KindNoCertificate},
	}
	out := dedupFindings(in)
	sortFindings(out)

	want := []Finding{
		{Check: CheckStructure, SourceRow: 2, HasRow: true, ErrorKind: KindSchemavOutOfSequence},
		{Check: CheckCertificate, ErrorKind: KindNoCertificate},
		{Check: CheckValue, SourceRow: 5, HasRow: true, ErrorKind: KindEventReportTips},
	}
	if diff := cmp.Diff(want, out, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("dedup+sort result mismatch (-want +got):\n%s", diff)
	}
}
