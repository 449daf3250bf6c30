package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nemhandel/saftcr"
	"github.com/nemhandel/saftcr/locale"
)

func TestWriteCreatesLocalizedDirectoryAndPrefixedFiles(t *testing.T) {
	outputDir := t.TempDir()
	rpt := saftcr.Report{
		Prefix: saftcr.PrefixFlag,
		Findings: []saftcr.Finding{
			{Check: saftcr.CheckValue, Status: saftcr.StatusError, ErrorKind: saftcr.KindEventReportTips, SourceRow: 12, HasRow: true},
		},
	}
	meta := saftcr.Metadata{CompanyID: "12345678", CompanyName: "Acme Shop"}
	ts := FileTimestamps{Created: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}

	findingsPath, err := Write("/in/SAF-T Cash Register_12345678_20240101120000_1_1.xml", rpt, meta, ts, locale.Danish, locale.NewStatic(), outputDir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantDir := filepath.Join(outputDir, "Tjekket")
	if filepath.Dir(findingsPath) != wantDir {
		t.Errorf("findings written under %q, want %q", filepath.Dir(findingsPath), wantDir)
	}
	if filepath.Base(findingsPath)[:len(rpt.Prefix)] != string(rpt.Prefix) {
		t.Errorf("findings filename %q does not start with prefix %q", filepath.Base(findingsPath), rpt.Prefix)
	}

	masterPath := findingsPath[:len(findingsPath)-len(".findings.csv")] + ".master.csv"
	if _, err := os.Stat(masterPath); err != nil {
		t.Errorf("expected a master.csv sibling: %v", err)
	}

	f, err := os.Open(findingsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d CSV rows, want 2 (header + one finding)", len(records))
	}
	if records[1][0] != "value" || records[1][2] != "12" {
		t.Errorf("unexpected finding row: %v", records[1])
	}
}

func TestWriteUsesEnglishDirectoryName(t *testing.T) {
	outputDir := t.TempDir()
	rpt := saftcr.Report{Prefix: saftcr.PrefixOK}
	findingsPath, err := Write("/in/x.xml", rpt, saftcr.Metadata{}, FileTimestamps{}, locale.English, locale.NewStatic(), outputDir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(findingsPath) != filepath.Join(outputDir, "Checked") {
		t.Errorf("got dir %q, want .../Checked", filepath.Dir(findingsPath))
	}
}
