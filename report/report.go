// Package report renders an analysis outcome to disk. spec.md §6 specifies
// a two-sheet spreadsheet (master-data, findings); no spreadsheet library
// is grounded anywhere in the retrieved example corpus, so this package
// renders the same two-table shape as a pair of CSV files via the standard
// library rather than fabricating an unvetted xlsx dependency (see
// DESIGN.md).
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nemhandel/saftcr"
	"github.com/nemhandel/saftcr/locale"
)

// FileTimestamps carries the filesystem timestamps the master-data sheet
// reports alongside the audit file's own header fields.
type FileTimestamps struct {
	Created  time.Time
	Modified time.Time
	Accessed time.Time
}

// Write renders report and metadata for originalPath into a subdirectory
// of outputDir (named "Checked" or "Tjekket" per active language), prefixed
// per spec.md §6, and returns the path of the findings file.
func Write(originalPath string, rpt saftcr.Report, meta saftcr.Metadata, ts FileTimestamps, lang locale.Language, table locale.Table, outputDir string) (string, error) {
	stem := filenameStem(originalPath)
	dirName := "Checked"
	if lang == locale.Danish {
		dirName = "Tjekket"
	}
	dir := filepath.Join(outputDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("saftcr/report: cannot create output directory: %w", err)
	}

	base := string(rpt.Prefix) + stem
	masterPath := filepath.Join(dir, base+".master.csv")
	findingsPath := filepath.Join(dir, base+".findings.csv")

	if err := writeMaster(masterPath, meta, ts); err != nil {
		return "", err
	}
	if err := writeFindings(findingsPath, rpt.Findings, lang, table); err != nil {
		return "", err
	}
	return findingsPath, nil
}

func filenameStem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func writeMaster(path string, meta saftcr.Metadata, ts FileTimestamps) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saftcr/report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	rows := [][]string{
		{"company_ident", meta.CompanyID},
		{"company_name", meta.CompanyName},
		{"software_company", meta.SoftwareCompany},
		{"software_desc", meta.SoftwareDesc},
		{"software_version", meta.SoftwareVersion},
		{"file_created", ts.Created.Format(time.RFC3339)},
		{"file_modified", ts.Modified.Format(time.RFC3339)},
		{"file_last_access", ts.Accessed.Format(time.RFC3339)},
	}
	return w.WriteAll(rows)
}

func writeFindings(path string, findings []saftcr.Finding, lang locale.Language, table locale.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saftcr/report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"check", "status", "error_row", "audit_trail", "element", "error_kind", "description"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, finding := range findings {
		row := finding.SourceRow
		rowStr := ""
		if finding.HasRow {
			rowStr = fmt.Sprintf("%d", row)
		}
		record := []string{
			finding.Check.String(),
			finding.Status.String(),
			rowStr,
			table.AuditTrailLabel(lang, finding.AuditTrail),
			finding.ElementTag,
			string(finding.ErrorKind),
			table.Describe(lang, string(finding.ErrorKind), finding.Parameters),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
