// Package locale is an external collaborator, out of scope for the
// validation engine itself (spec.md §1): only the interface the engine's
// CLI and report writer depend on is specified here. The loader that reads
// the two locale spreadsheets (error-code and audit-trail tables) is
// intentionally minimal — real translation content lives outside this
// repository.
package locale

// Language mirrors config.Language without importing the config package,
// keeping locale free of a dependency on the ambient-config layer.
type Language string

const (
	English Language = "en"
	Danish  Language = "dk"
)

// Table resolves technical identifiers to human-readable, per-language
// text, per spec.md §6 "Locale tables".
type Table interface {
	// Describe renders an error kind for lang, substituting params into
	// [1], [2], ... placeholders. Numeric parameters are expected to
	// already be formatted by the caller (thousand-separated, two
	// decimals) before being passed in.
	Describe(lang Language, kind string, params []string) string

	// AuditTrailLabel resolves an internal audit-trail path, e.g.
	// "auditfile/company/streetAddress/streetname", to a per-language
	// label.
	AuditTrailLabel(lang Language, trail string) string

	// YesNo resolves the localized spelling of "yes"/"no" used by the
	// CLI's delete-after-write prompt.
	YesNo(lang Language) (yes, no string)
}

// staticTable is a minimal in-memory Table: a fixed bilingual vocabulary
// covering the CLI's own prompts. A production deployment replaces this
// with a loader over the two locale spreadsheets named in spec.md §6.
type staticTable struct{}

// NewStatic returns a Table covering only what the CLI itself needs
// (yes/no answers); Describe and AuditTrailLabel fall back to the raw
// identifier when no translation is known.
func NewStatic() Table {
	return staticTable{}
}

func (staticTable) Describe(_ Language, kind string, params []string) string {
	if len(params) == 0 {
		return kind
	}
	out := kind
	for i, p := range params {
		out += " [" + itoa(i+1) + "]=" + p
	}
	return out
}

func (staticTable) AuditTrailLabel(_ Language, trail string) string {
	return trail
}

func (staticTable) YesNo(lang Language) (string, string) {
	if lang == Danish {
		return "ja", "nej"
	}
	return "yes", "no"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
