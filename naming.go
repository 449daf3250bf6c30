package saftcr

import (
	"path/filepath"
	"strconv"
	"strings"
)

const expectedFileName = "SAF-T Cash Register"

// ValidateNaming checks the filename stem against spec.md §4.3. It returns
// at most one finding: FILENAME on any violation, or nil when the name is
// well-formed.
func ValidateNaming(path string) *Finding {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fields := strings.Split(stem, "_")

	var rest []string
	switch len(fields) {
	case 5:
		if fields[0] != expectedFileName {
			return namingFinding()
		}
		rest = fields[1:]
	case 7:
		name := strings.Join(fields[:3], "_")
		if name != strings.ReplaceAll(expectedFileName, " ", "_") {
			return namingFinding()
		}
		rest = fields[3:]
	default:
		return namingFinding()
	}

	cvr8, timestamp14, partHi, partLo := rest[0], rest[1], rest[2], rest[3]

	if !isAllDigits(cvr8) || len(cvr8) != 8 {
		return namingFinding()
	}
	if n, err := strconv.Atoi(cvr8); err != nil || n < 0 || n > 99999999 {
		return namingFinding()
	}

	if !isAllDigits(timestamp14) || len(timestamp14) != 14 {
		return namingFinding()
	}
	if !validTimestamp14(timestamp14) {
		return namingFinding()
	}

	if !isSingleDigit19(partHi) || !isSingleDigit19(partLo) {
		return namingFinding()
	}

	return nil
}

func namingFinding() *Finding {
	return &Finding{Check: CheckNaming, Status: StatusError, ErrorKind: KindFilename}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isSingleDigit19(s string) bool {
	return len(s) == 1 && s[0] >= '1' && s[0] <= '9'
}

// validTimestamp14 parses a "YYYYMMDDhhmmss" string field-by-field against
// the range table of spec.md §4.3 (not calendar-validated beyond these
// ranges: e.g. day 31 in February passes).
func validTimestamp14(s string) bool {
	year, _ := strconv.Atoi(s[0:4])
	month, _ := strconv.Atoi(s[4:6])
	day, _ := strconv.Atoi(s[6:8])
	hour, _ := strconv.Atoi(s[8:10])
	minute, _ := strconv.Atoi(s[10:12])
	second, _ := strconv.Atoi(s[12:14])

	switch {
	case year < 1970 || year > 2049:
		return false
	case month < 1 || month > 12:
		return false
	case day < 1 || day > 31:
		return false
	case hour < 0 || hour > 23:
		return false
	case minute < 0 || minute > 60:
		return false
	case second < 0 || second > 60:
		return false
	}
	return true
}
