package risk

import "github.com/checkyourself/checkyourself/pkg/types"

// Severity is the bucket a reported certificate is grouped under.
type Severity int

// Severities in display order, most urgent first.
const (
	Danger Severity = iota
	Warning
	Good
)

// Severities lists every bucket in display order.
var Severities = []Severity{Danger, Warning, Good}

// String returns the label used as the Slack attachment color.
func (s Severity) String() string {
	switch s {
	case Danger:
		return "danger"
	case Warning:
		return "warning"
	case Good:
		return "good"
	default:
		return "unknown"
	}
}

// Thresholds holds the day counts that drive filtering and grouping.
// Low < Medium is expected but not enforced.
type Thresholds struct {
	// Warning is the largest days-remaining value that still gets reported.
	Warning int

	// Medium and Low split reported certificates into Good, Warning and Danger.
	Medium int
	Low    int
}

// Classify returns Good when days > medium, Warning when days > low,
// and Danger otherwise.
func Classify(days, medium, low int) Severity {
	switch {
	case days > medium:
		return Good
	case days > low:
		return Warning
	default:
		return Danger
	}
}

// Classify applies the package-level Classify with t's thresholds.
func (t Thresholds) Classify(days int) Severity {
	return Classify(days, t.Medium, t.Low)
}

// Imminent returns the records with DaysRemaining <= warning, in input order.
func Imminent(records []types.CertificateRecord, warning int) []types.CertificateRecord {
	var out []types.CertificateRecord
	for _, r := range records {
		if r.DaysRemaining <= warning {
			out = append(out, r)
		}
	}
	return out
}

// Soonest returns the record closest to expiry. The first record wins ties.
// ok is false when records is empty.
func Soonest(records []types.CertificateRecord) (rec types.CertificateRecord, ok bool) {
	for i, r := range records {
		if i == 0 || r.DaysRemaining < rec.DaysRemaining {
			rec = r
		}
	}
	return rec, len(records) > 0
}
