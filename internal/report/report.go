package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/checkyourself/checkyourself/internal/risk"
	"github.com/checkyourself/checkyourself/pkg/types"
)

// ExpiringSummary is the headline of a report that lists certificates.
const ExpiringSummary = "*The following SSL certificates are about to expire:*"

// Entry is one rendered line of a report.
type Entry struct {
	Severity risk.Severity
	Text     string
	Record   types.CertificateRecord
}

// Report is the rendered outcome of one run. Entries is empty for an
// all-clear report.
type Report struct {
	Summary string
	Entries []Entry
}

// AllClear reports whether no certificate is about to expire.
func (r Report) AllClear() bool { return len(r.Entries) == 0 }

// String renders the report as plain text, one entry per line.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString(r.Summary)
	for _, e := range r.Entries {
		b.WriteString("\n[")
		b.WriteString(e.Severity.String())
		b.WriteString("] ")
		b.WriteString(e.Text)
	}
	return b.String()
}

// Builder renders reports for a fixed set of thresholds.
type Builder struct {
	Thresholds risk.Thresholds
}

// Build renders imminent, the records selected for reporting. all is the
// unfiltered record set and is only consulted for the all-clear summary.
func (b Builder) Build(imminent, all []types.CertificateRecord) Report {
	if len(imminent) == 0 {
		return Report{Summary: b.allClear(all)}
	}

	buckets := make(map[risk.Severity][]types.CertificateRecord, len(risk.Severities))
	for _, r := range imminent {
		sev := b.Thresholds.Classify(r.DaysRemaining)
		buckets[sev] = append(buckets[sev], r)
	}

	out := Report{Summary: ExpiringSummary, Entries: make([]Entry, 0, len(imminent))}
	for _, sev := range risk.Severities {
		records := buckets[sev]
		slices.SortStableFunc(records, func(x, y types.CertificateRecord) int {
			return cmp.Compare(x.DaysRemaining, y.DaysRemaining)
		})
		for _, r := range records {
			out.Entries = append(out.Entries, Entry{Severity: sev, Text: Line(r), Record: r})
		}
	}
	return out
}

func (b Builder) allClear(all []types.CertificateRecord) string {
	head := fmt.Sprintf(`\o/ No certificates are expiring within the next %d days.`, b.Thresholds.Warning)
	next, ok := risk.Soonest(all)
	if !ok {
		return head + "\n\nNo certificates were found."
	}
	return fmt.Sprintf("%s\n\nOnly %d days until the next certificate expires. /o\\", head, next.DaysRemaining)
}

// Line renders a record as
// "<days> Days <source> Certificate, <common name>, <extra values>".
func Line(r types.CertificateRecord) string {
	line := fmt.Sprintf("%d Days %s Certificate, %s", r.DaysRemaining, r.Source.Label(), r.CommonName)
	if extra := r.ExtraValues(); len(extra) > 0 {
		line += ", " + strings.Join(extra, ", ")
	}
	return line
}
