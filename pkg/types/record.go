package types

import "time"

// SANCommonName is used when a certificate subject carries no Common Name,
// which is typical for multi-domain certificates.
const SANCommonName = "Multi-Domain/SAN"

// SourceKind identifies where a certificate was found.
type SourceKind int

const (
	CloudManaged SourceKind = iota
	Remote
)

// Label returns the human-readable source name used in report lines.
func (k SourceKind) Label() string {
	switch k {
	case CloudManaged:
		return "AWS"
	case Remote:
		return "Remote"
	default:
		return "Unknown"
	}
}

func (k SourceKind) String() string { return k.Label() }

// Field is one label/value pair of display-only metadata.
type Field struct {
	Label string
	Value string
}

// CertificateRecord is one certificate normalized from any source.
// Records are built once per run and never modified afterwards.
type CertificateRecord struct {
	// CommonName is the subject CN, the configured display name for remote
	// endpoints, or SANCommonName. Never empty.
	CommonName string

	// DaysRemaining is floor((NotAfter - now) / 24h) for the now read at fetch
	// time. Negative once the certificate has expired.
	DaysRemaining int

	Source SourceKind

	// ExtraInfo is source specific: iam_name and account_name for CloudManaged,
	// url for Remote, always in that order.
	ExtraInfo []Field

	NotAfter time.Time
}

// ExtraValues returns the ExtraInfo values in order.
func (r CertificateRecord) ExtraValues() []string {
	out := make([]string, 0, len(r.ExtraInfo))
	for _, f := range r.ExtraInfo {
		out = append(out, f.Value)
	}
	return out
}

// Extra returns the value stored under label, or "" when absent.
func (r CertificateRecord) Extra(label string) string {
	for _, f := range r.ExtraInfo {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}
