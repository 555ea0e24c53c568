package source

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/pkg/types"
)

// Error taxonomy shared by every Source. Callers test with errors.Is.
var (
	// ErrAuthorization means the upstream rejected the configured credentials.
	ErrAuthorization = errors.New("authorization rejected")

	// ErrSourceUnavailable means the upstream could not be reached
	// (DNS failure, refused connection, timeout, failed handshake).
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrParse means certificate data was malformed.
	ErrParse = errors.New("malformed certificate")
)

const secondsPerDay = 24 * 60 * 60

// Source is the common interface implemented by every certificate origin.
//
// FetchAll may return records together with a non-nil error when some
// certificates were skipped. A source that could not be reached at all
// returns no records.
type Source interface {
	Name() string
	FetchAll(ctx context.Context) ([]types.CertificateRecord, error)
}

// Clock returns the current time. Sources read it once per FetchAll.
type Clock func() time.Time

// FromConfig builds one CloudSource per AWS account followed by one
// RemoteSource per remote endpoint, in configuration order.
func FromConfig(cfg *config.Config) []Source {
	var out []Source
	for _, acct := range cfg.AWSAccounts {
		out = append(out, NewCloud(cfg, acct))
	}
	for _, rc := range cfg.RemoteCerts {
		out = append(out, NewRemote(rc, cfg.Timeout.Std()))
	}
	return out
}

// DaysRemaining returns the whole days between now and notAfter, rounded
// toward negative infinity so a certificate that expired an hour ago reports -1.
func DaysRemaining(notAfter, now time.Time) int {
	secs := int64(notAfter.Sub(now) / time.Second)
	days := secs / secondsPerDay
	if secs%secondsPerDay != 0 && secs < 0 {
		days--
	}
	return int(days)
}

// The greedy prefix makes the last CN= in the subject win.
var commonNamePattern = regexp.MustCompile(`^.+CN=(.+?)(?:/|$)`)

// ExtractCommonName returns the CN value from a slash-separated subject such
// as "/C=US/CN=example.com/O=Test", or types.SANCommonName when the subject
// has no CN. When several CN attributes are present the last one is used.
func ExtractCommonName(subject string) string {
	m := commonNamePattern.FindStringSubmatch(subject)
	if m == nil {
		return types.SANCommonName
	}
	return m[1]
}

// attributeNames maps distinguished-name attribute OIDs to their short names.
var attributeNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.5":                    "serialNumber",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.9":                    "street",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.17":                   "postalCode",
	"0.9.2342.19200300.100.1.25": "DC",
	"1.2.840.113549.1.9.1":       "emailAddress",
}

// SubjectString renders name in slash form, one attribute per segment.
// Parsed certificates keep their encoded attribute order; names built in
// code fall back to the pkix field order.
func SubjectString(name pkix.Name) string {
	atvs := name.Names
	if len(atvs) == 0 {
		for _, rdn := range name.ToRDNSequence() {
			atvs = append(atvs, rdn...)
		}
	}

	var b strings.Builder
	for _, atv := range atvs {
		b.WriteByte('/')
		b.WriteString(attributeName(atv.Type))
		b.WriteByte('=')
		b.WriteString(fmt.Sprint(atv.Value))
	}
	return b.String()
}

func attributeName(oid asn1.ObjectIdentifier) string {
	if n, ok := attributeNames[oid.String()]; ok {
		return n
	}
	return oid.String()
}

// CommonName returns the CN of cert's subject, or types.SANCommonName.
func CommonName(cert *x509.Certificate) string {
	return ExtractCommonName(SubjectString(cert.Subject))
}

// ParseCertificate decodes a PEM or DER encoded X.509 certificate.
// Failures wrap ErrParse.
func ParseCertificate(body []byte) (*x509.Certificate, error) {
	der := body
	if block, _ := pem.Decode(body); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrParse, block.Type)
		}
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return cert, nil
}
