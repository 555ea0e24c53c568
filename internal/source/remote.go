package source

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/pkg/types"
)

// RemoteSource reads the certificate presented by one TLS endpoint.
type RemoteSource struct {
	cert    config.RemoteCert
	timeout time.Duration
	now     Clock
}

// NewRemote returns a RemoteSource for rc whose handshake is bounded by timeout.
func NewRemote(rc config.RemoteCert, timeout time.Duration) *RemoteSource {
	return &RemoteSource{cert: rc, timeout: timeout, now: time.Now}
}

// Name returns the endpoint display name.
func (s *RemoteSource) Name() string { return "remote:" + s.cert.Name }

// FetchAll dials the endpoint and returns one record for its leaf
// certificate. The record's CommonName is the configured display name.
func (s *RemoteSource) FetchAll(ctx context.Context) ([]types.CertificateRecord, error) {
	leaf, err := s.peerCertificate(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote %q: %w", s.cert.Name, err)
	}

	return []types.CertificateRecord{{
		CommonName:    s.cert.Name,
		DaysRemaining: DaysRemaining(leaf.NotAfter, s.now()),
		Source:        types.Remote,
		ExtraInfo:     []types.Field{{Label: "url", Value: s.cert.URL}},
		NotAfter:      leaf.NotAfter,
	}}, nil
}

// peerCertificate completes a TLS handshake with the endpoint and returns
// the leaf certificate it presented.
//
// Chain verification is disabled: the point is to read whatever certificate
// the endpoint serves, including expired or self-signed ones.
func (s *RemoteSource) peerCertificate(ctx context.Context) (*x509.Certificate, error) {
	u, err := url.Parse(s.cert.URL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrSourceUnavailable, s.cert.URL)
	}

	host := u.Host
	if u.Port() == "" {
		// No explicit port in the URL, use the HTTPS default.
		host = net.JoinHostPort(u.Hostname(), "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         u.Hostname(),
			InsecureSkipVerify: true, //nolint:gosec // expiry inspection only
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrSourceUnavailable, host, err)
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		return nil, fmt.Errorf("%w: %s presented no certificate", ErrSourceUnavailable, host)
	}
	return peerCerts[0], nil
}
