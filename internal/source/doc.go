// Package source fetches certificates and normalizes them into
// types.CertificateRecord values.
//
// Implemented sources: CloudSource (cloud.go) lists and fetches the IAM server
// certificates of one AWS account; RemoteSource (remote.go) completes a TLS
// handshake with one endpoint and reads the leaf certificate it presents.
// FromConfig builds one source per configured account and endpoint.
//
// Errors are classified with ErrAuthorization, ErrSourceUnavailable and
// ErrParse. A failure is confined to the source (or, for CloudSource, the
// single certificate) it came from.
package source
