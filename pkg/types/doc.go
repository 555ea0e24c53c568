// Package types defines the shared value types passed between certificate
// sources, the risk classifier and the report builder. A CertificateRecord is
// the normalized form of one certificate regardless of where it was found.
package types
