package server

import (
	"crypto/tls"
	"errors"
	"fmt"
)

// ErrNoCertificate is returned when HTTPS is enabled without PEM material.
var ErrNoCertificate = errors.New("HTTPS enabled but no certificate configured")

// NewTLSConfig builds the HTTPS configuration from PEM-encoded
// certificate and key. Certificates are supplied by the caller, never
// issued here.
func NewTLSConfig(certPEM, keyPEM []byte) (*tls.Config, error) {
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return nil, ErrNoCertificate
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// GetTLSInfo returns human-readable TLS configuration information
func GetTLSInfo(config *tls.Config) map[string]interface{} {
	names := make([]string, 0)
	for _, cert := range config.Certificates {
		if cert.Leaf != nil {
			names = append(names, cert.Leaf.Subject.CommonName)
		}
	}
	return map[string]interface{}{
		"min_version": tls.VersionName(config.MinVersion),
		"num_certs":   len(config.Certificates),
		"subjects":    names,
	}
}
