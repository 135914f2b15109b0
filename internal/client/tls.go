// Package client talks to the capsule server: the HTTP API, the live
// snapshot stream and the session that keeps a time-derived view current.
package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
)

// NewHTTPClient returns a client presenting the owner certificate in
// certFile/keyFile and trusting caFile. An empty certFile yields a client
// without a certificate, which can only reach the public endpoints. An
// empty caFile trusts the system roots.
//
// The client has no overall timeout because the snapshot stream is long
// lived; API calls bound themselves with Client.RequestTimeout.
func NewHTTPClient(certFile, keyFile, caFile string) (*http.Client, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		cfg.RootCAs = caPool
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = cfg
	return &http.Client{Transport: transport}, nil
}
