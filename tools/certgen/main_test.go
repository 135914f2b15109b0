package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("certgen %v: %v", args, err)
	}
	return out.String()
}

func loadCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatalf("%s: no PEM block", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return cert
}

func TestInit_WritesChain(t *testing.T) {
	dir := t.TempDir()
	out := execute(t, "init", "--dir", dir, "--owner", "alice", "--host", "localhost")
	if !strings.Contains(out, "Certificates generated") {
		t.Errorf("unexpected output %q", out)
	}

	for _, name := range []string{"ca", "server", "alice"} {
		if _, err := tls.LoadX509KeyPair(filepath.Join(dir, name+".crt"), filepath.Join(dir, name+".key")); err != nil {
			t.Errorf("%s key pair: %v", name, err)
		}
	}

	ca := loadCert(t, filepath.Join(dir, "ca.crt"))
	roots := x509.NewCertPool()
	roots.AddCert(ca)

	server := loadCert(t, filepath.Join(dir, "server.crt"))
	if _, err := server.Verify(x509.VerifyOptions{Roots: roots, DNSName: "localhost"}); err != nil {
		t.Errorf("server cert: %v", err)
	}

	owner := loadCert(t, filepath.Join(dir, "alice.crt"))
	if owner.Subject.CommonName != "alice" {
		t.Errorf("CommonName = %q; want alice", owner.Subject.CommonName)
	}
	if _, err := owner.Verify(x509.VerifyOptions{Roots: roots, KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}}); err != nil {
		t.Errorf("owner cert: %v", err)
	}
}

func TestOwner_UsesExistingCA(t *testing.T) {
	dir := t.TempDir()
	execute(t, "init", "--dir", dir)
	execute(t, "owner", "bob", "--dir", dir)

	ca := loadCert(t, filepath.Join(dir, "ca.crt"))
	bob := loadCert(t, filepath.Join(dir, "bob.crt"))
	if err := bob.CheckSignatureFrom(ca); err != nil {
		t.Errorf("bob not signed by CA: %v", err)
	}
}

func TestOwner_MissingCA(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"owner", "bob", "--dir", t.TempDir()})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "read ca cert") {
		t.Errorf("got %v; want read ca cert error", err)
	}
}
