package saftcr

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func selfSignedCertPEM(t *testing.T) ([]byte, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), cert
}

func TestLoadTrustStoreAndContains(t *testing.T) {
	dir := t.TempDir()
	certPEM, cert := selfSignedCertPEM(t)
	if err := os.WriteFile(filepath.Join(dir, "issuer.cer"), certPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	ts, err := LoadTrustStore(dir)
	if err != nil {
		t.Fatalf("LoadTrustStore: %v", err)
	}
	if !ts.Contains(cert) {
		t.Error("expected the loaded certificate to be in the trust store")
	}

	other, _ := selfSignedCertPEM(t)
	otherCert, err := parseCertificateBytes(other)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Contains(otherCert) {
		t.Error("an unrelated certificate should not be trusted")
	}
}

func TestParseCertificateBytesAcceptsPEMAndDER(t *testing.T) {
	certPEM, cert := selfSignedCertPEM(t)

	fromPEM, err := parseCertificateBytes(certPEM)
	if err != nil || fromPEM.SerialNumber.Cmp(cert.SerialNumber) != 0 {
		t.Errorf("PEM parse failed: %v", err)
	}

	fromDER, err := parseCertificateBytes(cert.Raw)
	if err != nil || fromDER.SerialNumber.Cmp(cert.SerialNumber) != 0 {
		t.Errorf("DER parse failed: %v", err)
	}
}
