package saftcr

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/ocsp"
)

// TrustStore is the pre-loaded set of trusted issuer certificates, built
// once at process start by scanning the trusted-certificate directory
// (spec.md §6 "Trusted certificates" — the directory scan itself is an
// external collaborator, out of scope; this type is the in-scope lookup
// surface the Certificate Validator consumes).
type TrustStore struct {
	byFingerprint map[[32]byte]*x509.Certificate
}

// LoadTrustStore reads every *.cer file in dir, trying PEM then DER.
func LoadTrustStore(dir string) (*TrustStore, error) {
	ts := &TrustStore{byFingerprint: make(map[[32]byte]*x509.Certificate)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("saftcr: cannot read trust directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".cer" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		cert, err := parseCertificateBytes(raw)
		if err != nil {
			continue
		}
		ts.byFingerprint[certFingerprint(cert)] = cert
	}
	return ts, nil
}

// Contains reports whether cert (by fingerprint) is in the trust set.
func (ts *TrustStore) Contains(cert *x509.Certificate) bool {
	if ts == nil {
		return false
	}
	_, ok := ts.byFingerprint[certFingerprint(cert)]
	return ok
}

func certFingerprint(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}

// CertificateValidator performs the trust-chain, OCSP, and temporal checks
// of spec.md §4.5. Issuer and OCSP lookups are cached per leaf-certificate
// fingerprint so a file with many transactions signed by the same
// certificate pays the network cost once.
type CertificateValidator struct {
	trust  *TrustStore
	client *http.Client

	mu     sync.Mutex
	cache  map[[32]byte]*certVerdict
}

type certVerdict struct {
	leaf       *x509.Certificate
	issuer     *x509.Certificate
	parseErr   error
	ocspErr    error
	ocspResp   *ocsp.Response
	trusted    bool
}

// NewCertificateValidator builds a validator backed by trust and an HTTPS
// client retrying issuer/OCSP fetches per spec.md §4.5/§5 (3 connect
// retries, 0.5s exponential backoff, 3s response timeout).
func NewCertificateValidator(trust *TrustStore) *CertificateValidator {
	return &CertificateValidator{
		trust:  trust,
		client: &http.Client{Timeout: 3 * time.Second},
		cache:  make(map[[32]byte]*certVerdict),
	}
}

// ValidateAll checks every certificateData/transDate pair extracted from
// the document and returns the resulting findings.
func (cv *CertificateValidator) ValidateAll(ctx context.Context, x *Extractor) []Finding {
	var findings []Finding
	sawAny := false

	for _, ct := range x.CashTransactions() {
		if ct.CertData == "" || IsSentinel(ct.CertData) || IsSentinel(ct.TransDate) {
			continue
		}
		sawAny = true
		transDate := parseDate(ct.TransDate)
		f := cv.validateOne(ctx, ct.CertData, transDate, ct.SourceRow)
		if f != nil {
			findings = append(findings, *f)
		}
	}

	if !sawAny {
		findings = append(findings, Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindNoCertificate})
	}
	return findings
}

func (cv *CertificateValidator) validateOne(ctx context.Context, certPEM string, transDate time.Time, row int) *Finding {
	leaf, err := parseCertificateBytes([]byte(certPEM))
	if err != nil {
		return &Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCertificateCompleteError, SourceRow: row, HasRow: row != 0}
	}

	v := cv.verdictFor(ctx, leaf)

	if v.ocspErr != nil {
		return &Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCertificateOCSPCompleteError, SourceRow: row, HasRow: row != 0}
	}
	if !v.trusted {
		return &Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCertificateNotTrustedIssuer, SourceRow: row, HasRow: row != 0}
	}
	if v.ocspResp != nil {
		switch v.ocspResp.Status {
		case ocsp.Revoked:
			if v.ocspResp.RevokedAt.Before(transDate) {
				return &Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCertificateRevoked, SourceRow: row, HasRow: row != 0}
			}
		case ocsp.Unknown:
			if !transDate.After(leaf.NotAfter) {
				return &Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCertificateUnknown, SourceRow: row, HasRow: row != 0}
			}
		}
	}
	if transDate.After(leaf.NotAfter) {
		return &Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCertificateExpired, SourceRow: row, HasRow: row != 0}
	}
	if transDate.Before(leaf.NotBefore) {
		return &Finding{Check: CheckCertificate, Status: StatusError, ErrorKind: KindCertificateNotValidYet, SourceRow: row, HasRow: row != 0}
	}
	return nil
}

// verdictFor resolves (and caches) the issuer fetch and OCSP round-trip for
// one leaf certificate, keyed by its fingerprint.
func (cv *CertificateValidator) verdictFor(ctx context.Context, leaf *x509.Certificate) *certVerdict {
	fp := certFingerprint(leaf)

	cv.mu.Lock()
	if v, ok := cv.cache[fp]; ok {
		cv.mu.Unlock()
		return v
	}
	cv.mu.Unlock()

	v := &certVerdict{leaf: leaf}

	issuer, err := cv.fetchIssuer(ctx, leaf)
	if err != nil {
		v.ocspErr = err
	} else {
		v.issuer = issuer
		v.trusted = cv.trust.Contains(issuer)

		resp, err := cv.fetchOCSP(ctx, leaf, issuer)
		if err != nil {
			v.ocspErr = err
		} else {
			v.ocspResp = resp
		}
	}

	cv.mu.Lock()
	cv.cache[fp] = v
	cv.mu.Unlock()
	return v
}

// fetchIssuer resolves the CA Issuers URL from the leaf's Authority
// Information Access extension and downloads it, retrying per the shared
// backoff policy.
func (cv *CertificateValidator) fetchIssuer(ctx context.Context, leaf *x509.Certificate) (*x509.Certificate, error) {
	if len(leaf.IssuingCertificateURL) == 0 {
		return nil, fmt.Errorf("saftcr: certificate has no AIA CA Issuers URL")
	}
	url := leaf.IssuingCertificateURL[0]

	var raw []byte
	op := func() error {
		body, err := cv.httpGet(ctx, url)
		if err != nil {
			return err
		}
		raw = body
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return nil, err
	}
	return parseCertificateBytes(raw)
}

// fetchOCSP resolves the OCSP responder URL, builds a SHA-1 OCSP request
// for (leaf, issuer), and POSTs it, retrying per the shared backoff policy.
func (cv *CertificateValidator) fetchOCSP(ctx context.Context, leaf, issuer *x509.Certificate) (*ocsp.Response, error) {
	if len(leaf.OCSPServer) == 0 {
		return nil, fmt.Errorf("saftcr: certificate has no OCSP responder URL")
	}
	url := leaf.OCSPServer[0]

	reqBytes, err := ocsp.CreateRequest(leaf, issuer, &ocsp.RequestOptions{Hash: crypto.SHA1})
	if err != nil {
		return nil, err
	}

	var respBody []byte
	op := func() error {
		ctx2, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx2, http.MethodPost, url, bytes.NewReader(reqBytes))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/ocsp-request")
		resp, err := cv.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		respBody = body
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return nil, err
	}

	return ocsp.ParseResponseForCert(respBody, leaf, issuer)
}

func (cv *CertificateValidator) httpGet(ctx context.Context, url string) ([]byte, error) {
	ctx2, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx2, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := cv.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// retryPolicy builds the shared 3-retry, 0.5s-exponential-backoff policy
// used by every issuer and OCSP network call (spec.md §4.5, §5).
func retryPolicy() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.Multiplier = 2
	return backoff.WithMaxRetries(eb, 3)
}

func parseCertificateBytes(raw []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(raw); block != nil {
		return x509.ParseCertificate(block.Bytes)
	}
	return x509.ParseCertificate(raw)
}
