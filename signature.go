package saftcr

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strings"
)

// padding identifies one of the three RSA verification strategies in the
// mode-discovery Cartesian product (spec.md §4.6).
type padding int

const (
	paddingPKCS1v15 padding = iota
	paddingPSSDigest
	paddingPSSMax
)

// sigMode is one point in the 12-element Cartesian product
// {padding} x {raw, sha512} x {as-written, HH:MM:SS}.
type sigMode struct {
	Padding    padding
	HashFirst  bool // true: sign SHA-512 digest of message; false: sign raw message bytes
	NormTime   bool // true: normalize transTime to HH:MM:SS before building the message
}

// defaultModePriority is the as-written ordering of spec.md §4.6: padding
// varies slowest, then message encoding, then time format.
func defaultModePriority() []sigMode {
	var modes []sigMode
	for _, p := range []padding{paddingPKCS1v15, paddingPSSDigest, paddingPSSMax} {
		for _, hashFirst := range []bool{false, true} {
			for _, normTime := range []bool{false, true} {
				modes = append(modes, sigMode{Padding: p, HashFirst: hashFirst, NormTime: normTime})
			}
		}
	}
	return modes
}

// SignatureValidator reconstructs and verifies the per-transaction hash
// chain, discovering which of the 12 candidate cryptographic modes a given
// software vendor's files use. The priority list is process-wide state
// (spec.md §9 "Dynamic mode discovery") so it is a field on the validator,
// not per-analysis: construct one SignatureValidator per process and reuse
// it across files.
type SignatureValidator struct {
	priority []sigMode
}

// NewSignatureValidator returns a validator with the as-written mode
// priority (spec.md §4.6).
func NewSignatureValidator() *SignatureValidator {
	return &SignatureValidator{priority: defaultModePriority()}
}

// ValidateAll walks every register's cash transactions in document order
// and verifies the chained signature, per spec.md §4.6.
func (sv *SignatureValidator) ValidateAll(x *Extractor, companyID string) []Finding {
	var findings []Finding
	sawAny := false

	byRegister := make(map[string][]CashTrans)
	for _, ct := range x.CashTransactions() {
		byRegister[ct.RegisterID] = append(byRegister[ct.RegisterID], ct)
	}

	for _, register := range byRegister {
		prevSig := "0"
		firstRow := 0
		anyAttempted := false
		anyVerified := false

		for i, ct := range register {
			if ct.Signature == "" || IsSentinel(ct.Signature) {
				continue
			}
			sawAny = true

			if i == 0 {
				prevSig = ct.Signature
				firstRow = ct.SourceRow
				continue
			}

			pub, err := publicKeyFrom(ct.CertData)
			if err != nil {
				findings = append(findings, Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindCannotGetPublicKey, SourceRow: ct.SourceRow, HasRow: ct.SourceRow != 0})
				prevSig = ct.Signature
				continue
			}
			if companyID == "" || IsSentinel(companyID) {
				findings = append(findings, Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindSignatureCompleteError, SourceRow: ct.SourceRow, HasRow: ct.SourceRow != 0})
				prevSig = ct.Signature
				continue
			}

			anyAttempted = true
			ok, err := sv.verifyWithDiscovery(pub, prevSig, ct, companyID)
			if err != nil {
				findings = append(findings, Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindSignatureCompleteError, SourceRow: ct.SourceRow, HasRow: ct.SourceRow != 0})
				prevSig = ct.Signature
				continue
			}
			if ok {
				anyVerified = true
				prevSig = ct.Signature
				continue
			}

			if resetOK, _ := sv.verifyWithDiscovery(pub, "0", ct, companyID); resetOK {
				findings = append(findings, Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindSignatureBreak, SourceRow: ct.SourceRow, HasRow: ct.SourceRow != 0})
				anyVerified = true
			} else {
				findings = append(findings, Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindSignatureNotVerified, SourceRow: ct.SourceRow, HasRow: ct.SourceRow != 0})
			}
			prevSig = ct.Signature
		}

		if anyAttempted && !anyVerified {
			findings = append(findings, Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindSignatureNotVerified, SourceRow: firstRow, HasRow: firstRow != 0})
		}
	}

	if !sawAny {
		findings = append(findings, Finding{Check: CheckSignature, Status: StatusError, ErrorKind: KindNoSignature})
	}
	return findings
}

// verifyWithDiscovery tries the current priority list in order, promoting
// the first mode that verifies to the front (spec.md §4.6, §8 "Signature-
// mode monotonic promotion").
func (sv *SignatureValidator) verifyWithDiscovery(pub *rsa.PublicKey, prevSig string, ct CashTrans, companyID string) (bool, error) {
	for i, mode := range sv.priority {
		msg := signedMessage(prevSig, ct, companyID, mode)
		ok, err := verifySignature(pub, msg, ct.Signature, mode)
		if err != nil {
			return false, err
		}
		if ok {
			sv.promote(i)
			return true, nil
		}
	}
	return false, nil
}

func (sv *SignatureValidator) promote(index int) {
	if index <= 0 || index >= len(sv.priority) {
		return
	}
	mode := sv.priority[index]
	sv.priority = append(sv.priority[:index], sv.priority[index+1:]...)
	sv.priority = append([]sigMode{mode}, sv.priority...)
}

// signedMessage builds the chained message of spec.md §4.6: the previous
// signature, then the transaction's own fields, joined by ";".
func signedMessage(prevSig string, ct CashTrans, companyID string, mode sigMode) []byte {
	transTime := ct.TransTime
	if mode.NormTime {
		transTime = normalizeTime(transTime)
	}
	fields := []string{
		prevSig,
		ct.Nr,
		ct.TransID,
		ct.TransType,
		ct.TransDate,
		transTime,
		ct.EmpID,
		ct.AmntIncl.String(),
		ct.AmntExcl.String(),
		ct.RegisterID,
		companyID,
	}
	msg := strings.Join(fields, ";")
	if mode.HashFirst {
		sum := sha512.Sum512([]byte(msg))
		return sum[:]
	}
	return []byte(msg)
}

// normalizeTime reformats a time-of-day string into "HH:MM:SS", zero-padded,
// tolerating input already in that form.
func normalizeTime(s string) string {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return s
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}

func verifySignature(pub *rsa.PublicKey, msg []byte, sigB64 string, mode sigMode) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, nil
	}

	hashFunc := crypto.SHA512
	sum := sha512.Sum512(msg)
	digest := sum[:]

	switch mode.Padding {
	case paddingPKCS1v15:
		err := rsa.VerifyPKCS1v15(pub, hashFunc, digest, sig)
		return err == nil, nil
	case paddingPSSDigest:
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hashFunc}
		err := rsa.VerifyPSS(pub, hashFunc, digest, sig, opts)
		return err == nil, nil
	case paddingPSSMax:
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: hashFunc}
		err := rsa.VerifyPSS(pub, hashFunc, digest, sig, opts)
		return err == nil, nil
	}
	return false, fmt.Errorf("saftcr: unknown padding mode")
}

func publicKeyFrom(certPEM string) (*rsa.PublicKey, error) {
	if certPEM == "" || IsSentinel(certPEM) {
		return nil, fmt.Errorf("saftcr: no certificate data")
	}
	cert, err := parseCertificateBytes([]byte(certPEM))
	if err != nil {
		return nil, err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("saftcr: certificate public key is not RSA")
	}
	return pub, nil
}
