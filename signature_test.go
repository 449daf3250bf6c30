package saftcr

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"testing"
)

// TestVerifySignatureHashesRawAndSha512ModesDifferently guards against the
// "raw" and "sha512" message-encoding variants collapsing onto the same
// RSA-level digest. signedMessage pre-hashes the message once for the
// sha512 (double-hash) convention; verifySignature must hash whatever it
// is given exactly once more, so a signature produced under one encoding
// must not verify under the other.
func TestVerifySignatureHashesRawAndSha512ModesDifferently(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	ct := CashTrans{Nr: "1", TransID: "T1", TransType: "SALE", TransDate: "2024-01-15", TransTime: "09:00:00", EmpID: "E1"}

	rawMode := sigMode{Padding: paddingPKCS1v15, HashFirst: false}
	sha512Mode := sigMode{Padding: paddingPKCS1v15, HashFirst: true}

	rawMsg := signedMessage("0", ct, "CVR123", rawMode)
	sha512Msg := signedMessage("0", ct, "CVR123", sha512Mode)

	sign := func(msg []byte) string {
		sum := sha512.Sum512(msg)
		sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA512, sum[:])
		if err != nil {
			t.Fatal(err)
		}
		return base64.StdEncoding.EncodeToString(sig)
	}

	rawSig := sign(rawMsg)
	sha512Sig := sign(sha512Msg)

	if ok, err := verifySignature(&key.PublicKey, rawMsg, rawSig, rawMode); err != nil || !ok {
		t.Errorf("raw-mode signature should verify under raw mode: ok=%v err=%v", ok, err)
	}
	if ok, err := verifySignature(&key.PublicKey, sha512Msg, sha512Sig, sha512Mode); err != nil || !ok {
		t.Errorf("sha512-mode (double-hash) signature should verify under sha512 mode: ok=%v err=%v", ok, err)
	}
	if ok, _ := verifySignature(&key.PublicKey, sha512Msg, rawSig, sha512Mode); ok {
		t.Error("a raw-mode signature must not verify as a sha512-mode (double-hash) signature")
	}
	if ok, _ := verifySignature(&key.PublicKey, rawMsg, sha512Sig, rawMode); ok {
		t.Error("a sha512-mode (double-hash) signature must not verify as a raw-mode signature")
	}
}

func TestNormalizeTime(t *testing.T) {
	cases := map[string]string{
		"9:5:3":    "09:05:03",
		"10:30:00": "10:30:00",
		"garbage":  "garbage",
	}
	for in, want := range cases {
		if got := normalizeTime(in); got != want {
			t.Errorf("normalizeTime(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultModePriorityIsTwelveModes(t *testing.T) {
	modes := defaultModePriority()
	if len(modes) != 12 {
		t.Fatalf("got %d modes, want 12", len(modes))
	}
	if modes[0].Padding != paddingPKCS1v15 || modes[0].HashFirst || modes[0].NormTime {
		t.Errorf("first mode should be PKCS1v15/raw/as-written, got %+v", modes[0])
	}
}

func TestPromoteMovesModeToFront(t *testing.T) {
	sv := NewSignatureValidator()
	target := sv.priority[5]
	sv.promote(5)
	if sv.priority[0] != target {
		t.Fatalf("promote(5) did not move the mode to the front")
	}
	if len(sv.priority) != 12 {
		t.Fatalf("promote changed the priority list length to %d", len(sv.priority))
	}
}

func TestSignedMessageJoinsFieldsBySemicolon(t *testing.T) {
	ct := CashTrans{Nr: "2", TransID: "T2", TransType: "11001", TransDate: "2024-01-15", TransTime: "10:00:00", EmpID: "E1"}
	msg := signedMessage("0", ct, "CVR123", sigMode{Padding: paddingPKCS1v15})
	want := "0;2;T2;11001;2024-01-15;10:00:00;E1;0;0;;CVR123"
	if string(msg) != want {
		t.Errorf("signedMessage() = %q, want %q", msg, want)
	}
}
