// Package webhook signs and verifies webhook notifications.
//
// A signature is HMAC-SHA256 over "{timestamp}.{body}" where body is the
// canonical JSON form of the payload. The timestamp and hex digest travel in
// the X-AgentKit-Timestamp and X-AgentKit-Signature headers.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderTimestamp = "X-AgentKit-Timestamp"
	HeaderSignature = "X-AgentKit-Signature"
)

var (
	ErrMissingSignature = errors.New("missing signature headers")
	ErrInvalidTimestamp = errors.New("invalid signature timestamp")
	ErrStaleTimestamp   = errors.New("signature timestamp outside tolerance")
	ErrSignatureInvalid = errors.New("signature mismatch")
)

// Signature is the timestamp and hex digest attached to a notification.
type Signature struct {
	Timestamp int64
	Digest    string
}

// Signer computes signatures with a shared secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign canonicalizes payload and signs it at timestamp ts. It returns the
// exact body bytes that were signed.
func (s *Signer) Sign(payload any, ts int64) ([]byte, Signature, error) {
	body, err := CanonicalJSON(payload)
	if err != nil {
		return nil, Signature{}, err
	}
	return body, s.SignBytes(body, ts), nil
}

// SignBytes signs body as-is.
func (s *Signer) SignBytes(body []byte, ts int64) Signature {
	return Signature{Timestamp: ts, Digest: digest(s.secret, ts, body)}
}

// Apply sets the signature headers on h.
func (sig Signature) Apply(h http.Header) {
	h.Set(HeaderTimestamp, strconv.FormatInt(sig.Timestamp, 10))
	h.Set(HeaderSignature, sig.Digest)
}

// Verifier authenticates received notifications.
type Verifier struct {
	secret []byte
	// Tolerance bounds how far the timestamp may be from now. Zero disables
	// the replay check.
	Tolerance time.Duration
}

// NewVerifier creates a Verifier.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), Tolerance: tolerance}
}

// Verify checks the digest for body against the transmitted timestamp.
func (v *Verifier) Verify(body []byte, timestamp, signature string, now time.Time) error {
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	if v.Tolerance > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.Tolerance {
			return ErrStaleTimestamp
		}
	}
	want := digest(v.secret, ts, body)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}

// VerifyRequest reads and verifies r. The body is returned so callers can
// decode it after a successful check.
func (v *Verifier) VerifyRequest(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := v.Verify(body, r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), time.Now()); err != nil {
		return nil, err
	}
	return body, nil
}

func digest(secret []byte, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// CanonicalJSON renders v as compact JSON with object keys sorted, numbers
// kept verbatim and no HTML escaping.
func CanonicalJSON(v any) ([]byte, error) {
	first, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
