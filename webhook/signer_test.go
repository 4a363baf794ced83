package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := CanonicalJSON(map[string]any{"b": 1, "a": map[string]any{"z": true, "y": "<x>"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":"<x>","z":true},"b":1}`, string(a))

	type payload struct {
		Zeta  string `json:"zeta"`
		Alpha int64  `json:"alpha"`
	}
	b, err := CanonicalJSON(payload{Zeta: "z", Alpha: 9007199254740993})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":9007199254740993,"zeta":"z"}`, string(b))
}

func TestSignatureRoundTrip(t *testing.T) {
	payloads := []any{
		map[string]any{"event_type": "REGISTER", "agent_details": map[string]any{"agentId": "a1"}},
		map[string]any{},
		[]any{1, "two", 3.5},
		map[string]any{"unicode": "héllo ✓", "nested": []any{map[string]any{"k": nil}}},
	}
	for i, p := range payloads {
		t.Run(fmt.Sprintf("payload-%d", i), func(t *testing.T) {
			secret := fmt.Sprintf("secret-%d", i)
			ts := time.Now().Unix()
			body, sig, err := NewSigner(secret).Sign(p, ts)
			require.NoError(t, err)

			// Receiver side: recompute from the transmitted timestamp and body.
			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write([]byte(strconv.FormatInt(sig.Timestamp, 10) + "." + string(body)))
			assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig.Digest)

			v := NewVerifier(secret, time.Minute)
			assert.NoError(t, v.Verify(body, strconv.FormatInt(ts, 10), sig.Digest, time.Now()))
		})
	}
}

func TestTamperedBodyFailsVerification(t *testing.T) {
	ts := time.Now().Unix()
	body, sig, err := NewSigner("k").Sign(map[string]any{"event_type": "REGISTER"}, ts)
	require.NoError(t, err)

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		err := NewVerifier("k", 0).Verify(tampered, strconv.FormatInt(ts, 10), sig.Digest, time.Now())
		require.ErrorIs(t, err, ErrSignatureInvalid, "byte %d", i)
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now()
	signer := NewSigner("k")
	body := []byte(`{"a":1}`)
	old := now.Add(-10 * time.Minute).Unix()
	sig := signer.SignBytes(body, old)

	v := NewVerifier("k", 5*time.Minute)
	assert.ErrorIs(t, v.Verify(body, strconv.FormatInt(old, 10), sig.Digest, now), ErrStaleTimestamp)
	assert.ErrorIs(t, v.Verify(body, "", sig.Digest, now), ErrMissingSignature)
	assert.ErrorIs(t, v.Verify(body, "abc", sig.Digest, now), ErrInvalidTimestamp)
	assert.ErrorIs(t, NewVerifier("other", 0).Verify(body, strconv.FormatInt(old, 10), sig.Digest, now), ErrSignatureInvalid)

	// Without a tolerance the stale timestamp is accepted.
	assert.NoError(t, NewVerifier("k", 0).Verify(body, strconv.FormatInt(old, 10), sig.Digest, now))
}

func TestVerifyRequest(t *testing.T) {
	ts := time.Now().Unix()
	body, sig, err := NewSigner("k").Sign(map[string]string{"hello": "world"}, ts)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	sig.Apply(req.Header)

	got, err := NewVerifier("k", time.Minute).VerifyRequest(req)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	req = httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader([]byte(`{"hello":"mars"}`)))
	sig.Apply(req.Header)
	_, err = NewVerifier("k", time.Minute).VerifyRequest(req)
	assert.True(t, errors.Is(err, ErrSignatureInvalid))
}
