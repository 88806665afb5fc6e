package signing

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSignerRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewLocalSigner(base64.StdEncoding.EncodeToString(priv), "local-1")
	require.NoError(t, err)
	assert.Equal(t, "local-1", signer.SignerID())

	digest := []byte("action digest")
	sig, err := signer.Sign(context.Background(), digest)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, digest, sig))
}

func TestLocalSignerRejectsBadKey(t *testing.T) {
	_, err := NewLocalSigner("not-base64!!", "x")
	require.Error(t, err)

	_, err = NewLocalSigner(base64.StdEncoding.EncodeToString([]byte("short")), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bytes")
}

func TestKMSSignerSignsAndLearnsKeyID(t *testing.T) {
	sig := []byte("kms-signature")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sign", r.URL.Path)
		var req kmsSignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		digest, err := base64.StdEncoding.DecodeString(req.DigestB64)
		require.NoError(t, err)
		assert.Equal(t, "digest", string(digest))
		_ = json.NewEncoder(w).Encode(kmsSignResponse{
			SignatureB64: base64.StdEncoding.EncodeToString(sig),
			KeyID:        "kms-key-7",
		})
	}))
	defer srv.Close()

	signer, err := NewKMSSigner(KMSConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	assert.Empty(t, signer.SignerID(), "key id unknown before first signature")

	got, err := signer.Sign(context.Background(), []byte("digest"))
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	assert.Equal(t, "kms-key-7", signer.SignerID())
}

func TestKMSSignerRetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(kmsSignResponse{
			SignatureB64: base64.StdEncoding.EncodeToString([]byte("ok")),
		})
	}))
	defer srv.Close()

	signer, err := NewKMSSigner(KMSConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	got, err := signer.Sign(context.Background(), []byte("digest"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestKMSSignerDoesNotRetryRefusal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	signer, err := NewKMSSigner(KMSConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = signer.Sign(context.Background(), []byte("digest"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a refusal is final")
}
