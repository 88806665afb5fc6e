// Package signing produces the detached signature every submitted action
// carries. The ledger node verifies it against the actor's registered key,
// so the signer identity travels alongside the payload.
package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

// Signer signs action digests. Implementations must be safe for concurrent
// use; the orchestrator signs from every caller goroutine.
type Signer interface {
	Sign(ctx context.Context, digest []byte) ([]byte, error)
	// SignerID names the key the ledger should verify against.
	SignerID() string
}

// LocalSigner keeps the actor's ed25519 key in-process. Fine for the
// dev-net actor; production deployments point at a KMS so the key never
// enters this service.
type LocalSigner struct {
	key ed25519.PrivateKey
	id  string
}

// NewLocalSigner decodes a base64 ed25519 private key.
func NewLocalSigner(keyB64, id string) (*LocalSigner, error) {
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("decode actor key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("actor key is %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return &LocalSigner{key: ed25519.PrivateKey(raw), id: id}, nil
}

func (s *LocalSigner) Sign(_ context.Context, digest []byte) ([]byte, error) {
	return ed25519.Sign(s.key, digest), nil
}

func (s *LocalSigner) SignerID() string { return s.id }
