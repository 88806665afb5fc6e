package signing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// KMSSigner asks a signing service to sign action digests, keyed by the
// actor account. Transport failures and 5xx answers retry with linear
// backoff; a refusal (4xx) is final, since the KMS has already decided
// about this digest. The key id reported by the KMS is cached and attached
// to subsequent submissions.
type KMSSigner struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	retries  int

	mu    sync.RWMutex
	keyID string
}

type KMSConfig struct {
	Endpoint   string
	HTTPClient *http.Client

	// Timeout bounds one signing attempt. Defaults to 5s.
	Timeout time.Duration
	// Retries is the number of re-attempts after a retryable failure.
	// Defaults to 2.
	Retries int
}

type kmsSignRequest struct {
	DigestB64 string `json:"digestB64"`
}

type kmsSignResponse struct {
	SignatureB64 string `json:"signatureB64"`
	KeyID        string `json:"keyId"`
}

func NewKMSSigner(cfg KMSConfig) (*KMSSigner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("kms endpoint required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 2
	}
	return &KMSSigner{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		client:   client,
		timeout:  timeout,
		retries:  retries,
	}, nil
}

func (k *KMSSigner) Sign(ctx context.Context, digest []byte) ([]byte, error) {
	body, err := json.Marshal(kmsSignRequest{
		DigestB64: base64.StdEncoding.EncodeToString(digest),
	})
	if err != nil {
		return nil, fmt.Errorf("kms marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= k.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig, retryable, err := k.attempt(ctx, body)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		if attempt < k.retries {
			time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
		}
	}
	return nil, fmt.Errorf("kms sign: %w", lastErr)
}

func (k *KMSSigner) attempt(ctx context.Context, body []byte) (sig []byte, retryable bool, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, k.endpoint+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("kms unavailable: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("kms refused digest: %s", resp.Status)
	}

	var kr kmsSignResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	sig, err = base64.StdEncoding.DecodeString(kr.SignatureB64)
	if err != nil {
		return nil, false, fmt.Errorf("decode signature: %w", err)
	}
	if kr.KeyID != "" {
		k.mu.Lock()
		k.keyID = kr.KeyID
		k.mu.Unlock()
	}
	return sig, false, nil
}

func (k *KMSSigner) SignerID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keyID
}
