package httpserver

import (
	"bytes"
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/raigotchi/petops/internal/config"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/gateway/gatewaytest"
	"github.com/raigotchi/petops/internal/journal"
	"github.com/raigotchi/petops/internal/orchestrator"
	"github.com/raigotchi/petops/internal/service"
	"github.com/raigotchi/petops/internal/signing"
)

const (
	debugToken = "test-debug-token"
	jwtSecret  = "test-jwt-secret"

	petC     = "0xpet"
	tokenC   = "0xtoken"
	itemsC   = "0xitems"
	stakingC = "0xstaking"
	actor    = "0xactor"
)

func newTestServer(t *testing.T) (*gatewaytest.FakeClient, http.Handler) {
	t.Helper()
	cfg := config.Config{
		ActorAddress: actor,
		Contracts: config.Contracts{
			Pet:     petC,
			Token:   tokenC,
			Items:   itemsC,
			Staking: stakingC,
			Attack:  "0xattack",
			Breed:   "0xbreed",
			Faucet:  "0xfaucet",
		},
		MintFee:           big.NewInt(1000),
		StakeFee:          big.NewInt(500),
		MiningDenominator: 1000,
		JWTSecret:         jwtSecret,
		AllowDebugToken:   true,
		DebugToken:        debugToken,
	}
	_, priv, err := ed25519.GenerateKey(crand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := signing.NewLocalSigner(base64.StdEncoding.EncodeToString(priv), "test")
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	fake := gatewaytest.New()
	jnl := journal.NewMemoryJournal()
	svc := service.New(cfg, fake, signer, jnl, nil, nil)
	return fake, New(cfg, svc, jnl).Router()
}

func doRequest(router http.Handler, method, path string, body []byte, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if authed {
		req.Header.Set("X-Debug-Token", debugToken)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMintRequiresAuth(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(router, "POST", "/petops/pets/mint", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMintWithJWT(t *testing.T) {
	fake, router := newTestServer(t)
	fake.SetRead(petC, "_tokenIds", 3)
	fake.SetRead(tokenC, "allowance", "1000", actor, petC)
	fake.SubmitFn = func(gateway.SignedAction) (gateway.SettlementRecord, error) {
		fake.SetRead(petC, "_tokenIds", 4)
		return gateway.SettlementRecord{TxHash: "0xabc", Status: gateway.StatusSuccess}, nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest("POST", "/petops/pets/mint", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		PetID uint64 `json:"petId"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PetID != 3 {
		t.Fatalf("expected pet id 3, got %d", resp.PetID)
	}
	if resp.State != "verified" {
		t.Fatalf("expected verified state, got %q", resp.State)
	}
}

func TestMintRejectsForgedJWT(t *testing.T) {
	_, router := newTestServer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "operator"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest("POST", "/petops/pets/mint", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestFeedDeadPetConflict(t *testing.T) {
	fake, router := newTestServer(t)
	fake.SetRead(petC, "isPetAlive", false, uint64(3))
	fake.SetRead(itemsC, "getImidiateUseItemInfo", map[string]any{
		"name": "burger", "price": "50", "stock": 5, "points": 10, "timeExtension": 3600, "shield": 0,
	}, uint64(1))
	fake.SetRead(tokenC, "allowance", "50", actor, itemsC)
	fake.SetRead(petC, "getPetInfo", map[string]any{
		"name": "rai", "status": 0, "score": 0, "level": 1,
		"timeUntilStarving": 0, "owner": actor, "rewards": "0", "genes": "ab",
	}, uint64(3))
	fake.SetRead(petC, "isPetLocked", false, uint64(3))
	fake.SetRead(petC, "petShield", 0, uint64(3))

	rec := doRequest(router, "POST", "/petops/pets/3/feed", []byte(`{"itemId":1}`), true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["kind"] != "precondition_failed" {
		t.Fatalf("expected precondition_failed, got %q", resp["kind"])
	}
	if fake.SubmitCount != 0 {
		t.Fatalf("blocked action must not submit, got %d submissions", fake.SubmitCount)
	}
}

func TestLedgerRejectionMapsTo422(t *testing.T) {
	fake, router := newTestServer(t)
	fake.SetRead(petC, "isPetAlive", true, uint64(3))
	fake.SetRead(itemsC, "getImidiateUseItemInfo", map[string]any{
		"name": "burger", "price": "50", "stock": 0, "points": 10, "timeExtension": 3600, "shield": 0,
	}, uint64(1))
	fake.SetRead(tokenC, "allowance", "50", actor, itemsC)
	fake.SetRead(petC, "getPetInfo", map[string]any{
		"name": "rai", "status": 1, "score": 0, "level": 1,
		"timeUntilStarving": 100, "owner": actor, "rewards": "0", "genes": "ab",
	}, uint64(3))
	fake.SetRead(petC, "isPetLocked", false, uint64(3))
	fake.SetRead(petC, "petShield", 0, uint64(3))
	fake.SubmitFn = func(gateway.SignedAction) (gateway.SettlementRecord, error) {
		return gateway.SettlementRecord{TxHash: "0xns", Status: gateway.StatusFailed, Reason: "out of stock"}, nil
	}

	rec := doRequest(router, "POST", "/petops/pets/3/feed", []byte(`{"itemId":1}`), true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestSigningFailureMapsTo503(t *testing.T) {
	rec := httptest.NewRecorder()
	respondActionError(rec, orchestrator.SigningFailed(errors.New("kms unreachable")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["kind"] != "signing_failed" {
		t.Fatalf("expected signing_failed, got %q", resp["kind"])
	}
}

func TestPetInfoOpenRead(t *testing.T) {
	fake, router := newTestServer(t)
	fake.SetRead(petC, "getPetInfo", map[string]any{
		"name": "rai", "status": 1, "score": 40, "level": 2,
		"timeUntilStarving": 900, "owner": actor, "rewards": "15", "genes": "ab",
	}, uint64(5))
	fake.SetRead(petC, "isPetLocked", true, uint64(5))
	fake.SetRead(petC, "petShield", 2, uint64(5))

	rec := doRequest(router, "GET", "/petops/pets/5", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Name   string `json:"name"`
		Locked bool   `json:"locked"`
		Shield uint64 `json:"shield"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "rai" || !resp.Locked || resp.Shield != 2 {
		t.Fatalf("unexpected pet view: %+v", resp)
	}
}

func TestMiningStatusProjection(t *testing.T) {
	fake, router := newTestServer(t)
	fake.SetRead(stakingC, "miningToolUsed", []uint64{2, 5}, actor)
	fake.SetRead(stakingC, "lastMiningTime", 1000, actor)
	fake.SetRead(stakingC, "totalMiningChargeTime", 500, actor)
	fake.SetRead(stakingC, "totalMiningPower", 300, actor)
	fake.SetRead(stakingC, "miningPoints", 10, actor)
	fake.SetRead(stakingC, "miningPowerMultiplier", 50)
	fake.Now = 1400

	rec := doRequest(router, "GET", "/petops/mining/status", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		Ready            bool   `json:"ready"`
		RemainingSeconds uint64 `json:"remainingSeconds"`
		NextEligible     uint64 `json:"nextEligible"`
		WouldEarn        uint64 `json:"wouldEarn"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ready {
		t.Fatal("expected not ready at t=1400")
	}
	if resp.RemainingSeconds != 100 {
		t.Fatalf("expected 100s remaining, got %d", resp.RemainingSeconds)
	}
	if resp.NextEligible != 1500 {
		t.Fatalf("expected next eligible 1500, got %d", resp.NextEligible)
	}
	if resp.WouldEarn != 15 {
		t.Fatalf("expected projected reward 15, got %d", resp.WouldEarn)
	}
}

func TestActionNotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(router, "GET", "/petops/actions/d60a3fd0-2bd4-4aac-9ec9-fbbac8b8e153", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(router, "GET", "/health", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
