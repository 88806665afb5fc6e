// Package httpserver exposes the action and query surface over HTTP.
// Writes are authenticated; reads are open. Every mutating route maps to
// exactly one ledger action.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/raigotchi/petops/internal/config"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/journal"
	"github.com/raigotchi/petops/internal/orchestrator"
	"github.com/raigotchi/petops/internal/service"
)

type Server struct {
	cfg     config.Config
	service *service.Service
	journal journal.Journal
}

func New(cfg config.Config, svc *service.Service, jnl journal.Journal) *Server {
	return &Server{cfg: cfg, service: svc, journal: jnl}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/petops", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.writeAuth)
			r.Post("/pets/mint", s.handleMint)
			r.Post("/pets/{petID}/name", s.handleSetName)
			r.Post("/pets/{petID}/feed", s.handleFeed)
			r.Post("/pets/{petID}/revive", s.handleRevive)
			r.Post("/pets/{petID}/stake", s.handleStake)
			r.Post("/pets/{petID}/unstake", s.handleUnstake)
			r.Post("/pets/{petID}/attack", s.handleAttack)
			r.Post("/breeds", s.handleBreed)
			r.Post("/allowance", s.handleApprove)
			r.Post("/mining/tools", s.handleAddTool)
			r.Delete("/mining/tools/{toolID}", s.handleRemoveTool)
			r.Post("/mining/mine", s.handleMine)
			r.Post("/faucet", s.handleFaucet)
		})

		r.Get("/pets/{petID}", s.handlePetInfo)
		r.Get("/items/{itemID}", s.handleItemInfo)
		r.Get("/pools/{poolID}", s.handlePoolInfo)
		r.Get("/allowance", s.handleAllowance)
		r.Get("/mining/status", s.handleMiningStatus)
		r.Get("/breeds/{breedID}", s.handleBreedStatus)
		r.Get("/actions", s.handleActions)
		r.Get("/actions/{actionID}", s.handleAction)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC(),
	}
	if err := s.journal.Ping(ctx); err != nil {
		status["ok"] = false
		status["journal"] = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Mint(r.Context())
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

type setNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathUint(w, r, "petID")
	if !ok {
		return
	}
	var req setNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}
	res, err := s.service.SetPetName(r.Context(), petID, req.Name)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type itemRequest struct {
	ItemID uint64 `json:"itemId"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathUint(w, r, "petID")
	if !ok {
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.Feed(r.Context(), petID, req.ItemID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRevive(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathUint(w, r, "petID")
	if !ok {
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.Revive(r.Context(), petID, req.ItemID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type poolRequest struct {
	PoolID uint64 `json:"poolId"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathUint(w, r, "petID")
	if !ok {
		return
	}
	var req poolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.Stake(r.Context(), petID, req.PoolID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathUint(w, r, "petID")
	if !ok {
		return
	}
	var req poolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.Unstake(r.Context(), petID, req.PoolID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type attackRequest struct {
	TargetID uint64 `json:"targetId"`
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathUint(w, r, "petID")
	if !ok {
		return
	}
	var req attackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.Attack(r.Context(), petID, req.TargetID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type breedRequest struct {
	PetID1 uint64 `json:"petId1"`
	PetID2 uint64 `json:"petId2"`
}

func (s *Server) handleBreed(w http.ResponseWriter, r *http.Request) {
	var req breedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.Breed(r.Context(), req.PetID1, req.PetID2)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, ok := gateway.ParseBig(req.Amount)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	res, err := s.service.Approve(r.Context(), req.Spender, amount)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type toolRequest struct {
	ToolID uint64 `json:"toolId"`
}

func (s *Server) handleAddTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.AddTool(r.Context(), req.ToolID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRemoveTool(w http.ResponseWriter, r *http.Request) {
	toolID, ok := pathUint(w, r, "toolID")
	if !ok {
		return
	}
	res, err := s.service.RemoveTool(r.Context(), toolID)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Mine(r.Context())
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type faucetRequest struct {
	To string `json:"to"`
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.service.FaucetClaim(r.Context(), req.To)
	if err != nil {
		respondActionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handlePetInfo(w http.ResponseWriter, r *http.Request) {
	petID, ok := pathUint(w, r, "petID")
	if !ok {
		return
	}
	pet, err := s.service.PetInfo(r.Context(), petID)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, pet)
}

func (s *Server) handleItemInfo(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathUint(w, r, "itemID")
	if !ok {
		return
	}
	item, err := s.service.ItemInfo(r.Context(), itemID)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handlePoolInfo(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathUint(w, r, "poolID")
	if !ok {
		return
	}
	pool, err := s.service.PoolInfo(r.Context(), poolID)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, pool)
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	spender := r.URL.Query().Get("spender")
	if spender == "" {
		respondError(w, http.StatusBadRequest, "spender required")
		return
	}
	allowance, err := s.service.Allowance(r.Context(), spender)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, allowance)
}

func (s *Server) handleMiningStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.MiningStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleBreedStatus(w http.ResponseWriter, r *http.Request) {
	breedID, ok := pathUint(w, r, "breedID")
	if !ok {
		return
	}
	status, err := s.service.BreedStatus(r.Context(), breedID)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.service.RecentActions(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "actionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid action id")
		return
	}
	entry, err := s.service.Action(r.Context(), id)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			respondError(w, http.StatusNotFound, "action not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// writeAuth gates mutating routes behind a bearer token signed with the
// shared secret, or the debug token when explicitly enabled.
func (s *Server) writeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AllowDebugToken {
			if token := r.Header.Get("X-Debug-Token"); token != "" && token == s.cfg.DebugToken {
				next.ServeHTTP(w, r)
				return
			}
		}
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		if s.cfg.JWTSecret == "" {
			respondError(w, http.StatusUnauthorized, "token auth not configured")
			return
		}
		token, err := jwt.Parse(strings.TrimPrefix(authHeader, "Bearer "),
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(s.cfg.JWTSecret), nil
			})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pathUint(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

// respondActionError maps the orchestrator error taxonomy onto HTTP
// statuses. Unknown settlements answer 504 so callers know to re-query
// rather than retry.
func respondActionError(w http.ResponseWriter, err error) {
	kind, ok := orchestrator.KindOf(err)
	if !ok {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := http.StatusInternalServerError
	switch kind {
	case orchestrator.KindGuardUnavailable, orchestrator.KindSigningFailed:
		status = http.StatusServiceUnavailable
	case orchestrator.KindPreconditionFailed:
		status = http.StatusConflict
	case orchestrator.KindBudgetEstimationFailed:
		status = http.StatusBadGateway
	case orchestrator.KindActionRejected:
		status = http.StatusUnprocessableEntity
	case orchestrator.KindSettlementUnknown:
		status = http.StatusGatewayTimeout
	case orchestrator.KindOutcomeUndecodable:
		status = http.StatusBadGateway
	case orchestrator.KindPostconditionMismatch:
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
