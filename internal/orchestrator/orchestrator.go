// Package orchestrator sequences one ledger mutation end to end: guard
// checks, budget estimation, signing, submission, settlement decode, and
// postcondition verification. Each Execute call is single-shot; no state
// machine transition re-enters Idle.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raigotchi/petops/internal/events"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/signing"
)

// Verb names one domain mutation.
type Verb string

const (
	VerbMint       Verb = "mint"
	VerbSetName    Verb = "set_name"
	VerbApprove    Verb = "approve"
	VerbFeed       Verb = "feed"
	VerbRevive     Verb = "revive"
	VerbStake      Verb = "stake"
	VerbUnstake    Verb = "unstake"
	VerbAddTool    Verb = "add_tool"
	VerbRemoveTool Verb = "remove_tool"
	VerbMine       Verb = "mine"
	VerbAttack     Verb = "attack"
	VerbBreed      Verb = "breed"
	VerbFaucet     Verb = "faucet_claim"
)

// State is the action's position in its lifecycle. Terminal states are
// StateRejected, StateUnknown, StateSettled (no verification planned),
// StateVerified, and StateMismatched.
type State string

const (
	StateIdle            State = "idle"
	StateGuardChecked    State = "guard_checked"
	StateBudgetEstimated State = "budget_estimated"
	StateSubmitted       State = "submitted"
	StateSettled         State = "settled"
	StateRejected        State = "rejected"
	StateUnknown         State = "unknown"
	StateVerified        State = "verified"
	StateMismatched      State = "mismatched"
)

// Check is one precondition. It returns nil to pass, a *Error to block the
// action, or any other error to signal the guard read itself failed.
type Check func(ctx context.Context) error

// Verify confirms the expected post-condition after settlement. out is the
// decoded outcome when the plan carries an event schema, else nil.
type Verify func(ctx context.Context, out *events.Outcome) error

// Plan is the per-verb descriptor: what to call, which guards precede it,
// which event settles it, and how to verify the result.
type Plan struct {
	Verb      Verb
	EntityKey string
	Call      gateway.Call

	// Prepare captures pre-action state the postcondition will be judged
	// against. It runs inside the entity lock, so a concurrent action on
	// the same entity cannot settle between the capture and Verify.
	Prepare Check

	Checks      []Check
	Event       *events.Schema
	EventOrigin string
	Verify      Verify
}

// Result is the terminal record of one orchestrated action.
type Result struct {
	ActionID  uuid.UUID       `json:"actionId"`
	Verb      Verb            `json:"verb"`
	State     State           `json:"state"`
	TxHash    string          `json:"txHash,omitempty"`
	Budget    gateway.Budget  `json:"budget"`
	Outcome   *events.Outcome `json:"-"`
	SettledAt time.Time       `json:"settledAt,omitempty"`

	// Receipt is the raw settlement record, kept for archival. Nil until
	// the ledger reports terminal settlement.
	Receipt *gateway.SettlementRecord `json:"-"`
}

// Orchestrator executes plans against one gateway with one signer context.
// The domain assumes a single sequential actor, but the HTTP surface makes
// the process multi-caller, so actions are serialized per entity: the
// guard's read-then-submit window is not atomic.
type Orchestrator struct {
	gw     gateway.Client
	signer signing.Signer
	from   string

	mu       sync.Mutex
	entities map[string]*sync.Mutex
}

func New(gw gateway.Client, signer signing.Signer, from string) *Orchestrator {
	return &Orchestrator{
		gw:       gw,
		signer:   signer,
		from:     from,
		entities: map[string]*sync.Mutex{},
	}
}

// Execute drives plan to exactly one terminal outcome. The caller's context
// bounds every gateway call; there is no implicit timeout.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan) (Result, error) {
	res := Result{ActionID: uuid.New(), Verb: plan.Verb, State: StateIdle}

	if plan.EntityKey != "" {
		unlock := o.lockEntity(plan.EntityKey)
		defer unlock()
	}

	if plan.Prepare != nil {
		if err := plan.Prepare(ctx); err != nil {
			var oerr *Error
			if errors.As(err, &oerr) {
				return res, oerr
			}
			return res, GuardUnavailable(err)
		}
	}

	for _, check := range plan.Checks {
		if err := check(ctx); err != nil {
			var oerr *Error
			if errors.As(err, &oerr) {
				return res, oerr
			}
			// An untyped check failure means the read itself failed.
			return res, GuardUnavailable(err)
		}
	}
	res.State = StateGuardChecked

	call := plan.Call
	if call.From == "" {
		call.From = o.from
	}
	budget, err := o.gw.EstimateBudget(ctx, call)
	if err != nil {
		return res, BudgetEstimationFailed(err)
	}
	res.Budget = budget
	res.State = StateBudgetEstimated

	action, err := o.sign(ctx, res.ActionID, call, budget)
	if err != nil {
		return res, SigningFailed(fmt.Errorf("sign action %s: %w", plan.Verb, err))
	}
	res.State = StateSubmitted

	rec, err := o.gw.Submit(ctx, action)
	if err != nil {
		// Once the payload may have left the process the true outcome is
		// unknowable without a re-query; never assume failure here.
		res.State = StateUnknown
		return res, SettlementUnknown(err)
	}
	res.TxHash = rec.TxHash
	res.SettledAt = rec.SettledAt
	res.Receipt = &rec
	if rec.Status != gateway.StatusSuccess {
		res.State = StateRejected
		return res, ActionRejected(rec.Reason)
	}
	res.State = StateSettled

	if plan.Event != nil {
		out, err := events.Decode(*plan.Event, rec, plan.EventOrigin)
		if err != nil {
			return res, OutcomeUndecodable(err)
		}
		res.Outcome = out
	}

	if plan.Verify != nil {
		if err := plan.Verify(ctx, res.Outcome); err != nil {
			res.State = StateMismatched
			var oerr *Error
			if errors.As(err, &oerr) {
				return res, oerr
			}
			return res, PostconditionMismatch(err.Error())
		}
		res.State = StateVerified
	}
	return res, nil
}

func (o *Orchestrator) sign(ctx context.Context, id uuid.UUID, call gateway.Call, budget gateway.Budget) (gateway.SignedAction, error) {
	payload, err := json.Marshal(struct {
		ID     uuid.UUID      `json:"id"`
		Call   gateway.Call   `json:"call"`
		Budget gateway.Budget `json:"budget"`
	}{ID: id, Call: call, Budget: budget})
	if err != nil {
		return gateway.SignedAction{}, fmt.Errorf("marshal payload: %w", err)
	}
	digest := sha256.Sum256(payload)
	sig, err := o.signer.Sign(ctx, digest[:])
	if err != nil {
		return gateway.SignedAction{}, err
	}
	return gateway.SignedAction{
		ID:        id,
		Call:      call,
		Budget:    budget,
		Payload:   payload,
		Signature: sig,
		SignerID:  o.signer.SignerID(),
	}, nil
}

func (o *Orchestrator) lockEntity(key string) func() {
	o.mu.Lock()
	m, ok := o.entities[key]
	if !ok {
		m = &sync.Mutex{}
		o.entities[key] = m
	}
	o.mu.Unlock()
	m.Lock()
	return m.Unlock
}
