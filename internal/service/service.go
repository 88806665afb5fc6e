// Package service exposes one entry point per domain verb, wiring the
// precondition guard, orchestrator, journal, and optional outcome
// publishing/archival together. Entity state is re-read from the ledger
// for every dependent action; nothing is cached between calls.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"

	"github.com/raigotchi/petops/internal/archive"
	"github.com/raigotchi/petops/internal/config"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/guard"
	"github.com/raigotchi/petops/internal/journal"
	"github.com/raigotchi/petops/internal/orchestrator"
	"github.com/raigotchi/petops/internal/signing"
	"github.com/raigotchi/petops/internal/stream"
)

type Service struct {
	cfg     config.Config
	gw      gateway.Client
	orc     *orchestrator.Orchestrator
	guard   *guard.Guard
	journal journal.Journal
	pub     stream.Publisher
	arch    archive.Archiver
}

// New builds a Service. pub and arch are optional; nil disables outcome
// streaming and receipt archival.
func New(cfg config.Config, gw gateway.Client, signer signing.Signer, jnl journal.Journal, pub stream.Publisher, arch archive.Archiver) *Service {
	return &Service{
		cfg:     cfg,
		gw:      gw,
		orc:     orchestrator.New(gw, signer, cfg.ActorAddress),
		guard:   guard.New(gw, cfg.Contracts),
		journal: jnl,
		pub:     pub,
		arch:    arch,
	}
}

// run executes a plan and records its terminal outcome regardless of how
// it ended. Journal/stream/archive failures are logged, never returned:
// the action's own outcome takes precedence.
func (s *Service) run(ctx context.Context, plan orchestrator.Plan) (orchestrator.Result, error) {
	res, execErr := s.orc.Execute(ctx, plan)

	entry := journal.EntryInput{
		ID:          res.ActionID,
		Verb:        string(res.Verb),
		Entity:      plan.EntityKey,
		State:       string(res.State),
		TxHash:      res.TxHash,
		BudgetLimit: res.Budget.Limit,
	}
	if res.Budget.Price != nil {
		entry.BudgetPrice = res.Budget.Price.String()
	}
	if execErr != nil {
		entry.Reason = execErr.Error()
	}
	if res.Outcome != nil {
		if raw, err := json.Marshal(res.Outcome); err == nil {
			entry.Outcome = raw
		}
	}
	if !res.SettledAt.IsZero() {
		t := res.SettledAt
		entry.SettledAt = &t
	}
	if _, err := s.journal.Record(ctx, entry); err != nil {
		log.Printf("[journal] record %s %s: %v", res.Verb, res.ActionID, err)
	}

	if s.pub != nil && res.TxHash != "" {
		if err := stream.PublishJSON(ctx, s.pub, plan.EntityKey, res); err != nil {
			log.Printf("[stream] publish %s %s: %v", res.Verb, res.ActionID, err)
		}
	}
	if s.arch != nil && res.Receipt != nil {
		if _, err := s.arch.ArchiveReceipt(ctx, res.ActionID, *res.Receipt); err != nil {
			log.Printf("[archive] receipt %s %s: %v", res.Verb, res.ActionID, err)
		}
	}
	return res, execErr
}

// checkAlive blocks any action against a dead pet.
func (s *Service) checkAlive(petID uint64) orchestrator.Check {
	return func(ctx context.Context) error {
		alive, err := s.guard.Alive(ctx, petID)
		if err != nil {
			return orchestrator.GuardUnavailable(err)
		}
		if !alive {
			return orchestrator.PreconditionFailed("not alive")
		}
		return nil
	}
}

// checkDead is the inverse guard used by revival.
func (s *Service) checkDead(petID uint64) orchestrator.Check {
	return func(ctx context.Context) error {
		alive, err := s.guard.Alive(ctx, petID)
		if err != nil {
			return orchestrator.GuardUnavailable(err)
		}
		if alive {
			return orchestrator.PreconditionFailed(fmt.Sprintf("pet %d is already alive", petID))
		}
		return nil
	}
}

func (s *Service) checkUnlocked(petID uint64) orchestrator.Check {
	return func(ctx context.Context) error {
		unlocked, err := s.guard.Unlocked(ctx, petID)
		if err != nil {
			return orchestrator.GuardUnavailable(err)
		}
		if !unlocked {
			return orchestrator.PreconditionFailed(fmt.Sprintf("pet %d is locked", petID))
		}
		return nil
	}
}

func (s *Service) checkLocked(petID uint64) orchestrator.Check {
	return func(ctx context.Context) error {
		unlocked, err := s.guard.Unlocked(ctx, petID)
		if err != nil {
			return orchestrator.GuardUnavailable(err)
		}
		if unlocked {
			return orchestrator.PreconditionFailed(fmt.Sprintf("pet %d is not staked", petID))
		}
		return nil
	}
}

func (s *Service) checkAllowance(spender string, required *big.Int) orchestrator.Check {
	return func(ctx context.Context) error {
		ok, have, err := s.guard.AllowanceSufficient(ctx, s.cfg.ActorAddress, spender, required)
		if err != nil {
			return orchestrator.GuardUnavailable(err)
		}
		if !ok {
			return orchestrator.PreconditionFailed(
				fmt.Sprintf("insufficient allowance for %s: have %s, need %s", spender, have, required))
		}
		return nil
	}
}

func (s *Service) checkMiningCooldown() orchestrator.Check {
	return func(ctx context.Context) error {
		ready, remaining, err := s.guard.CooldownElapsed(ctx, s.cfg.ActorAddress)
		if err != nil {
			return orchestrator.GuardUnavailable(err)
		}
		if !ready {
			return orchestrator.PreconditionFailed(
				fmt.Sprintf("mining tools recharging: %s left", remaining))
		}
		return nil
	}
}

func (s *Service) actorEntity() string {
	return "account/" + s.cfg.ActorAddress
}

func petEntity(petID uint64) string {
	return fmt.Sprintf("pet/%d", petID)
}

// readUint is a pass-through for single unsigned reads.
func (s *Service) readUint(ctx context.Context, contract, method string, args ...any) (uint64, error) {
	var v uint64
	err := s.gw.Read(ctx, gateway.Call{Contract: contract, Method: method, Args: args}, &v)
	return v, err
}

func (s *Service) petCount(ctx context.Context) (uint64, error) {
	return s.readUint(ctx, s.cfg.Contracts.Pet, "_tokenIds")
}

func (s *Service) tokenBalance(ctx context.Context, account string) (*big.Int, error) {
	var raw string
	err := s.gw.Read(ctx, gateway.Call{
		Contract: s.cfg.Contracts.Token,
		Method:   "balanceOf",
		Args:     []any{account},
	}, &raw)
	if err != nil {
		return nil, err
	}
	bal, ok := gateway.ParseBig(raw)
	if !ok {
		return nil, fmt.Errorf("malformed balance %q for %s", raw, account)
	}
	return bal, nil
}
