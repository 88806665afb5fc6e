// Package guard evaluates whether an entity's current remote state permits
// a requested action. Checks are read-only and non-authoritative: the
// ledger remains the final arbiter, guarding client-side only avoids
// burning budget on actions that would settle as failed.
package guard

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/raigotchi/petops/internal/calc"
	"github.com/raigotchi/petops/internal/config"
	"github.com/raigotchi/petops/internal/gateway"
)

type Guard struct {
	gw        gateway.Client
	contracts config.Contracts
}

func New(gw gateway.Client, contracts config.Contracts) *Guard {
	return &Guard{gw: gw, contracts: contracts}
}

// Alive reports whether the pet is alive. The returned bool is the raw
// ledger value.
func (g *Guard) Alive(ctx context.Context, petID uint64) (bool, error) {
	var alive bool
	err := g.gw.Read(ctx, gateway.Call{
		Contract: g.contracts.Pet,
		Method:   "isPetAlive",
		Args:     []any{petID},
	}, &alive)
	if err != nil {
		return false, fmt.Errorf("check alive pet %d: %w", petID, err)
	}
	return alive, nil
}

// Unlocked reports whether the pet is free to be staked or bred. Staking
// flips the lock flag on the ledger.
func (g *Guard) Unlocked(ctx context.Context, petID uint64) (bool, error) {
	var locked bool
	err := g.gw.Read(ctx, gateway.Call{
		Contract: g.contracts.Pet,
		Method:   "isPetLocked",
		Args:     []any{petID},
	}, &locked)
	if err != nil {
		return false, fmt.Errorf("check lock pet %d: %w", petID, err)
	}
	return !locked, nil
}

// Allowance reads the current (owner, spender) token allowance.
func (g *Guard) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	var raw string
	err := g.gw.Read(ctx, gateway.Call{
		Contract: g.contracts.Token,
		Method:   "allowance",
		Args:     []any{owner, spender},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("check allowance %s->%s: %w", owner, spender, err)
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("check allowance %s->%s: bad amount %q", owner, spender, raw)
	}
	return amount, nil
}

// AllowanceSufficient compares the current allowance against required as
// integers. The comparison is strict and numeric; the raw amount is
// returned for diagnostics.
func (g *Guard) AllowanceSufficient(ctx context.Context, owner, spender string, required *big.Int) (bool, *big.Int, error) {
	amount, err := g.Allowance(ctx, owner, spender)
	if err != nil {
		return false, nil, err
	}
	return amount.Cmp(required) >= 0, amount, nil
}

// CooldownElapsed reports whether the account's mining recharge window has
// passed, using the ledger's clock rather than the local one. The returned
// duration is the time left when not ready.
func (g *Guard) CooldownElapsed(ctx context.Context, account string) (bool, time.Duration, error) {
	last, err := g.readUint(ctx, "lastMiningTime", account)
	if err != nil {
		return false, 0, err
	}
	charge, err := g.readUint(ctx, "totalMiningChargeTime", account)
	if err != nil {
		return false, 0, err
	}
	now, err := g.gw.CurrentTime(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("check cooldown %s: %w", account, err)
	}
	remaining, ready := calc.Remaining(now, calc.NextEligible(last, charge))
	return ready, remaining, nil
}

func (g *Guard) readUint(ctx context.Context, method, account string) (uint64, error) {
	var v uint64
	err := g.gw.Read(ctx, gateway.Call{
		Contract: g.contracts.Staking,
		Method:   method,
		Args:     []any{account},
	}, &v)
	if err != nil {
		return 0, fmt.Errorf("check cooldown %s.%s: %w", method, account, err)
	}
	return v, nil
}
