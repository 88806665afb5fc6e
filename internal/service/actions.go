package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/raigotchi/petops/internal/calc"
	"github.com/raigotchi/petops/internal/events"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/models"
	"github.com/raigotchi/petops/internal/orchestrator"
)

type MintResult struct {
	orchestrator.Result
	PetID uint64 `json:"petId"`
}

// Mint creates a new pet. The token allowance toward the pet contract must
// cover the mint fee, and the pet counter must advance by exactly one; the
// new pet's id is the post-mint counter minus one.
func (s *Service) Mint(ctx context.Context) (MintResult, error) {
	var before, newPetID uint64
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbMint,
		EntityKey: s.actorEntity(),
		Call:      gateway.Call{Contract: s.cfg.Contracts.Pet, Method: "mint"},
		Prepare: func(ctx context.Context) error {
			var err error
			before, err = s.petCount(ctx)
			return err
		},
		Checks: []orchestrator.Check{
			s.checkAllowance(s.cfg.Contracts.Pet, s.cfg.MintFee),
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			after, err := s.petCount(ctx)
			if err != nil {
				return err
			}
			if after != before+1 {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("pet count went %d -> %d, want %d", before, after, before+1))
			}
			newPetID = after - 1
			return nil
		},
	}
	res, err := s.run(ctx, plan)
	return MintResult{Result: res, PetID: newPetID}, err
}

// SetPetName renames a pet and confirms the new name stuck.
func (s *Service) SetPetName(ctx context.Context, petID uint64, name string) (orchestrator.Result, error) {
	if name == "" {
		return orchestrator.Result{}, fmt.Errorf("pet name required")
	}
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbSetName,
		EntityKey: petEntity(petID),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Pet,
			Method:   "setPetName",
			Args:     []any{petID, name},
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			pet, err := s.PetInfo(ctx, petID)
			if err != nil {
				return err
			}
			if pet.Name != name {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("pet %d name is %q, want %q", petID, pet.Name, name))
			}
			return nil
		},
	}
	return s.run(ctx, plan)
}

// Approve raises the token allowance for spender and re-reads it to
// confirm, guarding against a stale read settling under the target.
func (s *Service) Approve(ctx context.Context, spender string, amount *big.Int) (orchestrator.Result, error) {
	if spender == "" || amount == nil || amount.Sign() < 0 {
		return orchestrator.Result{}, fmt.Errorf("spender and non-negative amount required")
	}
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbApprove,
		EntityKey: s.actorEntity(),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Token,
			Method:   "approve",
			Args:     []any{spender, amount.String()},
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			ok, have, err := s.guard.AllowanceSufficient(ctx, s.cfg.ActorAddress, spender, amount)
			if err != nil {
				return err
			}
			if !ok {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("allowance for %s is %s after approve, want >= %s", spender, have, amount))
			}
			return nil
		},
	}
	return s.run(ctx, plan)
}

type FeedResult struct {
	orchestrator.Result
	Item models.Item `json:"item"`
	Pet  models.Pet  `json:"pet"`
}

// Feed buys an immediate-use item for a living pet. For items that extend
// the starvation clock, the clock must not have moved backwards after
// settlement.
func (s *Service) Feed(ctx context.Context, petID, itemID uint64) (FeedResult, error) {
	var (
		item   models.Item
		before models.Pet
		after  models.Pet
	)
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbFeed,
		EntityKey: petEntity(petID),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Items,
			Method:   "buyImidiateUseItem",
			Args:     []any{petID, itemID},
		},
		Prepare: func(ctx context.Context) error {
			var err error
			if item, err = s.ItemInfo(ctx, itemID); err != nil {
				return err
			}
			before, err = s.PetInfo(ctx, petID)
			return err
		},
		Checks: []orchestrator.Check{
			s.checkAlive(petID),
			func(ctx context.Context) error {
				return s.checkAllowance(s.cfg.Contracts.Items, item.Price)(ctx)
			},
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			var err error
			after, err = s.PetInfo(ctx, petID)
			if err != nil {
				return err
			}
			if item.TimeExtension > 0 && after.TimeUntilStarving < before.TimeUntilStarving {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("pet %d starvation clock went %d -> %d after item %d",
						petID, before.TimeUntilStarving, after.TimeUntilStarving, itemID))
			}
			return nil
		},
	}
	res, err := s.run(ctx, plan)
	return FeedResult{Result: res, Item: item, Pet: after}, err
}

// Revive buys a revival item for a dead pet; the pet must read alive
// afterwards.
func (s *Service) Revive(ctx context.Context, petID, itemID uint64) (FeedResult, error) {
	var (
		item  models.Item
		after models.Pet
	)
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbRevive,
		EntityKey: petEntity(petID),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Items,
			Method:   "buyImidiateUseItem",
			Args:     []any{petID, itemID},
		},
		Prepare: func(ctx context.Context) error {
			var err error
			item, err = s.ItemInfo(ctx, itemID)
			return err
		},
		Checks: []orchestrator.Check{
			s.checkDead(petID),
			func(ctx context.Context) error {
				return s.checkAllowance(s.cfg.Contracts.Items, item.Price)(ctx)
			},
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			alive, err := s.guard.Alive(ctx, petID)
			if err != nil {
				return err
			}
			if !alive {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("pet %d still dead after revival item %d", petID, itemID))
			}
			after, err = s.PetInfo(ctx, petID)
			return err
		},
	}
	res, err := s.run(ctx, plan)
	return FeedResult{Result: res, Item: item, Pet: after}, err
}

// Stake locks a pet into a reward pool. The pet must be alive and
// unlocked, the stake fee covered; afterwards the lock flag must be set.
func (s *Service) Stake(ctx context.Context, petID, poolID uint64) (orchestrator.Result, error) {
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbStake,
		EntityKey: petEntity(petID),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Staking,
			Method:   "stake",
			Args:     []any{petID, poolID},
		},
		Checks: []orchestrator.Check{
			s.checkAlive(petID),
			s.checkUnlocked(petID),
			s.checkAllowance(s.cfg.Contracts.Staking, s.cfg.StakeFee),
		},
		Verify: s.verifyLockState(petID, true, "staking"),
	}
	return s.run(ctx, plan)
}

// Unstake releases a staked pet; the lock flag must clear.
func (s *Service) Unstake(ctx context.Context, petID, poolID uint64) (orchestrator.Result, error) {
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbUnstake,
		EntityKey: petEntity(petID),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Staking,
			Method:   "unstake",
			Args:     []any{petID, poolID},
		},
		Checks: []orchestrator.Check{
			s.checkLocked(petID),
		},
		Verify: s.verifyLockState(petID, false, "unstaking"),
	}
	return s.run(ctx, plan)
}

func (s *Service) verifyLockState(petID uint64, wantLocked bool, what string) orchestrator.Verify {
	return func(ctx context.Context, _ *events.Outcome) error {
		unlocked, err := s.guard.Unlocked(ctx, petID)
		if err != nil {
			return err
		}
		if unlocked == wantLocked {
			return orchestrator.PostconditionMismatch(
				fmt.Sprintf("pet %d lock flag unchanged after %s", petID, what))
		}
		return nil
	}
}

// AddTool registers a mining tool for the actor's account.
func (s *Service) AddTool(ctx context.Context, toolID uint64) (orchestrator.Result, error) {
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbAddTool,
		EntityKey: s.actorEntity(),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Staking,
			Method:   "addMiningTool",
			Args:     []any{toolID},
		},
		Checks: []orchestrator.Check{
			s.checkToolState(toolID, false),
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			has, err := s.hasTool(ctx, toolID)
			if err != nil {
				return err
			}
			if !has {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("tool %d missing from mining set after add", toolID))
			}
			return nil
		},
	}
	return s.run(ctx, plan)
}

// RemoveTool removes a mining tool from the actor's account.
func (s *Service) RemoveTool(ctx context.Context, toolID uint64) (orchestrator.Result, error) {
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbRemoveTool,
		EntityKey: s.actorEntity(),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Staking,
			Method:   "removeMiningTool",
			Args:     []any{toolID},
		},
		Checks: []orchestrator.Check{
			s.checkToolState(toolID, true),
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			has, err := s.hasTool(ctx, toolID)
			if err != nil {
				return err
			}
			if has {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("tool %d still in mining set after remove", toolID))
			}
			return nil
		},
	}
	return s.run(ctx, plan)
}

func (s *Service) checkToolState(toolID uint64, wantPresent bool) orchestrator.Check {
	return func(ctx context.Context) error {
		has, err := s.hasTool(ctx, toolID)
		if err != nil {
			return orchestrator.GuardUnavailable(err)
		}
		if has != wantPresent {
			if wantPresent {
				return orchestrator.PreconditionFailed(fmt.Sprintf("tool %d not in use", toolID))
			}
			return orchestrator.PreconditionFailed(fmt.Sprintf("tool %d already in use", toolID))
		}
		return nil
	}
}

func (s *Service) hasTool(ctx context.Context, toolID uint64) (bool, error) {
	var tools []uint64
	err := s.gw.Read(ctx, gateway.Call{
		Contract: s.cfg.Contracts.Staking,
		Method:   "miningToolUsed",
		Args:     []any{s.cfg.ActorAddress},
	}, &tools)
	if err != nil {
		return false, err
	}
	for _, id := range tools {
		if id == toolID {
			return true, nil
		}
	}
	return false, nil
}

type MineResult struct {
	orchestrator.Result
	PointsBefore uint64 `json:"pointsBefore"`
	PointsAfter  uint64 `json:"pointsAfter"`
	Reward       uint64 `json:"reward"`
}

// Mine runs one mining pass. The recharge window must have elapsed, and
// the points balance must advance by exactly the projected reward — the
// projection uses the same integer arithmetic as the contract.
func (s *Service) Mine(ctx context.Context) (MineResult, error) {
	account := s.cfg.ActorAddress
	var result MineResult
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbMine,
		EntityKey: s.actorEntity(),
		Call:      gateway.Call{Contract: s.cfg.Contracts.Staking, Method: "mining"},
		Prepare: func(ctx context.Context) error {
			before, err := s.readUint(ctx, s.cfg.Contracts.Staking, "miningPoints", account)
			if err != nil {
				return err
			}
			power, err := s.readUint(ctx, s.cfg.Contracts.Staking, "totalMiningPower", account)
			if err != nil {
				return err
			}
			multiplier, err := s.readUint(ctx, s.cfg.Contracts.Staking, "miningPowerMultiplier")
			if err != nil {
				return err
			}
			reward, err := calc.MiningReward(power, multiplier, s.cfg.MiningDenominator)
			if err != nil {
				return err
			}
			result.PointsBefore = before
			result.Reward = reward
			return nil
		},
		Checks: []orchestrator.Check{
			s.checkMiningCooldown(),
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			after, err := s.readUint(ctx, s.cfg.Contracts.Staking, "miningPoints", account)
			if err != nil {
				return err
			}
			result.PointsAfter = after
			if want := result.PointsBefore + result.Reward; after != want {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("mining points went %d -> %d, want %d", result.PointsBefore, after, want))
			}
			return nil
		},
	}
	res, err := s.run(ctx, plan)
	result.Result = res
	return result, err
}

type AttackResult struct {
	orchestrator.Result
	Attacker  uint64 `json:"attacker"`
	Winner    uint64 `json:"winner"`
	Loser     uint64 `json:"loser"`
	ScoresWon uint64 `json:"scoresWon"`
	PrizeDebt uint64 `json:"prizeDebt"`
}

// Attack resolves combat between two pets. Both must be alive; the result
// comes from the Attack settlement event.
func (s *Service) Attack(ctx context.Context, fromID, toID uint64) (AttackResult, error) {
	if fromID == toID {
		return AttackResult{}, fmt.Errorf("a pet cannot attack itself")
	}
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbAttack,
		EntityKey: petEntity(fromID),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Attack,
			Method:   "attack",
			Args:     []any{fromID, toID},
		},
		Checks: []orchestrator.Check{
			s.checkAlive(fromID),
			s.checkAlive(toID),
		},
		Event:       &events.Attack,
		EventOrigin: s.cfg.Contracts.Attack,
	}
	res, err := s.run(ctx, plan)
	out := AttackResult{Result: res}
	if res.Outcome != nil {
		out.Attacker = res.Outcome.Uint("attacker")
		out.Winner = res.Outcome.Uint("winner")
		out.Loser = res.Outcome.Uint("loser")
		out.ScoresWon = res.Outcome.Uint("scoresWon")
		out.PrizeDebt = res.Outcome.Uint("prizeDebt")
	}
	return out, err
}

type BreedResult struct {
	orchestrator.Result
	Process models.BreedProcess `json:"process"`
}

// Breed opens a breed process between two pets. Both must be alive and
// unlocked; the process id comes from the StartBreed settlement event, and
// the ledger must place the finish time in the future.
func (s *Service) Breed(ctx context.Context, petID1, petID2 uint64) (BreedResult, error) {
	if petID1 == petID2 {
		return BreedResult{}, fmt.Errorf("breeding requires two distinct pets")
	}
	process := models.BreedProcess{PetID1: petID1, PetID2: petID2}
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbBreed,
		EntityKey: petEntity(petID1),
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Breed,
			Method:   "breed",
			Args:     []any{petID1, petID2},
		},
		Checks: []orchestrator.Check{
			s.checkAlive(petID1),
			s.checkAlive(petID2),
			s.checkUnlocked(petID1),
			s.checkUnlocked(petID2),
		},
		Event:       &events.StartBreed,
		EventOrigin: s.cfg.Contracts.Breed,
		Verify: func(ctx context.Context, out *events.Outcome) error {
			process.BreedID = out.Uint("breedId")
			finish, err := s.readUint(ctx, s.cfg.Contracts.Breed, "breedFinishTime", process.BreedID)
			if err != nil {
				return err
			}
			now, err := s.gw.CurrentTime(ctx)
			if err != nil {
				return err
			}
			if finish <= now {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("breed %d finish time %d not after ledger time %d", process.BreedID, finish, now))
			}
			process.FinishTime = finish
			return nil
		},
	}
	res, err := s.run(ctx, plan)
	return BreedResult{Result: res, Process: process}, err
}

// FaucetClaim requests dev-net tokens for to; the balance must grow.
func (s *Service) FaucetClaim(ctx context.Context, to string) (orchestrator.Result, error) {
	if to == "" {
		to = s.cfg.ActorAddress
	}
	var before *big.Int
	plan := orchestrator.Plan{
		Verb:      orchestrator.VerbFaucet,
		EntityKey: "account/" + to,
		Call: gateway.Call{
			Contract: s.cfg.Contracts.Faucet,
			Method:   "getRaiToken",
			Args:     []any{to},
		},
		Prepare: func(ctx context.Context) error {
			var err error
			before, err = s.tokenBalance(ctx, to)
			return err
		},
		Verify: func(ctx context.Context, _ *events.Outcome) error {
			after, err := s.tokenBalance(ctx, to)
			if err != nil {
				return err
			}
			if after.Cmp(before) <= 0 {
				return orchestrator.PostconditionMismatch(
					fmt.Sprintf("balance of %s went %s -> %s after faucet claim", to, before, after))
			}
			return nil
		},
	}
	return s.run(ctx, plan)
}
