package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raigotchi/petops/internal/calc"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/journal"
	"github.com/raigotchi/petops/internal/models"
)

// petInfoWire matches the node's getPetInfo response. Wei-scale amounts
// travel as decimal strings.
type petInfoWire struct {
	Name              string `json:"name"`
	Status            uint8  `json:"status"`
	Score             uint64 `json:"score"`
	Level             uint64 `json:"level"`
	TimeUntilStarving uint64 `json:"timeUntilStarving"`
	Owner             string `json:"owner"`
	Rewards           string `json:"rewards"`
	Genes             string `json:"genes"`
}

type itemInfoWire struct {
	Name          string `json:"name"`
	Price         string `json:"price"`
	Stock         uint64 `json:"stock"`
	Points        uint64 `json:"points"`
	TimeExtension uint64 `json:"timeExtension"`
	Shield        uint64 `json:"shield"`
}

// PetInfo assembles the point-in-time view of one pet: the core record
// plus the lock flag and shield, which live behind separate reads.
func (s *Service) PetInfo(ctx context.Context, petID uint64) (models.Pet, error) {
	var wire petInfoWire
	err := s.gw.Read(ctx, gateway.Call{
		Contract: s.cfg.Contracts.Pet,
		Method:   "getPetInfo",
		Args:     []any{petID},
	}, &wire)
	if err != nil {
		return models.Pet{}, err
	}
	rewards, ok := gateway.ParseBig(wire.Rewards)
	if !ok {
		return models.Pet{}, fmt.Errorf("pet %d: malformed rewards %q", petID, wire.Rewards)
	}

	var locked bool
	err = s.gw.Read(ctx, gateway.Call{
		Contract: s.cfg.Contracts.Pet,
		Method:   "isPetLocked",
		Args:     []any{petID},
	}, &locked)
	if err != nil {
		return models.Pet{}, err
	}
	shield, err := s.readUint(ctx, s.cfg.Contracts.Pet, "petShield", petID)
	if err != nil {
		return models.Pet{}, err
	}

	return models.Pet{
		ID:                petID,
		Name:              wire.Name,
		Status:            models.PetStatus(wire.Status),
		Score:             wire.Score,
		Level:             wire.Level,
		TimeUntilStarving: wire.TimeUntilStarving,
		Owner:             wire.Owner,
		Rewards:           rewards,
		Genes:             wire.Genes,
		Locked:            locked,
		Shield:            shield,
	}, nil
}

// ItemInfo reads one immediate-use item from the shop catalog.
func (s *Service) ItemInfo(ctx context.Context, itemID uint64) (models.Item, error) {
	var wire itemInfoWire
	err := s.gw.Read(ctx, gateway.Call{
		Contract: s.cfg.Contracts.Items,
		Method:   "getImidiateUseItemInfo",
		Args:     []any{itemID},
	}, &wire)
	if err != nil {
		return models.Item{}, err
	}
	price, ok := gateway.ParseBig(wire.Price)
	if !ok {
		return models.Item{}, fmt.Errorf("item %d: malformed price %q", itemID, wire.Price)
	}
	return models.Item{
		ID:            itemID,
		Name:          wire.Name,
		Price:         price,
		Stock:         wire.Stock,
		Points:        wire.Points,
		TimeExtension: wire.TimeExtension,
		Shield:        wire.Shield,
	}, nil
}

// PoolInfo reads one staking pool slot.
func (s *Service) PoolInfo(ctx context.Context, poolID uint64) (models.Pool, error) {
	var pool models.Pool
	err := s.gw.Read(ctx, gateway.Call{
		Contract: s.cfg.Contracts.Staking,
		Method:   "poolInfo",
		Args:     []any{poolID},
	}, &pool)
	if err != nil {
		return models.Pool{}, err
	}
	pool.ID = poolID
	return pool, nil
}

// Allowance reads the actor's current token allowance toward spender.
func (s *Service) Allowance(ctx context.Context, spender string) (models.Allowance, error) {
	have, err := s.guard.Allowance(ctx, s.cfg.ActorAddress, spender)
	if err != nil {
		return models.Allowance{}, err
	}
	return models.Allowance{Owner: s.cfg.ActorAddress, Spender: spender, Amount: have}, nil
}

// MiningStatus assembles the actor's mining account plus the cooldown and
// reward projections, all computed from one batch of ledger reads so the
// view is internally consistent.
func (s *Service) MiningStatus(ctx context.Context) (models.MiningStatus, error) {
	account := s.cfg.ActorAddress

	var tools []uint64
	err := s.gw.Read(ctx, gateway.Call{
		Contract: s.cfg.Contracts.Staking,
		Method:   "miningToolUsed",
		Args:     []any{account},
	}, &tools)
	if err != nil {
		return models.MiningStatus{}, err
	}
	last, err := s.readUint(ctx, s.cfg.Contracts.Staking, "lastMiningTime", account)
	if err != nil {
		return models.MiningStatus{}, err
	}
	charge, err := s.readUint(ctx, s.cfg.Contracts.Staking, "totalMiningChargeTime", account)
	if err != nil {
		return models.MiningStatus{}, err
	}
	power, err := s.readUint(ctx, s.cfg.Contracts.Staking, "totalMiningPower", account)
	if err != nil {
		return models.MiningStatus{}, err
	}
	points, err := s.readUint(ctx, s.cfg.Contracts.Staking, "miningPoints", account)
	if err != nil {
		return models.MiningStatus{}, err
	}
	multiplier, err := s.readUint(ctx, s.cfg.Contracts.Staking, "miningPowerMultiplier")
	if err != nil {
		return models.MiningStatus{}, err
	}
	now, err := s.gw.CurrentTime(ctx)
	if err != nil {
		return models.MiningStatus{}, err
	}

	next := calc.NextEligible(last, charge)
	remaining, ready := calc.Remaining(now, next)
	wouldEarn, err := calc.MiningReward(power, multiplier, s.cfg.MiningDenominator)
	if err != nil {
		return models.MiningStatus{}, err
	}

	return models.MiningStatus{
		Account: models.MiningAccount{
			Address:               account,
			Tools:                 tools,
			LastMiningTime:        last,
			TotalMiningChargeTime: charge,
			TotalMiningPower:      power,
			MiningPoints:          points,
		},
		Multiplier:       multiplier,
		NextEligible:     next,
		Ready:            ready,
		RemainingSeconds: uint64(remaining / time.Second),
		WouldEarn:        wouldEarn,
		ObservedAt:       time.Now().UTC(),
		LedgerTimeNow:    now,
	}, nil
}

// BreedStatus reports whether a breed process has finished, judged
// against ledger time rather than the local clock.
func (s *Service) BreedStatus(ctx context.Context, breedID uint64) (models.BreedStatus, error) {
	finish, err := s.readUint(ctx, s.cfg.Contracts.Breed, "breedFinishTime", breedID)
	if err != nil {
		return models.BreedStatus{}, err
	}
	now, err := s.gw.CurrentTime(ctx)
	if err != nil {
		return models.BreedStatus{}, err
	}
	remaining, done := calc.Remaining(now, finish)
	return models.BreedStatus{
		BreedID:          breedID,
		FinishTime:       finish,
		Complete:         done,
		RemainingSeconds: uint64(remaining / time.Second),
	}, nil
}

// RecentActions pages the journal, newest first.
func (s *Service) RecentActions(ctx context.Context, limit int) ([]journal.Entry, error) {
	return s.journal.ListRecent(ctx, limit)
}

// Action fetches one journal entry by action id.
func (s *Service) Action(ctx context.Context, id uuid.UUID) (journal.Entry, error) {
	return s.journal.Get(ctx, id)
}
