package models

import (
	"math/big"
	"time"
)

// PetStatus mirrors the numeric status enum stored by the pet contract.
type PetStatus uint8

const (
	StatusDead  PetStatus = 0
	StatusAlive PetStatus = 1
)

func (s PetStatus) String() string {
	if s == StatusAlive {
		return "alive"
	}
	return "dead"
}

// Pet is the on-ledger pet record as returned by getPetInfo, plus the
// lock flag and shield which live behind separate reads. The ledger is
// the sole source of truth; a Pet is a point-in-time observation and is
// never cached across dependent actions.
type Pet struct {
	ID                uint64    `json:"id"`
	Name              string    `json:"name"`
	Status            PetStatus `json:"status"`
	Score             uint64    `json:"score"`
	Level             uint64    `json:"level"`
	TimeUntilStarving uint64    `json:"timeUntilStarving"`
	Owner             string    `json:"owner"`
	Rewards           *big.Int  `json:"rewards"`
	Genes             string    `json:"genes"`
	Locked            bool      `json:"locked"`
	Shield            uint64    `json:"shield"`
}

// Item describes an immediate-use item (food, revival, decorative).
type Item struct {
	ID            uint64   `json:"id"`
	Name          string   `json:"name"`
	Price         *big.Int `json:"price"`
	Stock         uint64   `json:"stock"`
	Points        uint64   `json:"points"`
	TimeExtension uint64   `json:"timeExtension"`
	Shield        uint64   `json:"shield"`
}

// Pool is a staking pool slot as returned by poolInfo.
type Pool struct {
	ID               uint64 `json:"id"`
	StakingStartTime uint64 `json:"stakingStartTime"`
	StakingEndTime   uint64 `json:"stakingEndTime"`
	MaxSlotsInPool   uint64 `json:"maxSlotsInPool"`
	TotalStakedSlot  uint64 `json:"totalStakedSlot"`
}

// Allowance is the (owner, spender, amount) triple governing token spend.
// Amounts are compared as integers; the contract stores wei-scale values
// that overflow uint64, so big.Int throughout.
type Allowance struct {
	Owner   string   `json:"owner"`
	Spender string   `json:"spender"`
	Amount  *big.Int `json:"amount"`
}

// MiningAccount aggregates the per-address mining state. lastMiningTime +
// totalMiningChargeTime is the next instant mining is accepted.
type MiningAccount struct {
	Address               string   `json:"address"`
	Tools                 []uint64 `json:"tools"`
	LastMiningTime        uint64   `json:"lastMiningTime"`
	TotalMiningChargeTime uint64   `json:"totalMiningChargeTime"`
	TotalMiningPower      uint64   `json:"totalMiningPower"`
	MiningPoints          uint64   `json:"miningPoints"`
}

// BreedProcess is created by a breed settlement event and read-only after.
// Completion is derived from FinishTime, never mutated locally.
type BreedProcess struct {
	BreedID    uint64 `json:"breedId"`
	PetID1     uint64 `json:"petId1"`
	PetID2     uint64 `json:"petId2"`
	FinishTime uint64 `json:"finishTime"`
}

// MiningStatus is the derived view served to callers: raw account state
// plus the cooldown and reward projections computed client-side.
type MiningStatus struct {
	Account          MiningAccount `json:"account"`
	Multiplier       uint64        `json:"multiplier"`
	NextEligible     uint64        `json:"nextEligible"`
	Ready            bool          `json:"ready"`
	RemainingSeconds uint64        `json:"remainingSeconds"`
	WouldEarn        uint64        `json:"wouldEarn"`
	ObservedAt       time.Time     `json:"observedAt"`
	LedgerTimeNow    uint64        `json:"ledgerTimeNow"`
}

// BreedStatus is the derived completion view for one breed process.
type BreedStatus struct {
	BreedID          uint64 `json:"breedId"`
	FinishTime       uint64 `json:"finishTime"`
	Complete         bool   `json:"complete"`
	RemainingSeconds uint64 `json:"remainingSeconds"`
}
