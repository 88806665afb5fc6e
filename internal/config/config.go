package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
)

// Contracts is the address registry for the deployed game contracts.
type Contracts struct {
	Pet     string
	Token   string
	Items   string
	Staking string
	Attack  string
	Breed   string
	Faucet  string
}

type Config struct {
	Addr        string
	NodeURL     string
	DatabaseURL string

	SignerKeyB64 string
	SignerID     string
	KMSEndpoint  string
	ActorAddress string

	Contracts Contracts

	MintFee           *big.Int
	StakeFee          *big.Int
	MiningDenominator uint64

	KafkaBrokers []string
	KafkaTopic   string

	ArchiveBucket string
	ArchivePrefix string

	JWTSecret       string
	AllowDebugToken bool
	DebugToken      string
}

const (
	defaultAddr              = ":8071"
	defaultSignerID          = "petops-dev"
	defaultKafkaTopic        = "petops.settlements"
	defaultMiningDenominator = 1000

	// Mainnet deployment addresses; override per environment.
	defaultPetContract     = "0x5D31C0fF4AAF1C906B86e65fDd3A17c7087ab1E3"
	defaultTokenContract   = "0x774683C155327424f3d9b12a85D78f410F6E53A1"
	defaultItemsContract   = "0x0beA242D563fc68f47FDf0A6444DaF701b80F013"
	defaultStakingContract = "0xE5575c7e6428e5c61b8564E39c489175aa6ACfdE"
	defaultAttackContract  = "0xaf949E88f6A393aCC3a322d2b07a55A0fCeF2442"
	defaultBreedContract   = "0x879d6612865bE87Ca3732C0289F9b702e00F6062"
	defaultFaucetContract  = "0x937529264EBF13a0203cfAf7bBf09a3822f6636a"

	// Token fees in wei-scale units (20000 and 100 tokens at 18 decimals).
	defaultMintFee  = "20000000000000000000000"
	defaultStakeFee = "100000000000000000000"
)

func Load() (Config, error) {
	cfg := Config{
		Addr:         getEnv("PETOPS_ADDR", defaultAddr),
		NodeURL:      os.Getenv("PETOPS_NODE_URL"),
		DatabaseURL:  firstNonEmpty(os.Getenv("PETOPS_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		SignerKeyB64: os.Getenv("PETOPS_SIGNER_KEY_B64"),
		SignerID:     getEnv("PETOPS_SIGNER_ID", defaultSignerID),
		KMSEndpoint:  os.Getenv("PETOPS_KMS_ENDPOINT"),
		ActorAddress: os.Getenv("PETOPS_ACTOR_ADDRESS"),
		Contracts: Contracts{
			Pet:     getEnv("PETOPS_PET_CONTRACT", defaultPetContract),
			Token:   getEnv("PETOPS_TOKEN_CONTRACT", defaultTokenContract),
			Items:   getEnv("PETOPS_ITEMS_CONTRACT", defaultItemsContract),
			Staking: getEnv("PETOPS_STAKING_CONTRACT", defaultStakingContract),
			Attack:  getEnv("PETOPS_ATTACK_CONTRACT", defaultAttackContract),
			Breed:   getEnv("PETOPS_BREED_CONTRACT", defaultBreedContract),
			Faucet:  getEnv("PETOPS_FAUCET_CONTRACT", defaultFaucetContract),
		},
		MiningDenominator: getUint("PETOPS_MINING_DENOMINATOR", defaultMiningDenominator),
		KafkaBrokers:      splitList(os.Getenv("PETOPS_KAFKA_BROKERS")),
		KafkaTopic:        getEnv("PETOPS_KAFKA_TOPIC", defaultKafkaTopic),
		ArchiveBucket:     os.Getenv("PETOPS_ARCHIVE_BUCKET"),
		ArchivePrefix:     getEnv("PETOPS_ARCHIVE_PREFIX", "petops"),
		JWTSecret:         os.Getenv("PETOPS_JWT_SECRET"),
		AllowDebugToken:   getBool("PETOPS_ALLOW_DEBUG_TOKEN", false),
		DebugToken:        os.Getenv("PETOPS_DEBUG_TOKEN"),
	}

	var err error
	if cfg.MintFee, err = bigEnv("PETOPS_MINT_FEE", defaultMintFee); err != nil {
		return Config{}, err
	}
	if cfg.StakeFee, err = bigEnv("PETOPS_STAKE_FEE", defaultStakeFee); err != nil {
		return Config{}, err
	}

	if cfg.NodeURL == "" {
		return Config{}, fmt.Errorf("PETOPS_NODE_URL required")
	}
	if cfg.ActorAddress == "" {
		return Config{}, fmt.Errorf("PETOPS_ACTOR_ADDRESS required")
	}
	if cfg.KMSEndpoint == "" && cfg.SignerKeyB64 == "" {
		return Config{}, fmt.Errorf("PETOPS_SIGNER_KEY_B64 required when PETOPS_KMS_ENDPOINT unset")
	}
	if cfg.MiningDenominator == 0 {
		return Config{}, fmt.Errorf("PETOPS_MINING_DENOMINATOR must be > 0")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func bigEnv(key, fallback string) (*big.Int, error) {
	raw := getEnv(key, fallback)
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", key, raw)
	}
	return v, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
