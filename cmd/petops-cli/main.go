// petops-cli runs a single pet action or query from the command line,
// using the same guard and settlement pipeline as the service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/raigotchi/petops/internal/config"
	"github.com/raigotchi/petops/internal/gateway"
	"github.com/raigotchi/petops/internal/journal"
	"github.com/raigotchi/petops/internal/service"
	"github.com/raigotchi/petops/internal/signing"
)

const usage = `usage: petops-cli <command> [flags]

actions:
  mint                      mint a new pet
  name -pet N -name S       rename a pet
  approve -spender A -amount W
  feed -pet N -item N       buy an item for a living pet
  revive -pet N -item N     buy a revival item for a dead pet
  stake -pet N [-pool N]    lock a pet into a staking pool
  unstake -pet N [-pool N]  release a staked pet
  add-tool -tool N          register a mining tool
  remove-tool -tool N       remove a mining tool
  mine                      run one mining pass
  attack -pet N -target N   attack another pet
  breed -pet N -with N      start a breed process
  faucet [-to A]            claim dev-net tokens

queries:
  pet -pet N                show one pet
  item -item N              show one shop item
  pool [-pool N]            show a staking pool
  mining-status             show mining account and cooldown
  breed-status -breed N     show breed completion
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	var (
		pet     = fs.Uint64("pet", 0, "pet id")
		item    = fs.Uint64("item", 0, "item id")
		pool    = fs.Uint64("pool", 0, "pool id")
		tool    = fs.Uint64("tool", 0, "tool id")
		target  = fs.Uint64("target", 0, "target pet id")
		with    = fs.Uint64("with", 0, "second pet id")
		breedID = fs.Uint64("breed", 0, "breed process id")
		name    = fs.String("name", "", "pet name")
		spender = fs.String("spender", "", "spender contract address")
		amount  = fs.String("amount", "", "token amount, wei scale")
		to      = fs.String("to", "", "recipient address")
		timeout = fs.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	gw, err := gateway.NewHTTPClient(gateway.HTTPClientConfig{
		BaseURL: cfg.NodeURL,
		Timeout: 10 * time.Second,
		Retries: 2,
	})
	if err != nil {
		log.Fatalf("ledger gateway init: %v", err)
	}
	signer, err := signing.NewSignerFromConfig(cfg)
	if err != nil {
		log.Fatalf("signer init: %v", err)
	}
	svc := service.New(cfg, gw, signer, journal.NewMemoryJournal(), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var out any
	switch command {
	case "mint":
		out, err = svc.Mint(ctx)
	case "name":
		out, err = svc.SetPetName(ctx, *pet, *name)
	case "approve":
		wei, ok := gateway.ParseBig(*amount)
		if !ok {
			log.Fatalf("invalid -amount %q", *amount)
		}
		out, err = svc.Approve(ctx, *spender, wei)
	case "feed":
		out, err = svc.Feed(ctx, *pet, *item)
	case "revive":
		out, err = svc.Revive(ctx, *pet, *item)
	case "stake":
		out, err = svc.Stake(ctx, *pet, *pool)
	case "unstake":
		out, err = svc.Unstake(ctx, *pet, *pool)
	case "add-tool":
		out, err = svc.AddTool(ctx, *tool)
	case "remove-tool":
		out, err = svc.RemoveTool(ctx, *tool)
	case "mine":
		out, err = svc.Mine(ctx)
	case "attack":
		out, err = svc.Attack(ctx, *pet, *target)
	case "breed":
		out, err = svc.Breed(ctx, *pet, *with)
	case "faucet":
		out, err = svc.FaucetClaim(ctx, *to)
	case "pet":
		out, err = svc.PetInfo(ctx, *pet)
	case "item":
		out, err = svc.ItemInfo(ctx, *item)
	case "pool":
		out, err = svc.PoolInfo(ctx, *pool)
	case "mining-status":
		out, err = svc.MiningStatus(ctx)
	case "breed-status":
		out, err = svc.BreedStatus(ctx, *breedID)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		// Print whatever part of the result exists before failing; a
		// settlement_unknown outcome still carries the action id.
		if out != nil {
			printJSON(out)
		}
		log.Fatalf("%s: %v", command, err)
	}
	printJSON(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
