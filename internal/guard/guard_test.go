package guard_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raigotchi/petops/internal/config"
	"github.com/raigotchi/petops/internal/gateway/gatewaytest"
	"github.com/raigotchi/petops/internal/guard"
)

var contracts = config.Contracts{
	Pet:     "0xpet",
	Token:   "0xtoken",
	Staking: "0xstaking",
}

const owner = "0xowner"

func TestAlive(t *testing.T) {
	gw := gatewaytest.New()
	gw.SetRead(contracts.Pet, "isPetAlive", true, uint64(4))
	gw.SetRead(contracts.Pet, "isPetAlive", false, uint64(0))

	g := guard.New(gw, contracts)
	alive, err := g.Alive(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, alive)

	alive, err = g.Alive(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestUnlocked(t *testing.T) {
	gw := gatewaytest.New()
	gw.SetRead(contracts.Pet, "isPetLocked", true, uint64(7))

	g := guard.New(gw, contracts)
	unlocked, err := g.Unlocked(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, unlocked)
}

func TestAllowanceSufficient(t *testing.T) {
	gw := gatewaytest.New()
	gw.SetRead(contracts.Token, "allowance", "100", owner, "0xspender")

	g := guard.New(gw, contracts)
	ok, amount, err := g.AllowanceSufficient(context.Background(), owner, "0xspender", big.NewInt(500))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, big.NewInt(100), amount)

	ok, _, err = g.AllowanceSufficient(context.Background(), owner, "0xspender", big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowanceWeiScale(t *testing.T) {
	gw := gatewaytest.New()
	// 20000 tokens at 18 decimals overflows uint64; comparison must stay exact.
	gw.SetRead(contracts.Token, "allowance", "20000000000000000000000", owner, "0xspender")

	g := guard.New(gw, contracts)
	required, _ := new(big.Int).SetString("20000000000000000000001", 10)
	ok, _, err := g.AllowanceSufficient(context.Background(), owner, "0xspender", required)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowanceMalformed(t *testing.T) {
	gw := gatewaytest.New()
	gw.SetRead(contracts.Token, "allowance", "not-a-number", owner, "0xspender")

	g := guard.New(gw, contracts)
	_, _, err := g.AllowanceSufficient(context.Background(), owner, "0xspender", big.NewInt(1))
	assert.Error(t, err)
}

func TestCooldownElapsed(t *testing.T) {
	gw := gatewaytest.New()
	gw.SetRead(contracts.Staking, "lastMiningTime", uint64(1000), owner)
	gw.SetRead(contracts.Staking, "totalMiningChargeTime", uint64(500), owner)
	gw.Now = 1400

	g := guard.New(gw, contracts)
	ready, remaining, err := g.CooldownElapsed(context.Background(), owner)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, 100*time.Second, remaining)

	gw.Now = 1500
	ready, remaining, err = g.CooldownElapsed(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Zero(t, remaining)
}

func TestTransportFailurePropagates(t *testing.T) {
	gw := gatewaytest.New()
	gw.ReadErr = errors.New("node down")

	g := guard.New(gw, contracts)
	if _, err := g.Alive(context.Background(), 1); err == nil {
		t.Fatalf("expected transport error")
	}
	if _, _, err := g.AllowanceSufficient(context.Background(), owner, "0xspender", big.NewInt(1)); err == nil {
		t.Fatalf("expected transport error")
	}
}
