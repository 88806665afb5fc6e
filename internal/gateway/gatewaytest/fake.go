// Package gatewaytest provides a scriptable in-memory ledger gateway for
// tests. Reads are keyed by contract/method/args; submissions are counted
// so tests can assert a guarded action never reached the network.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/raigotchi/petops/internal/gateway"
)

type FakeClient struct {
	mu sync.Mutex

	// Reads maps Key(contract, method, args...) to the value a Read call
	// returns. A key without args acts as a wildcard for the method.
	Reads   map[string]any
	ReadErr error

	EstimateFn  func(call gateway.Call) (gateway.Budget, error)
	EstimateErr error

	SubmitFn  func(action gateway.SignedAction) (gateway.SettlementRecord, error)
	SubmitErr error

	Now     uint64
	TimeErr error

	SubmitCount int
	Submitted   []gateway.SignedAction
}

func New() *FakeClient {
	return &FakeClient{Reads: map[string]any{}}
}

func Key(contract, method string, args ...any) string {
	if len(args) == 0 {
		return contract + "." + method
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return contract + "." + method + "(" + strings.Join(parts, ",") + ")"
}

// SetRead scripts one read value.
func (f *FakeClient) SetRead(contract, method string, value any, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Reads == nil {
		f.Reads = map[string]any{}
	}
	f.Reads[Key(contract, method, args...)] = value
}

func (f *FakeClient) Read(ctx context.Context, call gateway.Call, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return f.ReadErr
	}
	value, ok := f.Reads[Key(call.Contract, call.Method, call.Args...)]
	if !ok {
		value, ok = f.Reads[Key(call.Contract, call.Method)]
	}
	if !ok {
		return fmt.Errorf("gatewaytest: no read scripted for %s", Key(call.Contract, call.Method, call.Args...))
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("gatewaytest: marshal scripted value: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (f *FakeClient) EstimateBudget(ctx context.Context, call gateway.Call) (gateway.Budget, error) {
	if err := ctx.Err(); err != nil {
		return gateway.Budget{}, err
	}
	f.mu.Lock()
	fn, errScripted := f.EstimateFn, f.EstimateErr
	f.mu.Unlock()
	if errScripted != nil {
		return gateway.Budget{}, errScripted
	}
	if fn != nil {
		return fn(call)
	}
	return gateway.Budget{Limit: 21000, Price: big.NewInt(1)}, nil
}

func (f *FakeClient) Submit(ctx context.Context, action gateway.SignedAction) (gateway.SettlementRecord, error) {
	if err := ctx.Err(); err != nil {
		return gateway.SettlementRecord{}, err
	}
	f.mu.Lock()
	f.SubmitCount++
	count := f.SubmitCount
	f.Submitted = append(f.Submitted, action)
	fn, errScripted := f.SubmitFn, f.SubmitErr
	f.mu.Unlock()
	if errScripted != nil {
		return gateway.SettlementRecord{}, errScripted
	}
	if fn != nil {
		return fn(action)
	}
	return gateway.SettlementRecord{
		TxHash: fmt.Sprintf("0xfake%06d", count),
		Status: gateway.StatusSuccess,
	}, nil
}

func (f *FakeClient) CurrentTime(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TimeErr != nil {
		return 0, f.TimeErr
	}
	return f.Now, nil
}
