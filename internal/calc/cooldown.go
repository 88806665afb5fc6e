// Package calc holds the pure arithmetic the client computes from on-chain
// state: cooldown windows and mining reward projections. Everything here is
// integer-exact so client estimates match the ledger's own arithmetic.
package calc

import "time"

// NextEligible returns the first instant (unix seconds) at which a repeat
// action is accepted again. A zero charge duration means the entity is
// always eligible. Used identically for mining recharge and breeding
// completion.
func NextEligible(lastEventTime, chargeDuration uint64) uint64 {
	return lastEventTime + chargeDuration
}

// Remaining reports whether the cooldown has elapsed at now (unix seconds)
// and, if not, how long is left. Ready iff now >= nextEligible.
func Remaining(now, nextEligible uint64) (time.Duration, bool) {
	if now >= nextEligible {
		return 0, true
	}
	return time.Duration(nextEligible-now) * time.Second, false
}
