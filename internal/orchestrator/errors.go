package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies every way an orchestrated action can fail. The caller
// gets exactly one terminal outcome per action; nothing is swallowed.
type Kind string

const (
	// KindGuardUnavailable: a precondition read failed in transport or
	// decoding. Retryable; the guarded action was never submitted.
	KindGuardUnavailable Kind = "guard_unavailable"
	// KindPreconditionFailed: a domain rule blocked the action. Not
	// retryable until remote state changes.
	KindPreconditionFailed Kind = "precondition_failed"
	// KindBudgetEstimationFailed: the ledger would reject the action.
	KindBudgetEstimationFailed Kind = "budget_estimation_failed"
	// KindActionRejected: the ledger settled the action as failed.
	KindActionRejected Kind = "action_rejected"
	// KindSigningFailed: the action digest could not be signed. Retryable;
	// nothing was submitted.
	KindSigningFailed Kind = "signing_failed"
	// KindSettlementUnknown: submission did not reach terminal settlement
	// before the deadline. The action may still settle; re-query before
	// any retry.
	KindSettlementUnknown Kind = "settlement_unknown"
	// KindOutcomeUndecodable: settlement succeeded but the expected event
	// was missing or malformed.
	KindOutcomeUndecodable Kind = "outcome_undecodable"
	// KindPostconditionMismatch: observed state after settlement disagrees
	// with expectation. Signals a logic or timing bug; never auto-corrected.
	KindPostconditionMismatch Kind = "postcondition_mismatch"
)

// Error is the typed failure returned for every non-success terminal
// outcome of an orchestrated action.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil && e.Reason != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether the same action may be re-attempted without a
// prior state re-query.
func (e *Error) Retryable() bool {
	return e.Kind == KindGuardUnavailable || e.Kind == KindSigningFailed
}

func GuardUnavailable(cause error) *Error {
	return &Error{Kind: KindGuardUnavailable, cause: cause}
}

func SigningFailed(cause error) *Error {
	return &Error{Kind: KindSigningFailed, cause: cause}
}

func PreconditionFailed(reason string) *Error {
	return &Error{Kind: KindPreconditionFailed, Reason: reason}
}

func BudgetEstimationFailed(cause error) *Error {
	return &Error{Kind: KindBudgetEstimationFailed, cause: cause}
}

func ActionRejected(ledgerReason string) *Error {
	return &Error{Kind: KindActionRejected, Reason: ledgerReason}
}

func SettlementUnknown(cause error) *Error {
	return &Error{Kind: KindSettlementUnknown, cause: cause}
}

func OutcomeUndecodable(cause error) *Error {
	return &Error{Kind: KindOutcomeUndecodable, cause: cause}
}

func PostconditionMismatch(reason string) *Error {
	return &Error{Kind: KindPostconditionMismatch, Reason: reason}
}

// KindOf extracts the failure kind from any error in a chain.
func KindOf(err error) (Kind, bool) {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr.Kind, true
	}
	return "", false
}
