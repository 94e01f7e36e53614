package engine

import (
	"errors"

	"github.com/lazypower/erosion/internal/auction"
	"github.com/lazypower/erosion/internal/generation"
)

// Protocol failures. Every one aborts the whole operation; nothing is
// retried and no state changes.
var (
	ErrEpochNotAdvancing            = errors.New("epoch not advancing")
	ErrInvalidDecayRate             = generation.ErrInvalidDecayRate
	ErrInvalidAdmissionProof        = errors.New("invalid admission proof")
	ErrAlreadyAdmitted              = errors.New("already admitted")
	ErrRecipientIsDead              = errors.New("cannot house knowledge in a carcass")
	ErrSenderPerished               = errors.New("sender has perished")
	ErrInvalidTransferAmount        = errors.New("amount must be a single shard or the full remaining balance")
	ErrInsufficientRemainingBalance = errors.New("too much knowledge to transfer")
	ErrEmissionCapacityExceeded     = auction.ErrEmissionCapacityExceeded
	ErrPriceOverflow                = auction.ErrPriceOverflow

	ErrUnauthorized          = errors.New("caller not authorized")
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownGeneration     = errors.New("unknown generation")
	ErrNotBootstrapped       = errors.New("community not bootstrapped")
	ErrAlreadyBootstrapped   = errors.New("community already bootstrapped")
	ErrStateRegression       = errors.New("member state cannot move backward")
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrEpochNotAdvancing, "epoch_not_advancing"},
	{ErrInvalidDecayRate, "invalid_decay_rate"},
	{ErrInvalidAdmissionProof, "invalid_admission_proof"},
	{ErrAlreadyAdmitted, "already_admitted"},
	{ErrRecipientIsDead, "recipient_is_dead"},
	{ErrSenderPerished, "sender_perished"},
	{ErrInvalidTransferAmount, "invalid_transfer_amount"},
	{ErrInsufficientRemainingBalance, "insufficient_remaining_balance"},
	{ErrEmissionCapacityExceeded, "emission_capacity_exceeded"},
	{ErrPriceOverflow, "price_overflow"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidRecipient, "invalid_recipient"},
	{ErrInsufficientAllowance, "insufficient_allowance"},
	{ErrUnknownGeneration, "unknown_generation"},
	{ErrNotBootstrapped, "not_bootstrapped"},
	{ErrAlreadyBootstrapped, "already_bootstrapped"},
	{ErrStateRegression, "state_regression"},
}

// Reason returns a stable snake_case code for a protocol error, or
// "internal" for anything else.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "internal"
}
