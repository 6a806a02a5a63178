// Package protoerr defines the typed error taxonomy shared by every
// component of the lottery protocol engine.
package protoerr

import "errors"

// Validation errors. These abort the current operation with no state change.
var (
	ErrInvalidTicket     = errors.New("invalid ticket")
	ErrNumbersOutOfRange = errors.New("numbers out of range")
	ErrDuplicateNumbers  = errors.New("duplicate numbers")
	ErrWrongTicketCount  = errors.New("wrong ticket count")
)

// State-machine errors.
var (
	ErrInvalidPhase    = errors.New("invalid phase")
	ErrDrawNotReady    = errors.New("draw not ready")
	ErrDrawInProgress  = errors.New("draw in progress")
	ErrAlreadyFinalized = errors.New("draw already finalized")
)

// Authorization errors.
var (
	ErrAuthorityRequired = errors.New("authority required")
	ErrNotTicketOwner    = errors.New("not ticket owner")
	ErrSpendGateNotMet   = errors.New("spend gate not met")
)

// Economic errors.
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientSolvency  = errors.New("insufficient solvency")
	ErrJackpotHardCapExceeded = errors.New("jackpot hard cap exceeded")
	ErrPoolInsufficient      = errors.New("pool insufficient")
	ErrReserveShortfall      = errors.New("reserve shortfall")
)

// Randomness errors.
var (
	ErrRandomnessNotReady          = errors.New("randomness not ready")
	ErrRandomnessExpired           = errors.New("randomness expired")
	ErrRandomnessAlreadyRevealed   = errors.New("randomness already revealed")
	ErrRandomnessHandleMismatch    = errors.New("randomness handle mismatch")
)

// Indexer errors.
var (
	ErrVerificationHashMismatch = errors.New("verification hash mismatch")
	ErrPlausibilityCheckFailed  = errors.New("plausibility check failed")
)

// Arithmetic / bug-class errors. These MUST halt execution and leave state
// untouched; they are not recoverable via retry.
var (
	ErrArithmeticOverflow     = errors.New("arithmetic overflow")
	ErrParameterInvariantBroken = errors.New("parameter invariant broken")
)

// Misc.
var (
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrAlreadyClaimed     = errors.New("already claimed")
	ErrNotFound           = errors.New("not found")
	ErrPaused             = errors.New("game is paused")
	ErrNotFunded          = errors.New("game is not funded")
)
