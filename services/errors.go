package services

import "errors"

// Sentinel errors for the quest economy core. Handlers map these to
// HTTP statuses with errors.Is; services never return fiber errors
// directly from domain methods.
var (
	// ErrQuestNotFound, ErrWalletNotFound etc. are non-retryable.
	ErrQuestNotFound       = errors.New("quest not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrParticipantNotFound = errors.New("user is not participating in this quest")
	ErrWheelNotFound       = errors.New("spin wheel not found or inactive")

	// Invalid lifecycle transitions. The caller must reconcile state
	// before retrying.
	ErrQuestEnded     = errors.New("quest is already ended")
	ErrQuestPaused    = errors.New("quest is already paused")
	ErrQuestNotPaused = errors.New("quest is not paused")
	ErrAlreadyJoined  = errors.New("user already joined this quest")
	ErrInvalidAmount  = errors.New("amount must be positive")

	// Daily bonus and spin guardrails.
	ErrBonusAlreadyClaimed   = errors.New("daily bonus already claimed")
	ErrBonusAlreadyProcessed = errors.New("daily bonuses already processed today")
	ErrNoActiveBonusConfig   = errors.New("no active bonus configuration")
	ErrNotEnoughRankedUsers  = errors.New("not enough users on the global leaderboard")
	ErrSpinLimitReached      = errors.New("daily spin limit reached")

	// Insufficient resources, surfaced with current balances so the
	// caller can react.
	ErrInsufficientCredits = errors.New("no credits available")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// External collaborator failures. The core fails fast and leaves
	// no partial economic state; retry policy belongs to the caller.
	ErrExternalService = errors.New("external service failure")

	// ErrSplitMismatch means the two split legs failed to sum back to
	// the input amount. With remainder arithmetic that cannot happen,
	// so hitting it indicates a programming error, not bad data.
	ErrSplitMismatch = errors.New("split amounts do not sum to payment amount")
)
