package domain

import "errors"

var (
	// ErrAccountNotFound is returned when no live account matches the lookup key
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccountNumber is returned when registering an account number that is already taken
	ErrDuplicateAccountNumber = errors.New("account number already exists")

	// ErrInvalidAccountNumber is returned when the account number is blank or not 3-20 characters
	ErrInvalidAccountNumber = errors.New("account number must be 3-20 characters")

	// ErrInvalidAccountName is returned when the account name is blank or longer than 100 characters
	ErrInvalidAccountName = errors.New("account name must be 1-100 characters")

	// ErrInvalidAmount is returned when an operation amount is zero or negative
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance is returned when the balance cannot cover the debit (fee included)
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDailyWithdrawLimitExceeded is returned when a withdrawal would exceed the daily withdraw ceiling
	ErrDailyWithdrawLimitExceeded = errors.New("daily withdraw limit exceeded")

	// ErrDailyTransferLimitExceeded is returned when a transfer would exceed the daily transfer ceiling
	ErrDailyTransferLimitExceeded = errors.New("daily transfer limit exceeded")

	// ErrSameAccountTransfer is returned when source and destination resolve to the same account
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")

	// ErrOptimisticLock is returned when a save lost the version race against a concurrent
	// writer. Use cases retry on it; after the retry bound it surfaces to the caller.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrDailyLimitExceeded is the tracker-level limit failure. Account operations translate
	// it to the withdraw- or transfer-specific error before it leaves the aggregate.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
)
