package domain

import (
	"strings"
	"time"
)

// Account is the aggregate root for a monetary account. Balance is kept in
// minor currency units and never goes negative after a committed operation.
// Version is the optimistic-concurrency token: the repository only accepts a
// save whose version matches the stored row, incrementing it by one.
type Account struct {
	ID            int64
	AccountNumber string // business key, unique, immutable
	AccountName   string
	Balance       int64
	WithdrawLimit LimitTracker
	TransferLimit LimitTracker
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time // non-nil means soft-deleted; the row is retained
	Version       int64
}

// NewAccount validates the business key and name and returns a fresh account
// with zero balance, empty trackers and version 0. The ID is assigned by the
// store on creation.
func NewAccount(accountNumber, accountName string, now time.Time) (*Account, error) {
	if err := validateAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	if strings.TrimSpace(accountName) == "" || len(accountName) > 100 {
		return nil, ErrInvalidAccountName
	}

	return &Account{
		AccountNumber: accountNumber,
		AccountName:   accountName,
		Balance:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func validateAccountNumber(accountNumber string) error {
	if strings.TrimSpace(accountNumber) == "" {
		return ErrInvalidAccountNumber
	}
	if len(accountNumber) < 3 || len(accountNumber) > 20 {
		return ErrInvalidAccountNumber
	}
	return nil
}

// Deposit credits amount to the balance. Deposits are not limit-tracked.
func (a *Account) Deposit(amount int64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.Balance += amount
	a.UpdatedAt = now
	return nil
}

// Withdraw debits amount from the balance after checking, in order, that the
// amount is positive, the balance covers it, and the daily withdraw ceiling
// admits it. A failed check leaves balance and tracker untouched.
func (a *Account) Withdraw(amount int64, limits Limits, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Balance < amount {
		return ErrInsufficientBalance
	}
	if _, err := a.WithdrawLimit.TrackAndCheck(amount, limits.DailyWithdraw, now); err != nil {
		return withdrawLimitError(err)
	}
	a.Balance -= amount
	a.UpdatedAt = now
	return nil
}

// Transfer moves amount to another account, debiting amount plus fee from the
// sender and crediting amount fee-free to the receiver. Only the principal
// counts toward the daily transfer ceiling. The insufficient-balance check
// (against amount+fee) runs before the limit check and before any mutation, so
// a rejected transfer leaves both accounts completely unchanged. Returns the
// fee charged.
func (a *Account) Transfer(to *Account, amount int64, limits Limits, now time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	fee := limits.TransferFee(amount)
	totalDebit := amount + fee

	if a.Balance < totalDebit {
		return 0, ErrInsufficientBalance
	}
	if _, err := a.TransferLimit.TrackAndCheck(amount, limits.DailyTransfer, now); err != nil {
		return 0, transferLimitError(err)
	}

	a.Balance -= totalDebit
	to.Balance += amount
	a.UpdatedAt = now
	to.UpdatedAt = now
	return fee, nil
}

// Delete marks the account as logically gone. The row is never physically
// removed; lookups used by mutation use cases exclude deleted accounts.
func (a *Account) Delete(now time.Time) {
	a.DeletedAt = &now
	a.UpdatedAt = now
}

// IsDeleted reports whether the account has been soft-deleted.
func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

func withdrawLimitError(err error) error {
	if err == ErrDailyLimitExceeded {
		return ErrDailyWithdrawLimitExceeded
	}
	return err
}

func transferLimitError(err error) error {
	if err == ErrDailyLimitExceeded {
		return ErrDailyTransferLimitExceeded
	}
	return err
}
