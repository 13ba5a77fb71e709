package domain

import "time"

// ActivityType identifies the kind of ledger entry.
type ActivityType string

const (
	ActivityDeposit     ActivityType = "DEPOSIT"
	ActivityWithdraw    ActivityType = "WITHDRAW"
	ActivityTransferOut ActivityType = "TRANSFER_OUT"
	ActivityTransferIn  ActivityType = "TRANSFER_IN"
)

// Activity is an immutable, append-only ledger entry recording the effect of a
// committed account mutation. BalanceAfter is a snapshot taken at record time,
// never recomputed. The two entries produced by one transfer share a
// TransactionID but are otherwise independent rows.
type Activity struct {
	ID                     int64
	AccountID              int64
	Type                   ActivityType
	Amount                 int64 // always positive
	Fee                    int64 // zero except TRANSFER_OUT
	BalanceAfter           int64
	ReferenceAccountID     *int64  // counterpart, TRANSFER_* only
	ReferenceAccountNumber *string // counterpart business key, TRANSFER_* only
	TransactionID          *string // correlation id shared by a transfer pair
	CreatedAt              time.Time
}

// NewDepositActivity records a completed deposit.
func NewDepositActivity(accountID, amount, balanceAfter int64, now time.Time) *Activity {
	return &Activity{
		AccountID:    accountID,
		Type:         ActivityDeposit,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		CreatedAt:    now,
	}
}

// NewWithdrawActivity records a completed withdrawal.
func NewWithdrawActivity(accountID, amount, balanceAfter int64, now time.Time) *Activity {
	return &Activity{
		AccountID:    accountID,
		Type:         ActivityWithdraw,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		CreatedAt:    now,
	}
}

// NewTransferOutActivity records the sender side of a completed transfer.
// The fee is carried on this side only.
func NewTransferOutActivity(accountID, referenceAccountID int64, referenceAccountNumber string, amount, fee, balanceAfter int64, transactionID string, now time.Time) *Activity {
	return &Activity{
		AccountID:              accountID,
		Type:                   ActivityTransferOut,
		Amount:                 amount,
		Fee:                    fee,
		BalanceAfter:           balanceAfter,
		ReferenceAccountID:     &referenceAccountID,
		ReferenceAccountNumber: &referenceAccountNumber,
		TransactionID:          &transactionID,
		CreatedAt:              now,
	}
}

// NewTransferInActivity records the receiver side of a completed transfer.
func NewTransferInActivity(accountID, referenceAccountID int64, referenceAccountNumber string, amount, balanceAfter int64, transactionID string, now time.Time) *Activity {
	return &Activity{
		AccountID:              accountID,
		Type:                   ActivityTransferIn,
		Amount:                 amount,
		BalanceAfter:           balanceAfter,
		ReferenceAccountID:     &referenceAccountID,
		ReferenceAccountNumber: &referenceAccountNumber,
		TransactionID:          &transactionID,
		CreatedAt:              now,
	}
}
