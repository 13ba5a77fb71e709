package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface the service needs. The zap-backed
// logger in internal/logger satisfies it.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// TransferResult bundles the outcome of a completed transfer.
type TransferResult struct {
	From          *Account
	To            *Account
	Fee           int64
	TransactionID string
}

// AccountService orchestrates the account mutation use cases: load by
// business key, mutate the aggregate in memory, persist through the
// version-checked repository, and append ledger entries, all inside one
// transaction. The whole unit re-executes from the load step when a save
// loses the version race, up to maxAttempts attempts. Domain-rule failures
// are never retried.
type AccountService struct {
	accounts    AccountRepository
	activities  ActivityRepository
	txManager   TransactionManager
	publisher   EventPublisher // nil disables event publishing
	clock       Clock
	logger      Logger
	limits      Limits
	maxAttempts int
}

// NewAccountService wires an AccountService. Pass nil for publisher if no
// events should be emitted. maxAttempts values below 1 are clamped to 1.
func NewAccountService(
	accounts AccountRepository,
	activities ActivityRepository,
	txManager TransactionManager,
	publisher EventPublisher,
	clock Clock,
	logger Logger,
	limits Limits,
	maxAttempts int,
) *AccountService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &AccountService{
		accounts:    accounts,
		activities:  activities,
		txManager:   txManager,
		publisher:   publisher,
		clock:       clock,
		logger:      logger,
		limits:      limits,
		maxAttempts: maxAttempts,
	}
}

// Register creates a new account with zero balance. The account number must
// not be taken, soft-deleted accounts included.
func (s *AccountService) Register(ctx context.Context, accountNumber, accountName string) (*Account, error) {
	account, err := NewAccount(accountNumber, accountName, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		taken, err := s.accounts.ExistsByAccountNumber(txCtx, accountNumber)
		if err != nil {
			return fmt.Errorf("failed to check account number: %w", err)
		}
		if taken {
			return ErrDuplicateAccountNumber
		}
		return s.accounts.Create(txCtx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Deposit credits amount to the account identified by accountNumber and
// appends a DEPOSIT ledger entry.
func (s *AccountService) Deposit(ctx context.Context, accountNumber string, amount int64) (*Account, error) {
	var (
		account  *Account
		recorded *Activity
	)

	err := s.withRetry(ctx, "deposit", func(txCtx context.Context) error {
		now := s.clock.Now()

		a, err := s.loadAccount(txCtx, accountNumber)
		if err != nil {
			return err
		}
		if err := a.Deposit(amount, now); err != nil {
			return err
		}
		if err := s.accounts.Save(txCtx, a); err != nil {
			return err
		}

		activity := NewDepositActivity(a.ID, amount, a.Balance, now)
		if err := s.activities.Save(txCtx, activity); err != nil {
			return fmt.Errorf("failed to record deposit activity: %w", err)
		}

		account = a
		recorded = activity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(recorded)
	return account, nil
}

// Withdraw debits amount from the account identified by accountNumber,
// subject to balance and daily-limit checks, and appends a WITHDRAW ledger
// entry.
func (s *AccountService) Withdraw(ctx context.Context, accountNumber string, amount int64) (*Account, error) {
	var (
		account  *Account
		recorded *Activity
	)

	err := s.withRetry(ctx, "withdraw", func(txCtx context.Context) error {
		now := s.clock.Now()

		a, err := s.loadAccount(txCtx, accountNumber)
		if err != nil {
			return err
		}
		if err := a.Withdraw(amount, s.limits, now); err != nil {
			return err
		}
		if err := s.accounts.Save(txCtx, a); err != nil {
			return err
		}

		activity := NewWithdrawActivity(a.ID, amount, a.Balance, now)
		if err := s.activities.Save(txCtx, activity); err != nil {
			return fmt.Errorf("failed to record withdraw activity: %w", err)
		}

		account = a
		recorded = activity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(recorded)
	return account, nil
}

// Transfer moves amount between the two accounts identified by business key.
// Both accounts are saved under independent version checks inside one
// transaction, and the TRANSFER_OUT/TRANSFER_IN ledger pair shares a generated
// transaction id. A version conflict on either account restarts the whole
// unit from the load step.
func (s *AccountService) Transfer(ctx context.Context, fromNumber, toNumber string, amount int64) (*TransferResult, error) {
	var (
		result   *TransferResult
		recorded []*Activity
	)

	err := s.withRetry(ctx, "transfer", func(txCtx context.Context) error {
		now := s.clock.Now()

		from, err := s.loadAccount(txCtx, fromNumber)
		if err != nil {
			return err
		}
		to, err := s.loadAccount(txCtx, toNumber)
		if err != nil {
			return err
		}
		if from.ID == to.ID {
			return ErrSameAccountTransfer
		}

		fee, err := from.Transfer(to, amount, s.limits, now)
		if err != nil {
			return err
		}

		if err := s.accounts.Save(txCtx, from); err != nil {
			return err
		}
		if err := s.accounts.Save(txCtx, to); err != nil {
			return err
		}

		transactionID := uuid.New().String()
		out := NewTransferOutActivity(from.ID, to.ID, to.AccountNumber, amount, fee, from.Balance, transactionID, now)
		in := NewTransferInActivity(to.ID, from.ID, from.AccountNumber, amount, to.Balance, transactionID, now)

		if err := s.activities.Save(txCtx, out); err != nil {
			return fmt.Errorf("failed to record transfer-out activity: %w", err)
		}
		if err := s.activities.Save(txCtx, in); err != nil {
			return fmt.Errorf("failed to record transfer-in activity: %w", err)
		}

		result = &TransferResult{From: from, To: to, Fee: fee, TransactionID: transactionID}
		recorded = []*Activity{out, in}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(recorded...)
	return result, nil
}

// Delete soft-deletes the account identified by accountNumber. Deleting an
// already-deleted account fails with ErrAccountNotFound because lookups
// exclude deleted rows.
func (s *AccountService) Delete(ctx context.Context, accountNumber string) error {
	return s.withRetry(ctx, "delete", func(txCtx context.Context) error {
		a, err := s.loadAccount(txCtx, accountNumber)
		if err != nil {
			return err
		}
		a.Delete(s.clock.Now())
		return s.accounts.Save(txCtx, a)
	})
}

// GetAccount retrieves a live account by business key.
func (s *AccountService) GetAccount(ctx context.Context, accountNumber string) (*Account, error) {
	return s.loadAccount(ctx, accountNumber)
}

// ListAccounts returns live accounts ordered by ID.
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*Account, error) {
	return s.accounts.List(ctx, limit, offset)
}

// ListActivities returns the ledger of the given account, newest first.
func (s *AccountService) ListActivities(ctx context.Context, accountID int64) ([]*Activity, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return s.activities.ListByAccountID(ctx, accountID)
}

// loadAccount fetches a live account or fails with ErrAccountNotFound.
func (s *AccountService) loadAccount(ctx context.Context, accountNumber string) (*Account, error) {
	account, err := s.accounts.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// withRetry runs fn inside a transaction, re-executing the whole unit on
// ErrOptimisticLock up to the configured attempt bound. Every conflicted
// attempt re-reads fresh state, so a retried attempt may legitimately fail a
// domain rule that passed before. All other errors end the loop immediately.
func (s *AccountService) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.txManager.WithTransaction(ctx, fn)
		if !errors.Is(err, ErrOptimisticLock) {
			return err
		}
		if s.logger != nil {
			s.logger.Warn("optimistic lock conflict, retrying",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", s.maxAttempts,
			)
		}
	}
	return err
}

// publish emits recorded activities after commit. Best-effort and
// asynchronous: transient broker failures must not make an already-committed
// operation look failed.
func (s *AccountService) publish(activities ...*Activity) {
	if s.publisher == nil {
		return
	}
	for _, activity := range activities {
		go func(a *Activity) {
			if err := s.publisher.PublishActivityRecorded(context.Background(), a); err != nil && s.logger != nil {
				s.logger.Warn("failed to publish activity event",
					"account_id", a.AccountID,
					"activity_type", string(a.Type),
					"error", err,
				)
			}
		}(activity)
	}
}
