package domain

import (
	"context"
	"time"
)

// AccountRepository defines the persistence port for accounts. Lookups return
// (nil, nil) when no live account matches, so callers decide which not-found
// error applies.
type AccountRepository interface {
	// Create inserts a new account and assigns its ID. The stored version
	// starts at 0.
	Create(ctx context.Context, account *Account) error

	// Save persists a mutated account with a compare-and-swap on Version:
	// the write succeeds only if the stored version still matches
	// account.Version, and increments both by one. A lost race returns
	// ErrOptimisticLock without mutating the row.
	Save(ctx context.Context, account *Account) error

	// FindByAccountNumber retrieves a live account by its business key.
	// Soft-deleted accounts are excluded.
	FindByAccountNumber(ctx context.Context, accountNumber string) (*Account, error)

	// FindByID retrieves a live account by its identifier.
	FindByID(ctx context.Context, id int64) (*Account, error)

	// ExistsByAccountNumber reports whether the business key is taken,
	// soft-deleted rows included: a deleted number is never reusable.
	ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error)

	// List returns live accounts ordered by ID.
	List(ctx context.Context, limit, offset int) ([]*Account, error)
}

// ActivityRepository defines the persistence port for the append-only ledger.
// There is no update or delete operation.
type ActivityRepository interface {
	// Save appends a ledger entry and assigns its ID.
	Save(ctx context.Context, activity *Activity) error

	// ListByAccountID returns an account's ledger entries, newest first.
	ListByAccountID(ctx context.Context, accountID int64) ([]*Activity, error)
}

// TransactionManager executes a function within a storage transaction.
// If the function returns an error the transaction is rolled back, otherwise
// it is committed. Account saves and ledger appends performed inside share one
// atomic unit.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher publishes recorded ledger entries to external systems after
// the owning transaction has committed. Publishing is best-effort: a failure
// never affects the committed operation.
type EventPublisher interface {
	PublishActivityRecorded(ctx context.Context, activity *Activity) error
}

// Clock supplies the current time. A use case reads it once per execution so a
// single logical operation is never split across a calendar-day boundary.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
