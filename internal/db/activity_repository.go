package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hexabank/account-service/internal/domain"
)

// ActivityRepository implements domain.ActivityRepository using PostgreSQL.
// The activity table is append-only: there is no update or delete statement
// anywhere in this package.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

func (r *ActivityRepository) q(ctx context.Context) querier {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Save appends a ledger entry and assigns its ID.
func (r *ActivityRepository) Save(ctx context.Context, activity *domain.Activity) error {
	query := `
		INSERT INTO activity (
			account_id, activity_type, amount, fee, balance_after,
			reference_account_id, reference_account_number,
			transaction_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.q(ctx).QueryRow(ctx, query,
		activity.AccountID,
		string(activity.Type),
		activity.Amount,
		activity.Fee,
		activity.BalanceAfter,
		activity.ReferenceAccountID,
		activity.ReferenceAccountNumber,
		activity.TransactionID,
		activity.CreatedAt,
	).Scan(&activity.ID)
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}

// ListByAccountID returns an account's ledger entries, newest first.
func (r *ActivityRepository) ListByAccountID(ctx context.Context, accountID int64) ([]*domain.Activity, error) {
	query := `
		SELECT id, account_id, activity_type, amount, fee, balance_after,
		       reference_account_id, reference_account_number,
		       transaction_id, created_at
		FROM activity
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.q(ctx).Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*domain.Activity
	for rows.Next() {
		var (
			activity     domain.Activity
			activityType string
		)
		if err := rows.Scan(
			&activity.ID,
			&activity.AccountID,
			&activityType,
			&activity.Amount,
			&activity.Fee,
			&activity.BalanceAfter,
			&activity.ReferenceAccountID,
			&activity.ReferenceAccountNumber,
			&activity.TransactionID,
			&activity.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activity.Type = domain.ActivityType(activityType)
		activities = append(activities, &activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activities: %w", err)
	}
	return activities, nil
}
