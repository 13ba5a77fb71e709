package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hexabank/account-service/internal/domain"
)

// querier is satisfied by both pgxpool.Pool and pgx.Tx, so repository methods
// transparently join an open transaction carried in the context.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements domain.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) q(ctx context.Context) querier {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const accountColumns = `
	id, account_number, account_name, balance,
	withdraw_accumulated_amount, withdraw_last_transaction_date,
	transfer_accumulated_amount, transfer_last_transaction_date,
	created_at, updated_at, deleted_at, version
`

// Create inserts a new account with version 0 and assigns its ID.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO account (
			account_number, account_name, balance,
			withdraw_accumulated_amount, withdraw_last_transaction_date,
			transfer_accumulated_amount, transfer_last_transaction_date,
			created_at, updated_at, deleted_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
		RETURNING id
	`

	err := r.q(ctx).QueryRow(ctx, query,
		account.AccountNumber,
		account.AccountName,
		account.Balance,
		account.WithdrawLimit.AccumulatedAmount,
		account.WithdrawLimit.LastTransactionDate,
		account.TransferLimit.AccumulatedAmount,
		account.TransferLimit.LastTransactionDate,
		account.CreatedAt,
		account.UpdatedAt,
		account.DeletedAt,
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateAccountNumber
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	account.Version = 0
	return nil
}

// Save persists a mutated account with a compare-and-swap on version. The
// UPDATE matches the version observed at load time; zero affected rows means
// a concurrent writer got there first and the attempt must restart from a
// fresh read.
func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE account
		SET balance = $3,
		    withdraw_accumulated_amount = $4,
		    withdraw_last_transaction_date = $5,
		    transfer_accumulated_amount = $6,
		    transfer_last_transaction_date = $7,
		    updated_at = $8,
		    deleted_at = $9,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.q(ctx).Exec(ctx, query,
		account.ID,
		account.Version,
		account.Balance,
		account.WithdrawLimit.AccumulatedAmount,
		account.WithdrawLimit.LastTransactionDate,
		account.TransferLimit.AccumulatedAmount,
		account.TransferLimit.LastTransactionDate,
		account.UpdatedAt,
		account.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrOptimisticLock
	}

	account.Version++
	return nil
}

// FindByAccountNumber retrieves a live account by its business key.
// Returns (nil, nil) when no live account matches.
func (r *AccountRepository) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM account
		WHERE account_number = $1 AND deleted_at IS NULL
	`
	return r.findOne(ctx, query, accountNumber)
}

// FindByID retrieves a live account by its identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM account
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.findOne(ctx, query, id)
}

func (r *AccountRepository) findOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var account domain.Account
	err := r.q(ctx).QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.AccountNumber,
		&account.AccountName,
		&account.Balance,
		&account.WithdrawLimit.AccumulatedAmount,
		&account.WithdrawLimit.LastTransactionDate,
		&account.TransferLimit.AccumulatedAmount,
		&account.TransferLimit.LastTransactionDate,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.DeletedAt,
		&account.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// ExistsByAccountNumber reports whether the business key is taken. Deleted
// rows count: the number stays reserved forever.
func (r *AccountRepository) ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM account WHERE account_number = $1)`

	var exists bool
	if err := r.q(ctx).QueryRow(ctx, query, accountNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account number: %w", err)
	}
	return exists, nil
}

// List returns live accounts ordered by ID.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM account
		WHERE deleted_at IS NULL
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.q(ctx).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.AccountNumber,
			&account.AccountName,
			&account.Balance,
			&account.WithdrawLimit.AccumulatedAmount,
			&account.WithdrawLimit.LastTransactionDate,
			&account.TransferLimit.AccumulatedAmount,
			&account.TransferLimit.LastTransactionDate,
			&account.CreatedAt,
			&account.UpdatedAt,
			&account.DeletedAt,
			&account.Version,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return accounts, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
