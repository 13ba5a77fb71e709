package db_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hexabank/account-service/internal/db"
	"github.com/hexabank/account-service/internal/domain"
	"github.com/hexabank/account-service/internal/events"
)

var integrationLimits = domain.Limits{
	DailyWithdraw:          1_000_000,
	DailyTransfer:          3_000_000,
	TransferFeeBasisPoints: 100,
}

// TestAccountServiceIntegration is a full end-to-end integration test. It
// spins up PostgreSQL and RabbitMQ containers, runs migrations, exercises the
// account use cases against real storage, and verifies that ledger events
// reach the broker.
func TestAccountServiceIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, dbURL := startPostgresContainer(t, ctx)
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}()

	rabbitContainer, rabbitURL := startRabbitMQContainer(t, ctx)
	defer func() {
		if err := rabbitContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	}()

	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	runMigrations(t, ctx, pool)

	exchange := "account.activities"
	routingKey := "account.activities.recorded"
	publisher, err := events.NewRabbitMQPublisher(rabbitURL, exchange, routingKey)
	if err != nil {
		t.Fatalf("failed to create rabbitmq publisher: %v", err)
	}
	defer publisher.Close()

	accountRepo := db.NewAccountRepository(pool.Pool)
	activityRepo := db.NewActivityRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool)
	service := domain.NewAccountService(
		accountRepo, activityRepo, txManager, publisher,
		domain.SystemClock{}, nil, integrationLimits, 3,
	)

	eventChan := make(chan map[string]interface{}, 4)
	stopConsumer := startEventConsumer(t, rabbitURL, exchange, routingKey, eventChan)
	defer stopConsumer()

	// Give the consumer a moment to start.
	time.Sleep(500 * time.Millisecond)

	sender, err := service.Register(ctx, "110-1111-1111", "sender")
	if err != nil {
		t.Fatalf("failed to register sender: %v", err)
	}
	receiver, err := service.Register(ctx, "110-2222-2222", "receiver")
	if err != nil {
		t.Fatalf("failed to register receiver: %v", err)
	}

	// Registering the same number again must hit the unique constraint.
	if _, err := service.Register(ctx, "110-1111-1111", "imposter"); !errors.Is(err, domain.ErrDuplicateAccountNumber) {
		t.Errorf("expected ErrDuplicateAccountNumber, got %v", err)
	}

	if _, err := service.Deposit(ctx, "110-1111-1111", 1_000_000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	drainEvent(t, eventChan, "DEPOSIT")

	result, err := service.Transfer(ctx, "110-1111-1111", "110-2222-2222", 100_000)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if result.Fee != 1_000 {
		t.Errorf("expected fee 1000, got %d", result.Fee)
	}
	if result.From.Balance != 899_000 {
		t.Errorf("expected sender balance 899000, got %d", result.From.Balance)
	}
	if result.To.Balance != 100_000 {
		t.Errorf("expected receiver balance 100000, got %d", result.To.Balance)
	}

	out := drainEvent(t, eventChan, "TRANSFER_OUT")
	in := drainEvent(t, eventChan, "TRANSFER_IN")
	if out["transactionId"] != result.TransactionID || in["transactionId"] != result.TransactionID {
		t.Error("transfer events must carry the transfer's transaction id")
	}
	if out["fee"] != float64(1_000) {
		t.Errorf("expected fee 1000 on TRANSFER_OUT event, got %v", out["fee"])
	}
	if in["fee"] != float64(0) {
		t.Errorf("expected fee 0 on TRANSFER_IN event, got %v", in["fee"])
	}

	// The persisted ledger reflects both sides, newest first.
	senderLedger, err := service.ListActivities(ctx, sender.ID)
	if err != nil {
		t.Fatalf("failed to list sender ledger: %v", err)
	}
	if len(senderLedger) != 2 {
		t.Fatalf("expected 2 sender ledger entries, got %d", len(senderLedger))
	}
	if senderLedger[0].Type != domain.ActivityTransferOut || senderLedger[1].Type != domain.ActivityDeposit {
		t.Errorf("unexpected sender ledger order: %v, %v", senderLedger[0].Type, senderLedger[1].Type)
	}

	receiverLedger, err := service.ListActivities(ctx, receiver.ID)
	if err != nil {
		t.Fatalf("failed to list receiver ledger: %v", err)
	}
	if len(receiverLedger) != 1 || receiverLedger[0].Type != domain.ActivityTransferIn {
		t.Fatalf("unexpected receiver ledger: %+v", receiverLedger)
	}

	// Soft delete hides the account but keeps its number reserved.
	if err := service.Delete(ctx, "110-2222-2222"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := service.GetAccount(ctx, "110-2222-2222"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("expected deleted account to be invisible, got %v", err)
	}
	if _, err := service.Register(ctx, "110-2222-2222", "reuse"); !errors.Is(err, domain.ErrDuplicateAccountNumber) {
		t.Errorf("expected deleted number to stay reserved, got %v", err)
	}
}

// TestAccountRepositoryOptimisticLock verifies the version check at the SQL
// level: a writer holding a stale version must not overwrite a newer row.
func TestAccountRepositoryOptimisticLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, dbURL := startPostgresContainer(t, ctx)
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}()

	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	runMigrations(t, ctx, pool)

	repo := db.NewAccountRepository(pool.Pool)

	now := time.Now().UTC()
	account, err := domain.NewAccount("110-3333-3333", "contended", now)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("failed to persist account: %v", err)
	}
	if account.Version != 0 {
		t.Fatalf("expected initial version 0, got %d", account.Version)
	}

	// Two readers load the same version.
	first, err := repo.FindByID(ctx, account.ID)
	if err != nil || first == nil {
		t.Fatalf("failed to load first copy: %v", err)
	}
	second, err := repo.FindByID(ctx, account.ID)
	if err != nil || second == nil {
		t.Fatalf("failed to load second copy: %v", err)
	}

	first.Balance = 100
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if first.Version != 1 {
		t.Errorf("expected version 1 after save, got %d", first.Version)
	}

	// The second writer still holds version 0 and must lose.
	second.Balance = 200
	if err := repo.Save(ctx, second); !errors.Is(err, domain.ErrOptimisticLock) {
		t.Fatalf("expected ErrOptimisticLock for stale version, got %v", err)
	}

	stored, err := repo.FindByID(ctx, account.ID)
	if err != nil || stored == nil {
		t.Fatalf("failed to reload account: %v", err)
	}
	if stored.Balance != 100 {
		t.Errorf("stale writer overwrote the row: balance %d", stored.Balance)
	}
}

// TestTransactionRollback verifies that a failed unit leaves no partial
// writes: the account update and the ledger insert commit or roll back
// together.
func TestTransactionRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, dbURL := startPostgresContainer(t, ctx)
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}()

	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to create database pool: %v", err)
	}
	defer pool.Close()

	runMigrations(t, ctx, pool)

	accountRepo := db.NewAccountRepository(pool.Pool)
	activityRepo := db.NewActivityRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool)

	now := time.Now().UTC()
	account, err := domain.NewAccount("110-4444-4444", "rollback", now)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if err := accountRepo.Create(ctx, account); err != nil {
		t.Fatalf("failed to persist account: %v", err)
	}

	boom := errors.New("boom")
	err = txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		loaded, err := accountRepo.FindByID(txCtx, account.ID)
		if err != nil {
			return err
		}
		if err := loaded.Deposit(5_000, now); err != nil {
			return err
		}
		if err := accountRepo.Save(txCtx, loaded); err != nil {
			return err
		}
		if err := activityRepo.Save(txCtx, domain.NewDepositActivity(loaded.ID, 5_000, loaded.Balance, now)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	stored, err := accountRepo.FindByID(ctx, account.ID)
	if err != nil || stored == nil {
		t.Fatalf("failed to reload account: %v", err)
	}
	if stored.Balance != 0 {
		t.Errorf("balance update survived rollback: %d", stored.Balance)
	}
	if stored.Version != 0 {
		t.Errorf("version bump survived rollback: %d", stored.Version)
	}

	ledger, err := activityRepo.ListByAccountID(ctx, account.ID)
	if err != nil {
		t.Fatalf("failed to list ledger: %v", err)
	}
	if len(ledger) != 0 {
		t.Errorf("ledger entry survived rollback: %+v", ledger)
	}
}

func drainEvent(t *testing.T, eventChan chan map[string]interface{}, wantType string) map[string]interface{} {
	t.Helper()
	select {
	case event := <-eventChan:
		if event["eventType"] != "activity.recorded" {
			t.Errorf("expected eventType activity.recorded, got %v", event["eventType"])
		}
		if event["activityType"] != wantType {
			t.Errorf("expected activityType %s, got %v", wantType, event["activityType"])
		}
		return event
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s event", wantType)
		return nil
	}
}

// startPostgresContainer starts a PostgreSQL testcontainer and returns the connection URL.
func startPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get postgres port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	return container, dbURL
}

// startRabbitMQContainer starts a RabbitMQ testcontainer and returns the AMQP URL.
func startRabbitMQContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp", "15672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start rabbitmq container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get rabbitmq host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5672")
	if err != nil {
		t.Fatalf("failed to get rabbitmq port: %v", err)
	}

	rabbitURL := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
	return container, rabbitURL
}

// runMigrations creates the schema.
func runMigrations(t *testing.T, ctx context.Context, pool *db.Pool) {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS account (
			id BIGSERIAL PRIMARY KEY,
			account_number VARCHAR(20) NOT NULL UNIQUE,
			account_name VARCHAR(100) NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			withdraw_accumulated_amount BIGINT NOT NULL DEFAULT 0,
			withdraw_last_transaction_date TIMESTAMPTZ,
			transfer_accumulated_amount BIGINT NOT NULL DEFAULT 0,
			transfer_last_transaction_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ,
			version BIGINT NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS activity (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL REFERENCES account(id),
			activity_type VARCHAR(20) NOT NULL,
			amount BIGINT NOT NULL,
			fee BIGINT NOT NULL DEFAULT 0,
			balance_after BIGINT NOT NULL,
			reference_account_id BIGINT,
			reference_account_number VARCHAR(20),
			transaction_id VARCHAR(36),
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activity_account_id ON activity(account_id);
		CREATE INDEX IF NOT EXISTS idx_activity_transaction_id ON activity(transaction_id);`,
	}

	for i, migration := range migrations {
		if _, err := pool.Pool.Exec(ctx, migration); err != nil {
			t.Fatalf("failed to run migration %d: %v", i+1, err)
		}
	}
}

// startEventConsumer binds an exclusive queue to the exchange and forwards
// decoded events to the channel.
func startEventConsumer(t *testing.T, rabbitURL, exchange, routingKey string, eventChan chan map[string]interface{}) func() {
	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		t.Fatalf("failed to connect to rabbitmq: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		t.Fatalf("failed to open channel: %v", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		t.Fatalf("failed to declare exchange: %v", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		t.Fatalf("failed to declare queue: %v", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		t.Fatalf("failed to bind queue: %v", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		t.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for msg := range msgs {
			var event map[string]interface{}
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				t.Logf("failed to unmarshal event: %v", err)
				continue
			}
			eventChan <- event
		}
	}()

	return func() {
		ch.Close()
		conn.Close()
	}
}
