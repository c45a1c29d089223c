package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
	paymentmigrations "github.com/goliatone/go-payments/migrations"
	sqlstore "github.com/goliatone/go-payments/store/sql"
	"github.com/goliatone/go-payments/webhooks"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-payments-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:payments-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = paymentmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != paymentmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, paymentmigrations.WithValidationTargets(paymentmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"payment_connections",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "payment_connections" {
		t.Fatalf("expected payment_connections table, got %q", tableName)
	}
}

func TestConnectionStore_SaveReplacesModeRow(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.ConnectionStore()
	if store == nil {
		t.Fatal("expected connection store from factory")
	}

	record := core.ConnectionRecord{
		Mode:             core.ModeTest,
		GatewayID:        "square",
		AccessToken:      "access-1",
		RefreshToken:     "refresh-1",
		MerchantID:       "merchant-1",
		LocationID:       "loc-1",
		LocationCurrency: "usd",
		TokenIssuedAt:    time.Now().UTC(),
		TokenExpiresAt:   time.Now().UTC().Add(30 * 24 * time.Hour),
		LastProbeOK:      true,
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	stored, err := store.Get(ctx, core.ModeTest)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.AccessToken != "access-1" {
		t.Fatalf("unexpected record: %+v", stored)
	}
	if stored.LocationCurrency != "USD" {
		t.Fatalf("currency must normalize to upper case, got %q", stored.LocationCurrency)
	}
	created := stored.CreatedAt

	record.AccessToken = "access-2"
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("second save: %v", err)
	}
	updated, err := store.Get(ctx, core.ModeTest)
	if err != nil {
		t.Fatalf("get after replace: %v", err)
	}
	if updated.AccessToken != "access-2" {
		t.Fatalf("save must replace the row, got %+v", updated)
	}
	if !updated.CreatedAt.Equal(created) {
		t.Fatalf("replace must keep created_at, got %s vs %s", updated.CreatedAt, created)
	}

	// other mode stays isolated
	if _, err := store.Get(ctx, core.ModeLive); !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected live mode untouched, got %v", err)
	}
}

func TestConnectionStore_ProbeResultAndClear(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.ConnectionStore()
	if err := store.Save(ctx, core.ConnectionRecord{
		Mode:         core.ModeLive,
		GatewayID:    "square",
		AccessToken:  "access",
		RefreshToken: "refresh",
		LastProbeOK:  true,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.SetProbeResult(ctx, core.ModeLive, false, "authorization revoked"); err != nil {
		t.Fatalf("set probe result: %v", err)
	}
	stored, err := store.Get(ctx, core.ModeLive)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.LastProbeOK || stored.LastProbeError != "authorization revoked" {
		t.Fatalf("unexpected probe state: %+v", stored)
	}

	if err := store.Clear(ctx, core.ModeLive); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Get(ctx, core.ModeLive); !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected not-found after clear, got %v", err)
	}
	// clearing an already-empty mode is a no-op
	if err := store.Clear(ctx, core.ModeLive); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if err := store.SetProbeResult(ctx, core.ModeLive, true, ""); !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected probe on missing record to fail, got %v", err)
	}
}

func TestTransactionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.TransactionStore()
	created, err := store.Create(ctx, core.Transaction{
		DonationID:           "don-1",
		Mode:                 core.ModeTest,
		GatewayTransactionID: "pay-1",
		AmountMinor:          2500,
		Currency:             "usd",
		Kind:                 core.TransactionKindSingle,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Status != core.TransactionStatusPending {
		t.Fatalf("expected pending default, got %s", created.Status)
	}

	byGateway, err := store.GetByGatewayID(ctx, core.ModeTest, "pay-1")
	if err != nil {
		t.Fatalf("get by gateway id: %v", err)
	}
	if byGateway.ID != created.ID {
		t.Fatalf("expected same transaction, got %q vs %q", byGateway.ID, created.ID)
	}
	if _, err := store.GetByGatewayID(ctx, core.ModeLive, "pay-1"); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Fatalf("modes must be isolated, got %v", err)
	}

	if err := store.UpdateStatus(ctx, created.ID, core.TransactionStatusCompleted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	stored, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != core.TransactionStatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}

	err = store.UpdateStatus(ctx, created.ID, core.TransactionStatusFailed)
	if !errors.Is(err, core.ErrInvalidTransactionStatusTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestSubscriptionStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	store := factory.SubscriptionStore()
	created, err := store.Create(ctx, core.Subscription{
		DonationID:            "don-2",
		Mode:                  core.ModeTest,
		GatewaySubscriptionID: "sub-1",
		GatewayCustomerID:     "cust-1",
		Cadence:               core.CadenceMonthly,
		PlanName:              "monthly-giving",
		Status:                core.SubscriptionStatusActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byGateway, err := store.GetByGatewayID(ctx, core.ModeTest, "sub-1")
	if err != nil {
		t.Fatalf("get by gateway id: %v", err)
	}
	if byGateway.ID != created.ID || byGateway.Cadence != core.CadenceMonthly {
		t.Fatalf("unexpected subscription: %+v", byGateway)
	}

	if err := store.UpdateStatus(ctx, created.ID, core.SubscriptionStatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != core.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", stored.Status)
	}
}

func TestWebhookDeliveryStore_ClaimSettleRetry(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	ledger := factory.WebhookDeliveryStore()
	current := time.Now().UTC()
	ledger.Now = func() time.Time { return current }

	record, claimed, err := ledger.Claim(ctx, "square", core.ModeTest, "evt-1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim must succeed")
	}

	_, claimed, err = ledger.Claim(ctx, "square", core.ModeTest, "evt-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("duplicate claim: %v", err)
	}
	if claimed {
		t.Fatal("duplicate within the lease must dedupe")
	}

	if err := ledger.Complete(ctx, record.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stored, err := ledger.Get(ctx, "square", core.ModeTest, "evt-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != webhooks.DeliveryStatusProcessed {
		t.Fatalf("expected processed, got %s", stored.Status)
	}
	_, claimed, err = ledger.Claim(ctx, "square", core.ModeTest, "evt-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim after complete: %v", err)
	}
	if claimed {
		t.Fatal("processed delivery must never be reclaimed")
	}

	// failed delivery waits for its retry window, then reclaims
	failing, _, err := ledger.Claim(ctx, "square", core.ModeLive, "evt-2", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim evt-2: %v", err)
	}
	retryAt := current.Add(10 * time.Second)
	if err := ledger.Fail(ctx, failing.ClaimID, fmt.Errorf("store unavailable"), retryAt, 8); err != nil {
		t.Fatalf("fail: %v", err)
	}
	_, claimed, err = ledger.Claim(ctx, "square", core.ModeLive, "evt-2", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim before retry window: %v", err)
	}
	if claimed {
		t.Fatal("delivery must wait for its retry window")
	}
	current = current.Add(11 * time.Second)
	reclaimed, claimed, err := ledger.Claim(ctx, "square", core.ModeLive, "evt-2", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim after retry window: %v", err)
	}
	if !claimed {
		t.Fatal("delivery must reclaim after its retry window")
	}
	if reclaimed.Attempts != 2 {
		t.Fatalf("expected attempt 2, got %d", reclaimed.Attempts)
	}
	if reclaimed.ClaimID == failing.ClaimID {
		t.Fatal("reclaim must mint a new claim id")
	}

	// exhausting attempts dead-letters the delivery
	if err := ledger.Fail(ctx, reclaimed.ClaimID, fmt.Errorf("still down"), current, 2); err != nil {
		t.Fatalf("fail to dead: %v", err)
	}
	dead, err := ledger.Get(ctx, "square", core.ModeLive, "evt-2")
	if err != nil {
		t.Fatalf("get dead: %v", err)
	}
	if dead.Status != webhooks.DeliveryStatusDead {
		t.Fatalf("expected dead, got %s", dead.Status)
	}
	current = current.Add(time.Hour)
	_, claimed, err = ledger.Claim(ctx, "square", core.ModeLive, "evt-2", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim dead: %v", err)
	}
	if claimed {
		t.Fatal("dead deliveries stay dead")
	}
}
