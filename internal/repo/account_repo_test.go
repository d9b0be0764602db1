package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
)

func newAccountDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid schema leakage across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetAccount_NotFound(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})
	if _, err := GetAccount(context.Background(), db, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAccount_SetsStartingState(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})

	start := time.Now().UTC().Add(-time.Minute)
	a, err := CreateAccount(context.Background(), db, "alice@example.com", "Alice", 10)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if a.ID != "alice@example.com" || a.Name != "Alice" || a.Credits != 10 {
		t.Fatalf("unexpected Account fields: %+v", a)
	}
	if a.XP != 0 || len(a.Badges) != 0 || a.Subscribed {
		t.Fatalf("expected fresh progression state, got %+v", a)
	}
	if a.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset/really old: %v", a.CreatedAt)
	}

	// round-trip
	got, err := GetAccount(context.Background(), db, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Credits != 10 || got.Name != "Alice" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateAccount_Error_NoTable(t *testing.T) {
	db := newAccountDB(t /* no migrations */)
	if _, err := CreateAccount(context.Background(), db, "u1", "n", 10); err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestDebitOneCredit_DecrementsUntilExhausted(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})
	if _, err := CreateAccount(context.Background(), db, "u1", "n", 2); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Two debits succeed, the third finds the balance already at zero.
	for i := 0; i < 2; i++ {
		if err := DebitOneCredit(context.Background(), db, "u1"); err != nil {
			t.Fatalf("debit %d: %v", i+1, err)
		}
	}
	if err := DebitOneCredit(context.Background(), db, "u1"); err != ErrNoCredits {
		t.Fatalf("expected ErrNoCredits on exhausted balance, got %v", err)
	}

	got, err := GetAccount(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Credits != 0 {
		t.Fatalf("expected 0 credits, got %d", got.Credits)
	}
}

func TestDebitOneCredit_ConcurrentCallersSingleCredit(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})
	db.Exec("PRAGMA busy_timeout=5000;")
	if _, err := CreateAccount(context.Background(), db, "u1", "n", 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// With one credit left, only one of the racing debits may win. The
	// conditional UPDATE guards the balance, not application-level locking.
	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- DebitOneCredit(context.Background(), db, "u1")
		}()
	}
	wg.Wait()
	close(errs)

	var won, exhausted int
	for err := range errs {
		switch err {
		case nil:
			won++
		case ErrNoCredits:
			exhausted++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if won != 1 || exhausted != callers-1 {
		t.Fatalf("expected exactly 1 winning debit, got %d wins and %d rejections", won, exhausted)
	}

	got, err := GetAccount(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Credits != 0 {
		t.Fatalf("expected 0 credits, got %d", got.Credits)
	}
}

func TestDebitOneCredit_SkipsSubscribedAccounts(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})
	if _, err := CreateAccount(context.Background(), db, "sub", "n", 5); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SetSubscribed(context.Background(), db, "sub"); err != nil {
		t.Fatalf("SetSubscribed: %v", err)
	}

	// The conditional UPDATE matches only unsubscribed rows.
	if err := DebitOneCredit(context.Background(), db, "sub"); err != ErrNoCredits {
		t.Fatalf("expected ErrNoCredits for subscribed account, got %v", err)
	}
	got, _ := GetAccount(context.Background(), db, "sub")
	if got.Credits != 5 {
		t.Fatalf("subscribed balance must not change, got %d", got.Credits)
	}
}

func TestAddCredits_SuccessAndNotFound(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})
	if _, err := CreateAccount(context.Background(), db, "u1", "n", 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := AddCredits(context.Background(), db, "u1", 50); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	got, _ := GetAccount(context.Background(), db, "u1")
	if got.Credits != 51 {
		t.Fatalf("expected 51 credits, got %d", got.Credits)
	}

	if err := AddCredits(context.Background(), db, "missing", 10); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetSubscribed_IdempotentAndNotFound(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})
	if _, err := CreateAccount(context.Background(), db, "u1", "n", 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := SetSubscribed(context.Background(), db, "u1"); err != nil {
		t.Fatalf("SetSubscribed: %v", err)
	}
	// Replayed webhook: flipping an already-subscribed account must succeed.
	if err := SetSubscribed(context.Background(), db, "u1"); err != nil {
		t.Fatalf("SetSubscribed replay: %v", err)
	}
	got, _ := GetAccount(context.Background(), db, "u1")
	if !got.Subscribed {
		t.Fatalf("expected subscribed=true, got %+v", got)
	}

	if err := SetSubscribed(context.Background(), db, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProgress_PersistsXPAndBadges(t *testing.T) {
	db := newAccountDB(t, &domain.Account{})
	if _, err := CreateAccount(context.Background(), db, "u1", "n", 1); err != nil {
		t.Fatalf("seed: %v", err)
	}

	badges := domain.BadgeSet{"Scribe"}
	if err := UpdateProgress(context.Background(), db, "u1", 60, badges); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ := GetAccount(context.Background(), db, "u1")
	if got.XP != 60 || !got.Badges.Has("Scribe") {
		t.Fatalf("unexpected progression: %+v", got)
	}

	if err := UpdateProgress(context.Background(), db, "missing", 10, nil); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
