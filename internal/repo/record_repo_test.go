package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
)

func newRecordDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
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

func TestAppendRecord_AssignsMonotonicIDs(t *testing.T) {
	db := newRecordDB(t, &domain.GenerationRecord{})

	var prev uint
	for i := 0; i < 3; i++ {
		rec, err := AppendRecord(context.Background(), db, &domain.GenerationRecord{
			OwnerID:       "u1",
			Kind:          domain.KindText,
			PromptSummary: "Weapon / Fantasy / blade",
			Content:       fmt.Sprintf("lore %d", i),
		})
		if err != nil {
			t.Fatalf("AppendRecord %d: %v", i, err)
		}
		if rec.ID <= prev {
			t.Fatalf("ids must be strictly increasing: got %d after %d", rec.ID, prev)
		}
		if rec.CreatedAt.IsZero() {
			t.Fatalf("CreatedAt unset: %+v", rec)
		}
		if rec.Images == nil {
			t.Fatalf("Images must default to the empty list")
		}
		prev = rec.ID
	}
}

func TestAppendRecord_IgnoresCallerSuppliedID(t *testing.T) {
	db := newRecordDB(t, &domain.GenerationRecord{})

	rec, err := AppendRecord(context.Background(), db, &domain.GenerationRecord{
		ID:      999,
		OwnerID: "u1",
		Kind:    domain.KindImage,
		Images:  domain.ImageList{"https://img/1"},
	})
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if rec.ID == 999 {
		t.Fatalf("caller-supplied id must be discarded, got %d", rec.ID)
	}
}

func TestGetRecord_FoundAndNotFound(t *testing.T) {
	db := newRecordDB(t, &domain.GenerationRecord{})

	if _, err := GetRecord(context.Background(), db, 42); err == nil {
		t.Fatalf("expected error for missing record")
	}

	rec, err := AppendRecord(context.Background(), db, &domain.GenerationRecord{
		OwnerID: "owner", Kind: domain.KindVideo, VideoURL: "https://v/clip.mp4",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := GetRecord(context.Background(), db, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.OwnerID != "owner" || got.VideoURL != "https://v/clip.mp4" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestCountRecords_And_ListRecordsPage(t *testing.T) {
	db := newRecordDB(t, &domain.GenerationRecord{})

	var ids []uint
	for i := 0; i < 5; i++ {
		rec, err := AppendRecord(context.Background(), db, &domain.GenerationRecord{OwnerID: "u1", Kind: domain.KindText})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		ids = append(ids, rec.ID)
	}

	total, err := CountRecords(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5, got %d", total)
	}

	// Offset 1, limit 2 over descending ids => 2nd and 3rd newest.
	page, err := ListRecordsPage(context.Background(), db, "u1", 1, 2)
	if err != nil {
		t.Fatalf("ListRecordsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[3] || page[1].ID != ids[2] {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestIncrementLike_CountsExactly(t *testing.T) {
	db := newRecordDB(t, &domain.GenerationRecord{})

	rec, err := AppendRecord(context.Background(), db, &domain.GenerationRecord{OwnerID: "u1", Kind: domain.KindText})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := IncrementLike(context.Background(), db, rec.ID)
		if err != nil {
			t.Fatalf("IncrementLike %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}

	if _, err := IncrementLike(context.Background(), db, 99999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestIncrementLike_ConcurrentCallersLoseNoUpdates(t *testing.T) {
	db := newRecordDB(t, &domain.GenerationRecord{})
	db.Exec("PRAGMA busy_timeout=5000;")

	rec, err := AppendRecord(context.Background(), db, &domain.GenerationRecord{OwnerID: "u1", Kind: domain.KindText})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// The counter bumps inside a single UPDATE, so racing callers must not
	// clobber each other the way a read-modify-write would.
	const callers = 20
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := IncrementLike(context.Background(), db, rec.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("IncrementLike: %v", err)
		}
	}

	got, err := GetRecord(context.Background(), db, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.LikeCount != callers {
		t.Fatalf("expected %d likes, got %d", callers, got.LikeCount)
	}
}
