package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
	"github.com/gamelore-ai/gamelore-backend/internal/producer"
	"github.com/gamelore-ai/gamelore-backend/internal/repo"
)

// ----- Fake producers -----

// stubProducer returns a canned output or error and records the request it
// saw. Each instance is driven by exactly one goroutine, so plain fields are
// safe to read after Generate returns.
type stubProducer struct {
	name   string
	out    producer.Output
	err    error
	called bool
	gotReq producer.Request
}

func (p *stubProducer) Name() string { return p.name }

func (p *stubProducer) Produce(ctx context.Context, req producer.Request) (producer.Output, error) {
	p.called = true
	p.gotReq = req
	if p.err != nil {
		return nil, p.err
	}
	return p.out, nil
}

func newGenService(db *gorm.DB, startCredits int) *GenerationService {
	return &GenerationService{
		DB:              db,
		Ledger:          NewLedgerService(db, startCredits),
		XPPerGeneration: 15,
		CallTimeout:     time.Second,
	}
}

func seedAccount(t *testing.T, svc *GenerationService, id string) *domain.Account {
	t.Helper()
	a, err := svc.Ledger.GetOrCreate(context.Background(), id, "n")
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func credits(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()
	a, err := repo.GetAccount(context.Background(), db, id)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return a.Credits
}

// ----- Tests -----

func TestGenerate_InvalidRequest_NoCharge(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10)
	svc.Text = &stubProducer{name: "text", out: &producer.TextOutput{Content: "x"}}
	seedAccount(t, svc, "u1")

	cases := []GenerateRequest{
		{AccountID: "u1", Kind: "poem", Genre: "g", Details: "d"},
		{AccountID: "u1", Kind: domain.KindText, Genre: "   ", Details: "d"},
		{AccountID: "u1", Kind: domain.KindText, Genre: "g", Details: ""},
	}
	for i, req := range cases {
		if _, err := svc.Generate(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
	if got := credits(t, db, "u1"); got != 10 {
		t.Fatalf("rejected requests must not charge, balance %d", got)
	}
}

func TestGenerate_KindNamesOnlyDisabledProducers_NoCharge(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10) // no producers configured
	seedAccount(t, svc, "u1")

	_, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "u1", Kind: domain.KindVideo, Genre: "g", Details: "d",
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if got := credits(t, db, "u1"); got != 10 {
		t.Fatalf("expected no charge, balance %d", got)
	}
}

func TestGenerate_InsufficientCredits_NothingInvoked(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 0)
	text := &stubProducer{name: "text", out: &producer.TextOutput{Content: "x"}}
	svc.Text = text
	seedAccount(t, svc, "broke")

	_, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "broke", Kind: domain.KindText, Genre: "g", Details: "d",
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if text.called {
		t.Fatalf("producer must not run for a rejected request")
	}
	var n int64
	if err := db.Model(&domain.GenerationRecord{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("expected no records, got n=%d err=%v", n, err)
	}
}

func TestGenerate_TextSuccess_ChargesAwardsAndCommits(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10)
	svc.Text = &stubProducer{name: "text", out: &producer.TextOutput{Content: "The Whispering Blade"}}
	seedAccount(t, svc, "u1")

	res, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "u1", Kind: domain.KindText, AssetType: "weapon", Genre: "dark fantasy", Details: "a cursed blade",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Record == nil || res.Record.ID == 0 {
		t.Fatalf("expected committed record, got %+v", res)
	}
	if res.Record.Content != "The Whispering Blade" || res.Record.Kind != domain.KindText {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
	if res.Record.PromptSummary != "Weapon / Dark Fantasy / a cursed blade" {
		t.Fatalf("unexpected summary: %q", res.Record.PromptSummary)
	}
	if len(res.Failures) != 0 || res.Refunded {
		t.Fatalf("unexpected failure state: %+v", res)
	}

	a, _ := repo.GetAccount(context.Background(), db, "u1")
	if a.Credits != 9 || a.XP != 15 {
		t.Fatalf("expected 9 credits and 15 XP, got %+v", a)
	}
}

func TestGenerate_CombinedPartialFailure_CommitsAndKeepsCharge(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10)
	svc.Text = &stubProducer{name: "text", err: &producer.Failure{Producer: "text", Reason: "upstream 500"}}
	svc.Image = &stubProducer{name: "image", out: &producer.ImageSetOutput{URLs: []string{"https://img/1", "https://img/2"}}}
	seedAccount(t, svc, "u1")

	res, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "u1", Kind: domain.KindCombined, Genre: "g", Details: "d",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Record.Content != "" || len(res.Record.Images) != 2 {
		t.Fatalf("expected images only, got %+v", res.Record)
	}
	if len(res.Failures) != 1 || res.Failures[0].Producer != "text" {
		t.Fatalf("expected one text failure, got %+v", res.Failures)
	}
	if res.Refunded {
		t.Fatalf("partial failure must keep the charge")
	}

	a, _ := repo.GetAccount(context.Background(), db, "u1")
	if a.Credits != 9 || a.XP != 15 {
		t.Fatalf("expected charge kept and XP awarded, got %+v", a)
	}
}

func TestGenerate_TotalFailure_RefundsAndCommitsAuditRecord(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10)
	svc.Text = &stubProducer{name: "text", err: &producer.Failure{Producer: "text", Reason: "down"}}
	svc.Image = &stubProducer{name: "image", err: &producer.Failure{Producer: "image", Reason: "down"}}
	seedAccount(t, svc, "u1")

	res, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "u1", Kind: domain.KindCombined, Genre: "g", Details: "d",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Refunded {
		t.Fatalf("total failure must refund the credit")
	}
	if res.Record == nil || res.Record.ID == 0 {
		t.Fatalf("total failure still commits an audit record")
	}
	if res.Record.Content != "" || len(res.Record.Images) != 0 || res.Record.VideoURL != "" {
		t.Fatalf("audit record must carry no output: %+v", res.Record)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected two failures, got %+v", res.Failures)
	}

	a, _ := repo.GetAccount(context.Background(), db, "u1")
	if a.Credits != 10 {
		t.Fatalf("expected balance restored, got %d", a.Credits)
	}
	if a.XP != 0 {
		t.Fatalf("total failure must not award XP, got %d", a.XP)
	}
}

func TestGenerate_SubscribedAccount_NeverDebited(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10)
	svc.Text = &stubProducer{name: "text", out: &producer.TextOutput{Content: "lore"}}
	seedAccount(t, svc, "sub")
	if err := repo.SetSubscribed(context.Background(), db, "sub"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	res, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "sub", Kind: domain.KindText, Genre: "g", Details: "d",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Refunded {
		t.Fatalf("nothing was debited, nothing to refund")
	}
	if got := credits(t, db, "sub"); got != 10 {
		t.Fatalf("subscribed balance changed: %d", got)
	}
}

func TestGenerate_AnimateImage_FeedsImageURLToVideo(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10)
	svc.Image = &stubProducer{name: "image", out: &producer.ImageSetOutput{URLs: []string{"https://img/first", "https://img/second"}}}
	video := &stubProducer{name: "video", out: &producer.VideoOutput{URL: "https://v/clip.mp4"}}
	svc.Video = video
	seedAccount(t, svc, "u1")

	res, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "u1", Kind: domain.KindCombined, Genre: "g", Details: "d", AnimateImage: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !video.called {
		t.Fatalf("video producer never ran")
	}
	if video.gotReq.SourceImageURL != "https://img/first" {
		t.Fatalf("expected first image as animation source, got %q", video.gotReq.SourceImageURL)
	}
	if res.Record.VideoURL != "https://v/clip.mp4" || len(res.Record.Images) != 2 {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
}

func TestGenerate_CreditExhaustionAndBadgeProgression(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 5)
	svc.Text = &stubProducer{name: "text", out: &producer.TextOutput{Content: "lore"}}
	seedAccount(t, svc, "u1")

	req := GenerateRequest{AccountID: "u1", Kind: domain.KindText, Genre: "g", Details: "d"}
	for i := 1; i <= 5; i++ {
		if _, err := svc.Generate(context.Background(), req); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		a, _ := repo.GetAccount(context.Background(), db, "u1")
		if a.Credits != 5-i || a.XP != 15*i {
			t.Fatalf("after request %d: %+v", i, a)
		}
		// The Scribe badge unlocks at 50 XP, i.e. on the fourth success.
		if hasScribe := a.Badges.Has("Scribe"); hasScribe != (i >= 4) {
			t.Fatalf("after request %d: badges %v", i, a.Badges)
		}
	}

	// The sixth request finds the balance exhausted.
	if _, err := svc.Generate(context.Background(), req); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	var n int64
	if err := db.Model(&domain.GenerationRecord{}).Where("owner_id = ?", "u1").Count(&n).Error; err != nil || n != 5 {
		t.Fatalf("expected 5 records, got n=%d err=%v", n, err)
	}
}

func TestGenerate_AnimateImage_NoSourceImage_FailsVideoOnly(t *testing.T) {
	db := newServiceDB(t)
	svc := newGenService(db, 10)
	svc.Image = &stubProducer{name: "image", err: &producer.Failure{Producer: "image", Reason: "down"}}
	video := &stubProducer{name: "video", out: &producer.VideoOutput{URL: "https://v/clip.mp4"}}
	svc.Video = video
	svc.Text = &stubProducer{name: "text", out: &producer.TextOutput{Content: "lore"}}
	seedAccount(t, svc, "u1")

	res, err := svc.Generate(context.Background(), GenerateRequest{
		AccountID: "u1", Kind: domain.KindCombined, Genre: "g", Details: "d", AnimateImage: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if video.called {
		t.Fatalf("video must not run without a source image")
	}
	var videoFail *producer.Failure
	for _, f := range res.Failures {
		if f.Producer == "video" {
			videoFail = f
		}
	}
	if videoFail == nil || videoFail.Reason != "source image unavailable" {
		t.Fatalf("expected explicit video failure, got %+v", res.Failures)
	}
	// Text still succeeded, so the request commits with the charge kept.
	if res.Refunded || res.Record.Content != "lore" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
