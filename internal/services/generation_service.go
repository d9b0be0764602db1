// Package services – GenerationService
//
// This file implements the generation request orchestrator: it turns a
// validated request into a committed GenerationRecord while enforcing "pay
// once per accepted request, never pay for a fully rejected request".
//
// Lifecycle per request: Received → Entitled → Producing → Committed, or
// Received → Rejected (insufficient credits, nothing invoked, nothing
// persisted), or Received → Entitled → Producing → Failed (every producer
// failed). The failure policy is refund-on-total-failure: the request still
// commits a zero-output record for the audit trail, awards no XP, and the
// debited credit is returned. Partial failure is not failure: whatever
// producers succeeded are committed and the credit is spent.
//
// Producers are independent: text and images run concurrently, each under its
// own timeout, and one producer's failure never blocks another. The only
// sequential edge is the animate-image flow, where the video producer
// consumes a previously produced image URL and therefore waits for the image
// attempt to finish (or explicitly fails when no image materialized).
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
	"github.com/gamelore-ai/gamelore-backend/internal/producer"
	"github.com/gamelore-ai/gamelore-backend/internal/repo"
)

var (
	// generationsTotal counts orchestrated requests by terminal state.
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Total generation requests by terminal state.",
		},
		[]string{"state"}, // committed | rejected | failed | error
	)

	// producerAttempts counts individual producer invocations by outcome.
	producerAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "producer_attempts_total",
			Help: "Content producer invocations by producer and outcome.",
		},
		[]string{"producer", "outcome"}, // ok | failed | timeout
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, producerAttempts)
}

// GenerationService coordinates entitlement, production, and commit.
type GenerationService struct {
	// DB is the GORM handle the commit transaction runs on.
	DB *gorm.DB
	// Ledger owns all credit/XP/badge mutations.
	Ledger *LedgerService

	// Text, Image, and Video are the configured producers. A nil producer
	// means that capability is disabled.
	Text  producer.Producer
	Image producer.Producer
	Video producer.Producer

	// XPPerGeneration is awarded once per request with at least one
	// successful production.
	XPPerGeneration int
	// CallTimeout bounds each producer invocation; producers additionally
	// carry their own HTTP client timeouts. Zero selects 40s.
	CallTimeout time.Duration
}

// GenerateRequest is a validated request for one unit of paid work.
type GenerateRequest struct {
	AccountID string
	Kind      domain.RequestKind
	AssetType string
	Genre     string
	Details   string
	// AnimateImage asks the video producer to animate the first produced
	// image instead of running independently. Only meaningful when the kind
	// requests both images and video.
	AnimateImage bool
}

// GenerateResult reports the committed record plus per-producer failures and
// whether the debited credit was returned.
type GenerateResult struct {
	Record   *domain.GenerationRecord
	Failures []*producer.Failure
	Refunded bool
}

// Generate runs the full request lifecycle. It returns ErrInsufficientCredits
// for rejected requests (no producer invoked, no record created) and
// ErrInvalidRequest for malformed ones (no charge either way). Persistence
// failures abort the request with the debit rolled back.
func (s *GenerationService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	tr := otel.Tracer("services/GenerationService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("account.id", req.AccountID),
			attribute.String("request.kind", string(req.Kind)),
		),
	)
	defer span.End()

	if !req.Kind.Valid() ||
		strings.TrimSpace(req.Genre) == "" ||
		strings.TrimSpace(req.Details) == "" {
		return nil, ErrInvalidRequest
	}

	wantText := (req.Kind == domain.KindText || req.Kind == domain.KindCombined) && s.Text != nil
	wantImage := (req.Kind == domain.KindImage || req.Kind == domain.KindCombined) && s.Image != nil
	wantVideo := (req.Kind == domain.KindVideo || req.Kind == domain.KindCombined) && s.Video != nil
	if !wantText && !wantImage && !wantVideo {
		// The kind names only disabled capabilities; reject before charging.
		return nil, ErrInvalidRequest
	}

	// Entitlement: debit before any producer runs.
	debited, err := s.Ledger.DebitOneCredit(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			generationsTotal.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	preq := producer.Request{
		AssetType: producer.NormalizeAssetType(req.AssetType),
		Genre:     strings.TrimSpace(req.Genre),
		Details:   strings.TrimSpace(req.Details),
	}

	textOut, imgOut, vidOut, failures := s.produce(ctx, preq, wantText, wantImage, wantVideo, req.AnimateImage)
	anySuccess := textOut != nil || imgOut != nil || vidOut != nil

	rec := &domain.GenerationRecord{
		OwnerID:       req.AccountID,
		Kind:          req.Kind,
		PromptSummary: producer.Summary(preq),
		Images:        domain.ImageList{},
	}
	if textOut != nil {
		rec.Content = textOut.Content
	}
	if imgOut != nil {
		rec.Images = domain.ImageList(imgOut.URLs)
	}
	if vidOut != nil {
		rec.VideoURL = vidOut.URL
	}

	// Commit: record append, XP award, and (on total failure) the refund are
	// one transaction, so the ledger and the history can never disagree.
	refunded := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refunded = false
		if anySuccess && s.XPPerGeneration > 0 {
			if _, err := s.Ledger.awardXPTx(ctx, tx, req.AccountID, s.XPPerGeneration); err != nil {
				return err
			}
		}
		if !anySuccess && debited {
			if err := repo.AddCredits(ctx, tx, req.AccountID, 1); err != nil {
				return err
			}
			refunded = true
		}
		_, err := repo.AppendRecord(ctx, tx, rec)
		return err
	})
	if err != nil {
		// The transaction rolled back XP and record. The debit predates the
		// transaction, so compensate it explicitly: no silent credit loss.
		refunded = false
		if debited {
			if rerr := s.Ledger.Refund(ctx, req.AccountID); rerr != nil {
				log.Error().Err(rerr).
					Str("account_id", req.AccountID).
					Msg("credit refund after failed commit did not apply")
				err = errors.Join(err, rerr)
			}
		}
		generationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit generation: %w", err)
	}

	if anySuccess {
		generationsTotal.WithLabelValues("committed").Inc()
	} else {
		generationsTotal.WithLabelValues("failed").Inc()
	}
	return &GenerateResult{Record: rec, Failures: failures, Refunded: refunded}, nil
}

// produce runs the requested producers. Independent producers run
// concurrently; the animate-image video path waits for the image attempt.
func (s *GenerationService) produce(ctx context.Context, preq producer.Request, wantText, wantImage, wantVideo, animate bool) (*producer.TextOutput, *producer.ImageSetOutput, *producer.VideoOutput, []*producer.Failure) {
	var (
		textOut *producer.TextOutput
		imgOut  *producer.ImageSetOutput
		vidOut  *producer.VideoOutput

		mu       sync.Mutex
		failures []*producer.Failure
	)
	addFailure := func(f *producer.Failure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	imageDone := make(chan struct{})

	if wantText {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, f := s.invoke(ctx, s.Text, preq)
			if f != nil {
				addFailure(f)
				return
			}
			if t, ok := out.(*producer.TextOutput); ok {
				textOut = t
			}
		}()
	}

	if wantImage {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(imageDone)
			out, f := s.invoke(ctx, s.Image, preq)
			if f != nil {
				addFailure(f)
				return
			}
			if i, ok := out.(*producer.ImageSetOutput); ok {
				imgOut = i
			}
		}()
	} else {
		close(imageDone)
	}

	if wantVideo {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vreq := preq
			if animate && wantImage {
				// Sequential dependency: the animated clip consumes a
				// produced image, so wait for that attempt to settle.
				select {
				case <-imageDone:
				case <-ctx.Done():
					addFailure(&producer.Failure{Producer: "video", Reason: ctx.Err().Error(), Timeout: true})
					return
				}
				if imgOut == nil || len(imgOut.URLs) == 0 {
					addFailure(&producer.Failure{Producer: "video", Reason: "source image unavailable"})
					return
				}
				vreq.SourceImageURL = imgOut.URLs[0]
			}
			out, f := s.invoke(ctx, s.Video, vreq)
			if f != nil {
				addFailure(f)
				return
			}
			if v, ok := out.(*producer.VideoOutput); ok {
				vidOut = v
			}
		}()
	}

	wg.Wait()
	return textOut, imgOut, vidOut, failures
}

// invoke runs a single producer attempt under the orchestrator's per-call
// timeout and converts any error into a *Failure.
func (s *GenerationService) invoke(ctx context.Context, p producer.Producer, preq producer.Request) (producer.Output, *producer.Failure) {
	timeout := s.CallTimeout
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.Produce(cctx, preq)
	if err != nil {
		f, ok := producer.AsFailure(err)
		if !ok {
			f = &producer.Failure{Producer: p.Name(), Reason: err.Error()}
		}
		outcome := "failed"
		if f.Timeout {
			outcome = "timeout"
		}
		producerAttempts.WithLabelValues(p.Name(), outcome).Inc()
		return nil, f
	}
	producerAttempts.WithLabelValues(p.Name(), "ok").Inc()
	return out, nil
}
