package pipeline

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"quotematch/internal"
	"quotematch/internal/catalog"
	"quotematch/internal/config"
	"quotematch/internal/match"
	"quotematch/internal/storage"
)

// Processor drives the per-email flow: extract, detect, match,
// persist. A fresh index snapshot and matcher are built for every
// email so catalog updates between emails are picked up without any
// in-place mutation.
type Processor struct {
	db  *storage.DB
	cfg config.Config
}

func NewProcessor(db *storage.DB, cfg config.Config) *Processor {
	return &Processor{db: db, cfg: cfg}
}

type ProcessResult struct {
	EmailID   int
	Processed int
}

func (s *Processor) ProcessByProviderMessageID(provider, messageID string) (ProcessResult, error) {
	email, err := s.db.RequireEmail(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(email)
}

func (s *Processor) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.EmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}

	emails, lines := 0, 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(email)
		if err != nil {
			return emails, lines, err
		}
		emails++
		lines += res.Processed
	}
	return emails, lines, nil
}

func (s *Processor) ProcessEmail(email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	items, subject, text, attachmentNames, err := ExtractEmail(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectQuoteRequest(firstNonEmpty(subject, email.Subject), text, "", attachmentNames)
	if err := s.db.ResetEmailLines(email.ID); err != nil {
		return ProcessResult{}, err
	}

	if !detect.IsQuote {
		_ = s.db.SetEmailStatus(email.ID, "skipped")
		s.recordRun(email.ID, start, 0, 0, 0, 0)
		return ProcessResult{EmailID: email.ID, Processed: 0}, nil
	}

	prepared := PrepareLines(items)

	products, err := s.db.Products()
	if err != nil {
		return ProcessResult{}, err
	}
	matcher := match.New(catalog.BuildIndex(products), s.thresholds())

	okCount, reviewCount, notFoundCount := 0, 0, 0
	for _, line := range prepared {
		verdict := matcher.Match(line.Query)

		lineID, err := s.db.InsertLineItem(email.ID, line.LineItem)
		if err != nil {
			return ProcessResult{}, err
		}
		if err := s.db.InsertLineMatch(lineID, verdict); err != nil {
			return ProcessResult{}, err
		}

		switch verdict.Status {
		case internal.StatusOK:
			okCount++
		case internal.StatusReview:
			reviewCount++
		case internal.StatusNotFound:
			notFoundCount++
		}
	}

	if err := s.db.SetEmailStatus(email.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	s.recordRun(email.ID, start, len(prepared), okCount, reviewCount, notFoundCount)

	return ProcessResult{EmailID: email.ID, Processed: len(prepared)}, nil
}

func (s *Processor) thresholds() match.Thresholds {
	return match.Thresholds{
		OK:     s.cfg.MatchOKThreshold,
		Review: s.cfg.MatchReviewThreshold,
		Gap:    s.cfg.MatchGapThreshold,
	}
}

// Run telemetry must not fail the email; a write error is logged and
// the verdicts stand.
func (s *Processor) recordRun(emailID int, start time.Time, extracted, ok, review, notFound int) {
	err := s.db.InsertRun(uuid.NewString(), emailID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"extracted": extracted, "ok": ok, "review": review, "notFound": notFound})
	if err != nil {
		log.Printf("record run for email %d: %v", emailID, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
