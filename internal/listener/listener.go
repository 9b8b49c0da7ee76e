// Package listener runs the polling loop: fetch new mail, process
// pending emails, export finished ones.
package listener

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"quotematch/internal/config"
	"quotematch/internal/connectors"
	gmailconnector "quotematch/internal/connectors/gmail"
	imapconnector "quotematch/internal/connectors/imap"
	"quotematch/internal/pipeline"
	"quotematch/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.cycle(); err != nil {
			log.Printf("listener cycle error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.ListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) cycle() error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.ListenerProvider))
	conn, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetcher := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn)
	fetched, err := fetcher.FetchAndStore(s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessor(s.db, s.cfg)
	processedEmails, _, err := processor.ProcessPending(s.cfg.ListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.ListenerAutoExport {
		if err := s.exportProcessed(provider); err != nil {
			return err
		}
	}

	log.Printf("listener cycle done provider=%s fetched=%d stored=%d processed=%d",
		provider, fetched.Fetched, fetched.Stored, processedEmails)
	return nil
}

func (s *Service) exportProcessed(provider string) error {
	emails, err := s.db.EmailsByStatus("processed", 200)
	if err != nil {
		return err
	}

	for _, email := range emails {
		if email.Provider != provider {
			continue
		}
		rows, err := s.db.ExportRows(email.ID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		filename := fmt.Sprintf("%d_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportXLSX(rows, outputPath); err != nil {
			return err
		}
		_ = s.db.SetEmailStatus(email.ID, "exported")
	}
	return nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
