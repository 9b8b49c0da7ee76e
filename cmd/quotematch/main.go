package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"quotematch/internal"
	"quotematch/internal/catalog"
	"quotematch/internal/config"
	"quotematch/internal/connectors"
	gmailconnector "quotematch/internal/connectors/gmail"
	imapconnector "quotematch/internal/connectors/imap"
	"quotematch/internal/listener"
	"quotematch/internal/match"
	"quotematch/internal/pipeline"
	"quotematch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "catalog:initial-sync":
		svc := catalog.NewSyncService(db, cfg)
		count, err := svc.InitialSync(context.Background())
		must(err)
		fmt.Printf("initial sync complete: %d products\n", count)

	case "catalog:incremental-sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		mode := fs.String("mode", "", "hour_price|hour_stock|day")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*mode) == "" {
			must(fmt.Errorf("--mode is required"))
		}
		svc := catalog.NewSyncService(db, cfg)
		count, err := svc.IncrementalSync(context.Background(), *mode)
		must(err)
		fmt.Printf("incremental sync complete mode=%s products=%d\n", *mode, count)

	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)

	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessor(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d lines=%d\n", res.EmailID, res.Processed)
			return
		}
		emails, lines, err := processor.ProcessPending(*batch, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d lines=%d\n", emails, lines)

	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))

	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		emailID := fs.Int("emailId", 0, "internal email id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *emailID == 0 || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--emailId and --out are required"))
		}
		rows, err := db.ExportRows(*emailID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no export rows for emailId=%d", *emailID))
		}
		must(pipeline.ExportXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)

	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path or raw text")
		inType := fs.String("type", "", "xlsx|pdf|email_text|email_table")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *inType == "" || *output == "" {
			must(fmt.Errorf("--input --type --output are required"))
		}
		must(runOnce(db, cfg, *inType, *input, *output))

	default:
		usage()
		os.Exit(1)
	}
}

// runOnce matches one input without persisting lines: extract,
// match against the current snapshot, write the XLSX directly.
func runOnce(db *storage.DB, cfg config.Config, inType, input, output string) error {
	items, err := pipeline.ExtractFromInput(inType, input)
	if err != nil {
		return err
	}
	prepared := pipeline.PrepareLines(items)

	products, err := db.Products()
	if err != nil {
		return err
	}
	matcher := match.New(catalog.BuildIndex(products), match.Thresholds{
		OK:     cfg.MatchOKThreshold,
		Review: cfg.MatchReviewThreshold,
		Gap:    cfg.MatchGapThreshold,
	})

	rows := make([]internal.ExportRow, 0, len(prepared))
	for _, line := range prepared {
		verdict := matcher.Match(line.Query)
		row := internal.ExportRow{
			LineNo:           line.LineNo,
			Source:           string(line.Source),
			RawLine:          line.RawLine,
			ParsedNameOrCode: line.NameOrCode,
			ParsedQty:        line.Qty,
			ParsedUnit:       line.Unit,
			Status:           string(verdict.Status),
			Confidence:       verdict.Confidence,
			Reason:           string(verdict.Reason),
		}
		if verdict.Product != nil {
			row.ProductID = verdict.Product.ID
			row.ProductSyncUID = verdict.Product.SyncUID
			row.ProductHeader = verdict.Product.Header
			row.ProductArticul = verdict.Product.Articul
			row.UnitHeader = verdict.Product.UnitHeader
			row.CodeElcom = verdict.Product.FlatCodes.Elcom
			row.CodeManufacturer = verdict.Product.FlatCodes.Manufacturer
			row.CodeRaec = verdict.Product.FlatCodes.Raec
			row.CodePC = verdict.Product.FlatCodes.PC
			row.CodeEtm = verdict.Product.FlatCodes.Etm
		}
		if len(verdict.Candidates) > 1 {
			row.RunnerUpHeader = &verdict.Candidates[1].Header
			row.RunnerUpScore = &verdict.Candidates[1].Score
		}
		rows = append(rows, row)
	}

	if err := pipeline.ExportXLSX(rows, output); err != nil {
		return err
	}
	fmt.Printf("run done rows=%d output=%s\n", len(rows), output)
	return nil
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: quotematch <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:initial-sync")
	fmt.Println("  catalog:incremental-sync --mode=hour_price|hour_stock|day")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --emailId=1 --out=./out/result.xlsx")
	fmt.Println("  run --input=... --type=xlsx|pdf|email_text|email_table --output=...xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
