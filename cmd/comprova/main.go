package main

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"comprova/internal/extraction"
	"comprova/internal/ledger"
	"comprova/internal/reconcile"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("comprova")
	var (
		ledgerKind   = fs.StringLong("ledger", "workbook", "Ledger backend: 'workbook' or 'sheets'")
		workbookPath = fs.StringLong("workbook", "ledger.xlsx", "Workbook ledger file path")
		sheetsID     = fs.StringLong("sheets-id", "", "Google Sheets spreadsheet ID")
		sheetsCreds  = fs.StringLong("sheets-credentials", "credentials.json", "Google service account credentials file")
		geminiKeys   = fs.StringLong("gemini-keys", "", "Comma-separated Gemini API keys")
		geminiModel  = fs.StringLong("gemini-model", "gemini-1.5-flash", "Gemini model name")
		hfKey        = fs.StringLong("hf-key", "", "HuggingFace API key for the fallback OCR provider")
		hfModelURL   = fs.StringLong("hf-model-url", "", "HuggingFace inference model URL")
		dbPath       = fs.StringLong("db", "comprova.db", "Processed-message database file path")
		archivePath  = fs.StringLong("archive", "./reports/images", "Image archive directory")
		auditPath    = fs.StringLong("audit", "./reports/audit.jsonl", "Audit trail file path")
		inboxPath    = fs.StringLong("inbox", "./inbox", "Directory of receipt images to reconcile")
		defaultMonth = fs.StringLong("default-month", "Fevereiro", "Fallback section month token")
		keyword      = fs.StringLong("keyword", "almoço nini", "Phrase computed as a side signal over OCR text")
		review       = fs.BoolLong("review", "Run the manual review pass over failed images")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("COMPROVA"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger backend
	var (
		led ledger.Ledger
		err error
	)
	switch *ledgerKind {
	case "workbook":
		slog.Info("Opening workbook ledger...", "path", *workbookPath)
		led, err = ledger.OpenWorkbook(*workbookPath)
	case "sheets":
		slog.Info("Connecting to Google Sheets ledger...", "spreadsheet_id", *sheetsID)
		led, err = ledger.NewSheetsLedger(ctx, *sheetsID, *sheetsCreds)
	default:
		slog.Error("Invalid ledger backend", "ledger", *ledgerKind, "valid", "workbook or sheets")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer led.Close()

	matcher := ledger.NewMatcher(led, ledger.Config{
		DefaultMonthToken: *defaultMonth,
		Keyword:           *keyword,
	})

	slog.Info("Initializing archive...", "path", *archivePath)
	archive, err := reconcile.NewLocalArchive(*archivePath)
	if err != nil {
		slog.Error("Failed to initialize archive", "error", err)
		os.Exit(1)
	}

	if *review {
		reviewer := reconcile.NewReviewer(matcher, archive)
		resolved, err := reviewer.Review(askOperator)
		if err != nil {
			slog.Error("Manual review failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Manual review complete", "resolved", resolved)
		return
	}

	// Extraction chain: Gemini with its key pool first, TrOCR fallback.
	keys := strings.Split(*geminiKeys, ",")
	if env := os.Getenv("GEMINI_API_KEY"); env != "" {
		keys = append(keys, env)
	}
	pool := extraction.NewPool(keys)
	if pool.Size() == 0 {
		slog.Warn("No usable Gemini API keys, primary provider unavailable")
	}
	chain := extraction.NewChain(
		extraction.NewGemini(pool, *geminiModel),
		extraction.NewTrOCR(*hfKey, *hfModelURL),
	)
	defer chain.Close()

	slog.Info("Opening processed-message store...", "path", *dbPath)
	processed, err := reconcile.OpenProcessedStore(*dbPath)
	if err != nil {
		slog.Error("Failed to open processed-message store", "error", err)
		os.Exit(1)
	}
	defer processed.Close()

	if err := os.MkdirAll(filepath.Dir(*auditPath), 0755); err != nil {
		slog.Error("Failed to create audit directory", "error", err)
		os.Exit(1)
	}
	audit := reconcile.NewJSONLAuditLog(*auditPath)

	pipeline := reconcile.NewPipeline(chain, matcher, processed, archive, audit)

	imgs, err := loadInbox(*inboxPath)
	if err != nil {
		slog.Error("Failed to read inbox", "error", err)
		os.Exit(1)
	}
	slog.Info("Inbox loaded", "images", len(imgs))

	outcomes, err := pipeline.Backfill(ctx, imgs)
	if err != nil {
		slog.Error("Backfill stopped", "error", err, "processed", len(outcomes))
		os.Exit(1)
	}

	counts := make(map[reconcile.OutcomeKind]int)
	for _, o := range outcomes {
		counts[o.Kind]++
	}
	slog.Info("Backfill complete",
		"processed", len(outcomes),
		"match", counts[reconcile.OutcomeMatch],
		"already_verified", counts[reconcile.OutcomeAlreadyVerified],
		"mismatch", counts[reconcile.OutcomeMismatch],
		"ocr_fail", counts[reconcile.OutcomeOCRFail],
		"error", counts[reconcile.OutcomeError],
	)
}

// loadInbox reads every image in the inbox directory as one inbound
// message. The filename doubles as the message id; the file's
// modification time stands in for the capture timestamp.
func loadInbox(dir string) ([]reconcile.ReceiptImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading inbox directory: %w", err)
	}

	var imgs []reconcile.ReceiptImage
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		contentType := contentTypeFor(e.Name())
		if contentType == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stating %s: %w", e.Name(), err)
		}
		imgs = append(imgs, reconcile.ReceiptImage{
			Data:        data,
			ContentType: contentType,
			Sender:      "inbox",
			Timestamp:   info.ModTime(),
			MessageID:   strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
		})
	}
	return imgs, nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic", ".heif":
		return "image/heic"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}

// askOperator prompts on stdin for one failed image.
func askOperator(imagePath string) (reconcile.ReviewInput, error) {
	fmt.Printf("\nReviewing: %s\n", imagePath)
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Enter price(s) (e.g. 25,00) or 's' to skip: ")
	prices, err := reader.ReadString('\n')
	if err != nil {
		return reconcile.ReviewInput{}, err
	}
	prices = strings.TrimSpace(prices)
	if strings.EqualFold(prices, "s") {
		return reconcile.ReviewInput{Skip: true}, nil
	}

	fmt.Print("Enter date (DD/MM/YYYY) or ENTER to skip date: ")
	date, err := reader.ReadString('\n')
	if err != nil {
		return reconcile.ReviewInput{}, err
	}

	return reconcile.ReviewInput{
		Prices: prices,
		Date:   strings.TrimSpace(date),
	}, nil
}
