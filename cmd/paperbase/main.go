package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dqviet/paperbase/internal/app"
	"github.com/dqviet/paperbase/internal/config"
)

const usage = `paperbase - document question answering

Usage:
  paperbase ingest <file>...     ingest documents into the knowledge base
  paperbase ask <question>       answer a question (streams to stdout)
  paperbase list                 list ingested documents
  paperbase delete <doc-id>      remove a document and its chunks

Config is read from paperbase.toml (override with PAPERBASE_CONFIG).
Set PAPERBASE_VERBOSE=1 for debug logging.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load(os.Getenv("PAPERBASE_CONFIG"))
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	level := slog.LevelWarn
	if v := os.Getenv("PAPERBASE_VERBOSE"); v == "1" || v == "true" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	}()

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "ingest":
		err = runIngest(ctx, a, args)
	case "ask":
		err = runAsk(ctx, a, args)
	case "list":
		err = runList(ctx, a)
	case "delete":
		err = runDelete(ctx, a, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func runIngest(ctx context.Context, a *app.App, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("ingest: no files given")
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res, err := a.Ingestor.IngestFile(ctx, content, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Printf("%s  %s  pages=%d coarse=%d fine=%d\n",
			res.DocumentID, path, res.Document.PageCount, res.Coarse, res.Fine)
	}
	return nil
}

func runAsk(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ask: no question given")
	}
	question := args[0]
	session := os.Getenv("PAPERBASE_SESSION")
	if session == "" {
		session = "cli"
	}

	ch := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for token := range ch {
			fmt.Print(token)
		}
	}()

	res, err := a.Ask(ctx, session, question, ch)
	<-done
	fmt.Println()
	if err != nil {
		return err
	}

	if len(res.Evidence) > 0 {
		fmt.Fprintln(os.Stderr, "\nsources:")
		for i, h := range res.Evidence {
			fmt.Fprintf(os.Stderr, "  [%d] %s p.%d-%d (score %.2f)\n",
				i+1, h.Source, h.PageStart, h.PageEnd, h.RerankScore)
		}
	}
	return nil
}

func runList(ctx context.Context, a *app.App) error {
	docs, err := a.Store.ListDocuments(ctx, 100)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tPAGES\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			d.ID, d.Source, d.PageCount, time.Unix(d.CreatedAt, 0).Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runDelete(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("delete: no document id given")
	}
	for _, id := range args {
		if err := a.Store.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Println("deleted", id)
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "paperbase:", err)
	os.Exit(1)
}
