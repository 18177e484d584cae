package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orderdesk/internal/classify"
	"orderdesk/internal/config"
	"orderdesk/internal/importer"
	"orderdesk/internal/logging"
	"orderdesk/internal/reconcile"
	"orderdesk/internal/storage"
	"orderdesk/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	rules, err := classify.LoadRules(cfg.OrderTypesPath)
	must(err)

	imp := importer.NewImportService(db, cfg.ImportBatchSize, log)
	pipe := reconcile.NewPipeline(db, classify.New(rules), log)
	svc := watcher.NewService(db, cfg, imp, pipe, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
