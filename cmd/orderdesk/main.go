package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"orderdesk/internal"
	"orderdesk/internal/classify"
	"orderdesk/internal/config"
	"orderdesk/internal/importer"
	"orderdesk/internal/logging"
	"orderdesk/internal/reconcile"
	"orderdesk/internal/report"
	"orderdesk/internal/storage"
	"orderdesk/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "import:excel":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "workbook export path")
		noResync := fs.Bool("no-resync", false, "skip the reconciliation run after import")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		svc := importer.NewImportService(db, cfg.ImportBatchSize, log)
		stats, err := svc.ImportFile(*file)
		must(err)
		fmt.Printf("import done inserted=%d updated=%d errors=%d\n", stats.Inserted, stats.Updated, stats.Errors)
		if stats.Errors > 0 {
			must(fmt.Errorf("%d rows failed, reconciliation blocked", stats.Errors))
		}
		if *noResync {
			return
		}
		pipe := reconcile.NewPipeline(db, loadClassifier(cfg), log)
		res, err := pipe.Run("import")
		must(err)
		printRunResult(res)
	case "orders:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		target := fs.String("target", "all", "sample|bulk|all")
		_ = fs.Parse(os.Args[2:])
		kinds, err := parseTarget(*target)
		must(err)
		syncer := reconcile.NewSyncer(db, loadClassifier(cfg), log)
		for _, kind := range kinds {
			res, err := syncer.SyncOrders(kind)
			must(err)
			fmt.Printf("%s orders sync inserted=%d updated=%d errors=%d\n", kind, res.Inserted, res.Updated, res.Errors)
		}
	case "customers:extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		target := fs.String("target", "all", "sample|bulk|all")
		_ = fs.Parse(os.Args[2:])
		kinds, err := parseTarget(*target)
		must(err)
		extractor := reconcile.NewExtractor(db, log)
		for _, kind := range kinds {
			res, err := extractor.ExtractCustomers(kind)
			must(err)
			fmt.Printf("%s customers extract new=%d updated=%d relations=%d errors=%d\n", kind, res.New, res.Updated, res.Relations, res.Errors)
		}
	case "customers:convert":
		detector := reconcile.NewDetector(db, log)
		res, err := detector.DetectConversions()
		must(err)
		fmt.Printf("conversion detection done conversions=%d errors=%d\n", res.Conversions, res.Errors)
	case "customers:stats":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		target := fs.String("target", "all", "sample|bulk|all")
		_ = fs.Parse(os.Args[2:])
		kinds, err := parseTarget(*target)
		must(err)
		aggregator := reconcile.NewAggregator(db, log)
		for _, kind := range kinds {
			res, err := aggregator.RecomputeStatistics(kind)
			must(err)
			fmt.Printf("%s statistics recomputed customers=%d\n", kind, res.CustomersUpdated)
		}
	case "resync":
		pipe := reconcile.NewPipeline(db, loadClassifier(cfg), log)
		res, err := pipe.Run("cli")
		must(err)
		printRunResult(res)
	case "classify":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		label := fs.String("label", "", "order type label")
		_ = fs.Parse(os.Args[2:])
		fmt.Println(loadClassifier(cfg).Classify(*label))
	case "customers:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		target := fs.String("target", "", "sample|bulk")
		handler := fs.String("handler", "", "filter by handler")
		limit := fs.Int("limit", 0, "max rows, 0 lists all")
		_ = fs.Parse(os.Args[2:])
		kind, err := parseKind(*target)
		must(err)
		customers, err := db.ListCustomers(kind, *handler, *limit)
		must(err)
		for _, c := range customers {
			fmt.Printf("%-6d %-24s shop=%-14s handler=%-10s orders=%-4d amount=%-12.2f converted=%t\n",
				c.ID, c.CustomerName, derefStr(c.Shop), derefStr(c.Handler), c.OrdersCount, c.TotalAmount, c.Converted)
		}
		fmt.Printf("%d customers\n", len(customers))
	case "customers:update":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		target := fs.String("target", "", "sample|bulk")
		id := fs.Int64("id", 0, "customer id")
		fs.String("name", "", "customer name")
		fs.String("shop", "", "shop")
		fs.String("region", "", "region")
		fs.String("handler", "", "handler")
		fs.String("phone", "", "phone")
		fs.String("wechat", "", "wechat")
		fs.String("notes", "", "notes")
		_ = fs.Parse(os.Args[2:])
		kind, err := parseKind(*target)
		must(err)
		if *id == 0 {
			must(fmt.Errorf("--id is required"))
		}
		var upd storage.CustomerUpdate
		fs.Visit(func(f *flag.Flag) {
			v := f.Value.String()
			switch f.Name {
			case "name":
				upd.CustomerName = &v
			case "shop":
				upd.Shop = &v
			case "region":
				upd.Region = &v
			case "handler":
				upd.Handler = &v
			case "phone":
				upd.Phone = &v
			case "wechat":
				upd.Wechat = &v
			case "notes":
				upd.Notes = &v
			}
		})
		ok, err := db.UpdateCustomerFields(kind, *id, upd, time.Now())
		must(err)
		if !ok {
			must(fmt.Errorf("customer id=%d not updated (missing row or no fields given)", *id))
		}
		fmt.Printf("customer %d updated\n", *id)
	case "customers:summary":
		s, err := db.CustomerSummary()
		must(err)
		fmt.Printf("sample_customers=%d bulk_customers=%d converted=%d conversions=%d rate=%.1f%%\n",
			s.SampleCustomers, s.BulkCustomers, s.ConvertedSamples, s.Conversions, s.ConversionRate)
	case "customers:unconverted":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max rows")
		_ = fs.Parse(os.Args[2:])
		customers, err := db.UnconvertedSampleCustomers(*limit)
		must(err)
		for _, c := range customers {
			fmt.Printf("%-6d %-24s orders=%-4d amount=%-12.2f last_order=%s\n",
				c.ID, c.CustomerName, c.OrdersCount, c.TotalAmount, derefDate(c.LastOrderDate))
		}
		fmt.Printf("%d unconverted sample customers\n", len(customers))
	case "export:customers":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		target := fs.String("target", "", "sample|bulk")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		kind, err := parseKind(*target)
		must(err)
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.OutputDir, string(kind)+"_customers.xlsx")
		}
		customers, err := db.AllCustomers(kind)
		must(err)
		must(report.ExportCustomersXLSX(customers, path))
		fmt.Printf("exported %d customers to %s\n", len(customers), path)
	case "export:conversions":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.OutputDir, "conversions.xlsx")
		}
		conversions, err := db.ConversionDetails()
		must(err)
		must(report.ExportConversionsXLSX(conversions, path))
		fmt.Printf("exported %d conversions to %s\n", len(conversions), path)
	case "status":
		totals, err := db.Totals()
		must(err)
		fmt.Printf("orders: original=%d sample=%d bulk=%d\n", totals.OriginalOrders, totals.SampleOrders, totals.BulkOrders)
		fmt.Printf("customers: sample=%d bulk=%d conversions=%d\n", totals.SampleCustomers, totals.BulkCustomers, totals.Conversions)
		fmt.Printf("relations: sample=%d bulk=%d\n", totals.SampleRelations, totals.BulkRelations)
		run, err := db.LastRun()
		must(err)
		if run != nil {
			fmt.Printf("last run: %s trigger=%s at=%s total_ms=%d\n",
				run.RunID, run.Trigger, run.CreatedAt.Format("2006-01-02 15:04:05"), run.TimingsMs["total_ms"])
		}
		if v, err := db.GetMetadata("reconcile.last_success_at"); err == nil && v != nil {
			fmt.Printf("last successful reconciliation: %s\n", *v)
		}
		files, err := db.ListImportFiles(5)
		must(err)
		for _, f := range files {
			fmt.Printf("import file: %s status=%s size=%d at=%s\n",
				f.Filename, f.Status, f.Size, f.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
	case "watch":
		imp := importer.NewImportService(db, cfg.ImportBatchSize, log)
		pipe := reconcile.NewPipeline(db, loadClassifier(cfg), log)
		svc := watcher.NewService(db, cfg, imp, pipe, log)
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		must(svc.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func loadClassifier(cfg config.Config) *classify.Classifier {
	rules, err := classify.LoadRules(cfg.OrderTypesPath)
	must(err)
	return classify.New(rules)
}

func parseTarget(value string) ([]internal.OrderKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sample":
		return []internal.OrderKind{internal.KindSample}, nil
	case "bulk":
		return []internal.OrderKind{internal.KindBulk}, nil
	case "all":
		return []internal.OrderKind{internal.KindSample, internal.KindBulk}, nil
	}
	return nil, fmt.Errorf("unsupported target: %s (want sample|bulk|all)", value)
}

func parseKind(value string) (internal.OrderKind, error) {
	kind := internal.OrderKind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", fmt.Errorf("unsupported target: %s (want sample|bulk)", value)
	}
	return kind, nil
}

func printRunResult(res reconcile.Result) {
	fmt.Printf("reconciliation done run=%s\n", res.RunID)
	fmt.Printf("  sample orders: inserted=%d updated=%d errors=%d\n", res.Sync.Sample.Inserted, res.Sync.Sample.Updated, res.Sync.Sample.Errors)
	fmt.Printf("  bulk orders: inserted=%d updated=%d errors=%d\n", res.Sync.Bulk.Inserted, res.Sync.Bulk.Updated, res.Sync.Bulk.Errors)
	fmt.Printf("  sample customers: new=%d updated=%d relations=%d errors=%d\n", res.SampleExtract.New, res.SampleExtract.Updated, res.SampleExtract.Relations, res.SampleExtract.Errors)
	fmt.Printf("  bulk customers: new=%d updated=%d relations=%d errors=%d\n", res.BulkExtract.New, res.BulkExtract.Updated, res.BulkExtract.Relations, res.BulkExtract.Errors)
	fmt.Printf("  conversions: new=%d errors=%d\n", res.Convert.Conversions, res.Convert.Errors)
	fmt.Printf("  statistics: sample=%d bulk=%d customers\n", res.SampleStats.CustomersUpdated, res.BulkStats.CustomersUpdated)
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefDate(v *time.Time) string {
	if v == nil {
		return "-"
	}
	return v.Format("2006-01-02")
}

func usage() {
	fmt.Println("usage: orderdesk <command>")
	fmt.Println("commands:")
	fmt.Println("  import:excel --file=./export.xlsx [--no-resync]")
	fmt.Println("  orders:sync --target=sample|bulk|all")
	fmt.Println("  customers:extract --target=sample|bulk|all")
	fmt.Println("  customers:convert")
	fmt.Println("  customers:stats --target=sample|bulk|all")
	fmt.Println("  resync")
	fmt.Println("  classify --label=打样单")
	fmt.Println("  customers:list --target=sample|bulk [--handler=...] [--limit=50]")
	fmt.Println("  customers:update --target=sample|bulk --id=1 [--name=...] [--shop=...] [--region=...] [--handler=...] [--phone=...] [--wechat=...] [--notes=...]")
	fmt.Println("  customers:summary")
	fmt.Println("  customers:unconverted [--limit=20]")
	fmt.Println("  export:customers --target=sample|bulk [--out=./out/sample_customers.xlsx]")
	fmt.Println("  export:conversions [--out=./out/conversions.xlsx]")
	fmt.Println("  status")
	fmt.Println("  watch")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
