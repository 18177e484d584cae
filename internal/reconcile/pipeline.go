package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"orderdesk/internal"
	"orderdesk/internal/classify"
	"orderdesk/internal/storage"
)

const (
	metaLastRunAt     = "reconcile.last_run_at"
	metaLastSuccessAt = "reconcile.last_success_at"
)

// Pipeline chains the reconciliation stages: order sync, customer extraction,
// conversion detection, statistics. Later stages read what earlier stages
// wrote, so the first fatal stage error stops the run. Counted row errors
// inside a stage do not.
type Pipeline struct {
	db         *storage.DB
	syncer     *Syncer
	extractor  *Extractor
	detector   *Detector
	aggregator *Aggregator
	log        *logrus.Logger
}

func NewPipeline(db *storage.DB, classifier *classify.Classifier, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		db:         db,
		syncer:     NewSyncer(db, classifier, log),
		extractor:  NewExtractor(db, log),
		detector:   NewDetector(db, log),
		aggregator: NewAggregator(db, log),
		log:        log,
	}
}

// Result carries the counters of one reconciliation run. On a stopped run the
// stages that never ran are zero.
type Result struct {
	RunID         string
	Sync          SyncAllResult
	SampleExtract ExtractResult
	BulkExtract   ExtractResult
	Convert       ConvertResult
	SampleStats   StatsResult
	BulkStats     StatsResult
}

// Run executes the full chain under one run id and records the run either
// way. It returns the partial result together with the error of the stage
// that stopped the run.
func (p *Pipeline) Run(trigger string) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	timings := make(map[string]int64)
	started := time.Now()

	p.log.WithFields(logrus.Fields{"run_id": res.RunID, "trigger": trigger}).Info("reconciliation started")

	runErr := p.runStages(&res, timings)
	timings["total_ms"] = time.Since(started).Milliseconds()

	run := internal.RunRecord{
		RunID:     res.RunID,
		Trigger:   trigger,
		TimingsMs: timings,
		Counts:    res.counts(),
	}
	if err := p.db.InsertRun(run, time.Now()); err != nil {
		p.log.WithError(err).Warn("run record not written")
	}
	_ = p.db.SetMetadata(metaLastRunAt, time.Now().UTC().Format(time.RFC3339))

	if runErr != nil {
		return res, runErr
	}
	_ = p.db.SetMetadata(metaLastSuccessAt, time.Now().UTC().Format(time.RFC3339))

	p.log.WithFields(logrus.Fields{
		"run_id":      res.RunID,
		"total_ms":    timings["total_ms"],
		"conversions": res.Convert.Conversions,
	}).Info("reconciliation done")
	return res, nil
}

func (p *Pipeline) runStages(res *Result, timings map[string]int64) error {
	start := time.Now()
	sync, err := p.syncer.SyncAll()
	res.Sync = sync
	timings["sync_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		return fmt.Errorf("sync stage: %w", err)
	}

	start = time.Now()
	sampleExtract, sampleErr := p.extractor.ExtractCustomers(internal.KindSample)
	res.SampleExtract = sampleExtract
	bulkExtract, bulkErr := p.extractor.ExtractCustomers(internal.KindBulk)
	res.BulkExtract = bulkExtract
	timings["extract_ms"] = time.Since(start).Milliseconds()
	if err := errors.Join(sampleErr, bulkErr); err != nil {
		return fmt.Errorf("extract stage: %w", err)
	}

	start = time.Now()
	convert, err := p.detector.DetectConversions()
	res.Convert = convert
	timings["convert_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		return fmt.Errorf("convert stage: %w", err)
	}

	start = time.Now()
	sampleStats, sampleErr := p.aggregator.RecomputeStatistics(internal.KindSample)
	res.SampleStats = sampleStats
	bulkStats, bulkErr := p.aggregator.RecomputeStatistics(internal.KindBulk)
	res.BulkStats = bulkStats
	timings["stats_ms"] = time.Since(start).Milliseconds()
	if err := errors.Join(sampleErr, bulkErr); err != nil {
		return fmt.Errorf("stats stage: %w", err)
	}
	return nil
}

func (r *Result) counts() map[string]int {
	return map[string]int{
		"sample_orders_inserted":   r.Sync.Sample.Inserted,
		"sample_orders_updated":    r.Sync.Sample.Updated,
		"sample_orders_errors":     r.Sync.Sample.Errors,
		"bulk_orders_inserted":     r.Sync.Bulk.Inserted,
		"bulk_orders_updated":      r.Sync.Bulk.Updated,
		"bulk_orders_errors":       r.Sync.Bulk.Errors,
		"sample_customers_new":     r.SampleExtract.New,
		"sample_customers_updated": r.SampleExtract.Updated,
		"sample_relations":         r.SampleExtract.Relations,
		"sample_customer_errors":   r.SampleExtract.Errors,
		"bulk_customers_new":       r.BulkExtract.New,
		"bulk_customers_updated":   r.BulkExtract.Updated,
		"bulk_relations":           r.BulkExtract.Relations,
		"bulk_customer_errors":     r.BulkExtract.Errors,
		"conversions":              r.Convert.Conversions,
		"conversion_errors":        r.Convert.Errors,
		"sample_stats_updated":     r.SampleStats.CustomersUpdated,
		"bulk_stats_updated":       r.BulkStats.CustomersUpdated,
	}
}
