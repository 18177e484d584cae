package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"orderdesk/internal"
	"orderdesk/internal/classify"
	"orderdesk/internal/storage"
)

// Syncer propagates canonical orders into the typed mirror tables. Mirrors are
// append-and-refresh only: reclassified orders keep their orphan row in the
// old table.
type Syncer struct {
	db         *storage.DB
	classifier *classify.Classifier
	log        *logrus.Logger
}

func NewSyncer(db *storage.DB, classifier *classify.Classifier, log *logrus.Logger) *Syncer {
	return &Syncer{db: db, classifier: classifier, log: log}
}

type SyncResult struct {
	Inserted int
	Updated  int
	Errors   int
}

type SyncAllResult struct {
	Sample SyncResult
	Bulk   SyncResult
}

// SyncOrders brings one typed table up to date with the canonical rows whose
// label belongs to it. Missing rows are inserted as verbatim copies; rows
// whose canonical copy carries a newer timestamp are refreshed. Running twice
// without canonical changes writes nothing the second time.
func (s *Syncer) SyncOrders(kind internal.OrderKind) (SyncResult, error) {
	canonical, err := s.db.CanonicalOrdersByTypes(s.classifier.Labels(kind))
	if err != nil {
		return SyncResult{Errors: 1}, fmt.Errorf("read canonical orders: %w", err)
	}
	stamps, err := s.db.TypedOrderStamps(kind)
	if err != nil {
		return SyncResult{Errors: 1}, fmt.Errorf("read %s order stamps: %w", kind, err)
	}

	plan := planSync(canonical, stamps)

	apply, err := s.db.ApplyOrderSync(kind, plan.inserts, plan.updates, time.Now())
	if err != nil {
		return SyncResult{Errors: plan.errors + apply.Errors + 1}, fmt.Errorf("apply %s order sync: %w", kind, err)
	}

	res := SyncResult{
		Inserted: apply.Inserted,
		Updated:  apply.Updated,
		Errors:   plan.errors + apply.Errors,
	}
	s.log.WithFields(logrus.Fields{
		"target":   kind,
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"skipped":  plan.skipped,
		"errors":   res.Errors,
	}).Info("order sync done")
	return res, nil
}

// SyncAll runs both targets even when one fails, so a broken sample sync
// never starves the bulk mirror. Any fatal error still surfaces.
func (s *Syncer) SyncAll() (SyncAllResult, error) {
	var res SyncAllResult
	var errs []error

	sample, err := s.SyncOrders(internal.KindSample)
	res.Sample = sample
	if err != nil {
		errs = append(errs, err)
	}

	bulk, err := s.SyncOrders(internal.KindBulk)
	res.Bulk = bulk
	if err != nil {
		errs = append(errs, err)
	}

	return res, errors.Join(errs...)
}

type syncPlan struct {
	inserts []internal.Order
	updates []internal.Order
	skipped int
	errors  int
}

// planSync decides, per canonical row, whether the mirror needs an insert, a
// refresh, or nothing. A mirror row without a timestamp always counts as
// stale; a row without an order id is a counted validation error.
func planSync(canonical []internal.Order, stamps map[string]*time.Time) syncPlan {
	var plan syncPlan
	for _, o := range canonical {
		if o.OrderID == "" {
			plan.errors++
			continue
		}
		stamp, exists := stamps[o.OrderID]
		if !exists {
			plan.inserts = append(plan.inserts, o)
			continue
		}
		if stamp == nil || o.UpdatedAt.After(*stamp) {
			plan.updates = append(plan.updates, o)
			continue
		}
		plan.skipped++
	}
	return plan
}
