package reconcile

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"orderdesk/internal"
	"orderdesk/internal/storage"
)

// Aggregator recomputes the per-customer rollups from the association rows.
type Aggregator struct {
	db  *storage.DB
	log *logrus.Logger
}

func NewAggregator(db *storage.DB, log *logrus.Logger) *Aggregator {
	return &Aggregator{db: db, log: log}
}

type StatsResult struct {
	CustomersUpdated int
}

// RecomputeStatistics rebuilds orders_count, total_amount and the first/last
// order dates for every customer of one target from scratch. Customers with
// no associations are written back with zeroes so stale numbers never linger.
func (a *Aggregator) RecomputeStatistics(kind internal.OrderKind) (StatsResult, error) {
	customers, err := a.db.AllCustomers(kind)
	if err != nil {
		return StatsResult{}, fmt.Errorf("read %s customers: %w", kind, err)
	}
	relations, err := a.db.Relations(kind)
	if err != nil {
		return StatsResult{}, fmt.Errorf("read %s relations: %w", kind, err)
	}

	updated, err := a.db.ApplyCustomerStats(kind, reduceStats(customers, relations), time.Now())
	if err != nil {
		return StatsResult{}, fmt.Errorf("write %s aggregates: %w", kind, err)
	}

	a.log.WithFields(logrus.Fields{
		"target":    kind,
		"customers": updated,
	}).Info("statistics recomputed")
	return StatsResult{CustomersUpdated: updated}, nil
}

// reduceStats folds the association rows into one row of aggregates per
// customer. Null amounts are skipped in the sum but still count toward
// orders_count; null dates are skipped in the date range.
func reduceStats(customers []internal.Customer, relations []internal.OrderRelation) []storage.CustomerStats {
	grouped := make(map[int64][]internal.OrderRelation, len(customers))
	for _, r := range relations {
		grouped[r.CustomerID] = append(grouped[r.CustomerID], r)
	}

	out := make([]storage.CustomerStats, 0, len(customers))
	for _, c := range customers {
		s := storage.CustomerStats{CustomerID: c.ID}
		for _, r := range grouped[c.ID] {
			s.OrdersCount++
			if r.Amount != nil {
				s.TotalAmount += *r.Amount
			}
			if r.OrderDate != nil {
				if s.FirstOrderDate == nil || r.OrderDate.Before(*s.FirstOrderDate) {
					s.FirstOrderDate = r.OrderDate
				}
				if s.LastOrderDate == nil || r.OrderDate.After(*s.LastOrderDate) {
					s.LastOrderDate = r.OrderDate
				}
			}
		}
		out = append(out, s)
	}
	return out
}
