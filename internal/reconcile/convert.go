package reconcile

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"orderdesk/internal"
	"orderdesk/internal/storage"
	"orderdesk/internal/util"
)

// Detector finds sample customers who placed bulk orders and records the
// conversion. Matching is by exact customer name across the two registries.
type Detector struct {
	db  *storage.DB
	log *logrus.Logger
}

func NewDetector(db *storage.DB, log *logrus.Logger) *Detector {
	return &Detector{db: db, log: log}
}

type ConvertResult struct {
	Conversions int
	Errors      int
}

// DetectConversions joins the sample and bulk registries on customer name and
// records one conversion per pair. When a name is ambiguous on either side,
// every pair is recorded rather than guessing which row is the real match.
// Already-recorded pairs are left untouched, so the run is idempotent.
func (d *Detector) DetectConversions() (ConvertResult, error) {
	samples, err := d.db.AllCustomers(internal.KindSample)
	if err != nil {
		return ConvertResult{Errors: 1}, fmt.Errorf("read sample customers: %w", err)
	}
	bulks, err := d.db.AllCustomers(internal.KindBulk)
	if err != nil {
		return ConvertResult{Errors: 1}, fmt.Errorf("read bulk customers: %w", err)
	}

	byName := make(map[string][]internal.Customer, len(bulks))
	for _, b := range bulks {
		key := util.CustomerKey(b.CustomerName)
		byName[key] = append(byName[key], b)
	}

	tx, err := d.db.BeginConversionTx()
	if err != nil {
		return ConvertResult{Errors: 1}, fmt.Errorf("begin conversion tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res ConvertResult
	now := time.Now()
	for _, s := range samples {
		matches := byName[util.CustomerKey(s.CustomerName)]
		if len(matches) > 1 {
			d.log.WithFields(logrus.Fields{
				"customer": s.CustomerName,
				"matches":  len(matches),
			}).Warn("ambiguous conversion match, recording all pairs")
		}
		for _, b := range matches {
			if err := d.recordPair(tx, s, b, now, &res); err != nil {
				res.Errors++
				d.log.WithError(err).WithFields(logrus.Fields{
					"customer":  s.CustomerName,
					"sample_id": s.ID,
					"bulk_id":   b.ID,
				}).Warn("conversion pair failed")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit conversions: %w", err)
	}

	d.log.WithFields(logrus.Fields{
		"conversions": res.Conversions,
		"errors":      res.Errors,
	}).Info("conversion detection done")
	return res, nil
}

func (d *Detector) recordPair(tx *storage.ConversionTx, s, b internal.Customer, now time.Time, res *ConvertResult) error {
	created, err := tx.InsertConversion(s.ID, b.ID, now, now)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if err := tx.MarkSampleConverted(s.ID, b.ID, now, now); err != nil {
		return err
	}
	if err := tx.MarkBulkConverted(b.ID, s.ID, now); err != nil {
		return err
	}
	res.Conversions++
	return nil
}
