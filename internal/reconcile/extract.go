package reconcile

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"orderdesk/internal"
	"orderdesk/internal/storage"
	"orderdesk/internal/util"
)

// Extractor builds the customer registry for one target from the typed order
// rows that carry a customer name.
type Extractor struct {
	db  *storage.DB
	log *logrus.Logger
}

func NewExtractor(db *storage.DB, log *logrus.Logger) *Extractor {
	return &Extractor{db: db, log: log}
}

type ExtractResult struct {
	New       int
	Updated   int
	Relations int
	Errors    int
}

// customerTuple is one distinct (name, shop, handler) combination together
// with the orders it was seen on, in first-seen order.
type customerTuple struct {
	name    string
	shop    *string
	handler *string
	orders  []internal.Order
}

// ExtractCustomers upserts customers and their order associations for one
// target. Customers are matched by name plus shop when the shop is known;
// existing rows only gain metadata they were missing, never lose or change
// what an earlier import recorded. Associations are append-only, so re-runs
// create nothing new.
func (e *Extractor) ExtractCustomers(kind internal.OrderKind) (ExtractResult, error) {
	orders, err := e.db.TypedOrdersWithCustomer(kind)
	if err != nil {
		return ExtractResult{Errors: 1}, fmt.Errorf("read %s orders: %w", kind, err)
	}

	tuples := distinctTuples(orders)

	tx, err := e.db.BeginCustomerTx(kind)
	if err != nil {
		return ExtractResult{Errors: 1}, fmt.Errorf("begin %s customer tx: %w", kind, err)
	}
	defer func() { _ = tx.Rollback() }()

	var res ExtractResult
	now := time.Now()
	for _, tu := range tuples {
		if err := e.processTuple(tx, tu, now, &res); err != nil {
			res.Errors++
			e.log.WithError(err).WithFields(logrus.Fields{
				"target":   kind,
				"customer": tu.name,
				"shop":     deref(tu.shop),
			}).Warn("customer tuple failed")
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit %s customer extraction: %w", kind, err)
	}

	e.log.WithFields(logrus.Fields{
		"target":    kind,
		"new":       res.New,
		"updated":   res.Updated,
		"relations": res.Relations,
		"errors":    res.Errors,
	}).Info("customer extraction done")
	return res, nil
}

func (e *Extractor) processTuple(tx *storage.CustomerTx, tu customerTuple, now time.Time, res *ExtractResult) error {
	found, err := tx.FindCustomer(tu.name, tu.shop)
	if err != nil {
		return err
	}

	var customerID int64
	if found == nil {
		customerID, err = tx.InsertCustomer(tu.name, tu.shop, tu.handler, now)
		if err != nil {
			return err
		}
		res.New++
	} else {
		customerID = found.ID
		res.Updated++

		// Fill gaps only. A customer that already has a shop or handler
		// keeps it even when this tuple disagrees.
		var shop, handler *string
		if isBlank(found.Shop) && !isBlank(tu.shop) {
			shop = tu.shop
		}
		if isBlank(found.Handler) && !isBlank(tu.handler) {
			handler = tu.handler
		}
		if shop != nil || handler != nil {
			if err := tx.FillCustomerMeta(customerID, shop, handler, now); err != nil {
				return err
			}
		}
	}

	for _, o := range tu.orders {
		date := o.OrderCreatedDate
		if date == nil {
			date = util.TimePtr(o.CreatedAt)
		}
		created, err := tx.InsertRelation(customerID, o.OrderID, date, o.Amount, now)
		if err != nil {
			return err
		}
		if created {
			res.Relations++
		}
	}
	return nil
}

// distinctTuples groups orders by their exact (name, shop, handler)
// combination, preserving the order the combinations first appear in.
func distinctTuples(orders []internal.Order) []customerTuple {
	index := make(map[string]int)
	var out []customerTuple
	for _, o := range orders {
		name := deref(o.CustomerName)
		key := util.TupleKey(name, deref(o.Shop), deref(o.Handler))
		if i, ok := index[key]; ok {
			out[i].orders = append(out[i].orders, o)
			continue
		}
		index[key] = len(out)
		out = append(out, customerTuple{name: name, shop: o.Shop, handler: o.Handler, orders: []internal.Order{o}})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}
