package importer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"orderdesk/internal"
	"orderdesk/internal/storage"
)

// ImportService loads order export files into the canonical table. Every
// attempt is registered in import_files under the file's content hash.
type ImportService struct {
	db        *storage.DB
	batchSize int
	log       *logrus.Logger
}

func NewImportService(db *storage.DB, batchSize int, log *logrus.Logger) *ImportService {
	return &ImportService{db: db, batchSize: batchSize, log: log}
}

// ImportFile reads one export file and upserts its rows into original_orders
// in a single transaction. Row errors are counted, logged and returned; they
// never abort the rest of the file.
func (s *ImportService) ImportFile(path string) (internal.ImportStats, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return internal.ImportStats{}, fmt.Errorf("read %s: %w", path, err)
	}

	file := filepath.Base(path)
	sum := sha256.Sum256(content)
	rec := internal.ImportFile{
		Filename: file,
		Hash:     hex.EncodeToString(sum[:]),
		Size:     int64(len(content)),
	}

	p, err := parseFile(content)
	if err != nil {
		s.register(rec, internal.ImportFileFailed, internal.ImportStats{Errors: 1})
		return internal.ImportStats{}, fmt.Errorf("parse %s: %w", file, err)
	}

	for _, re := range p.rowErrors {
		s.log.WithFields(logrus.Fields{"file": file, "row": re.Row}).Warn(re.Reason)
	}
	if p.duplicates > 0 {
		s.log.WithFields(logrus.Fields{"file": file, "duplicates": p.duplicates}).Warn("duplicate order ids, kept first occurrence")
	}

	res, err := s.db.UpsertOriginalOrders(p.orders, s.batchSize, time.Now())
	if err != nil {
		stats := internal.ImportStats{Errors: len(p.rowErrors) + 1}
		s.register(rec, internal.ImportFileFailed, stats)
		return stats, fmt.Errorf("upsert orders: %w", err)
	}

	stats := internal.ImportStats{
		Inserted: res.Inserted,
		Updated:  res.Updated,
		Errors:   len(p.rowErrors) + res.Errors,
	}
	s.register(rec, internal.ImportFileImported, stats)

	s.log.WithFields(logrus.Fields{
		"file":     file,
		"rows":     len(p.orders),
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
		"errors":   stats.Errors,
	}).Info("import done")
	return stats, nil
}

func (s *ImportService) register(rec internal.ImportFile, status internal.ImportFileStatus, stats internal.ImportStats) {
	rec.Status = status
	counts, _ := json.Marshal(stats)
	rec.CountsJSON = string(counts)
	if _, err := s.db.RecordImportFile(rec, time.Now()); err != nil {
		s.log.WithError(err).WithField("file", rec.Filename).Warn("import file not registered")
	}
}

// parseFile picks the reader by content: real zip workbooks go through
// excelize, HTML documents through the table fallback. Anything else gets
// excelize's own format error.
func parseFile(content []byte) (parsed, error) {
	if bytes.HasPrefix(content, []byte("PK\x03\x04")) {
		return parseWorkbook(content)
	}
	if looksLikeHTML(content) {
		return parseHTMLTable(content)
	}
	return parseWorkbook(content)
}

func looksLikeHTML(content []byte) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	head = bytes.ToLower(head)
	return bytes.Contains(head, []byte("<table")) || bytes.Contains(head, []byte("<html"))
}
