package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"orderdesk/internal"
	"orderdesk/internal/config"
	"orderdesk/internal/importer"
	"orderdesk/internal/reconcile"
	"orderdesk/internal/storage"
)

// Service polls the import directory and feeds new export files through the
// importer. A cycle that lands at least one file triggers one reconciliation
// run.
type Service struct {
	db       *storage.DB
	cfg      config.Config
	importer *importer.ImportService
	pipeline *reconcile.Pipeline
	log      *logrus.Logger
}

func NewService(db *storage.DB, cfg config.Config, imp *importer.ImportService, pipe *reconcile.Pipeline, log *logrus.Logger) *Service {
	return &Service{db: db, cfg: cfg, importer: imp, pipeline: pipe, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(); err != nil {
			s.log.WithError(err).Error("watch cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatchIntervalSec) * time.Second):
		}
	}
}

// runCycle imports every new file in the import directory, up to the
// per-cycle cap on fresh imports. A file is new while no import_files row
// with its content hash has status imported; failed files are retried on
// later cycles. Already imported files do not count against the cap, so a
// full directory cannot starve new arrivals.
func (s *Service) runCycle() error {
	candidates, err := listExcelFiles(s.cfg.ImportDir)
	if err != nil {
		return err
	}

	imported := 0
	for _, path := range candidates {
		if s.cfg.WatchMaxFiles > 0 && imported >= s.cfg.WatchMaxFiles {
			break
		}
		fresh, err := s.importOne(path)
		if err != nil {
			s.log.WithError(err).WithField("file", filepath.Base(path)).Error("import failed")
			continue
		}
		if fresh {
			imported++
		}
	}

	if imported > 0 && s.cfg.WatchAutoResync {
		if _, err := s.pipeline.Run("watch"); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"imported":   imported,
	}).Info("watch cycle done")
	return nil
}

// importOne returns false when the file's content is already imported. The
// import service registers the attempt either way.
func (s *Service) importOne(path string) (bool, error) {
	hash, err := fileDigest(path)
	if err != nil {
		return false, err
	}

	known, err := s.db.ImportFileByHash(hash)
	if err != nil {
		return false, err
	}
	if known != nil && known.Status == internal.ImportFileImported {
		return false, nil
	}

	if _, err := s.importer.ImportFile(path); err != nil {
		return false, err
	}
	return true, nil
}

// listExcelFiles returns the spreadsheet files of dir in name order, skipping
// office ~$ temp files.
func listExcelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "~$") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".xlsx" && ext != ".xls" {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
