package siteimport

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sitesurvey-cli/internal/fetcher"
)

// BatchItem is the outcome of one workbook in a batch.
type BatchItem struct {
	Source string  `json:"source"`
	Report *Report `json:"report,omitempty"`
	Err    error   `json:"-"`
}

// BatchReport collects the outcomes of a batch in source order.
type BatchReport struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// ImportAll imports every source with at most concurrency imports in flight.
// A failed workbook does not stop the others; its error is kept on its item.
// Imports of the same facility never overlap.
func (s *Service) ImportAll(ctx context.Context, sources []string, concurrency int) (*BatchReport, error) {
	if len(sources) == 0 {
		zap.L().Info("no survey workbooks found")
		return &BatchReport{}, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("workbooks", len(sources)),
		zap.Int("concurrency", concurrency),
	)

	items := make([]BatchItem, len(sources))
	var mu sync.Mutex
	report := &BatchReport{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, source := range sources {
		g.Go(func() error {
			rep, err := s.Import(gctx, source, "")
			items[i] = BatchItem{Source: source, Report: rep, Err: err}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				return nil // don't abort batch on individual failure
			}
			report.Succeeded++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch import")
	}
	report.Items = items

	zap.L().Info("batch complete",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// ListWorkbooks returns the .xlsx files directly inside dir, sorted by name.
func ListWorkbooks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "siteimport: read dir %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !fetcher.IsWorkbook(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
