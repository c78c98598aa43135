package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitesurvey-cli/internal/config"
	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/fetcher"
	"github.com/sells-group/sitesurvey-cli/internal/metrics"
	"github.com/sells-group/sitesurvey-cli/internal/refdata"
	"github.com/sells-group/sitesurvey-cli/internal/siteimport"
	"github.com/sells-group/sitesurvey-cli/internal/store"
	"github.com/sells-group/sitesurvey-cli/internal/taxonomy"
	"github.com/sells-group/sitesurvey-cli/pkg/postcodes"
)

// importEnv holds the collaborators of an import command.
type importEnv struct {
	Store    facility.Store
	Service  *siteimport.Service
	Recorder *metrics.Recorder
}

// Close flushes metrics and closes the store.
func (e *importEnv) Close() {
	if cfg.Metrics.Textfile != "" {
		if err := e.Recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			zap.L().Warn("failed to write metrics textfile", zap.Error(err))
		}
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("failed to close store", zap.Error(err))
	}
}

func loadTaxonomy(c *config.Config) (*taxonomy.Taxonomy, error) {
	var (
		tax *taxonomy.Taxonomy
		err error
	)
	if c.Survey.TaxonomyPath != "" {
		tax, err = taxonomy.LoadFile(c.Survey.TaxonomyPath)
	} else {
		tax, err = taxonomy.Default()
	}
	if err != nil {
		return nil, err
	}
	if c.Survey.ServiceScope != "" {
		tax = tax.WithService(c.Survey.ServiceScope)
	}
	return tax, nil
}

func newLoader(ctx context.Context, c *config.Config) (*fetcher.Loader, error) {
	s3Client, err := fetcher.NewS3Client(ctx, fetcher.S3Options{
		Region:    c.S3.Region,
		Endpoint:  c.S3.Endpoint,
		PathStyle: c.S3.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return fetcher.NewLoader(
		fetcher.WithS3(fetcher.NewS3Fetcher(s3Client)),
		fetcher.WithHTTP(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})),
	), nil
}

func newPostcodes(c *config.Config) postcodes.Client {
	return postcodes.NewClient(
		postcodes.WithBaseURL(c.Postcodes.BaseURL),
		postcodes.WithTimeout(time.Duration(c.Postcodes.TimeoutSecs)*time.Second),
		postcodes.WithRateLimit(c.Postcodes.RateLimit),
		postcodes.WithRetries(c.Postcodes.Retries),
	)
}

// initImport validates config and wires the import service.
func initImport(ctx context.Context) (*importEnv, error) {
	if err := cfg.Validate("import"); err != nil {
		return nil, err
	}

	tax, err := loadTaxonomy(cfg)
	if err != nil {
		return nil, err
	}
	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	rec := metrics.NewRecorder()
	svc := siteimport.NewService(st, tax, refdata.NewResolver(st, newPostcodes(cfg)),
		siteimport.Options{PremisesSheet: cfg.Survey.PremisesSheet, RoomsSheet: cfg.Survey.RoomsSheet},
		siteimport.WithLoader(loader),
		siteimport.WithRecorder(rec),
	)
	return &importEnv{Store: st, Service: svc, Recorder: rec}, nil
}
