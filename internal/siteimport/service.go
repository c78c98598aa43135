// Package siteimport runs one survey workbook through parsing, reference data
// resolution and reconciliation as a single unit of work.
package siteimport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sitesurvey-cli/internal/facility"
	"github.com/sells-group/sitesurvey-cli/internal/fetcher"
	"github.com/sells-group/sitesurvey-cli/internal/metrics"
	"github.com/sells-group/sitesurvey-cli/internal/reconcile"
	"github.com/sells-group/sitesurvey-cli/internal/refdata"
	"github.com/sells-group/sitesurvey-cli/internal/sitesurvey"
	"github.com/sells-group/sitesurvey-cli/internal/survey"
	"github.com/sells-group/sitesurvey-cli/internal/taxonomy"
)

// Options names the sheets of a survey workbook.
type Options struct {
	PremisesSheet string
	RoomsSheet    string
}

// Report describes one committed import.
type Report struct {
	Source string `json:"source"`
	QCode  string `json:"q_code"`
	reconcile.Result
	Duration time.Duration `json:"duration"`
}

// Service imports survey workbooks into a facility store.
type Service struct {
	store    facility.Store
	taxonomy *taxonomy.Taxonomy
	resolver *refdata.Resolver
	loader   *fetcher.Loader
	opts     Options
	recorder *metrics.Recorder
	locks    *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithLoader sets how workbook sources are opened. Defaults to local files only.
func WithLoader(l *fetcher.Loader) Option {
	return func(s *Service) { s.loader = l }
}

// WithRecorder records import metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService creates an import Service.
func NewService(store facility.Store, tax *taxonomy.Taxonomy, resolver *refdata.Resolver, opts Options, options ...Option) *Service {
	s := &Service{
		store:    store,
		taxonomy: tax,
		resolver: resolver,
		loader:   fetcher.NewLoader(),
		opts:     opts,
		locks:    newKeyedMutex(),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Import opens source and imports it. When qCode is set only the rooms sheet
// is read and reconciled against that existing premises.
func (s *Service) Import(ctx context.Context, source, qCode string) (*Report, error) {
	start := time.Now()
	wb, err := s.loader.Open(ctx, source)
	if err != nil {
		s.observeFailure(err, start)
		return nil, err
	}
	return s.importWorkbook(ctx, wb, qCode, start)
}

// ImportWorkbook imports an already opened workbook.
func (s *Service) ImportWorkbook(ctx context.Context, wb *fetcher.Workbook, qCode string) (*Report, error) {
	return s.importWorkbook(ctx, wb, qCode, time.Now())
}

// plan is everything parsed and resolved before the transaction opens.
type plan struct {
	qCode    string
	premises *sitesurvey.CandidatePremises
	refs     *refdata.Resolved
	rooms    []sitesurvey.CandidateRoom
	hasRooms bool
}

func (s *Service) importWorkbook(ctx context.Context, wb *fetcher.Workbook, qCode string, start time.Time) (*Report, error) {
	log := zap.L().With(zap.String("source", wb.Name()))

	p, err := s.prepare(ctx, wb, qCode)
	if err != nil {
		s.observeFailure(err, start)
		log.Error("survey rejected", zap.Error(err), zap.String("kind", string(survey.KindOf(err))))
		return nil, err
	}

	unlock := s.locks.Lock(p.qCode)
	defer unlock()

	var res reconcile.Result
	err = s.store.InTx(ctx, func(ctx context.Context, tx facility.Tx) error {
		if err := tx.LockFacility(ctx, p.qCode); err != nil {
			return err
		}
		var err error
		res, err = s.reconcile(ctx, tx, p)
		return err
	})
	if err != nil {
		s.observeFailure(err, start)
		log.Error("import rolled back", zap.String("q_code", p.qCode), zap.Error(err))
		return nil, err
	}

	report := &Report{Source: wb.Name(), QCode: p.qCode, Result: res, Duration: time.Since(start)}
	if s.recorder != nil {
		s.recorder.ObserveSuccess(res, report.Duration)
	}
	log.Info("import committed",
		zap.String("q_code", p.qCode),
		zap.Int("writes", res.Writes()),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// prepare runs every check that needs no transaction: sheet parsing, taxonomy
// binding and reference data lookups.
func (s *Service) prepare(ctx context.Context, wb *fetcher.Workbook, qCode string) (*plan, error) {
	bound, err := s.taxonomy.Bind(ctx, s.store)
	if err != nil {
		return nil, err
	}

	p := &plan{qCode: qCode}
	if qCode == "" {
		g, err := wb.Grid(s.opts.PremisesSheet)
		if err != nil {
			return nil, err
		}
		if p.premises, err = sitesurvey.ParsePremises(g, bound); err != nil {
			return nil, err
		}
		p.qCode = p.premises.QCode
	}

	p.hasRooms = qCode != "" || wb.HasSheet(s.opts.RoomsSheet)
	if p.hasRooms {
		g, err := wb.Grid(s.opts.RoomsSheet)
		if err != nil {
			return nil, err
		}
		if p.rooms, err = sitesurvey.ParseRooms(g, bound, p.qCode); err != nil {
			return nil, err
		}
	}

	if p.premises != nil {
		p.refs, err = s.resolver.Resolve(ctx, p.premises.ProbationRegion, p.premises.LocalAuthorityArea, p.premises.Postcode)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Service) reconcile(ctx context.Context, tx facility.Tx, p *plan) (reconcile.Result, error) {
	engine := reconcile.New(tx)

	var res reconcile.Result
	if p.premises != nil {
		premises, outcome, err := engine.ReconcilePremises(ctx, p.premises, p.refs)
		if err != nil {
			return res, err
		}
		res.PremisesID = premises.ID
		res.Premises = countOf(outcome)
	} else {
		existing, err := tx.FindPremisesByQCode(ctx, p.qCode)
		if err != nil {
			return res, err
		}
		if existing == nil {
			return res, survey.ReferenceDataNotFound("premises", p.qCode)
		}
		res.PremisesID = existing.ID
	}

	if !p.hasRooms {
		return res, nil
	}
	rooms, err := engine.ReconcileRooms(ctx, res.PremisesID, p.rooms)
	if err != nil {
		return res, err
	}
	res.Rooms = rooms.Rooms
	res.Beds = rooms.Beds
	res.BedsRetained = rooms.BedsRetained
	return res, nil
}

func countOf(o reconcile.Outcome) reconcile.Counts {
	var c reconcile.Counts
	switch o {
	case reconcile.OutcomeCreated:
		c.Created = 1
	case reconcile.OutcomeUpdated:
		c.Updated = 1
	case reconcile.OutcomeUnchanged:
		c.Unchanged = 1
	}
	return c
}

func (s *Service) observeFailure(err error, start time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveFailure(err, time.Since(start))
	}
}
