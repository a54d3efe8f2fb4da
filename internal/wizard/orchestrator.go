// Package wizard drives the dataset publication wizard: it validates each
// page submission, stores the partial dataset, picks the next page and
// gates publication.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/lifecycle"
	"github.com/hacknation/dataset-publisher/internal/metrics"
	"github.com/hacknation/dataset-publisher/internal/models"
	"github.com/hacknation/dataset-publisher/internal/observability"
	"github.com/hacknation/dataset-publisher/internal/validation"
)

var (
	ErrDatasetNotFound   = errors.New("dataset not found")
	ErrUnknownStep       = validation.ErrUnknownStep
	ErrFrequencyRequired = validation.ErrFrequencyRequired
	// ErrFrequencyLocked is returned when a frequency change would drop the
	// data links of a published dataset
	ErrFrequencyLocked = errors.New("frequency of a published dataset with data links cannot change")
)

// Orchestrator runs wizard operations. It keeps no state between calls;
// everything lives in the store.
type Orchestrator struct {
	store     Store
	engine    *validation.Engine
	syncer    Syncer
	notifiers []PublishNotifier
	reporter  observability.Reporter
	clock     clockwork.Clock
	asyncSync bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSyncer sets the catalog syncer called after every successful step
func WithSyncer(s Syncer) Option {
	return func(o *Orchestrator) { o.syncer = s }
}

// WithAsyncSync runs catalog syncs on a detached goroutine
func WithAsyncSync(async bool) Option {
	return func(o *Orchestrator) { o.asyncSync = async }
}

// WithNotifiers adds receivers of published datasets
func WithNotifiers(n ...PublishNotifier) Option {
	return func(o *Orchestrator) { o.notifiers = append(o.notifiers, n...) }
}

// WithReporter sets where failed notifications are reported
func WithReporter(r observability.Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithClock replaces the wall clock
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New creates an orchestrator over store using engine for field rules
func New(store Store, engine *validation.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		engine:   engine,
		reporter: observability.LogReporter{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Outcome is the result of a step submission: either the next step or the
// field failures that kept the wizard on the same page
type Outcome struct {
	Next     *Next               `json:"next,omitempty"`
	Failures validation.Failures `json:"failures,omitempty"`
}

// Valid reports whether the step was accepted
func (o *Outcome) Valid() bool {
	return o.Failures.Valid()
}

// StartDraft creates an empty draft owned by the creator and organisation
func (o *Orchestrator) StartDraft(ctx context.Context, creatorID, organisationID int64) (*models.Dataset, error) {
	now := o.clock.Now()
	ds := &models.Dataset{
		UUID:           uuid.New().String(),
		Status:         models.StatusDraft,
		OrganisationID: organisationID,
		CreatorID:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := o.store.Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	log.Info().
		Int64("dataset_id", ds.ID).
		Str("uuid", ds.UUID).
		Int64("creator_id", creatorID).
		Int64("organisation_id", organisationID).
		Msg("Draft dataset created")

	return ds, nil
}

// Advance validates and stores one step submission. Field failures are
// returned in the outcome and leave the dataset untouched; errors are
// workflow or storage problems.
func (o *Orchestrator) Advance(ctx context.Context, datasetID int64, step models.StepID, in models.StepInput) (*Outcome, error) {
	label := stepLabel(step)

	ds, err := o.load(ctx, datasetID)
	if err != nil {
		metrics.WizardStepsTotal.WithLabelValues(label, "error").Inc()
		return nil, err
	}

	failures, err := o.engine.Validate(ctx, step, in, ds.Frequency)
	if err != nil {
		metrics.WizardStepsTotal.WithLabelValues(label, "error").Inc()
		return nil, err
	}
	if !failures.Valid() {
		metrics.WizardStepsTotal.WithLabelValues(label, "invalid").Inc()
		log.Debug().
			Int64("dataset_id", datasetID).
			Str("step", string(step)).
			Int("failures", len(failures)).
			Msg("Step rejected")
		return &Outcome{Failures: failures}, nil
	}

	if err := checkFrequencyChange(ds, step, in); err != nil {
		metrics.WizardStepsTotal.WithLabelValues(label, "error").Inc()
		log.Info().Err(err).Int64("dataset_id", datasetID).Msg("Step rejected")
		return nil, err
	}

	now := o.clock.Now()
	apply(ds, step, in, now)
	ds.UpdatedAt = now

	nxt, err := next(step, ds)
	if err != nil {
		metrics.WizardStepsTotal.WithLabelValues(label, "error").Inc()
		return nil, err
	}

	if err := o.store.Save(ctx, ds); err != nil {
		metrics.WizardStepsTotal.WithLabelValues(label, "error").Inc()
		return nil, fmt.Errorf("failed to save dataset %d: %w", datasetID, err)
	}
	metrics.WizardStepsTotal.WithLabelValues(label, "ok").Inc()

	log.Info().
		Int64("dataset_id", datasetID).
		Str("step", string(step)).
		Str("next", string(nxt.Step)).
		Msg("Step saved")

	o.syncBestEffort(ctx, ds)

	return &Outcome{Next: &nxt}, nil
}

// Publish re-checks the publication guard and flips the dataset to
// published. A *lifecycle.WorkflowError means required fields are missing.
func (o *Orchestrator) Publish(ctx context.Context, datasetID int64) (*models.Dataset, error) {
	ds, err := o.load(ctx, datasetID)
	if err != nil {
		metrics.PublishTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	now := o.clock.Now()
	if err := lifecycle.Publish(ds, now); err != nil {
		metrics.PublishTotal.WithLabelValues("rejected").Inc()
		log.Info().Err(err).Int64("dataset_id", datasetID).Msg("Publish rejected")
		return nil, err
	}
	ds.UpdatedAt = now

	if err := o.store.Save(ctx, ds); err != nil {
		metrics.PublishTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to save dataset %d: %w", datasetID, err)
	}
	metrics.PublishTotal.WithLabelValues("published").Inc()

	log.Info().
		Int64("dataset_id", datasetID).
		Str("uuid", ds.UUID).
		Msg("Dataset published")

	o.syncBestEffort(ctx, ds)
	o.notify(ctx, ds)

	return ds, nil
}

// Get returns a dataset by id
func (o *Orchestrator) Get(ctx context.Context, datasetID int64) (*models.Dataset, error) {
	return o.load(ctx, datasetID)
}

// Review is the summary shown before publishing
type Review struct {
	Dataset      *models.Dataset         `json:"dataset"`
	State        lifecycle.State         `json:"state"`
	Missing      []lifecycle.Requirement `json:"missing"`
	LicenceTitle string                  `json:"licence_title,omitempty"`
}

// Review returns the dataset with its lifecycle state and unmet requirements
func (o *Orchestrator) Review(ctx context.Context, datasetID int64) (*Review, error) {
	ds, err := o.load(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return &Review{
		Dataset:      ds,
		State:        lifecycle.StateOf(ds),
		Missing:      lifecycle.Missing(ds),
		LicenceTitle: models.Licences[ds.LicenceCode],
	}, nil
}

func (o *Orchestrator) load(ctx context.Context, datasetID int64) (*models.Dataset, error) {
	ds, err := o.store.Get(ctx, datasetID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDatasetNotFound, datasetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %d: %w", datasetID, err)
	}
	return ds, nil
}

// syncBestEffort makes at most one sync attempt. Its outcome never changes
// the result of the step.
func (o *Orchestrator) syncBestEffort(ctx context.Context, ds *models.Dataset) {
	if o.syncer == nil {
		return
	}
	snapshot := ds.Clone()
	if o.asyncSync {
		go o.runSync(context.WithoutCancel(ctx), snapshot)
		return
	}
	o.runSync(ctx, snapshot)
}

func (o *Orchestrator) runSync(ctx context.Context, ds *models.Dataset) {
	res := o.syncer.Sync(ctx, ds)
	receipt, ok := res.Get()
	if !ok {
		metrics.MetadataSyncTotal.WithLabelValues("unavailable").Inc()
		log.Warn().
			Str("uuid", ds.UUID).
			Str("reason", res.Reason()).
			Msg("Catalog sync unavailable")
		return
	}
	metrics.MetadataSyncTotal.WithLabelValues("ok").Inc()
	log.Debug().
		Str("uuid", ds.UUID).
		Str("catalog_id", receipt.CatalogID).
		Msg("Catalog sync done")
}

func (o *Orchestrator) notify(ctx context.Context, ds *models.Dataset) {
	for _, n := range o.notifiers {
		if err := n.NotifyPublished(ctx, ds.Clone()); err != nil {
			o.reporter.Capture(ctx, err, map[string]string{
				"dataset_uuid": ds.UUID,
				"operation":    "notify_published",
			})
		}
	}
}
