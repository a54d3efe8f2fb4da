package wizard

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacknation/dataset-publisher/internal/lifecycle"
	"github.com/hacknation/dataset-publisher/internal/metrics"
	"github.com/hacknation/dataset-publisher/internal/models"
	"github.com/hacknation/dataset-publisher/internal/outcome"
	"github.com/hacknation/dataset-publisher/internal/storage"
	"github.com/hacknation/dataset-publisher/internal/validation"
)

const topicID int64 = 4

var startTime = time.Date(2020, time.February, 1, 9, 0, 0, 0, time.UTC)

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

type fakeSyncer struct {
	mu    sync.Mutex
	calls []*models.Dataset
	fail  bool
	done  chan struct{}
}

func (s *fakeSyncer) Sync(_ context.Context, ds *models.Dataset) outcome.Result[models.SyncReceipt] {
	s.mu.Lock()
	s.calls = append(s.calls, ds)
	s.mu.Unlock()
	if s.done != nil {
		defer func() { s.done <- struct{}{} }()
	}
	if s.fail {
		return outcome.Unavailable[models.SyncReceipt]("connection refused")
	}
	return outcome.Available(models.SyncReceipt{CatalogID: "ckan-1", Name: ds.Name})
}

func (s *fakeSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeNotifier struct {
	published []*models.Dataset
	err       error
}

func (n *fakeNotifier) NotifyPublished(_ context.Context, ds *models.Dataset) error {
	n.published = append(n.published, ds)
	return n.err
}

type fakeReporter struct {
	errs []error
}

func (r *fakeReporter) Capture(_ context.Context, err error, _ map[string]string) {
	r.errs = append(r.errs, err)
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *storage.MemoryStorage, *clockwork.FakeClock) {
	t.Helper()
	store := storage.NewMemoryStorage()
	store.AddTopic(topicID, "Transport")
	clock := clockwork.NewFakeClockAt(startTime)
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(store, validation.NewEngine(store), opts...), store, clock
}

// advanceOK submits a step and fails the test if it is not accepted
func advanceOK(t *testing.T, o *Orchestrator, id int64, step models.StepID, in models.StepInput) Next {
	t.Helper()
	out, err := o.Advance(context.Background(), id, step, in)
	require.NoError(t, err)
	require.True(t, out.Valid(), "step %s rejected: %v", step, out.Failures)
	require.NotNil(t, out.Next)
	return *out.Next
}

// fillToFrequency walks a fresh draft up to and including the frequency step
func fillToFrequency(t *testing.T, o *Orchestrator, id int64, freq models.Frequency) Next {
	t.Helper()
	advanceOK(t, o, id, models.StepNew, models.StepInput{Title: "Road traffic", Summary: "Counts", Description: "Daily counts"})
	advanceOK(t, o, id, models.StepTopic, models.StepInput{TopicID: int64p(topicID)})
	advanceOK(t, o, id, models.StepLicence, models.StepInput{LicenceCode: "uk-ogl"})
	advanceOK(t, o, id, models.StepLocation, models.StepInput{Location1: "England"})
	return advanceOK(t, o, id, models.StepFrequency, models.StepInput{Frequency: string(freq)})
}

func TestStartDraft(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	ds, err := o.StartDraft(context.Background(), 10, 20)
	require.NoError(t, err)

	assert.NotZero(t, ds.ID)
	assert.NotEmpty(t, ds.UUID)
	assert.Equal(t, models.StatusDraft, ds.Status)
	assert.Equal(t, int64(10), ds.CreatorID)
	assert.Equal(t, int64(20), ds.OrganisationID)
	assert.Equal(t, startTime, ds.CreatedAt)
}

func TestWizard_DailyEndToEnd(t *testing.T) {
	ctx := context.Background()
	o, _, clock := newTestOrchestrator(t)

	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)

	nxt := advanceOK(t, o, ds.ID, models.StepNew, models.StepInput{Title: "my test dataset", Summary: "my test dataset summary", Description: "my test dataset description"})
	assert.Equal(t, models.StepTopic, nxt.Step)
	nxt = advanceOK(t, o, ds.ID, models.StepTopic, models.StepInput{TopicID: int64p(topicID)})
	assert.Equal(t, models.StepLicence, nxt.Step)
	nxt = advanceOK(t, o, ds.ID, models.StepLicence, models.StepInput{LicenceCode: "uk-ogl"})
	assert.Equal(t, models.StepLocation, nxt.Step)
	nxt = advanceOK(t, o, ds.ID, models.StepLocation, models.StepInput{Location1: "Aviation House"})
	assert.Equal(t, models.StepFrequency, nxt.Step)
	nxt = advanceOK(t, o, ds.ID, models.StepFrequency, models.StepInput{Frequency: "daily"})
	assert.Equal(t, Next{Step: models.StepDatafiles, Period: models.PeriodDayMonthYear}, nxt)

	nxt = advanceOK(t, o, ds.ID, models.StepDatafiles, models.StepInput{
		URL: "https://localhost", Name: "my test datafile",
		Day: intp(15), Month: intp(1), Year: intp(2020),
	})
	assert.Equal(t, models.StepDocs, nxt.Step)
	nxt = advanceOK(t, o, ds.ID, models.StepDocs, models.StepInput{})
	assert.Equal(t, models.StepPublish, nxt.Step)

	clock.Advance(time.Hour)
	published, err := o.Publish(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, startTime.Add(time.Hour), *published.PublishedAt)

	got, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "my-test-dataset", got.Name)
	assert.Empty(t, got.Docs)
	require.Len(t, got.Links, 1)
	require.NotNil(t, got.Links[0].EndDate)
	assert.Equal(t, time.Date(2020, time.January, 15, 0, 0, 0, 0, time.UTC), *got.Links[0].EndDate)
}

func TestAdvance_FrequencyRoutes(t *testing.T) {
	tests := []struct {
		freq   models.Frequency
		period models.PeriodFields
		in     models.StepInput
		want   *time.Time
	}{
		{models.FrequencyNever, models.PeriodNone, models.StepInput{}, nil},
		{models.FrequencyDaily, models.PeriodDayMonthYear, models.StepInput{Day: intp(29), Month: intp(2), Year: intp(2020)}, datep(2020, time.February, 29)},
		{models.FrequencyWeekly, models.PeriodDayMonthYear, models.StepInput{Day: intp(7), Month: intp(3), Year: intp(2021)}, datep(2021, time.March, 7)},
		{models.FrequencyMonthly, models.PeriodMonthYear, models.StepInput{Month: intp(1), Year: intp(2020)}, datep(2020, time.January, 31)},
		{models.FrequencyQuarterly, models.PeriodQuarterYear, models.StepInput{Quarter: intp(4), Year: intp(2019)}, datep(2020, time.March, 31)},
		{models.FrequencyAnnually, models.PeriodYear, models.StepInput{Year: intp(2015)}, datep(2015, time.December, 31)},
		{models.FrequencyFinancialYear, models.PeriodYear, models.StepInput{Year: intp(2015)}, datep(2016, time.March, 31)},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			ctx := context.Background()
			o, _, _ := newTestOrchestrator(t)
			ds, err := o.StartDraft(ctx, 1, 1)
			require.NoError(t, err)

			nxt := fillToFrequency(t, o, ds.ID, tt.freq)
			assert.Equal(t, Next{Step: models.StepDatafiles, Period: tt.period}, nxt)

			in := tt.in
			in.URL, in.Name = "https://example.com/data.csv", "data"
			advanceOK(t, o, ds.ID, models.StepDatafiles, in)

			got, err := o.Get(ctx, ds.ID)
			require.NoError(t, err)
			require.Len(t, got.Links, 1)
			assert.Equal(t, "CSV", got.Links[0].Format)
			if tt.want == nil {
				assert.Nil(t, got.Links[0].EndDate)
				return
			}
			require.NotNil(t, got.Links[0].EndDate)
			assert.Equal(t, *tt.want, *got.Links[0].EndDate)
		})
	}
}

func datep(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAdvance_IrrelevantPeriodFieldsDropped(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)
	fillToFrequency(t, o, ds.ID, models.FrequencyMonthly)

	advanceOK(t, o, ds.ID, models.StepDatafiles, models.StepInput{
		URL: "https://example.com/jan.csv", Name: "January",
		Day: intp(99), Month: intp(1), Quarter: intp(7), Year: intp(2020),
	})

	got, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)
	require.Len(t, got.Links, 1)
	assert.Nil(t, got.Links[0].Day)
	assert.Nil(t, got.Links[0].Quarter)
	assert.Equal(t, 1, *got.Links[0].Month)
}

func TestAdvance_ResubmissionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	o, _, clock := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)
	fillToFrequency(t, o, ds.ID, models.FrequencyAnnually)

	in := models.StepInput{URL: "https://example.com/2019.csv", Name: "2019", Year: intp(2019)}
	advanceOK(t, o, ds.ID, models.StepDatafiles, in)
	first, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	advanceOK(t, o, ds.ID, models.StepDatafiles, in)
	second, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Links, second.Links)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Frequency, second.Frequency)
}

func TestAdvance_InvalidInputLeavesDatasetUntouched(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)
	advanceOK(t, o, ds.ID, models.StepNew, models.StepInput{Title: "Original", Summary: "s"})

	out, err := o.Advance(ctx, ds.ID, models.StepNew, models.StepInput{Title: "Changed"})
	require.NoError(t, err)
	assert.False(t, out.Valid())
	assert.Nil(t, out.Next)
	assert.True(t, out.Failures.Has("summary"))

	got, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
}

func TestAdvance_UnknownTopicRejected(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)

	out, err := o.Advance(ctx, ds.ID, models.StepTopic, models.StepInput{TopicID: int64p(999)})
	require.NoError(t, err)
	assert.True(t, out.Failures.Has("topic_id"))
}

func TestAdvance_FrequencyChangeClearsDataLinks(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)
	fillToFrequency(t, o, ds.ID, models.FrequencyAnnually)
	advanceOK(t, o, ds.ID, models.StepDatafiles, models.StepInput{URL: "https://example.com/a.csv", Name: "a", Year: intp(2019)})
	advanceOK(t, o, ds.ID, models.StepDocs, models.StepInput{URL: "https://example.com/guide.pdf", Name: "Guide"})

	// same frequency keeps links
	advanceOK(t, o, ds.ID, models.StepFrequency, models.StepInput{Frequency: "annually"})
	got, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Len(t, got.Links, 1)

	nxt := advanceOK(t, o, ds.ID, models.StepFrequency, models.StepInput{Frequency: "monthly"})
	assert.Equal(t, models.PeriodMonthYear, nxt.Period)
	got, err = o.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Links)
	assert.Len(t, got.Docs, 1)
}

func TestAdvance_PublishedFrequencyIsLocked(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)
	fillToFrequency(t, o, ds.ID, models.FrequencyAnnually)
	advanceOK(t, o, ds.ID, models.StepDatafiles, models.StepInput{URL: "https://example.com/a.csv", Name: "a", Year: intp(2019)})
	_, err = o.Publish(ctx, ds.ID)
	require.NoError(t, err)

	_, err = o.Advance(ctx, ds.ID, models.StepFrequency, models.StepInput{Frequency: "monthly"})
	require.ErrorIs(t, err, ErrFrequencyLocked)

	got, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, got.Status)
	assert.Equal(t, models.FrequencyAnnually, *got.Frequency)
	assert.Len(t, got.Links, 1)
	assert.Empty(t, lifecycle.Missing(got))

	// the same frequency and other pages stay editable
	advanceOK(t, o, ds.ID, models.StepFrequency, models.StepInput{Frequency: "annually"})
	advanceOK(t, o, ds.ID, models.StepLocation, models.StepInput{Location1: "Wales"})
	got, err = o.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Len(t, got.Links, 1)
	assert.Equal(t, "Wales", got.Location1)
}

func TestAdvance_UnknownStepsShareOneSeries(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)

	unknown := testutil.ToFloat64(metrics.WizardStepsTotal.WithLabelValues("unknown", "error"))
	series := testutil.CollectAndCount(metrics.WizardStepsTotal)

	for i := 0; i < 50; i++ {
		_, err := o.Advance(ctx, ds.ID, models.StepID("junk-"+strconv.Itoa(i)), models.StepInput{})
		require.ErrorIs(t, err, ErrUnknownStep)
	}

	assert.Equal(t, series, testutil.CollectAndCount(metrics.WizardStepsTotal))
	assert.Equal(t, unknown+50, testutil.ToFloat64(metrics.WizardStepsTotal.WithLabelValues("unknown", "error")))
}

func TestAdvance_Errors(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)

	_, err = o.Advance(ctx, 999, models.StepNew, models.StepInput{Title: "t", Summary: "s"})
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	_, err = o.Advance(ctx, ds.ID, models.StepID("colour"), models.StepInput{})
	assert.ErrorIs(t, err, ErrUnknownStep)

	_, err = o.Advance(ctx, ds.ID, models.StepPublish, models.StepInput{})
	assert.ErrorIs(t, err, ErrUnknownStep)

	_, err = o.Advance(ctx, ds.ID, models.StepDatafiles, models.StepInput{URL: "https://example.com/a.csv", Name: "a"})
	assert.ErrorIs(t, err, ErrFrequencyRequired)
}

func TestPublish_Guard(t *testing.T) {
	ctx := context.Background()
	notifier := &fakeNotifier{}
	o, _, _ := newTestOrchestrator(t, WithNotifiers(notifier))
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)
	fillToFrequency(t, o, ds.ID, models.FrequencyNever)

	_, err = o.Publish(ctx, ds.ID)
	var wfErr *lifecycle.WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, []lifecycle.Requirement{lifecycle.RequireLinks}, wfErr.Missing)
	assert.Empty(t, notifier.published)

	got, err := o.Get(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Nil(t, got.PublishedAt)

	advanceOK(t, o, ds.ID, models.StepDatafiles, models.StepInput{URL: "https://example.com/a.csv", Name: "a"})
	_, err = o.Publish(ctx, ds.ID)
	require.NoError(t, err)
	require.Len(t, notifier.published, 1)
	assert.Equal(t, ds.UUID, notifier.published[0].UUID)

	_, err = o.Publish(ctx, ds.ID)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyPublished)
	assert.Len(t, notifier.published, 1)

	_, err = o.Publish(ctx, 999)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestPublish_NotifierFailureIsReported(t *testing.T) {
	ctx := context.Background()
	reporter := &fakeReporter{}
	notifier := &fakeNotifier{err: errors.New("broker down")}
	o, _, _ := newTestOrchestrator(t, WithNotifiers(notifier), WithReporter(reporter))
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)
	fillToFrequency(t, o, ds.ID, models.FrequencyNever)
	advanceOK(t, o, ds.ID, models.StepDatafiles, models.StepInput{URL: "https://example.com/a.csv", Name: "a"})

	published, err := o.Publish(ctx, ds.ID)
	require.NoError(t, err)
	assert.True(t, published.Published())
	require.Len(t, reporter.errs, 1)
	assert.EqualError(t, reporter.errs[0], "broker down")
}

func TestSync_FailureDoesNotFailStep(t *testing.T) {
	ctx := context.Background()
	syncer := &fakeSyncer{fail: true}
	o, _, _ := newTestOrchestrator(t, WithSyncer(syncer))
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)

	nxt := advanceOK(t, o, ds.ID, models.StepNew, models.StepInput{Title: "t", Summary: "s"})
	assert.Equal(t, models.StepTopic, nxt.Step)
	assert.Equal(t, 1, syncer.count())

	// rejected steps are not synced
	out, err := o.Advance(ctx, ds.ID, models.StepNew, models.StepInput{})
	require.NoError(t, err)
	assert.False(t, out.Valid())
	assert.Equal(t, 1, syncer.count())
}

func TestSync_Async(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	syncer := &fakeSyncer{done: make(chan struct{}, 1)}
	o, _, _ := newTestOrchestrator(t, WithSyncer(syncer), WithAsyncSync(true))
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)

	advanceOK(t, o, ds.ID, models.StepNew, models.StepInput{Title: "t", Summary: "s"})
	cancel()

	select {
	case <-syncer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not run")
	}
	require.Equal(t, 1, syncer.count())
	assert.Equal(t, "t", syncer.calls[0].Title)
}

func TestReview(t *testing.T) {
	ctx := context.Background()
	o, _, _ := newTestOrchestrator(t)
	ds, err := o.StartDraft(ctx, 1, 1)
	require.NoError(t, err)

	review, err := o.Review(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDraftIncomplete, review.State)
	assert.Len(t, review.Missing, 7)

	fillToFrequency(t, o, ds.ID, models.FrequencyNever)
	advanceOK(t, o, ds.ID, models.StepDatafiles, models.StepInput{URL: "https://example.com/a.csv", Name: "a"})

	review, err = o.Review(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDraftComplete, review.State)
	assert.Empty(t, review.Missing)
	assert.Equal(t, "Open Government Licence", review.LicenceTitle)
}
