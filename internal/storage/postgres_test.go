package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/hacknation/dataset-publisher/internal/models"
)

func newTestPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(terminateCtx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	s, err := NewPostgresStorage(host, port.Port(), "test", "test", "test", "disable")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStorage(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	now := time.Date(2020, time.February, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddTopic(ctx, 4, "Transport"))

	t.Run("topics", func(t *testing.T) {
		require.NoError(t, s.AddTopic(ctx, 4, "Renamed"))

		ok, err := s.TopicExists(ctx, 4)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.TopicExists(ctx, 99)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("new draft has no optional fields", func(t *testing.T) {
		ds := &models.Dataset{UUID: "draft-1", Status: models.StatusDraft, OrganisationID: 1, CreatorID: 2, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.Create(ctx, ds))
		require.NotZero(t, ds.ID)

		got, err := s.Get(ctx, ds.ID)
		require.NoError(t, err)
		assert.Equal(t, "draft-1", got.UUID)
		assert.Nil(t, got.TopicID)
		assert.Nil(t, got.Frequency)
		assert.Nil(t, got.PublishedAt)
		assert.Empty(t, got.Links)
		assert.Empty(t, got.Docs)
		assert.True(t, now.Equal(got.CreatedAt))
	})

	t.Run("save replaces the whole aggregate", func(t *testing.T) {
		ds := &models.Dataset{UUID: "full-1", Status: models.StatusDraft, OrganisationID: 1, CreatorID: 2, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.Create(ctx, ds))

		topic := int64(4)
		freq := models.FrequencyQuarterly
		end := time.Date(2020, time.March, 31, 0, 0, 0, 0, time.UTC)
		quarter, year := 1, 2020
		ds.Title, ds.Name, ds.Summary, ds.Description = "Road traffic", "road-traffic", "Counts", "Quarterly counts"
		ds.TopicID, ds.Frequency, ds.LicenceCode = &topic, &freq, "uk-ogl"
		ds.Links = []models.Link{
			{Kind: models.LinkKindData, URL: "https://example.com/q1.csv", Name: "Q1", Format: "CSV", Quarter: &quarter, Year: &year, EndDate: &end, CreatedAt: now},
			{Kind: models.LinkKindData, URL: "https://example.com/q2.json", Name: "Q2", Format: "JSON", CreatedAt: now},
		}
		ds.Docs = []models.Link{{Kind: models.LinkKindDoc, URL: "https://example.com/guide.pdf", Name: "Guide", Format: "PDF", CreatedAt: now}}
		require.NoError(t, s.Save(ctx, ds))

		got, err := s.GetByUUID(ctx, "full-1")
		require.NoError(t, err)
		require.NotNil(t, got.TopicID)
		assert.Equal(t, topic, *got.TopicID)
		require.NotNil(t, got.Frequency)
		assert.Equal(t, freq, *got.Frequency)
		require.Len(t, got.Links, 2)
		assert.Equal(t, "https://example.com/q1.csv", got.Links[0].URL)
		assert.Equal(t, 1, *got.Links[0].Quarter)
		assert.Nil(t, got.Links[0].Day)
		assert.Nil(t, got.Links[0].Month)
		require.NotNil(t, got.Links[0].EndDate)
		assert.Equal(t, end, *got.Links[0].EndDate)
		assert.Nil(t, got.Links[1].EndDate)
		require.Len(t, got.Docs, 1)
		assert.Equal(t, "Guide", got.Docs[0].Name)

		// fewer links on the next save leave no stale rows
		ds.Links = ds.Links[1:]
		ds.Docs = nil
		ds.Status = models.StatusPublished
		ds.PublishedAt = &now
		require.NoError(t, s.Save(ctx, ds))

		got, err = s.Get(ctx, ds.ID)
		require.NoError(t, err)
		require.Len(t, got.Links, 1)
		assert.Equal(t, "https://example.com/q2.json", got.Links[0].URL)
		assert.Empty(t, got.Docs)
		assert.Equal(t, models.StatusPublished, got.Status)
		require.NotNil(t, got.PublishedAt)
		assert.True(t, now.Equal(*got.PublishedAt))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Get(ctx, 9999)
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = s.GetByUUID(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)

		err = s.Save(ctx, &models.Dataset{ID: 9999, Status: models.StatusDraft})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, st.Datasets)
		assert.Equal(t, 1, st.Publishers)
		assert.Equal(t, 1, st.Published)
		assert.Equal(t, 1, st.Drafts)
		assert.Equal(t, 1, st.WithNoDatafiles)
		assert.Equal(t, 1, st.Datafiles)
		assert.Equal(t, 0, st.Docs)
		assert.Equal(t, []FormatCount{{Format: "JSON", Count: 1}}, st.DatafilesByFormat)
	})
}
