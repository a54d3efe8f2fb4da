package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacknation/dataset-publisher/internal/models"
)

func TestFormatToDCAT(t *testing.T) {
	ds := testDataset()
	later := time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	ds.Links = append(ds.Links, models.Link{
		Kind:    models.LinkKindData,
		URL:     "http://example.com/march.csv",
		Name:    "March",
		Format:  "CSV",
		EndDate: &later,
	})
	ds.Docs = []models.Link{{Kind: models.LinkKindDoc, URL: "http://example.com/guide.pdf", Name: "Guide"}}

	record := NewDCATFormatter("https://data.example.com/").FormatToDCAT(ds)

	assert.Equal(t, "https://data.example.com/dataset/"+ds.UUID, record.ID)
	assert.Equal(t, ds.UUID, record.Identifier)
	assert.Equal(t, "Road traffic", record.Title)
	assert.Equal(t, "Counts", record.Abstract)
	assert.Empty(t, record.Issued)
	assert.Equal(t, "2020-02-01T10:00:00Z", record.Modified)
	assert.Equal(t, []string{"https://data.example.com/topic/3"}, record.Theme)
	assert.Equal(t, "http://publications.europa.eu/resource/authority/frequency/DAILY", record.Periodicity)
	require.NotNil(t, record.Spatial)
	assert.Equal(t, "England", record.Spatial.Label)
	require.NotNil(t, record.Temporal)
	assert.Equal(t, "2020-03-01", record.Temporal.EndDate)
	require.Len(t, record.Distribution, 2)
	assert.Equal(t, "2020-01-15", record.Distribution[0].EndDate)
	assert.Equal(t, []string{"http://example.com/guide.pdf"}, record.Documentation)
	assert.Contains(t, record.License, "open-government-licence")
}

func TestFormatToDCAT_NeverHasNoTemporal(t *testing.T) {
	ds := testDataset()
	never := models.FrequencyNever
	ds.Frequency = &never
	ds.Links[0].EndDate = nil
	ds.Location1 = ""
	published := time.Date(2021, time.May, 4, 12, 0, 0, 0, time.UTC)
	ds.PublishedAt = &published

	record := NewDCATFormatter("https://data.example.com").FormatToDCAT(ds)

	assert.Nil(t, record.Temporal)
	assert.Nil(t, record.Spatial)
	assert.Empty(t, record.Distribution[0].EndDate)
	assert.Equal(t, "2021-05-04T12:00:00Z", record.Issued)
}
