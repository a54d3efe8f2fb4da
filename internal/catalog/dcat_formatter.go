package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/hacknation/dataset-publisher/internal/models"
)

const dateLayout = "2006-01-02"

// DCATFormatter converts datasets to DCAT-AP records
type DCATFormatter struct {
	baseURL string
}

// NewDCATFormatter creates a formatter that mints record ids under baseURL
func NewDCATFormatter(baseURL string) *DCATFormatter {
	return &DCATFormatter{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// FormatToDCAT converts a dataset to DCAT-AP format
func (f *DCATFormatter) FormatToDCAT(ds *models.Dataset) *models.DCATDataset {
	record := &models.DCATDataset{
		Context:     "https://www.w3.org/ns/dcat",
		Type:        "dcat:Dataset",
		ID:          fmt.Sprintf("%s/dataset/%s", f.baseURL, ds.UUID),
		Identifier:  ds.UUID,
		Title:       ds.Title,
		Description: ds.Description,
		Abstract:    ds.Summary,
		Modified:    ds.UpdatedAt.UTC().Format(time.RFC3339),
		Publisher: models.DCATPublisher{
			Type: "foaf:Organization",
			ID:   fmt.Sprintf("%s/publisher/%d", f.baseURL, ds.OrganisationID),
		},
		Spatial:      getSpatial(ds),
		Temporal:     getTemporal(ds.Links),
		Distribution: make([]models.DCATDistribution, 0, len(ds.Links)),
		License:      licenceURIs[ds.LicenceCode],
	}

	if ds.PublishedAt != nil {
		record.Issued = ds.PublishedAt.UTC().Format(time.RFC3339)
	}
	if ds.TopicID != nil {
		record.Theme = []string{fmt.Sprintf("%s/topic/%d", f.baseURL, *ds.TopicID)}
	}
	if ds.Frequency != nil {
		record.Periodicity = periodicityURIs[*ds.Frequency]
	}

	for _, l := range ds.Links {
		dist := models.DCATDistribution{
			Type:      "dcat:Distribution",
			Title:     l.Name,
			Format:    l.Format,
			AccessURL: l.URL,
		}
		if l.EndDate != nil {
			dist.EndDate = l.EndDate.Format(dateLayout)
		}
		record.Distribution = append(record.Distribution, dist)
	}
	for _, d := range ds.Docs {
		record.Documentation = append(record.Documentation, d.URL)
	}

	return record
}

// getSpatial joins the non-empty location lines
func getSpatial(ds *models.Dataset) *models.DCATSpatial {
	var parts []string
	for _, l := range []string{ds.Location1, ds.Location2, ds.Location3} {
		if l != "" {
			parts = append(parts, l)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return &models.DCATSpatial{
		Type:  "dct:Location",
		Label: strings.Join(parts, ", "),
	}
}

// getTemporal reports the latest end date across the data links
func getTemporal(links []models.Link) *models.DCATTemporal {
	var latest *time.Time
	for _, l := range links {
		if l.EndDate != nil && (latest == nil || l.EndDate.After(*latest)) {
			latest = l.EndDate
		}
	}
	if latest == nil {
		return nil
	}
	return &models.DCATTemporal{
		Type:    "dct:PeriodOfTime",
		EndDate: latest.Format(dateLayout),
	}
}

var periodicityURIs = map[models.Frequency]string{
	models.FrequencyNever:         "http://publications.europa.eu/resource/authority/frequency/NEVER",
	models.FrequencyDaily:         "http://publications.europa.eu/resource/authority/frequency/DAILY",
	models.FrequencyWeekly:        "http://publications.europa.eu/resource/authority/frequency/WEEKLY",
	models.FrequencyMonthly:       "http://publications.europa.eu/resource/authority/frequency/MONTHLY",
	models.FrequencyQuarterly:     "http://publications.europa.eu/resource/authority/frequency/QUARTERLY",
	models.FrequencyAnnually:      "http://publications.europa.eu/resource/authority/frequency/ANNUAL",
	models.FrequencyFinancialYear: "http://publications.europa.eu/resource/authority/frequency/ANNUAL",
}

var licenceURIs = map[string]string{
	"uk-ogl":   "http://www.nationalarchives.gov.uk/doc/open-government-licence/version/3/",
	"cc-by":    "https://creativecommons.org/licenses/by/4.0/",
	"cc-by-sa": "https://creativecommons.org/licenses/by-sa/4.0/",
	"cc0":      "https://creativecommons.org/publicdomain/zero/1.0/",
}
