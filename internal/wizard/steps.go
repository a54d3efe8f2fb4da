package wizard

import (
	"fmt"
	"strings"
	"time"

	"github.com/hacknation/dataset-publisher/internal/coverage"
	"github.com/hacknation/dataset-publisher/internal/models"
	"github.com/hacknation/dataset-publisher/internal/validation"
)

// Next is where the wizard goes after a successful step. Period is only set
// when the next step collects data links.
type Next struct {
	Step   models.StepID       `json:"step"`
	Period models.PeriodFields `json:"period,omitempty"`
}

// next is the step transition table. Only the frequency step branches.
func next(step models.StepID, ds *models.Dataset) (Next, error) {
	switch step {
	case models.StepNew:
		return Next{Step: models.StepTopic}, nil
	case models.StepTopic:
		return Next{Step: models.StepLicence}, nil
	case models.StepLicence:
		return Next{Step: models.StepLocation}, nil
	case models.StepLocation:
		return Next{Step: models.StepFrequency}, nil
	case models.StepFrequency:
		return datafilesRoute(ds.Frequency)
	case models.StepDatafiles:
		return Next{Step: models.StepDocs}, nil
	case models.StepDocs:
		return Next{Step: models.StepPublish}, nil
	case models.StepPublish:
	}
	return Next{}, fmt.Errorf("%w: %s", ErrUnknownStep, step)
}

// datafilesRoute sends every frequency to the datafiles step; never gets the
// variant without period fields.
func datafilesRoute(freq *models.Frequency) (Next, error) {
	if freq == nil {
		return Next{}, ErrFrequencyRequired
	}
	period, ok := models.PeriodFieldsFor(*freq)
	if !ok {
		return Next{}, fmt.Errorf("no route for frequency %q", *freq)
	}
	return Next{Step: models.StepDatafiles, Period: period}, nil
}

// checkFrequencyChange refuses a frequency change on a published dataset
// when it would clear the data links the publish guard required
func checkFrequencyChange(ds *models.Dataset, step models.StepID, in models.StepInput) error {
	if step != models.StepFrequency || !ds.Published() || ds.Frequency == nil || len(ds.Links) == 0 {
		return nil
	}
	freq, _ := models.ParseFrequency(in.Frequency)
	if freq == *ds.Frequency {
		return nil
	}
	return fmt.Errorf("%w: %s to %s", ErrFrequencyLocked, *ds.Frequency, freq)
}

// stepLabel bounds the step metric label to the known steps
func stepLabel(step models.StepID) string {
	for _, s := range models.Steps {
		if s == step {
			return string(step)
		}
	}
	return "unknown"
}

// apply writes the validated fields of a step onto the dataset
func apply(ds *models.Dataset, step models.StepID, in models.StepInput, now time.Time) {
	switch step {
	case models.StepNew:
		ds.Title = strings.TrimSpace(in.Title)
		ds.Summary = strings.TrimSpace(in.Summary)
		ds.Description = strings.TrimSpace(in.Description)
		ds.Name = models.Slugify(ds.Title)
	case models.StepTopic:
		id := *in.TopicID
		ds.TopicID = &id
	case models.StepLicence:
		ds.LicenceCode = in.LicenceCode
	case models.StepLocation:
		ds.Location1 = strings.TrimSpace(in.Location1)
		ds.Location2 = strings.TrimSpace(in.Location2)
		ds.Location3 = strings.TrimSpace(in.Location3)
	case models.StepFrequency:
		freq, _ := models.ParseFrequency(in.Frequency)
		if ds.Frequency != nil && *ds.Frequency != freq {
			// existing periods were described in the old frequency's terms
			ds.Links = nil
		}
		ds.Frequency = &freq
	case models.StepDatafiles:
		ds.Links = upsertLink(ds.Links, dataLink(in, *ds.Frequency, now))
	case models.StepDocs:
		if validation.IsBlankLink(in) {
			return
		}
		ds.Docs = upsertLink(ds.Docs, docLink(in, now))
	}
}

// dataLink keeps only the period fields the frequency collects and derives
// the end date from them
func dataLink(in models.StepInput, freq models.Frequency, now time.Time) models.Link {
	l := models.Link{
		Kind:      models.LinkKindData,
		URL:       strings.TrimSpace(in.URL),
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: now,
	}
	l.Format = models.FormatFromURL(l.URL)

	period, _ := models.PeriodFieldsFor(freq)
	switch period {
	case models.PeriodNone:
	case models.PeriodDayMonthYear:
		l.Day, l.Month, l.Year = copyInt(in.Day), copyInt(in.Month), copyInt(in.Year)
	case models.PeriodMonthYear:
		l.Month, l.Year = copyInt(in.Month), copyInt(in.Year)
	case models.PeriodQuarterYear:
		l.Quarter, l.Year = copyInt(in.Quarter), copyInt(in.Year)
	case models.PeriodYear:
		l.Year = copyInt(in.Year)
	}

	l.EndDate = coverage.EndDate(freq, coverage.PeriodOf(l))
	return l
}

func docLink(in models.StepInput, now time.Time) models.Link {
	l := models.Link{
		Kind:      models.LinkKindDoc,
		URL:       strings.TrimSpace(in.URL),
		Name:      strings.TrimSpace(in.Name),
		CreatedAt: now,
	}
	l.Format = models.FormatFromURL(l.URL)
	return l
}

// upsertLink replaces the entry with the same URL, so resubmitting a link
// does not duplicate it
func upsertLink(links []models.Link, l models.Link) []models.Link {
	for i := range links {
		if links[i].URL == l.URL {
			l.CreatedAt = links[i].CreatedAt
			links[i] = l
			return links
		}
	}
	return append(links, l)
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
