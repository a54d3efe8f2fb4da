package models

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"
)

// ErrNotFound is returned by stores when a dataset does not exist
var ErrNotFound = errors.New("not found")

// Frequency is how often a dataset's underlying data is updated
type Frequency string

const (
	FrequencyNever         Frequency = "never"
	FrequencyDaily         Frequency = "daily"
	FrequencyWeekly        Frequency = "weekly"
	FrequencyMonthly       Frequency = "monthly"
	FrequencyQuarterly     Frequency = "quarterly"
	FrequencyAnnually      Frequency = "annually"
	FrequencyFinancialYear Frequency = "financial-year"
)

// Frequencies lists every frequency in display order
var Frequencies = []Frequency{
	FrequencyNever,
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyAnnually,
	FrequencyFinancialYear,
}

// ParseFrequency converts a wire value into a Frequency
func ParseFrequency(s string) (Frequency, bool) {
	for _, f := range Frequencies {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Status is the publication status of a dataset
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// LinkKind tags an entry as a primary data file or a supporting document
type LinkKind string

const (
	LinkKindData LinkKind = "data"
	LinkKindDoc  LinkKind = "doc"
)

// Licences maps known licence codes to their titles
var Licences = map[string]string{
	"uk-ogl":   "Open Government Licence",
	"cc-by":    "Creative Commons Attribution",
	"cc-by-sa": "Creative Commons Attribution Share-Alike",
	"cc0":      "Creative Commons CCZero",
	"other":    "Other licence",
}

// Dataset is the catalog entry assembled by the publication wizard
type Dataset struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary"`
	Description    string     `json:"description"`
	TopicID        *int64     `json:"topic_id,omitempty"`
	LicenceCode    string     `json:"licence_code,omitempty"`
	Location1      string     `json:"location1,omitempty"`
	Location2      string     `json:"location2,omitempty"`
	Location3      string     `json:"location3,omitempty"`
	Frequency      *Frequency `json:"frequency,omitempty"`
	Status         Status     `json:"status"`
	Links          []Link     `json:"links"`
	Docs           []Link     `json:"docs"`
	OrganisationID int64      `json:"organisation_id"`
	CreatorID      int64      `json:"creator_id"`
	CatalogID      string     `json:"catalog_id,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Link is a data file or supporting document attached to a dataset.
// EndDate is derived from the dataset frequency and the raw period fields.
type Link struct {
	Kind      LinkKind   `json:"kind"`
	URL       string     `json:"url"`
	Name      string     `json:"name"`
	Format    string     `json:"format,omitempty"`
	Day       *int       `json:"day,omitempty"`
	Month     *int       `json:"month,omitempty"`
	Quarter   *int       `json:"quarter,omitempty"`
	Year      *int       `json:"year,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Published reports whether the dataset has been published
func (d *Dataset) Published() bool {
	return d.Status == StatusPublished
}

// Clone returns a deep copy safe to hand to another goroutine
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := *d
	if d.TopicID != nil {
		v := *d.TopicID
		c.TopicID = &v
	}
	if d.Frequency != nil {
		v := *d.Frequency
		c.Frequency = &v
	}
	if d.PublishedAt != nil {
		v := *d.PublishedAt
		c.PublishedAt = &v
	}
	c.Links = cloneLinks(d.Links)
	c.Docs = cloneLinks(d.Docs)
	return &c
}

func cloneLinks(links []Link) []Link {
	if links == nil {
		return nil
	}
	out := make([]Link, len(links))
	for i, l := range links {
		out[i] = l.clone()
	}
	return out
}

func (l Link) clone() Link {
	c := l
	c.Day = cloneInt(l.Day)
	c.Month = cloneInt(l.Month)
	c.Quarter = cloneInt(l.Quarter)
	c.Year = cloneInt(l.Year)
	if l.EndDate != nil {
		v := *l.EndDate
		c.EndDate = &v
	}
	return c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Slugify builds the URL name of a dataset from its title
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// FormatFromURL guesses a file format from the URL path's extension, e.g. "CSV"
func FormatFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimPrefix(path.Ext(u.Path), "."))
}
