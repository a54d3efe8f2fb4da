package models

// StepID identifies one page of the publication wizard
type StepID string

const (
	StepNew       StepID = "new"
	StepTopic     StepID = "topic"
	StepLicence   StepID = "licence"
	StepLocation  StepID = "location"
	StepFrequency StepID = "frequency"
	StepDatafiles StepID = "datafiles"
	StepDocs      StepID = "docs"
	StepPublish   StepID = "publish"
)

// Steps is the fixed wizard sequence
var Steps = []StepID{
	StepNew,
	StepTopic,
	StepLicence,
	StepLocation,
	StepFrequency,
	StepDatafiles,
	StepDocs,
	StepPublish,
}

// PeriodFields is the set of date fields a data link collects
type PeriodFields string

const (
	PeriodNone         PeriodFields = "none"
	PeriodDayMonthYear PeriodFields = "day-month-year"
	PeriodMonthYear    PeriodFields = "month-year"
	PeriodQuarterYear  PeriodFields = "quarter-year"
	PeriodYear         PeriodFields = "year"
)

// PeriodFieldsFor returns the date fields collected for a frequency.
// Every frequency is listed; an unknown value yields false.
func PeriodFieldsFor(f Frequency) (PeriodFields, bool) {
	switch f {
	case FrequencyNever:
		return PeriodNone, true
	case FrequencyDaily, FrequencyWeekly:
		return PeriodDayMonthYear, true
	case FrequencyMonthly:
		return PeriodMonthYear, true
	case FrequencyQuarterly:
		return PeriodQuarterYear, true
	case FrequencyAnnually, FrequencyFinancialYear:
		return PeriodYear, true
	}
	return "", false
}

// StepInput carries the fields submitted on any wizard page.
// Only the fields belonging to the submitted step are read.
type StepInput struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Description string `json:"description"`

	TopicID *int64 `json:"topic_id"`

	LicenceCode string `json:"licence_code"`

	Location1 string `json:"location1"`
	Location2 string `json:"location2"`
	Location3 string `json:"location3"`

	Frequency string `json:"frequency"`

	URL     string `json:"url"`
	Name    string `json:"name"`
	Day     *int   `json:"day"`
	Month   *int   `json:"month"`
	Quarter *int   `json:"quarter"`
	Year    *int   `json:"year"`
}
