package validation

import "github.com/hacknation/dataset-publisher/internal/models"

// Step forms. Field names match the wire names of models.StepInput.

type newForm struct {
	Title   string `json:"title" validate:"notblank"`
	Summary string `json:"summary" validate:"notblank"`
}

type topicForm struct {
	TopicID *int64 `json:"topic_id" validate:"required"`
}

type licenceForm struct {
	LicenceCode string `json:"licence_code" validate:"required,licence"`
}

type frequencyForm struct {
	Frequency string `json:"frequency" validate:"required,frequency"`
}

type undatedLink struct {
	URL  string `json:"url" validate:"weburl"`
	Name string `json:"name" validate:"notblank"`
}

type dayMonthYearLink struct {
	URL   string `json:"url" validate:"weburl"`
	Name  string `json:"name" validate:"notblank"`
	Day   *int   `json:"day" validate:"required,min=1,max=31"`
	Month *int   `json:"month" validate:"required,min=1,max=12"`
	Year  *int   `json:"year" validate:"required,min=1000,max=9999"`
}

type monthYearLink struct {
	URL   string `json:"url" validate:"weburl"`
	Name  string `json:"name" validate:"notblank"`
	Month *int   `json:"month" validate:"required,min=1,max=12"`
	Year  *int   `json:"year" validate:"required,min=1000,max=9999"`
}

type quarterYearLink struct {
	URL     string `json:"url" validate:"weburl"`
	Name    string `json:"name" validate:"notblank"`
	Quarter *int   `json:"quarter" validate:"required,min=1,max=4"`
	Year    *int   `json:"year" validate:"required,min=1000,max=9999"`
}

type yearLink struct {
	URL  string `json:"url" validate:"weburl"`
	Name string `json:"name" validate:"notblank"`
	Year *int   `json:"year" validate:"required,min=1000,max=9999"`
}

// linkForm picks the data link form for the period fields a frequency collects
func linkForm(layout models.PeriodFields, in models.StepInput) any {
	switch layout {
	case models.PeriodNone:
		return undatedLink{URL: in.URL, Name: in.Name}
	case models.PeriodDayMonthYear:
		return dayMonthYearLink{URL: in.URL, Name: in.Name, Day: in.Day, Month: in.Month, Year: in.Year}
	case models.PeriodMonthYear:
		return monthYearLink{URL: in.URL, Name: in.Name, Month: in.Month, Year: in.Year}
	case models.PeriodQuarterYear:
		return quarterYearLink{URL: in.URL, Name: in.Name, Quarter: in.Quarter, Year: in.Year}
	case models.PeriodYear:
		return yearLink{URL: in.URL, Name: in.Name, Year: in.Year}
	}
	return undatedLink{URL: in.URL, Name: in.Name}
}
