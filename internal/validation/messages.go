package validation

import "sort"

// MessageKind classifies a field failure
type MessageKind string

const (
	KindInvalidTitle     MessageKind = "invalid-title"
	KindMissingSummary   MessageKind = "missing-summary"
	KindMissingTopic     MessageKind = "missing-topic"
	KindMissingLicence   MessageKind = "missing-licence"
	KindMissingFrequency MessageKind = "missing-frequency"
	KindInvalidURL       MessageKind = "invalid-url"
	KindInvalidName      MessageKind = "invalid-name"
	KindInvalidDate      MessageKind = "invalid-date"
	KindInvalidMonth     MessageKind = "invalid-month"
	KindInvalidQuarter   MessageKind = "invalid-quarter"
	KindInvalidYear      MessageKind = "invalid-year"
)

var messageText = map[MessageKind]string{
	KindInvalidTitle:     "Please enter a valid title",
	KindMissingSummary:   "Please provide a summary",
	KindMissingTopic:     "Please choose a topic",
	KindMissingLicence:   "Please select a licence for your dataset",
	KindMissingFrequency: "Please indicate how often this dataset is updated",
	KindInvalidURL:       "Please enter a valid url",
	KindInvalidName:      "Please enter a valid name",
	KindInvalidDate:      "Please enter a valid date",
	KindInvalidMonth:     "Please enter a valid month",
	KindInvalidQuarter:   "Please select a quarter",
	KindInvalidYear:      "Please enter a valid year",
}

// fieldKinds gives each form field the single message it reports
var fieldKinds = map[string]MessageKind{
	"title":        KindInvalidTitle,
	"summary":      KindMissingSummary,
	"topic_id":     KindMissingTopic,
	"licence_code": KindMissingLicence,
	"frequency":    KindMissingFrequency,
	"url":          KindInvalidURL,
	"name":         KindInvalidName,
	"day":          KindInvalidDate,
	"month":        KindInvalidMonth,
	"quarter":      KindInvalidQuarter,
	"year":         KindInvalidYear,
}

// fieldOrder is the order fields appear on their pages
var fieldOrder = map[string]int{
	"title":        0,
	"summary":      1,
	"topic_id":     2,
	"licence_code": 3,
	"frequency":    4,
	"url":          5,
	"name":         6,
	"day":          7,
	"month":        8,
	"quarter":      9,
	"year":         10,
}

// Failure is one failing field
type Failure struct {
	Field string      `json:"field"`
	Kind  MessageKind `json:"kind"`
}

// Message returns the user-facing text for the failure
func (f Failure) Message() string {
	return messageText[f.Kind]
}

// Failures is the ordered result of validating a step. Empty means valid.
type Failures []Failure

// Valid reports whether no field failed
func (fs Failures) Valid() bool {
	return len(fs) == 0
}

// Has reports whether the given field failed
func (fs Failures) Has(field string) bool {
	for _, f := range fs {
		if f.Field == field {
			return true
		}
	}
	return false
}

// add appends a failure for field unless it already failed
func (fs Failures) add(field string) Failures {
	if fs.Has(field) {
		return fs
	}
	return append(fs, Failure{Field: field, Kind: fieldKinds[field]})
}

func (fs Failures) sorted() Failures {
	sort.SliceStable(fs, func(i, j int) bool {
		return fieldOrder[fs[i].Field] < fieldOrder[fs[j].Field]
	})
	return fs
}

// Placement says where a rendered message is shown
type Placement string

const (
	PlacementSummary Placement = "summary"
	PlacementInline  Placement = "inline"
)

// Message is a rendered failure
type Message struct {
	Field     string      `json:"field"`
	Kind      MessageKind `json:"kind"`
	Text      string      `json:"text"`
	Placement Placement   `json:"placement"`
}

// Rendered is the failure output of a page: a summary list at the top and a
// message attached to each failing field. Both carry the same text.
type Rendered struct {
	Heading string             `json:"heading"`
	Summary []Message          `json:"summary"`
	Inline  map[string]Message `json:"inline"`
}

// Render builds the page-level output for the failures
func (fs Failures) Render() Rendered {
	r := Rendered{
		Heading: "There was a problem",
		Summary: make([]Message, 0, len(fs)),
		Inline:  make(map[string]Message, len(fs)),
	}
	for _, f := range fs {
		msg := Message{Field: f.Field, Kind: f.Kind, Text: f.Message()}
		summary, inline := msg, msg
		summary.Placement = PlacementSummary
		inline.Placement = PlacementInline
		r.Summary = append(r.Summary, summary)
		r.Inline[f.Field] = inline
	}
	return r
}

// Messages flattens the rendered output: the summary entries followed by the
// inline ones in summary order. Each failing field appears exactly twice.
func (r Rendered) Messages() []Message {
	out := make([]Message, 0, 2*len(r.Summary))
	out = append(out, r.Summary...)
	for _, s := range r.Summary {
		out = append(out, r.Inline[s.Field])
	}
	return out
}
