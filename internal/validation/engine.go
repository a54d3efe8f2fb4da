// Package validation evaluates the field rules of each wizard step.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hacknation/dataset-publisher/internal/coverage"
	"github.com/hacknation/dataset-publisher/internal/models"
)

var (
	// ErrUnknownStep is returned for a step id that takes no submission
	ErrUnknownStep = errors.New("unknown wizard step")
	// ErrFrequencyRequired is returned when links are submitted before a frequency was chosen
	ErrFrequencyRequired = errors.New("dataset frequency must be chosen before adding links")
)

// TopicLookup answers whether a topic exists
type TopicLookup interface {
	TopicExists(ctx context.Context, id int64) (bool, error)
}

// Engine evaluates step rule tables. It holds no per-request state.
type Engine struct {
	validate *validator.Validate
	topics   TopicLookup
}

// NewEngine creates an engine that checks topic references against topics
func NewEngine(topics TopicLookup) *Engine {
	return &Engine{
		validate: validatorInstance(),
		topics:   topics,
	}
}

// Validate checks the input submitted for step. The dataset frequency is only
// read for the datafiles step. A non-nil error is a workflow or lookup
// problem, never a field failure.
func (e *Engine) Validate(ctx context.Context, step models.StepID, in models.StepInput, freq *models.Frequency) (Failures, error) {
	var form any
	var layout models.PeriodFields

	switch step {
	case models.StepNew:
		form = newForm{Title: in.Title, Summary: in.Summary}
	case models.StepTopic:
		form = topicForm{TopicID: in.TopicID}
	case models.StepLicence:
		form = licenceForm{LicenceCode: in.LicenceCode}
	case models.StepLocation:
		return nil, nil
	case models.StepFrequency:
		form = frequencyForm{Frequency: in.Frequency}
	case models.StepDatafiles:
		if freq == nil {
			return nil, ErrFrequencyRequired
		}
		var ok bool
		layout, ok = models.PeriodFieldsFor(*freq)
		if !ok {
			return nil, fmt.Errorf("dataset has unknown frequency %q", *freq)
		}
		form = linkForm(layout, in)
	case models.StepDocs:
		if IsBlankLink(in) {
			return nil, nil
		}
		form = undatedLink{URL: in.URL, Name: in.Name}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}

	failures, err := e.check(form)
	if err != nil {
		return nil, err
	}

	switch step {
	case models.StepTopic:
		failures, err = e.checkTopic(ctx, in.TopicID, failures)
		if err != nil {
			return nil, err
		}
	case models.StepDatafiles:
		if layout == models.PeriodDayMonthYear {
			failures = checkCalendar(in, failures)
		}
	}

	return failures.sorted(), nil
}

// IsBlankLink reports whether a link submission left both url and name empty
func IsBlankLink(in models.StepInput) bool {
	return strings.TrimSpace(in.URL) == "" && strings.TrimSpace(in.Name) == ""
}

func (e *Engine) check(form any) (Failures, error) {
	var failures Failures

	err := e.validate.Struct(form)
	if err == nil {
		return failures, nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil, fmt.Errorf("failed to validate step input: %w", err)
	}
	for _, fe := range ves {
		failures = failures.add(fe.Field())
	}
	return failures, nil
}

func (e *Engine) checkTopic(ctx context.Context, id *int64, failures Failures) (Failures, error) {
	if id == nil || failures.Has("topic_id") {
		return failures, nil
	}
	if e.topics == nil {
		return failures, nil
	}
	exists, err := e.topics.TopicExists(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up topic %d: %w", *id, err)
	}
	if !exists {
		failures = failures.add("topic_id")
	}
	return failures, nil
}

// checkCalendar rejects days past the end of an otherwise valid month
func checkCalendar(in models.StepInput, failures Failures) Failures {
	if in.Day == nil || in.Month == nil || in.Year == nil {
		return failures
	}
	if failures.Has("day") || failures.Has("month") || failures.Has("year") {
		return failures
	}
	if *in.Day > coverage.DaysIn(*in.Year, time.Month(*in.Month)) {
		failures = failures.add("day")
	}
	return failures
}
