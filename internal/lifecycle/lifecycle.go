// Package lifecycle derives a dataset's lifecycle state and guards the
// one-way transition from draft to published.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hacknation/dataset-publisher/internal/models"
)

// State is the lifecycle state of a dataset
type State string

const (
	StateDraftIncomplete State = "draft-incomplete"
	StateDraftComplete   State = "draft-complete"
	StatePublished       State = "published"
)

// Requirement is an aggregate-level condition for publication
type Requirement string

const (
	RequireTitle       Requirement = "title"
	RequireSummary     Requirement = "summary"
	RequireDescription Requirement = "description"
	RequireTopic       Requirement = "topic"
	RequireLicence     Requirement = "licence"
	RequireFrequency   Requirement = "frequency"
	RequireLinks       Requirement = "links"
)

var (
	// ErrNotPublishable matches every *WorkflowError
	ErrNotPublishable = errors.New("dataset is not ready to publish")
	// ErrAlreadyPublished is returned when publishing a published dataset
	ErrAlreadyPublished = errors.New("dataset is already published")
)

// WorkflowError reports the requirements a dataset misses at publish time.
// It is a single workflow-level message, not a per-field failure.
type WorkflowError struct {
	Missing []Requirement
}

func (e *WorkflowError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = string(m)
	}
	return fmt.Sprintf("%s: missing %s", ErrNotPublishable, strings.Join(names, ", "))
}

// Is lets errors.Is match ErrNotPublishable
func (e *WorkflowError) Is(target error) bool {
	return target == ErrNotPublishable
}

// Missing lists the unmet publication requirements in a fixed order
func Missing(ds *models.Dataset) []Requirement {
	var missing []Requirement
	if blank(ds.Title) {
		missing = append(missing, RequireTitle)
	}
	if blank(ds.Summary) {
		missing = append(missing, RequireSummary)
	}
	if blank(ds.Description) {
		missing = append(missing, RequireDescription)
	}
	if ds.TopicID == nil {
		missing = append(missing, RequireTopic)
	}
	if blank(ds.LicenceCode) {
		missing = append(missing, RequireLicence)
	}
	if ds.Frequency == nil {
		missing = append(missing, RequireFrequency)
	}
	if len(ds.Links) == 0 {
		missing = append(missing, RequireLinks)
	}
	return missing
}

// StateOf derives the lifecycle state from the dataset's fields
func StateOf(ds *models.Dataset) State {
	if ds.Published() {
		return StatePublished
	}
	if len(Missing(ds)) > 0 {
		return StateDraftIncomplete
	}
	return StateDraftComplete
}

// CheckPublishable returns nil when the dataset may be published now
func CheckPublishable(ds *models.Dataset) error {
	if ds.Published() {
		return ErrAlreadyPublished
	}
	if missing := Missing(ds); len(missing) > 0 {
		return &WorkflowError{Missing: missing}
	}
	return nil
}

// Publish re-checks the guard and flips the dataset to published.
// On error the dataset is left untouched.
func Publish(ds *models.Dataset, at time.Time) error {
	if err := CheckPublishable(ds); err != nil {
		return err
	}
	ds.Status = models.StatusPublished
	ds.PublishedAt = &at
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
