package models

import (
	"fmt"
	"time"
)

// SprintStatus represents where a sprint is in its lifecycle.
// Transitions are one-directional: PLANNED -> ACTIVE -> COMPLETED.
type SprintStatus string

const (
	SprintStatusPlanned   SprintStatus = "PLANNED"
	SprintStatusActive    SprintStatus = "ACTIVE"
	SprintStatusCompleted SprintStatus = "COMPLETED"
)

// ParseSprintStatus validates a sprint status string at the system boundary.
func ParseSprintStatus(s string) (SprintStatus, error) {
	switch SprintStatus(s) {
	case SprintStatusPlanned, SprintStatusActive, SprintStatusCompleted:
		return SprintStatus(s), nil
	}
	return "", fmt.Errorf("invalid sprint status: %q", s)
}

// Sprint represents a time-boxed iteration within a project.
type Sprint struct {
	ID          string
	ProjectID   string
	Name        string // generated as <projectKey>-<n>
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Status      SprintStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusLabel reconciles the lifecycle status with wall-clock time for
// display purposes.
func (s *Sprint) StatusLabel(now time.Time) string {
	switch {
	case s.Status == SprintStatusCompleted:
		return "Sprint Ended"
	case s.Status == SprintStatusActive && now.Before(s.EndDate):
		return "Sprint Active"
	case s.Status == SprintStatusPlanned && now.Before(s.StartDate):
		return "Sprint Planned"
	default:
		return "Sprint Not Started"
	}
}
