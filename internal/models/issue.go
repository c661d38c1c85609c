package models

import (
	"fmt"
	"time"
)

// IssueStatus identifies the board column an issue sits in.
type IssueStatus string

const (
	IssueStatusTodo       IssueStatus = "TODO"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusInReview   IssueStatus = "IN_REVIEW"
	IssueStatusDone       IssueStatus = "DONE"
)

// IssueStatuses lists the board columns in display order.
var IssueStatuses = []IssueStatus{
	IssueStatusTodo,
	IssueStatusInProgress,
	IssueStatusInReview,
	IssueStatusDone,
}

// ParseIssueStatus validates a status string at the system boundary.
func ParseIssueStatus(s string) (IssueStatus, error) {
	switch IssueStatus(s) {
	case IssueStatusTodo, IssueStatusInProgress, IssueStatusInReview, IssueStatusDone:
		return IssueStatus(s), nil
	}
	return "", fmt.Errorf("invalid issue status: %q", s)
}

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "LOW"
	IssuePriorityMedium IssuePriority = "MEDIUM"
	IssuePriorityHigh   IssuePriority = "HIGH"
	IssuePriorityUrgent IssuePriority = "URGENT"
)

// ParseIssuePriority validates a priority string at the system boundary.
func ParseIssuePriority(s string) (IssuePriority, error) {
	switch IssuePriority(s) {
	case IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh, IssuePriorityUrgent:
		return IssuePriority(s), nil
	}
	return "", fmt.Errorf("invalid issue priority: %q", s)
}

// Issue represents a tracked work item on a sprint board.
//
// Order is the zero-based vertical position within the issue's board
// column. It is scoped to (ProjectID, Status) and maintained by the
// ordering engine, never edited directly.
type Issue struct {
	ID          string
	ProjectID   string
	SprintID    string
	Title       string
	Description string
	Status      IssueStatus
	Priority    IssuePriority
	ReporterID  string // immutable once set
	AssigneeID  string // optional
	Order       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
