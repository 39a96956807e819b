package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxActiveMilestones is the per-project cap on non-deleted milestones.
const MaxActiveMilestones = 5

// ============================================================================
// Milestone Status
// ============================================================================

// MilestoneStatus represents the lifecycle state of a milestone.
// State machine:
//
//	NOT_STARTED → IN_PROGRESS → PENDING_APPROVAL → COMPLETED
//
//	BLOCKED is a side-branch reachable from NOT_STARTED or IN_PROGRESS
//	via an ordinary field update, and returns the same way.
type MilestoneStatus string

const (
	MilestoneStatusNotStarted      MilestoneStatus = "NOT_STARTED"
	MilestoneStatusInProgress      MilestoneStatus = "IN_PROGRESS"
	MilestoneStatusPendingApproval MilestoneStatus = "PENDING_APPROVAL"
	MilestoneStatusCompleted       MilestoneStatus = "COMPLETED"
	MilestoneStatusBlocked         MilestoneStatus = "BLOCKED"
)

// ValidMilestoneStatuses contains all valid status values.
var ValidMilestoneStatuses = []MilestoneStatus{
	MilestoneStatusNotStarted,
	MilestoneStatusInProgress,
	MilestoneStatusPendingApproval,
	MilestoneStatusCompleted,
	MilestoneStatusBlocked,
}

// IsValidMilestoneStatus checks if the given status is valid.
func IsValidMilestoneStatus(s MilestoneStatus) bool {
	for _, v := range ValidMilestoneStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a terminal state. COMPLETED has
// no outgoing transitions; reopening a completed milestone is unsupported.
func (s MilestoneStatus) IsTerminal() bool {
	return s == MilestoneStatusCompleted
}

// CanTransitionTo returns true if transitioning from this status to the
// target is valid.
func (s MilestoneStatus) CanTransitionTo(target MilestoneStatus) bool {
	switch s {
	case MilestoneStatusNotStarted:
		return target == MilestoneStatusInProgress ||
			target == MilestoneStatusPendingApproval ||
			target == MilestoneStatusBlocked
	case MilestoneStatusInProgress:
		return target == MilestoneStatusPendingApproval ||
			target == MilestoneStatusBlocked
	case MilestoneStatusPendingApproval:
		// Review outcome: approve completes, reject returns to in-progress.
		return target == MilestoneStatusCompleted ||
			target == MilestoneStatusInProgress
	case MilestoneStatusBlocked:
		return target == MilestoneStatusNotStarted ||
			target == MilestoneStatusInProgress
	case MilestoneStatusCompleted:
		return false
	default:
		return false
	}
}

// CanRequestApproval reports whether an approval request is legal from
// this status. A milestone already in PENDING_APPROVAL may not request
// again; the second call must fail, not no-op.
func (s MilestoneStatus) CanRequestApproval() bool {
	return s == MilestoneStatusNotStarted || s == MilestoneStatusInProgress
}

// ============================================================================
// Progress Calculation
// ============================================================================

// ProgressMethod determines how milestone progress is maintained.
type ProgressMethod string

const (
	ProgressMethodManual        ProgressMethod = "MANUAL"
	ProgressMethodAutoFromTasks ProgressMethod = "AUTO_FROM_TASKS"
)

// IsValidProgressMethod checks if the given method is valid.
func IsValidProgressMethod(m ProgressMethod) bool {
	return m == ProgressMethodManual || m == ProgressMethodAutoFromTasks
}

// ============================================================================
// Review Decisions
// ============================================================================

// ReviewDecision is the outcome a reviewer selects for a milestone in
// PENDING_APPROVAL.
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "APPROVE"
	ReviewReject  ReviewDecision = "REJECT"
)

// ============================================================================
// Milestone Model
// ============================================================================

// Milestone is the one entity in the system with an explicit multi-actor
// workflow. All writes to status, progress, lock fields, and soft-delete
// fields go through the milestone service; no other component mutates them.
type Milestone struct {
	ID             uuid.UUID       `json:"id"`
	ProjectID      uuid.UUID       `json:"project_id"`
	Name           string          `json:"name"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Progress       int             `json:"progress"`
	ProgressMethod ProgressMethod  `json:"progress_method"`
	Status         MilestoneStatus `json:"status"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	AssignedUsers  []uuid.UUID     `json:"assigned_users,omitempty"`

	IsLocked bool       `json:"is_locked"`
	LockedBy *uuid.UUID `json:"locked_by,omitempty"`
	LockedAt *time.Time `json:"locked_at,omitempty"`

	IsDeleted bool       `json:"is_deleted"`
	DeletedBy *uuid.UUID `json:"deleted_by,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	ApprovalRequestedBy *uuid.UUID `json:"approval_requested_by,omitempty"`
	ApprovalRequestedAt *time.Time `json:"approval_requested_at,omitempty"`
	ApprovedBy          *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`

	// ProgressHistory is append-only and loaded on demand. It is the
	// source of truth for "what was the progress at time T".
	ProgressHistory []ProgressEntry `json:"progress_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressEntry is one record in a milestone's append-only progress audit
// trail.
type ProgressEntry struct {
	ID          uuid.UUID `json:"id"`
	MilestoneID uuid.UUID `json:"milestone_id"`
	Progress    int       `json:"progress"`
	ChangedBy   uuid.UUID `json:"changed_by"`
	ChangedAt   time.Time `json:"changed_at"`
	Reason      string    `json:"reason,omitempty"`
}

// IsLockHolder reports whether the given user currently holds the lock.
func (m *Milestone) IsLockHolder(userID uuid.UUID) bool {
	return m.IsLocked && m.LockedBy != nil && *m.LockedBy == userID
}

// IsValidProgress reports whether a progress value is within range.
func IsValidProgress(progress int) bool {
	return progress >= 0 && progress <= 100
}
