package models

import "time"

// RotationStatus captures the lifecycle of a rotation assignment.
type RotationStatus string

const (
	RotationPending             RotationStatus = "PENDING"
	RotationApproved            RotationStatus = "APPROVED"
	RotationRejected            RotationStatus = "REJECTED"
	RotationCancelled           RotationStatus = "CANCELLED"
	RotationWaitlisted          RotationStatus = "WAITLISTED"
	RotationCancellationPending RotationStatus = "CANCELLATION_PENDING"
)

// RotationType distinguishes member-requested rotations from admin-assigned
// ones. Mandatory assignments may legitimately exceed the seasonal maximum.
type RotationType string

const (
	RotationVoluntary RotationType = "VOLUNTARY"
	RotationMandatory RotationType = "MANDATORY"
)

// rotationTransitions is the enumerated transition table. Cancellation is a
// row deletion, modelled here as the CANCELLED target.
var rotationTransitions = map[RotationStatus][]RotationStatus{
	RotationPending:             {RotationApproved, RotationRejected, RotationCancelled},
	RotationApproved:            {RotationCancelled, RotationCancellationPending},
	RotationWaitlisted:          {RotationApproved, RotationCancelled},
	RotationCancellationPending: {RotationCancelled, RotationApproved},
	RotationRejected:            {},
	RotationCancelled:           {},
}

// CanTransition reports whether a rotation may move between the two statuses.
func (s RotationStatus) CanTransition(to RotationStatus) bool {
	for _, next := range rotationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the rotation consumes (or may consume) a slot.
// APPROVED and PENDING rotations count against event quota and balances.
func (s RotationStatus) IsActive() bool {
	return s == RotationApproved || s == RotationPending || s == RotationCancellationPending
}

// Rotation links a user to one event's rotation slot.
type Rotation struct {
	ID         string         `db:"id" json:"id"`
	UserID     string         `db:"user_id" json:"user_id"`
	EventID    string         `db:"event_id" json:"event_id"`
	SeasonID   string         `db:"season_id" json:"season_id"`
	Status     RotationStatus `db:"status" json:"status"`
	Type       RotationType   `db:"type" json:"type"`
	BlockID    *string        `db:"block_id" json:"block_id,omitempty"`
	Reason     *string        `db:"reason" json:"reason,omitempty"`
	ApprovedBy *string        `db:"approved_by" json:"approved_by,omitempty"`
	AssignedBy *string        `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Verdict is the outcome of an eligibility evaluation. RequiresApproval is
// true iff Reasons is non-empty; Waitlisted is informational and does not
// prevent creation.
type Verdict struct {
	RequiresApproval bool     `json:"requires_approval"`
	Reasons          []string `json:"reasons"`
	Waitlisted       bool     `json:"waitlisted"`
}

// TargetStatus maps the verdict to the creation state of the rotation.
func (v Verdict) TargetStatus() RotationStatus {
	switch {
	case len(v.Reasons) > 0:
		return RotationPending
	case v.Waitlisted:
		return RotationWaitlisted
	default:
		return RotationApproved
	}
}
