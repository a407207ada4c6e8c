// Package notify publishes rotation lifecycle events to the message broker.
// Dispatch runs through the background job queue so a broker outage never
// blocks the decision path.
package notify

import "time"

// Event kinds published to the rotativos events queue.
const (
	KindRotationApproved = "rotation.approved"
	KindRotationRejected = "rotation.rejected"
	KindWaitlistPromoted = "waitlist.promoted"
	KindBlockCancelled   = "block.cancelled"
)

// Event is the wire payload for a rotation lifecycle notification. It carries
// enough for downstream consumers (mail, push relays) to act without querying
// the primary database.
type Event struct {
	Kind       string    `json:"kind"`
	UserID     string    `json:"user_id"`
	EventID    string    `json:"event_id,omitempty"`
	BlockID    string    `json:"block_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
