package models

import "time"

// BlockStatus captures the block state machine.
type BlockStatus string

const (
	BlockSolicitado BlockStatus = "SOLICITADO"
	BlockAprobado   BlockStatus = "APROBADO"
	BlockEnCurso    BlockStatus = "EN_CURSO"
	BlockCompletado BlockStatus = "COMPLETADO"
	BlockCancelado  BlockStatus = "CANCELADO"
)

var blockTransitions = map[BlockStatus][]BlockStatus{
	BlockSolicitado: {BlockAprobado, BlockCancelado},
	BlockAprobado:   {BlockEnCurso, BlockCancelado},
	BlockEnCurso:    {BlockCompletado, BlockCancelado},
	BlockCompletado: {},
	BlockCancelado:  {},
}

// CanTransition reports whether a block may move between the two statuses.
func (s BlockStatus) CanTransition(to BlockStatus) bool {
	for _, next := range blockTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether the block still holds or may hold rotations.
func (s BlockStatus) IsActive() bool {
	return s == BlockSolicitado || s == BlockAprobado || s == BlockEnCurso
}

// Block groups all rotations of one user across one title's events,
// requested and cancelled as a unit.
type Block struct {
	ID        string      `db:"id" json:"id"`
	UserID    *string     `db:"user_id" json:"user_id,omitempty"`
	TituloID  string      `db:"titulo_id" json:"titulo_id"`
	SeasonID  string      `db:"season_id" json:"season_id"`
	Status    BlockStatus `db:"status" json:"status"`
	Reason    *string     `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// BlockVerdict is the composite eligibility outcome for a block request.
// Every flag is advisory; the block is still created in SOLICITADO state.
type BlockVerdict struct {
	RequiresApproval    bool     `json:"requires_approval"`
	Reasons             []string `json:"reasons"`
	EventsToRequest     []string `json:"events_to_request"`
	UnavailableEventIDs []string `json:"unavailable_event_ids,omitempty"`
}
