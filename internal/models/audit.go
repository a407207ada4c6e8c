package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionRotationCreate   = "ROTATION_CREATE"
	AuditActionRotationApprove  = "ROTATION_APPROVE"
	AuditActionRotationReject   = "ROTATION_REJECT"
	AuditActionRotationCancel   = "ROTATION_CANCEL"
	AuditActionMandatoryAssign  = "MANDATORY_ASSIGN"
	AuditActionBlockRequest     = "BLOCK_REQUEST"
	AuditActionBlockApprove     = "BLOCK_APPROVE"
	AuditActionBlockCancel      = "BLOCK_CANCEL"
	AuditActionBlockSweep       = "BLOCK_SWEEP"
	AuditActionWaitlistPromote  = "WAITLIST_PROMOTE"
	AuditActionWaitlistPurge    = "WAITLIST_PURGE"
	AuditActionBalanceOverride  = "BALANCE_OVERRIDE"
	AuditActionBalanceRecompute = "BALANCE_RECOMPUTE"
	AuditActionLicenseCreate    = "LICENSE_CREATE"
	AuditActionLicenseDelete    = "LICENSE_DELETE"
	AuditActionRuleUpdate       = "RULE_UPDATE"
)

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
