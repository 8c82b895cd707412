package audit

import "time"

// Entry is an append-only audit row. It stores a content hash of the
// triggering payload, never the payload itself, and is never mutated or
// deleted once written.
type Entry struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"index" json:"user_id"`
	Action      string    `gorm:"size:64" json:"action"`
	PayloadHash string    `gorm:"size:128" json:"payload_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Audited actions
const (
	ActionCreateLead   = "create_lead"
	ActionUpdateLead   = "update_lead"
	ActionDeleteLead   = "delete_lead"
	ActionCreateOrder  = "create_order"
	ActionUpdateOrder  = "update_order"
	ActionDeleteOrder  = "delete_order"
	ActionRepriceOrder = "reprice_order"
	ActionLogin        = "login"
)
