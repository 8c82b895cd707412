package types

import "time"

// User is an authenticated principal. Agents see only their own leads and
// orders; admins see everything.
type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:64" json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `gorm:"size:20" json:"role"` // agent or admin
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// Lead is an inbound vehicle-shipping enquiry
type Lead struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"size:120" json:"name"`
	Phone       string    `gorm:"size:40" json:"phone,omitempty"`
	Email       string    `gorm:"size:120" json:"email,omitempty"`
	OriginZip   string    `gorm:"size:20" json:"origin_zip"`
	DestZip     string    `gorm:"size:20" json:"dest_zip"`
	VehicleType string    `gorm:"size:20" json:"vehicle_type"`
	Operable    bool      `json:"operable"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Order is a shipping order built from a lead
type Order struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	LeadID     uint      `gorm:"index" json:"lead_id"`
	Status     string    `gorm:"size:20" json:"status"`
	BasePrice  float64   `json:"base_price"`
	FinalPrice *float64  `json:"final_price,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedBy  uint      `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Order statuses
const (
	OrderStatusDraft     = "draft"
	OrderStatusQuoted    = "quoted"
	OrderStatusBooked    = "booked"
	OrderStatusDelivered = "delivered"
)

// ValidOrderStatus reports whether s is a recognized order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusDraft, OrderStatusQuoted, OrderStatusBooked, OrderStatusDelivered:
		return true
	}
	return false
}
