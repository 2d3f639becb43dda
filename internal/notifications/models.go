package notifications

import "time"

const (
	TypeOrder      = "order"
	TypeAssignment = "assignment"
	TypeRefund     = "refund"
	TypePayment    = "payment"
	TypeSystem     = "system"
)

// Notification is addressed either to one user or to every user holding
// a role. Role-addressed rows share a single read flag.
type Notification struct {
	ID            string     `json:"id"`
	RecipientID   string     `json:"recipient_id,omitempty"`
	RecipientRole string     `json:"recipient_role,omitempty"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Body          string     `json:"body,omitempty"`
	OrderID       string     `json:"order_id,omitempty"`
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
}

type Input struct {
	RecipientID   string
	RecipientRole string
	Type          string
	Title         string
	Body          string
	OrderID       string
}

// Audience is who is asking: a user and the role they hold.
type Audience struct {
	UserID string
	Role   string
}

type ListFilter struct {
	UnreadOnly bool
	Limit      int
}
