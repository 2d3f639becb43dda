package riders

import "time"

type RiderStatus string

const (
	RiderOffline   RiderStatus = "offline"
	RiderAvailable RiderStatus = "available"
	RiderBusy      RiderStatus = "busy"
)

func (s RiderStatus) Valid() bool {
	return s == RiderOffline || s == RiderAvailable || s == RiderBusy
}

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentRejected  AssignmentStatus = "rejected"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

var assignmentNext = map[AssignmentStatus]map[AssignmentStatus]bool{
	AssignmentPending:   {AssignmentAccepted: true, AssignmentRejected: true, AssignmentCancelled: true},
	AssignmentAccepted:  {AssignmentCompleted: true, AssignmentCancelled: true},
	AssignmentRejected:  {},
	AssignmentCompleted: {},
	AssignmentCancelled: {},
}

func CanAssignmentTransition(from, to AssignmentStatus) bool {
	return assignmentNext[from][to]
}

// Active assignments block the order and the rider.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentPending || s == AssignmentAccepted
}

type Rider struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	VehiclePlate string      `json:"vehicle_plate"`
	Zone         string      `json:"zone"`
	Status       RiderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Assignment struct {
	ID          string           `json:"id"`
	OrderID     string           `json:"order_id"`
	RiderID     string           `json:"rider_id"`
	Status      AssignmentStatus `json:"status"`
	AssignedBy  string           `json:"assigned_by"`
	Note        string           `json:"note,omitempty"`
	AssignedAt  time.Time        `json:"assigned_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

type AssignmentFilter struct {
	RiderID string
	OrderID string
	Status  AssignmentStatus
	Limit   int
}
