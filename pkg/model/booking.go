package model

import (
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Booking is a committed reservation of a resource for a half-open window
// [StartTime, EndTime). Cancelled bookings are retained for history and never
// transition back to confirmed.
type Booking struct {
	ID           string     `json:"id" bson:"_id"`
	ResourceID   string     `json:"resource_id" bson:"resource_id"`
	Owner        string     `json:"owner" bson:"owner"`
	StartTime    time.Time  `json:"start_time" bson:"start_time"`
	EndTime      time.Time  `json:"end_time" bson:"end_time"`
	Participants []string   `json:"participants" bson:"participants"`
	Status       string     `json:"status" bson:"status"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

type CreateBookingRequest struct {
	ResourceID   string    `json:"resource_id" validate:"required,min=1,max=64"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	Participants []string  `json:"participants" validate:"omitempty,max=500,dive,required,max=64"`
}

type AvailabilityRequest struct {
	ResourceID       string    `json:"resource_id" validate:"required,min=1,max=64"`
	StartTime        time.Time `json:"start_time" validate:"required"`
	EndTime          time.Time `json:"end_time" validate:"required"`
	RequiredCapacity int       `json:"required_capacity" validate:"min=0,max=500"`
}

// AvailabilityResult is advisory. A true Available does not reserve the slot;
// the booking path re-checks atomically at commit time.
type AvailabilityResult struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

const (
	ReasonAvailable        = "available"
	ReasonResourceNotFound = "resource_not_found"
	ReasonInvalidWindow    = "invalid_window"
	ReasonCapacityExceeded = "capacity_exceeded"
	ReasonSlotConflict     = "slot_conflict"
)

type BookingStats struct {
	Total     int64            `json:"total"`
	Confirmed int64            `json:"confirmed"`
	Cancelled int64            `json:"cancelled"`
	ByKind    map[string]int64 `json:"by_kind,omitempty"`
}
