package model

// ResourceKind identifies the class of a bookable resource.
type ResourceKind string

const (
	KindMeetingRoom    ResourceKind = "meeting_room"
	KindSeat           ResourceKind = "seat"
	KindCafeteriaTable ResourceKind = "cafeteria_table"
)

// Resource is a bookable entity. Concurrent occupancy is modeled as distinct
// resource instances (e.g. one cafeteria table per Resource), never as an
// overlapping allowance on a single resource.
type Resource struct {
	ID       string       `json:"id" validate:"required,min=1,max=64"`
	Kind     ResourceKind `json:"kind" validate:"required,oneof=meeting_room seat cafeteria_table"`
	Name     string       `json:"name" validate:"required,min=2,max=100"`
	Capacity int          `json:"capacity" validate:"required,min=1,max=500"`
	Floor    int          `json:"floor" validate:"min=0,max=200"`
}

type ResourceUpdate struct {
	Name     string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity *int   `json:"capacity,omitempty" validate:"omitempty,min=1,max=500"`
	Floor    *int   `json:"floor,omitempty" validate:"omitempty,min=0,max=200"`
}

// FloorSummary aggregates the catalog per floor.
type FloorSummary struct {
	Floor         int   `json:"floor"`
	Resources     int64 `json:"resources"`
	TotalCapacity int64 `json:"total_capacity"`
}
