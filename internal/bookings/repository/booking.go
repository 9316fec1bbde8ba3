package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingserrors "deskly/internal/bookings/errors"
	"deskly/pkg/model"
)

// Filter narrows booking listings. Zero-value fields match everything.
type Filter struct {
	ResourceID string
	Owner      string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, filter Filter, limit int, offset int64) ([]*model.Booking, int64, error)
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context) (*model.BookingStats, map[string]int64, error)
}

// memoryBookingRepository is the live booking store. Bookings are kept for
// their full lifecycle; cancellation flips status but never deletes. The
// mongo-backed archive mirrors this store for durable history.
type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]*model.Booking),
	}
}

func (r *memoryBookingRepository) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *booking
	stored.Participants = append([]string(nil), booking.Participants...)
	r.bookings[booking.ID] = &stored
	return nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return copyBooking(booking), nil
}

func (r *memoryBookingRepository) FindAll(_ context.Context, filter Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*model.Booking
	for _, b := range r.bookings {
		if filter.ResourceID != "" && b.ResourceID != filter.ResourceID {
			continue
		}
		if filter.Owner != "" && b.Owner != filter.Owner {
			continue
		}
		matched = append(matched, copyBooking(b))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.Before(matched[j].StartTime)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if offset >= total {
		return []*model.Booking{}, total, nil
	}

	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *memoryBookingRepository) MarkCancelled(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if booking.Status == model.StatusCancelled {
		return bookingserrors.ErrAlreadyCancelled
	}

	booking.Status = model.StatusCancelled
	cancelledAt := at
	booking.CancelledAt = &cancelledAt
	return nil
}

func (r *memoryBookingRepository) Stats(_ context.Context) (*model.BookingStats, map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.BookingStats{}
	confirmedPerResource := make(map[string]int64)

	for _, b := range r.bookings {
		stats.Total++
		switch b.Status {
		case model.StatusConfirmed:
			stats.Confirmed++
			confirmedPerResource[b.ResourceID]++
		case model.StatusCancelled:
			stats.Cancelled++
		}
	}

	return stats, confirmedPerResource, nil
}

func copyBooking(b *model.Booking) *model.Booking {
	out := *b
	out.Participants = append([]string(nil), b.Participants...)
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		out.CancelledAt = &at
	}
	return &out
}
