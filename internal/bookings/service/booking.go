package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	bookingserrors "deskly/internal/bookings/errors"
	"deskly/internal/bookings/index"
	"deskly/internal/bookings/repository"
	"deskly/internal/bookings/validator"
	"deskly/internal/notifications"
	"deskly/pkg/auth"
	"deskly/pkg/config"
	apperrors "deskly/pkg/errors"
	"deskly/pkg/model"

	"github.com/google/uuid"
)

// ResourceCatalog is the read-only slice of the catalog the booking core
// needs.
type ResourceCatalog interface {
	Get(ctx context.Context, id string) (*model.Resource, error)
}

type BookingService interface {
	Create(ctx context.Context, req *model.CreateBookingRequest, requester auth.Identity) (*model.Booking, error)
	Cancel(ctx context.Context, id string, requester auth.Identity) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error)
	CheckAvailability(ctx context.Context, req *model.AvailabilityRequest) (*model.AvailabilityResult, error)
	Stats(ctx context.Context) (*model.BookingStats, error)
	History(ctx context.Context, owner string, limit int, offset int64, requester auth.Identity) ([]*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	archive   repository.BookingArchive
	idx       *index.Index
	locks     *slotLocks
	catalog   ResourceCatalog
	emitter   notifications.Emitter
	validator *validator.BookingValidator
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	archive repository.BookingArchive,
	idx *index.Index,
	catalog ResourceCatalog,
	emitter notifications.Emitter,
	bookingValidator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		archive:   archive,
		idx:       idx,
		locks:     newSlotLocks(),
		catalog:   catalog,
		emitter:   emitter,
		validator: bookingValidator,
		cfg:       cfg,
	}
}

// Create validates and commits a reservation. Failure order is fixed: unknown
// resource, invalid window, capacity, then slot conflict. The overlap check
// and the insert run under the resource's slot lock, so two racing requests
// for intersecting windows cannot both commit.
func (s *bookingService) Create(ctx context.Context, req *model.CreateBookingRequest, requester auth.Identity) (*model.Booking, error) {
	if requester.UserID == "" {
		return nil, apperrors.Unauthorized("booking creation requires an authenticated owner")
	}

	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Invalid booking request", map[string]any{"error": err.Error()})
	}

	resource, err := s.catalog.Get(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrResourceNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", req.ResourceID)
		}
		return nil, apperrors.Internal("Failed to look up resource", err)
	}

	if !req.StartTime.Before(req.EndTime) {
		return nil, apperrors.InvalidWindow("start_time must be strictly before end_time")
	}

	participants := dedupeParticipants(req.Participants)
	if len(participants) > resource.Capacity {
		return nil, apperrors.CapacityExceeded(len(participants), resource.Capacity)
	}

	booking := &model.Booking{
		ID:           uuid.New().String(),
		ResourceID:   resource.ID,
		Owner:        requester.UserID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Participants: participants,
		Status:       model.StatusConfirmed,
		CreatedAt:    time.Now().UTC(),
	}

	if !s.locks.acquire(ctx, resource.ID, s.cfg.SlotLockWait) {
		return nil, apperrors.Busy(fmt.Sprintf("resource %s is being booked by another request, try again", resource.ID))
	}

	err = func() error {
		defer s.locks.release(resource.ID)

		if insertErr := s.idx.Insert(resource.ID, booking.ID, booking.StartTime, booking.EndTime); insertErr != nil {
			var conflict *index.ConflictError
			if errors.As(insertErr, &conflict) {
				return apperrors.Conflict("requested window overlaps an existing booking").
					WithDetails(map[string]any{"conflicting_bookings": conflict.BookingIDs})
			}
			return apperrors.Internal("Failed to commit booking window", insertErr)
		}

		if createErr := s.repo.Create(ctx, booking); createErr != nil {
			// keep record and index consistent: a booking without an index
			// entry (or the reverse) must never survive the critical section
			s.idx.Remove(resource.ID, booking.ID)
			return apperrors.Internal("Failed to store booking", createErr)
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	s.archiveBooking(ctx, booking)
	s.emitter.Emit(ctx, notifications.EventBookingCreated, booking)

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"resource_id", booking.ResourceID,
		"owner", booking.Owner,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
	)
	return copyOf(booking), nil
}

// Cancel releases a booking's window. Cancelling an already-cancelled or
// unknown booking is an acknowledged no-op and emits no event.
func (s *bookingService) Cancel(ctx context.Context, id string, requester auth.Identity) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			s.cfg.Log.Debug("Cancel of unknown booking acknowledged", "id", id)
			return nil
		}
		return apperrors.Internal("Failed to look up booking", err)
	}

	if booking.Owner != requester.UserID && !requester.IsAdmin() {
		return apperrors.Forbidden("only the booking owner or an administrator may cancel")
	}

	if booking.Status == model.StatusCancelled {
		return nil
	}

	if !s.locks.acquire(ctx, booking.ResourceID, s.cfg.SlotLockWait) {
		return apperrors.Busy(fmt.Sprintf("resource %s is busy, try again", booking.ResourceID))
	}

	now := time.Now().UTC()
	err = func() error {
		defer s.locks.release(booking.ResourceID)

		if markErr := s.repo.MarkCancelled(ctx, id, now); markErr != nil {
			if errors.Is(markErr, bookingserrors.ErrAlreadyCancelled) {
				return nil
			}
			return apperrors.Internal("Failed to cancel booking", markErr)
		}
		s.idx.Remove(booking.ResourceID, id)
		return nil
	}()
	if err != nil {
		return err
	}

	booking.Status = model.StatusCancelled
	booking.CancelledAt = &now

	s.archiveCancellation(ctx, booking, now)
	s.emitter.Emit(ctx, notifications.EventBookingCancelled, booking)

	s.cfg.Log.Info("Booking cancelled",
		"id", id,
		"resource_id", booking.ResourceID,
		"requester", requester.UserID,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	bookings, total, err := s.repo.FindAll(ctx, filter, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, total, nil
}

// CheckAvailability is advisory and fails closed: any precondition violation
// reports unavailable rather than an error. Create re-validates atomically at
// commit time, so a positive answer here is never a reservation.
func (s *bookingService) CheckAvailability(ctx context.Context, req *model.AvailabilityRequest) (*model.AvailabilityResult, error) {
	if err := s.validator.ValidateAvailability(req); err != nil {
		return nil, apperrors.Validation("Invalid availability request", map[string]any{"error": err.Error()})
	}

	resource, err := s.catalog.Get(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrResourceNotFound) {
			return &model.AvailabilityResult{Available: false, Reason: model.ReasonResourceNotFound}, nil
		}
		return nil, apperrors.Internal("Failed to look up resource", err)
	}

	if !req.StartTime.Before(req.EndTime) {
		return &model.AvailabilityResult{Available: false, Reason: model.ReasonInvalidWindow}, nil
	}

	if req.RequiredCapacity > resource.Capacity {
		return &model.AvailabilityResult{Available: false, Reason: model.ReasonCapacityExceeded}, nil
	}

	if overlaps := s.idx.Overlaps(resource.ID, req.StartTime, req.EndTime); len(overlaps) > 0 {
		return &model.AvailabilityResult{Available: false, Reason: model.ReasonSlotConflict}, nil
	}

	return &model.AvailabilityResult{Available: true, Reason: model.ReasonAvailable}, nil
}

func (s *bookingService) Stats(ctx context.Context) (*model.BookingStats, error) {
	stats, confirmedPerResource, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to compute booking stats", err)
	}

	byKind := make(map[string]int64)
	for resourceID, count := range confirmedPerResource {
		resource, lookupErr := s.catalog.Get(ctx, resourceID)
		if lookupErr != nil {
			continue
		}
		byKind[string(resource.Kind)] += count
	}
	if len(byKind) > 0 {
		stats.ByKind = byKind
	}
	return stats, nil
}

// History reads the durable archive, which survives restarts and spans
// deployments without one (where it is empty).
func (s *bookingService) History(ctx context.Context, owner string, limit int, offset int64, requester auth.Identity) ([]*model.Booking, error) {
	if owner == "" {
		owner = requester.UserID
	}
	if owner == "" {
		return nil, apperrors.Unauthorized("booking history requires an authenticated owner")
	}
	if owner != requester.UserID && !requester.IsAdmin() {
		return nil, apperrors.Forbidden("only the owner or an administrator may view booking history")
	}

	bookings, err := s.archive.FindByOwner(ctx, owner, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to read booking history", "owner", owner, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking history", err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, nil
}

// --- Helpers ---

func (s *bookingService) archiveBooking(ctx context.Context, booking *model.Booking) {
	if err := s.archive.Save(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to archive booking", "id", booking.ID, "error", err)
	}
}

func (s *bookingService) archiveCancellation(ctx context.Context, booking *model.Booking, at time.Time) {
	if err := s.archive.MarkCancelled(ctx, booking.ID, at); err != nil {
		s.cfg.Log.Error("Failed to archive cancellation", "id", booking.ID, "error", err)
	}
}

func dedupeParticipants(participants []string) []string {
	seen := make(map[string]struct{}, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func copyOf(b *model.Booking) *model.Booking {
	out := *b
	out.Participants = append([]string(nil), b.Participants...)
	return &out
}
