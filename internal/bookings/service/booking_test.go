package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	bookingserrors "deskly/internal/bookings/errors"
	"deskly/internal/bookings/index"
	"deskly/internal/bookings/repository"
	"deskly/internal/bookings/validator"
	"deskly/internal/notifications"
	"deskly/pkg/auth"
	"deskly/pkg/config"
	apperrors "deskly/pkg/errors"
	"deskly/pkg/logger"
	"deskly/pkg/model"
)

// --- Test doubles ---

type stubCatalog struct {
	resources map[string]*model.Resource
}

func (c *stubCatalog) Get(_ context.Context, id string) (*model.Resource, error) {
	resource, ok := c.resources[id]
	if !ok {
		return nil, bookingserrors.ErrResourceNotFound
	}
	return resource, nil
}

type recordedEvent struct {
	Event     notifications.Event
	BookingID string
}

type recorderEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recorderEmitter) Emit(_ context.Context, event notifications.Event, booking *model.Booking) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{Event: event, BookingID: booking.ID})
}

func (e *recorderEmitter) recorded() []recordedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]recordedEvent(nil), e.events...)
}

// blockingRepo gates Create so a test can hold a booking mid-commit while its
// slot lock is held.
type blockingRepo struct {
	repository.BookingRepository
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Create(ctx context.Context, booking *model.Booking) error {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.BookingRepository.Create(ctx, booking)
}

// --- Fixtures ---

func testConfig(lockWait time.Duration) *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:  logger.ERROR,
			Format: logger.TEXT,
			Output: io.Discard,
		}),
		SlotLockWait: lockWait,
	}
}

func defaultCatalog() *stubCatalog {
	return &stubCatalog{resources: map[string]*model.Resource{
		"room-1": {ID: "room-1", Kind: model.KindMeetingRoom, Name: "War Room", Capacity: 4, Floor: 2},
		"seat-7": {ID: "seat-7", Kind: model.KindSeat, Name: "Desk 7", Capacity: 1, Floor: 3},
	}}
}

func newTestService(t *testing.T) (BookingService, *recorderEmitter) {
	t.Helper()
	cfg := testConfig(2 * time.Second)
	emitter := &recorderEmitter{}
	svc := NewBookingService(
		repository.NewMemoryBookingRepository(),
		repository.NewNoopBookingArchive(),
		index.New(),
		defaultCatalog(),
		emitter,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	return svc, emitter
}

func ts(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func createReq(resourceID string, start, end time.Time, participants ...string) *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		ResourceID:   resourceID,
		StartTime:    start,
		EndTime:      end,
		Participants: participants,
	}
}

var alice = auth.Identity{UserID: "alice"}

// --- Create ---

func TestCreateRequiresOwner(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), createReq("room-1", ts(10, 0), ts(11, 0)), auth.Identity{})
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected %s, got %v", apperrors.CodeUnauthorized, err)
	}
}

func TestCreateRejectsMalformedRequest(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		req  *model.CreateBookingRequest
	}{
		{"missing resource id", createReq("", ts(10, 0), ts(11, 0))},
		{"missing start time", &model.CreateBookingRequest{ResourceID: "room-1", EndTime: ts(11, 0)}},
		{"missing end time", &model.CreateBookingRequest{ResourceID: "room-1", StartTime: ts(10, 0)}},
		{"empty participant", createReq("room-1", ts(10, 0), ts(11, 0), "alice", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req, alice)
			if !apperrors.IsCode(err, apperrors.CodeValidation) {
				t.Errorf("expected %s, got %v", apperrors.CodeValidation, err)
			}
		})
	}
}

func TestCreateUnknownResource(t *testing.T) {
	svc, _ := newTestService(t)

	// resource existence is checked before the window, so an unknown resource
	// with a broken window still reports not-found
	_, err := svc.Create(context.Background(), createReq("ghost", ts(11, 0), ts(10, 0)), alice)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}

func TestCreateInvalidWindow(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"zero length", ts(10, 0), ts(10, 0)},
		{"reversed", ts(11, 0), ts(10, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), createReq("room-1", tt.start, tt.end), alice)
			if !apperrors.IsCode(err, apperrors.CodeInvalidWindow) {
				t.Errorf("expected %s, got %v", apperrors.CodeInvalidWindow, err)
			}
		})
	}
}

func TestCreateCapacityExceeded(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(),
		createReq("room-1", ts(10, 0), ts(11, 0), "a", "b", "c", "d", "e"), alice)
	if !apperrors.IsCode(err, apperrors.CodeCapacityExceeded) {
		t.Fatalf("expected %s, got %v", apperrors.CodeCapacityExceeded, err)
	}
}

func TestCreateDeduplicatesParticipants(t *testing.T) {
	svc, _ := newTestService(t)

	// five names but only four distinct people, so capacity 4 holds
	booking, err := svc.Create(context.Background(),
		createReq("room-1", ts(10, 0), ts(11, 0), "d", "a", "b", "a", "c"), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	if len(booking.Participants) != len(want) {
		t.Fatalf("expected %d participants, got %v", len(want), booking.Participants)
	}
	for i, p := range want {
		if booking.Participants[i] != p {
			t.Errorf("participant %d: expected %q, got %q", i, p, booking.Participants[i])
		}
	}
}

func TestCreateOverlapRejectedAdjacencyAllowed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, createReq("room-1", ts(10, 0), ts(11, 0)), alice)
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if first.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed booking, got %q", first.Status)
	}

	_, err = svc.Create(ctx, createReq("room-1", ts(10, 30), ts(11, 30)), alice)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("overlapping booking: expected %s, got %v", apperrors.CodeConflict, err)
	}

	// [11:00, 12:00) touches [10:00, 11:00) only at the boundary
	if _, err = svc.Create(ctx, createReq("room-1", ts(11, 0), ts(12, 0)), alice); err != nil {
		t.Fatalf("adjacent booking failed: %v", err)
	}

	// the same window on a different resource is unaffected
	if _, err = svc.Create(ctx, createReq("seat-7", ts(10, 30), ts(11, 30)), alice); err != nil {
		t.Fatalf("booking on other resource failed: %v", err)
	}
}

func TestCreateEmitsEvent(t *testing.T) {
	svc, emitter := newTestService(t)

	booking, err := svc.Create(context.Background(), createReq("room-1", ts(10, 0), ts(11, 0)), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := emitter.recorded()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Event != notifications.EventBookingCreated || events[0].BookingID != booking.ID {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestConcurrentCreateSameWindowOneWins(t *testing.T) {
	svc, _ := newTestService(t)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), createReq("room-1", ts(14, 0), ts(15, 0)), alice)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case apperrors.IsCode(err, apperrors.CodeConflict):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly 1 success, got %d", succeeded)
	}
	if conflicted != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflicted)
	}
}

func TestCreateBusyWhenSlotLockHeld(t *testing.T) {
	cfg := testConfig(10 * time.Millisecond)
	repo := &blockingRepo{
		BookingRepository: repository.NewMemoryBookingRepository(),
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	svc := NewBookingService(
		repo,
		repository.NewNoopBookingArchive(),
		index.New(),
		defaultCatalog(),
		&recorderEmitter{},
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Create(context.Background(), createReq("room-1", ts(10, 0), ts(11, 0)), alice)
		done <- err
	}()

	<-repo.entered // first request now holds room-1's slot lock

	_, err := svc.Create(context.Background(), createReq("room-1", ts(12, 0), ts(13, 0)), alice)
	if !apperrors.IsCode(err, apperrors.CodeBusy) {
		t.Fatalf("expected %s, got %v", apperrors.CodeBusy, err)
	}

	close(repo.release)
	if err := <-done; err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// lock released, the second window commits on retry
	if _, err := svc.Create(context.Background(), createReq("room-1", ts(12, 0), ts(13, 0)), alice); err != nil {
		t.Fatalf("retry after release failed: %v", err)
	}
}

// --- Cancel ---

func TestCancelUnknownBookingIsAcknowledged(t *testing.T) {
	svc, emitter := newTestService(t)

	if err := svc.Cancel(context.Background(), "no-such-booking", alice); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if events := emitter.recorded(); len(events) != 0 {
		t.Errorf("expected no events, got %v", events)
	}
}

func TestCancelEmptyID(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Cancel(context.Background(), "", alice)
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected %s, got %v", apperrors.CodeInvalidInput, err)
	}
}

func TestCancelForbiddenForOtherUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, createReq("room-1", ts(10, 0), ts(11, 0)), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.Cancel(ctx, booking.ID, auth.Identity{UserID: "mallory"})
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected %s, got %v", apperrors.CodeForbidden, err)
	}

	// admins may cancel on behalf of anyone
	if err := svc.Cancel(ctx, booking.ID, auth.Identity{UserID: "ops", Role: auth.RoleAdmin}); err != nil {
		t.Fatalf("admin cancel failed: %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, emitter := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, createReq("room-1", ts(10, 0), ts(11, 0)), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Cancel(ctx, booking.ID, alice); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if err := svc.Cancel(ctx, booking.ID, alice); err != nil {
		t.Fatalf("repeated cancel failed: %v", err)
	}

	var cancelled int
	for _, e := range emitter.recorded() {
		if e.Event == notifications.EventBookingCancelled {
			cancelled++
		}
	}
	if cancelled != 1 {
		t.Errorf("expected exactly 1 cancelled event, got %d", cancelled)
	}

	got, err := svc.GetByID(ctx, booking.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("expected status %q, got %q", model.StatusCancelled, got.Status)
	}
	if got.CancelledAt == nil {
		t.Error("expected cancelled_at to be set")
	}
}

func TestCancelFreesWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	booking, err := svc.Create(ctx, createReq("room-1", ts(10, 0), ts(11, 0)), alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Cancel(ctx, booking.ID, alice); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := svc.Create(ctx, createReq("room-1", ts(10, 0), ts(11, 0)), alice); err != nil {
		t.Fatalf("rebooking the freed window failed: %v", err)
	}
}

// --- Availability ---

func TestCheckAvailability(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, createReq("room-1", ts(10, 0), ts(11, 0)), alice); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	tests := []struct {
		name       string
		req        *model.AvailabilityRequest
		available  bool
		wantReason string
	}{
		{
			name:       "free window",
			req:        &model.AvailabilityRequest{ResourceID: "room-1", StartTime: ts(12, 0), EndTime: ts(13, 0)},
			available:  true,
			wantReason: model.ReasonAvailable,
		},
		{
			name:       "adjacent window",
			req:        &model.AvailabilityRequest{ResourceID: "room-1", StartTime: ts(11, 0), EndTime: ts(12, 0)},
			available:  true,
			wantReason: model.ReasonAvailable,
		},
		{
			name:       "unknown resource",
			req:        &model.AvailabilityRequest{ResourceID: "ghost", StartTime: ts(12, 0), EndTime: ts(13, 0)},
			wantReason: model.ReasonResourceNotFound,
		},
		{
			name:       "zero length window",
			req:        &model.AvailabilityRequest{ResourceID: "room-1", StartTime: ts(12, 0), EndTime: ts(12, 0)},
			wantReason: model.ReasonInvalidWindow,
		},
		{
			name:       "over capacity",
			req:        &model.AvailabilityRequest{ResourceID: "room-1", StartTime: ts(12, 0), EndTime: ts(13, 0), RequiredCapacity: 5},
			wantReason: model.ReasonCapacityExceeded,
		},
		{
			name:       "overlapping window",
			req:        &model.AvailabilityRequest{ResourceID: "room-1", StartTime: ts(10, 30), EndTime: ts(11, 30)},
			wantReason: model.ReasonSlotConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.CheckAvailability(ctx, tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Available != tt.available {
				t.Errorf("expected available=%v, got %v", tt.available, result.Available)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, result.Reason)
			}
		})
	}
}

func TestCheckAvailabilityDoesNotReserve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := &model.AvailabilityRequest{ResourceID: "room-1", StartTime: ts(9, 0), EndTime: ts(10, 0)}
	for i := 0; i < 2; i++ {
		result, err := svc.CheckAvailability(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Available {
			t.Fatalf("check %d: expected available, got %q", i, result.Reason)
		}
	}
}

// --- History ---

type fixedArchive struct {
	repository.BookingArchive
	byOwner map[string][]*model.Booking
}

func (a *fixedArchive) FindByOwner(_ context.Context, owner string, _ int, _ int64) ([]*model.Booking, error) {
	return a.byOwner[owner], nil
}

func TestHistory(t *testing.T) {
	cfg := testConfig(2 * time.Second)
	archive := &fixedArchive{
		BookingArchive: repository.NewNoopBookingArchive(),
		byOwner: map[string][]*model.Booking{
			"alice": {{ID: "b-1", ResourceID: "room-1", Owner: "alice", Status: model.StatusCancelled}},
		},
	}
	svc := NewBookingService(
		repository.NewMemoryBookingRepository(),
		archive,
		index.New(),
		defaultCatalog(),
		&recorderEmitter{},
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	ctx := context.Background()

	if _, err := svc.History(ctx, "", 100, 0, auth.Identity{}); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("anonymous history: expected %s, got %v", apperrors.CodeUnauthorized, err)
	}

	if _, err := svc.History(ctx, "alice", 100, 0, auth.Identity{UserID: "mallory"}); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Errorf("foreign history: expected %s, got %v", apperrors.CodeForbidden, err)
	}

	// omitting the owner defaults to the requester
	bookings, err := svc.History(ctx, "", 100, 0, alice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 1 || bookings[0].ID != "b-1" {
		t.Errorf("unexpected history: %+v", bookings)
	}

	// admins may read anyone's history; unknown owners yield an empty slice
	bookings, err = svc.History(ctx, "bob", 100, 0, auth.Identity{UserID: "ops", Role: auth.RoleAdmin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bookings) != 0 {
		t.Errorf("expected empty history, got %+v", bookings)
	}
}

// --- GetByID / List / Stats ---

func TestGetByIDUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), "no-such-booking")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected %s, got %v", apperrors.CodeNotFound, err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	bob := auth.Identity{UserID: "bob"}

	seeds := []struct {
		owner    auth.Identity
		resource string
		start    time.Time
	}{
		{alice, "room-1", ts(9, 0)},
		{bob, "room-1", ts(10, 0)},
		{alice, "seat-7", ts(9, 0)},
	}
	for _, s := range seeds {
		if _, err := svc.Create(ctx, createReq(s.resource, s.start, s.start.Add(time.Hour)), s.owner); err != nil {
			t.Fatalf("seed booking failed: %v", err)
		}
	}

	bookings, total, err := svc.List(ctx, repository.Filter{ResourceID: "room-1"}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(bookings) != 2 {
		t.Fatalf("expected 2 room-1 bookings, got total=%d len=%d", total, len(bookings))
	}
	if !bookings[0].StartTime.Before(bookings[1].StartTime) {
		t.Error("expected bookings ordered by start time")
	}

	bookings, total, err = svc.List(ctx, repository.Filter{Owner: "alice"}, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected total 2 for alice, got %d", total)
	}
	if len(bookings) != 1 {
		t.Errorf("expected 1 booking on page, got %d", len(bookings))
	}
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, createReq("room-1", ts(9, 0), ts(10, 0)), alice)
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := svc.Create(ctx, createReq("room-1", ts(10, 0), ts(11, 0)), alice); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := svc.Create(ctx, createReq("seat-7", ts(9, 0), ts(10, 0)), alice); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if err := svc.Cancel(ctx, first.ID, alice); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 3 || stats.Confirmed != 2 || stats.Cancelled != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.ByKind[string(model.KindMeetingRoom)] != 1 {
		t.Errorf("expected 1 confirmed meeting_room booking, got %d", stats.ByKind[string(model.KindMeetingRoom)])
	}
	if stats.ByKind[string(model.KindSeat)] != 1 {
		t.Errorf("expected 1 confirmed seat booking, got %d", stats.ByKind[string(model.KindSeat)])
	}
}
