package validator

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"deskly/pkg/logger"
	"deskly/pkg/model"
)

func newTestValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{
		Level:  logger.ERROR,
		Format: logger.TEXT,
		Output: io.Discard,
	}))
}

func window() (time.Time, time.Time) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return start, start.Add(time.Hour)
}

func TestValidateCreate(t *testing.T) {
	v := newTestValidator()
	start, end := window()

	tests := []struct {
		name      string
		req       *model.CreateBookingRequest
		wantField string
	}{
		{
			name: "valid",
			req:  &model.CreateBookingRequest{ResourceID: "room-1", StartTime: start, EndTime: end},
		},
		{
			name: "valid with participants",
			req: &model.CreateBookingRequest{
				ResourceID:   "room-1",
				StartTime:    start,
				EndTime:      end,
				Participants: []string{"alice", "bob"},
			},
		},
		{
			name:      "missing resource id",
			req:       &model.CreateBookingRequest{StartTime: start, EndTime: end},
			wantField: "ResourceID",
		},
		{
			name:      "missing start time",
			req:       &model.CreateBookingRequest{ResourceID: "room-1", EndTime: end},
			wantField: "StartTime",
		},
		{
			name:      "missing end time",
			req:       &model.CreateBookingRequest{ResourceID: "room-1", StartTime: start},
			wantField: "EndTime",
		},
		{
			name: "resource id too long",
			req: &model.CreateBookingRequest{
				ResourceID: strings.Repeat("x", 65),
				StartTime:  start,
				EndTime:    end,
			},
			wantField: "ResourceID",
		},
		{
			name: "empty participant entry",
			req: &model.CreateBookingRequest{
				ResourceID:   "room-1",
				StartTime:    start,
				EndTime:      end,
				Participants: []string{"alice", ""},
			},
			// dive errors carry the offending index in the field name
			wantField: "Participants[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCreate(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			assertFieldError(t, err, tt.wantField)
		})
	}
}

func TestValidateAvailability(t *testing.T) {
	v := newTestValidator()
	start, end := window()

	tests := []struct {
		name      string
		req       *model.AvailabilityRequest
		wantField string
	}{
		{
			name: "valid",
			req:  &model.AvailabilityRequest{ResourceID: "room-1", StartTime: start, EndTime: end, RequiredCapacity: 3},
		},
		{
			name: "zero capacity is allowed",
			req:  &model.AvailabilityRequest{ResourceID: "room-1", StartTime: start, EndTime: end},
		},
		{
			name:      "missing resource id",
			req:       &model.AvailabilityRequest{StartTime: start, EndTime: end},
			wantField: "ResourceID",
		},
		{
			name:      "negative capacity",
			req:       &model.AvailabilityRequest{ResourceID: "room-1", StartTime: start, EndTime: end, RequiredCapacity: -1},
			wantField: "RequiredCapacity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAvailability(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			assertFieldError(t, err, tt.wantField)
		})
	}
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error on field %s, got nil", field)
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
	for _, ve := range verrs {
		if ve.Field == field {
			return
		}
	}
	t.Errorf("expected an error on field %s, got %v", field, verrs)
}
