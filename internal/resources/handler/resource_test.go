package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deskly/internal/resources/repository"
	"deskly/internal/resources/service"
	"deskly/internal/resources/validator"
	"deskly/pkg/auth"
	"deskly/pkg/config"
	"deskly/pkg/logger"
	"deskly/pkg/model"

	"github.com/julienschmidt/httprouter"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Output: io.Discard})
	cfg := &config.Config{Log: log, SlotLockWait: 2 * time.Second}

	svc := service.NewResourceService(
		repository.NewMemoryResourceRepository(),
		validator.NewResourceValidator(log),
		cfg,
	)

	router := httprouter.New()
	NewResourceHandler(svc, log).RegisterRoutes(router)
	return auth.Middleware()(router)
}

func doJSON(t *testing.T, router http.Handler, method, path string, identity auth.Identity, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if identity.UserID != "" {
		req.Header.Set(auth.HeaderUserID, identity.UserID)
	}
	if identity.Role != "" {
		req.Header.Set(auth.HeaderRole, identity.Role)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var (
	admin  = auth.Identity{UserID: "ops", Role: auth.RoleAdmin}
	member = auth.Identity{UserID: "alice"}
)

func seedResource(t *testing.T, router http.Handler, resource model.Resource) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/resources", admin, resource)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed resource %s failed: %d: %s", resource.ID, rec.Code, rec.Body.String())
	}
}

func TestCreateResourceEndpoint(t *testing.T) {
	router := newTestRouter(t)

	resource := model.Resource{ID: "room-1", Kind: model.KindMeetingRoom, Name: "War Room", Capacity: 4, Floor: 2}

	if rec := doJSON(t, router, http.MethodPost, "/api/v1/resources", member, resource); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/resources", admin, resource)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := doJSON(t, router, http.MethodPost, "/api/v1/resources", admin, resource); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate id, got %d", rec.Code)
	}
}

func TestGetResourceEndpoint(t *testing.T) {
	router := newTestRouter(t)
	seedResource(t, router, model.Resource{ID: "seat-1", Kind: model.KindSeat, Name: "Desk 1", Capacity: 1, Floor: 3})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/resources/id/seat-1", member, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data model.Resource `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Data.ID != "seat-1" || envelope.Data.Kind != model.KindSeat {
		t.Errorf("unexpected resource: %+v", envelope.Data)
	}

	if rec := doJSON(t, router, http.MethodGet, "/api/v1/resources/id/ghost", member, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListResourcesEndpoint(t *testing.T) {
	router := newTestRouter(t)
	seedResource(t, router, model.Resource{ID: "room-1", Kind: model.KindMeetingRoom, Name: "War Room", Capacity: 4, Floor: 2})
	seedResource(t, router, model.Resource{ID: "seat-1", Kind: model.KindSeat, Name: "Desk 1", Capacity: 1, Floor: 2})
	seedResource(t, router, model.Resource{ID: "seat-2", Kind: model.KindSeat, Name: "Desk 2", Capacity: 1, Floor: 3})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/resources?kind=seat&floor=2", member, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data       []model.Resource `json:"data"`
		TotalCount int64            `json:"total_count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.TotalCount != 1 || len(envelope.Data) != 1 {
		t.Fatalf("expected 1 match, got total=%d len=%d", envelope.TotalCount, len(envelope.Data))
	}
	if envelope.Data[0].ID != "seat-1" {
		t.Errorf("expected seat-1, got %q", envelope.Data[0].ID)
	}

	if rec := doJSON(t, router, http.MethodGet, "/api/v1/resources?floor=abc", member, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad floor, got %d", rec.Code)
	}
}

func TestUpdateResourceEndpoint(t *testing.T) {
	router := newTestRouter(t)
	seedResource(t, router, model.Resource{ID: "room-1", Kind: model.KindMeetingRoom, Name: "War Room", Capacity: 4, Floor: 2})

	if rec := doJSON(t, router, http.MethodPatch, "/api/v1/resources/id/room-1", member, map[string]any{"name": "Quiet Room"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodPatch, "/api/v1/resources/id/room-1", admin, map[string]any{
		"name":     "Quiet Room",
		"capacity": 6,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data model.Resource `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Data.Name != "Quiet Room" || envelope.Data.Capacity != 6 {
		t.Errorf("unexpected resource after update: %+v", envelope.Data)
	}
}

func TestFloorsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	seedResource(t, router, model.Resource{ID: "room-1", Kind: model.KindMeetingRoom, Name: "War Room", Capacity: 4, Floor: 2})
	seedResource(t, router, model.Resource{ID: "table-1", Kind: model.KindCafeteriaTable, Name: "Table 1", Capacity: 6, Floor: 1})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/floors", member, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []model.FloorSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("expected 2 floors, got %d", len(envelope.Data))
	}
	if envelope.Data[0].Floor != 1 || envelope.Data[0].TotalCapacity != 6 {
		t.Errorf("unexpected first floor summary: %+v", envelope.Data[0])
	}
}
