package service

import (
	"context"
	"errors"
	"strings"

	resourceserrors "deskly/internal/resources/errors"
	"deskly/internal/resources/repository"
	"deskly/internal/resources/validator"
	"deskly/pkg/auth"
	"deskly/pkg/config"
	apperrors "deskly/pkg/errors"
	"deskly/pkg/model"

	"github.com/google/uuid"
)

type ResourceService interface {
	Create(ctx context.Context, resource *model.Resource, requester auth.Identity) (*model.Resource, error)
	GetByID(ctx context.Context, id string) (*model.Resource, error)
	GetAll(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Resource, int64, error)
	Update(ctx context.Context, id string, updates *model.ResourceUpdate, requester auth.Identity) (*model.Resource, error)
	Floors(ctx context.Context) ([]*model.FloorSummary, error)
}

type resourceService struct {
	repo      repository.ResourceRepository
	validator *validator.ResourceValidator
	cfg       *config.Config
}

func NewResourceService(
	repo repository.ResourceRepository,
	resourceValidator *validator.ResourceValidator,
	cfg *config.Config,
) ResourceService {
	return &resourceService{
		repo:      repo,
		validator: resourceValidator,
		cfg:       cfg,
	}
}

func (s *resourceService) Create(ctx context.Context, resource *model.Resource, requester auth.Identity) (*model.Resource, error) {
	if !requester.IsAdmin() {
		return nil, apperrors.Forbidden("catalog changes require an administrator")
	}

	s.sanitize(resource)
	if resource.ID == "" {
		resource.ID = uuid.New().String()
	}

	if err := s.validator.Validate(resource); err != nil {
		s.cfg.Log.Warn("Resource validation failed",
			"id", resource.ID,
			"name", resource.Name,
			"error", err,
		)
		return nil, apperrors.Validation("Invalid resource", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, resource); err != nil {
		if errors.Is(err, resourceserrors.ErrDuplicateID) {
			return nil, apperrors.Conflict("resource with this id already exists")
		}
		s.cfg.Log.Error("Failed to create resource", "id", resource.ID, "error", err)
		return nil, apperrors.Internal("Failed to create resource", err)
	}

	s.cfg.Log.Info("Resource created",
		"id", resource.ID,
		"kind", resource.Kind,
		"name", resource.Name,
		"capacity", resource.Capacity,
		"floor", resource.Floor,
	)
	out := *resource
	return &out, nil
}

func (s *resourceService) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	resource, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", id)
		}
		s.cfg.Log.Error("Failed to get resource by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve resource", err)
	}
	return resource, nil
}

func (s *resourceService) GetAll(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Resource, int64, error) {
	resources, total, err := s.repo.FindAll(ctx, filter, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list resources", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve resources", err)
	}
	return resources, total, nil
}

func (s *resourceService) Update(ctx context.Context, id string, updates *model.ResourceUpdate, requester auth.Identity) (*model.Resource, error) {
	if !requester.IsAdmin() {
		return nil, apperrors.Forbidden("catalog changes require an administrator")
	}
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", id)
		}
		return nil, apperrors.Internal("Failed to check resource existence", err)
	}

	merged := s.mergeResourceUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Resource validation failed",
			"id", id,
			"name", merged.Name,
			"error", err,
		)
		return nil, apperrors.Validation("Invalid resource update", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Update(ctx, merged); err != nil {
		s.cfg.Log.Error("Failed to update resource", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update resource", err)
	}

	s.cfg.Log.Info("Resource updated", "id", id, "name", merged.Name)
	out := *merged
	return &out, nil
}

func (s *resourceService) Floors(ctx context.Context) ([]*model.FloorSummary, error) {
	summaries, err := s.repo.FloorSummaries(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to summarize floors", "error", err)
		return nil, apperrors.Internal("Failed to summarize floors", err)
	}
	return summaries, nil
}

func (s *resourceService) sanitize(resource *model.Resource) {
	resource.ID = strings.TrimSpace(resource.ID)
	resource.Name = strings.Join(strings.Fields(resource.Name), " ")
}

func (s *resourceService) mergeResourceUpdates(existing *model.Resource, updates *model.ResourceUpdate) *model.Resource {
	merged := *existing

	if updates.Name != "" {
		merged.Name = strings.Join(strings.Fields(updates.Name), " ")
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	if updates.Floor != nil {
		merged.Floor = *updates.Floor
	}

	merged.ID = existing.ID
	merged.Kind = existing.Kind

	return &merged
}
