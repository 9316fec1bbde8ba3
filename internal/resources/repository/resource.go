package repository

import (
	"context"
	"sort"
	"sync"

	resourceserrors "deskly/internal/resources/errors"
	"deskly/pkg/model"
)

// Filter narrows catalog listings. Zero-value fields match everything; Floor
// is a pointer so floor 0 remains filterable.
type Filter struct {
	Kind  model.ResourceKind
	Floor *int
}

type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource) error
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	FindAll(ctx context.Context, filter Filter, limit int, offset int64) ([]*model.Resource, int64, error)
	Update(ctx context.Context, resource *model.Resource) error
	FloorSummaries(ctx context.Context) ([]*model.FloorSummary, error)
}

type memoryResourceRepository struct {
	mu        sync.RWMutex
	resources map[string]*model.Resource
}

func NewMemoryResourceRepository() ResourceRepository {
	return &memoryResourceRepository{
		resources: make(map[string]*model.Resource),
	}
}

func (r *memoryResourceRepository) Create(_ context.Context, resource *model.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[resource.ID]; exists {
		return resourceserrors.ErrDuplicateID
	}

	stored := *resource
	r.resources[resource.ID] = &stored
	return nil
}

func (r *memoryResourceRepository) FindByID(_ context.Context, id string) (*model.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resource, ok := r.resources[id]
	if !ok {
		return nil, resourceserrors.ErrNotFound
	}
	out := *resource
	return &out, nil
}

func (r *memoryResourceRepository) FindAll(_ context.Context, filter Filter, limit int, offset int64) ([]*model.Resource, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*model.Resource
	for _, resource := range r.resources {
		if filter.Kind != "" && resource.Kind != filter.Kind {
			continue
		}
		if filter.Floor != nil && resource.Floor != *filter.Floor {
			continue
		}
		out := *resource
		matched = append(matched, &out)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if offset >= total {
		return []*model.Resource{}, total, nil
	}

	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *memoryResourceRepository) Update(_ context.Context, resource *model.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.resources[resource.ID]; !ok {
		return resourceserrors.ErrNotFound
	}

	stored := *resource
	r.resources[resource.ID] = &stored
	return nil
}

func (r *memoryResourceRepository) FloorSummaries(_ context.Context) ([]*model.FloorSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byFloor := make(map[int]*model.FloorSummary)
	for _, resource := range r.resources {
		summary, ok := byFloor[resource.Floor]
		if !ok {
			summary = &model.FloorSummary{Floor: resource.Floor}
			byFloor[resource.Floor] = summary
		}
		summary.Resources++
		summary.TotalCapacity += int64(resource.Capacity)
	}

	summaries := make([]*model.FloorSummary, 0, len(byFloor))
	for _, summary := range byFloor {
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Floor < summaries[j].Floor
	})
	return summaries, nil
}
