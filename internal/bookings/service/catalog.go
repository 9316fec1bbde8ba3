package service

import (
	"context"
	"errors"

	bookingserrors "deskly/internal/bookings/errors"
	resourceserrors "deskly/internal/resources/errors"
	resourcesrepository "deskly/internal/resources/repository"
	"deskly/pkg/model"
)

// repositoryCatalog adapts the resource store to the booking path's lookup
// contract.
type repositoryCatalog struct {
	repo resourcesrepository.ResourceRepository
}

func NewRepositoryCatalog(repo resourcesrepository.ResourceRepository) ResourceCatalog {
	return &repositoryCatalog{repo: repo}
}

func (c *repositoryCatalog) Get(ctx context.Context, id string) (*model.Resource, error) {
	resource, err := c.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, resourceserrors.ErrNotFound) {
			return nil, bookingserrors.ErrResourceNotFound
		}
		return nil, err
	}
	return resource, nil
}
