package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ErrCatalogUnavailable signals that the catalog could not be read. Callers
// that are about to freeze pricing (approval) must abort on it rather than
// proceed with an incomplete snapshot.
var ErrCatalogUnavailable = errors.New("catalog: unavailable")

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	ListEntries(ctx context.Context) ([]RateCatalogEntry, error)
	ListAdjustments(ctx context.Context) ([]BrandAdjustment, error)
}

// Service loads read-only catalog views.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Load reads the currently effective catalog into a View.
func (s *Service) Load(ctx context.Context) (*View, error) {
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: entries: %v", ErrCatalogUnavailable, err)
	}
	adjustments, err := s.repo.ListAdjustments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: adjustments: %v", ErrCatalogUnavailable, err)
	}
	return NewView(entries, adjustments), nil
}
