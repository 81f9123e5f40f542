package rules

import (
	"context"
)

// RepositoryPort defines data access for global rules.
type RepositoryPort interface {
	Get(ctx context.Context) (GlobalRules, error)
}

// Service serves the effective global rules, cached behind a version key.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Current returns the currently effective rules.
func (s *Service) Current(ctx context.Context) (GlobalRules, error) {
	key, err := s.cache.BuildKey(ctx, "rules", "current")
	if err != nil {
		return GlobalRules{}, err
	}
	var rules GlobalRules
	err = s.cache.FetchJSON(ctx, key, &rules, func(ctx context.Context) (interface{}, error) {
		return s.repo.Get(ctx)
	})
	if err != nil {
		return GlobalRules{}, err
	}
	return rules, nil
}

// Invalidate drops cached rules after an admin-side change. Approved
// quotations are unaffected: they read from their stored snapshot, never from
// the live rules.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
