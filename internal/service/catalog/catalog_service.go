package catalog

import (
	"context"

	"github.com/freshfield/cleanbooking/internal/domain"
	"github.com/freshfield/cleanbooking/internal/repository"
)

type CatalogUseCase interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	ListExtras(ctx context.Context) ([]domain.Extra, error)
}

// Cache is the read-through layer in front of the catalog tables.
type Cache interface {
	GetServices(ctx context.Context) ([]domain.Service, error)
	SetServices(ctx context.Context, services []domain.Service) error
	GetExtras(ctx context.Context) ([]domain.Extra, error)
	SetExtras(ctx context.Context, extras []domain.Extra) error
}

type CatalogService struct {
	repo  repository.CatalogRepository
	cache Cache
}

func NewCatalogService(repo repository.CatalogRepository, cache Cache) *CatalogService {
	return &CatalogService{repo: repo, cache: cache}
}

func (s *CatalogService) ListServices(ctx context.Context) ([]domain.Service, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetServices(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	services, err := s.repo.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetServices(ctx, services)
	}
	return services, nil
}

func (s *CatalogService) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	return s.repo.GetService(ctx, id)
}

func (s *CatalogService) ListExtras(ctx context.Context) ([]domain.Extra, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetExtras(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	extras, err := s.repo.ListExtras(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetExtras(ctx, extras)
	}
	return extras, nil
}

var _ CatalogUseCase = (*CatalogService)(nil)
