package repository

import (
	"context"

	"github.com/freshfield/cleanbooking/internal/domain"
)

type CatalogRepository interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	GetService(ctx context.Context, id int64) (*domain.Service, error)
	ListExtras(ctx context.Context) ([]domain.Extra, error)
	CountActiveProfessionals(ctx context.Context) (int, error)
}

type PGCatalogRepository struct {
	db DB
}

func NewCatalogRepository(db DB) CatalogRepository {
	return &PGCatalogRepository{db: db}
}

func (r *PGCatalogRepository) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.db.Query(ctx, `SELECT id, slug, name, description, unit_label, unit_price_cents, min_quantity, duration_min, active, created_at, updated_at FROM services WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.Description, &s.UnitLabel, &s.UnitPriceCents, &s.MinQuantity, &s.DurationMin, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *PGCatalogRepository) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	row := r.db.QueryRow(ctx, `SELECT id, slug, name, description, unit_label, unit_price_cents, min_quantity, duration_min, active, created_at, updated_at FROM services WHERE id=$1`, id)
	var s domain.Service
	if err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Description, &s.UnitLabel, &s.UnitPriceCents, &s.MinQuantity, &s.DurationMin, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGCatalogRepository) ListExtras(ctx context.Context) ([]domain.Extra, error) {
	rows, err := r.db.Query(ctx, `SELECT id, slug, name, kind, fee_cents, active, created_at, updated_at FROM service_extras WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	extras := make([]domain.Extra, 0)
	for rows.Next() {
		var e domain.Extra
		if err := rows.Scan(&e.ID, &e.Slug, &e.Name, &e.Kind, &e.FeeCents, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		extras = append(extras, e)
	}
	return extras, rows.Err()
}

func (r *PGCatalogRepository) CountActiveProfessionals(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM professionals WHERE active`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ CatalogRepository = (*PGCatalogRepository)(nil)
