package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

// Repository reads designs and size options. It never caches: admin price edits must
// apply to the next checkout.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetDesign(ctx context.Context, id int64) (*domain.Design, error) {
	d := &domain.Design{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, image_url, created_at
		FROM designs
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Title, &d.Description, &d.ImageURL, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func (r *Repository) GetSizeOption(ctx context.Context, id int64) (*domain.SizeOption, error) {
	s := &domain.SizeOption{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, size, price, description, created_at
		FROM size_options
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Size, &s.Price, &s.Description, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetDesigns loads the designs with the given ids in one round trip, keyed by id.
// Missing ids are simply absent from the map.
func (r *Repository) GetDesigns(ctx context.Context, ids []int64) (map[int64]*domain.Design, error) {
	result := make(map[int64]*domain.Design, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, image_url, created_at
		FROM designs
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		d := &domain.Design{}
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.ImageURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		result[d.ID] = d
	}

	return result, rows.Err()
}

func (r *Repository) ListDesigns(ctx context.Context) ([]domain.Design, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, image_url, created_at
		FROM designs
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	designs := []domain.Design{}
	for rows.Next() {
		var d domain.Design
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.ImageURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		designs = append(designs, d)
	}

	return designs, rows.Err()
}

func (r *Repository) ListSizeOptions(ctx context.Context) ([]domain.SizeOption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, size, price, description, created_at
		FROM size_options
		ORDER BY price
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sizes := []domain.SizeOption{}
	for rows.Next() {
		var s domain.SizeOption
		if err := rows.Scan(&s.ID, &s.Name, &s.Size, &s.Price, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}

	return sizes, rows.Err()
}

// Seed inserts the launch catalog when both tables are empty. It reports whether
// anything was written.
func (r *Repository) Seed(ctx context.Context, designs []domain.Design, sizes []domain.SizeOption) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM designs) + (SELECT COUNT(*) FROM size_options)
	`).Scan(&existing); err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	for _, s := range sizes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO size_options (name, size, price, description)
			VALUES ($1, $2, $3, $4)
		`, s.Name, s.Size, s.Price, s.Description); err != nil {
			return false, fmt.Errorf("insert size option %q: %w", s.Name, err)
		}
	}

	for _, d := range designs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO designs (title, description, image_url)
			VALUES ($1, $2, $3)
		`, d.Title, d.Description, d.ImageURL); err != nil {
			return false, fmt.Errorf("insert design %q: %w", d.Title, err)
		}
	}

	return true, tx.Commit()
}
