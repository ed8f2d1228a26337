package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

const orderColumns = `
	id, number, COALESCE(checkout_id::text, ''), design_id, size_option_id,
	customer_name, customer_email, shipping_address, notes, amount,
	payment_method, provider_reference, shipping_method, shipping_rate,
	status, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.Number, &o.CheckoutID, &o.DesignID, &o.SizeOptionID,
		&o.CustomerName, &o.CustomerEmail, &o.ShippingAddress, &o.Notes, &o.Amount,
		&o.PaymentMethod, &o.ProviderReferenceID, &o.ShippingMethod, &o.ShippingRate,
		&o.Status, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// OrderRepository persists orders. provider_reference is unique, so at most one order
// exists per payment artifact no matter how many completion signals race.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrGet inserts the order and its lines, or returns the order that already holds
// the same provider reference. created is false when an existing order was returned.
func (r *OrderRepository) CreateOrGet(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	var checkoutID any
	if order.CheckoutID != "" {
		checkoutID = order.CheckoutID
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, checkout_id, design_id, size_option_id, customer_name, customer_email,
			shipping_address, notes, amount, payment_method, provider_reference,
			shipping_method, shipping_rate, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (provider_reference) DO NOTHING
		RETURNING number, created_at
	`, order.ID, checkoutID, order.DesignID, order.SizeOptionID, order.CustomerName, order.CustomerEmail,
		order.ShippingAddress, order.Notes, order.Amount, order.PaymentMethod, order.ProviderReferenceID,
		order.ShippingMethod, order.ShippingRate, order.Status,
	).Scan(&order.Number, &order.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		existing, err := r.FindByProviderReference(ctx, order.ProviderReferenceID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, errors.New("order for provider reference vanished after conflict")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	for i, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, position, design_id, size_option_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, order.ID, i, line.DesignID, line.SizeOptionID, line.Quantity, line.UnitPrice)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return order, true, nil
}

func (r *OrderRepository) FindByProviderReference(ctx context.Context, ref string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider_reference = $1`, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadLines(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadLines(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetWithDetails returns the order with the design and size option of its first line.
// The catalog records are nil if they have since been deleted.
func (r *OrderRepository) GetWithDetails(ctx context.Context, id string) (*domain.OrderDetails, error) {
	order, err := r.GetByID(ctx, id)
	if err != nil || order == nil {
		return nil, err
	}

	details := &domain.OrderDetails{Order: order}

	d := &domain.Design{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, title, description, image_url, created_at
		FROM designs
		WHERE id = $1
	`, order.DesignID).Scan(&d.ID, &d.Title, &d.Description, &d.ImageURL, &d.CreatedAt)
	switch {
	case err == nil:
		details.Design = d
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	s := &domain.SizeOption{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, name, size, price, description, created_at
		FROM size_options
		WHERE id = $1
	`, order.SizeOptionID).Scan(&s.ID, &s.Name, &s.Size, &s.Price, &s.Description, &s.CreatedAt)
	switch {
	case err == nil:
		details.SizeOption = s
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	return details, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *OrderRepository) loadLines(ctx context.Context, order *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT design_id, size_option_id, quantity, unit_price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position
	`, order.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	order.Lines = []domain.OrderLine{}
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.DesignID, &line.SizeOptionID, &line.Quantity, &line.UnitPrice); err != nil {
			return err
		}
		order.Lines = append(order.Lines, line)
	}

	return rows.Err()
}
