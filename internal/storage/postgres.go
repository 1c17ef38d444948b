package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hassandelivery/delivery-service/pkg/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Postgres implements the persistence gateway for users and orders.
type Postgres struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgres(db *sql.DB, logger *logrus.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Bootstrap creates the schema if it does not exist yet.
func (p *Postgres) Bootstrap(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(255) PRIMARY KEY,
			email VARCHAR(255) UNIQUE,
			first_name VARCHAR(255),
			last_name VARCHAR(255),
			profile_image_url TEXT,
			whatsapp_number VARCHAR(64),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL REFERENCES users(id),
			description TEXT NOT NULL,
			location TEXT NOT NULL,
			location_lat DOUBLE PRECISION,
			location_lng DOUBLE PRECISION,
			category VARCHAR(50) NOT NULL,
			custom_category VARCHAR(255),
			estimated_items_cost BIGINT NOT NULL,
			delivery_fee BIGINT NOT NULL,
			total_cost BIGINT NOT NULL,
			estimated_delivery_time VARCHAR(255),
			status VARCHAR(50) NOT NULL,
			whatsapp_sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	return nil
}

func (p *Postgres) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (id, email, first_name, last_name, profile_image_url, whatsapp_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			profile_image_url = EXCLUDED.profile_image_url,
			whatsapp_number = EXCLUDED.whatsapp_number,
			updated_at = EXCLUDED.updated_at
		RETURNING id, email, first_name, last_name, profile_image_url, whatsapp_number, created_at, updated_at
	`

	row := p.db.QueryRowContext(ctx, query, user.ID, user.Email, user.FirstName,
		user.LastName, user.ProfileImageURL, user.WhatsAppNumber, now)

	saved, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return saved, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, first_name, last_name, profile_image_url, whatsapp_number, created_at, updated_at
		FROM users WHERE id = $1
	`

	user, err := scanUser(p.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, first_name, last_name, profile_image_url, whatsapp_number, created_at, updated_at
		FROM users WHERE email = $1
	`

	user, err := scanUser(p.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (p *Postgres) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (id, user_id, description, location, location_lat, location_lng,
			category, custom_category, estimated_items_cost, delivery_fee, total_cost,
			estimated_delivery_time, status, whatsapp_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := p.db.ExecContext(ctx, query, order.ID, order.UserID, order.Description,
		order.Location, order.LocationLat, order.LocationLng, order.Category,
		order.CustomCategory, order.EstimatedItemsCost, order.DeliveryFee,
		order.TotalCost, order.EstimatedDeliveryTime, order.Status,
		order.WhatsAppSent, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (*models.OrderWithUser, error) {
	query := selectOrderWithUser + ` WHERE o.id = $1`

	order, err := scanOrderWithUser(p.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (p *Postgres) GetUserOrders(ctx context.Context, userID string) ([]models.OrderWithUser, error) {
	query := selectOrderWithUser + ` WHERE o.user_id = $1 ORDER BY o.created_at DESC`

	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.OrderWithUser
	for rows.Next() {
		order, err := scanOrderWithUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	return orders, rows.Err()
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) MarkWhatsAppSent(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE orders SET whatsapp_sent = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark whatsapp sent: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectOrderWithUser = `
	SELECT o.id, o.user_id, o.description, o.location, o.location_lat, o.location_lng,
		o.category, o.custom_category, o.estimated_items_cost, o.delivery_fee, o.total_cost,
		o.estimated_delivery_time, o.status, o.whatsapp_sent, o.created_at, o.updated_at,
		u.id, u.email, u.first_name, u.last_name, u.profile_image_url, u.whatsapp_number,
		u.created_at, u.updated_at
	FROM orders o
	INNER JOIN users u ON u.id = o.user_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var email, firstName, lastName, profileImageURL, whatsappNumber sql.NullString

	err := row.Scan(&user.ID, &email, &firstName, &lastName, &profileImageURL,
		&whatsappNumber, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	user.Email = email.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.ProfileImageURL = profileImageURL.String
	user.WhatsAppNumber = whatsappNumber.String
	return &user, nil
}

func scanOrderWithUser(row rowScanner) (*models.OrderWithUser, error) {
	var order models.OrderWithUser
	var lat, lng sql.NullFloat64
	var customCategory, deliveryTime sql.NullString
	var email, firstName, lastName, profileImageURL, whatsappNumber sql.NullString

	err := row.Scan(&order.ID, &order.UserID, &order.Description, &order.Location,
		&lat, &lng, &order.Category, &customCategory, &order.EstimatedItemsCost,
		&order.DeliveryFee, &order.TotalCost, &deliveryTime, &order.Status,
		&order.WhatsAppSent, &order.CreatedAt, &order.UpdatedAt,
		&order.User.ID, &email, &firstName, &lastName, &profileImageURL,
		&whatsappNumber, &order.User.CreatedAt, &order.User.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		order.LocationLat = &lat.Float64
	}
	if lng.Valid {
		order.LocationLng = &lng.Float64
	}
	order.CustomCategory = customCategory.String
	order.EstimatedDeliveryTime = deliveryTime.String
	order.User.Email = email.String
	order.User.FirstName = firstName.String
	order.User.LastName = lastName.String
	order.User.ProfileImageURL = profileImageURL.String
	order.User.WhatsAppNumber = whatsappNumber.String
	return &order, nil
}
