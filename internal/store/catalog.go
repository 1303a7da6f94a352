package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storeadmin-io/storeadmin/internal/models"
)

// ListProducts returns every product with its category name, ordered by ID.
func (s *Store) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.price, p.category_id, COALESCE(c.name, ''), p.image_key
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		p := &models.Product{}
		var categoryID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &categoryID, &p.CategoryName, &p.ImageKey); err != nil {
			return nil, err
		}
		if categoryID.Valid {
			p.CategoryID = &categoryID.Int64
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListCategories returns every category ordered by ID.
func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListClients returns every customer ordered by ID.
func (s *Store) ListClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, phone, created_at FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		c := &models.Client{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
