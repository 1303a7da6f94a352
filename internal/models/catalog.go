package models

import "time"

type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Product struct {
	ID           int64   `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	Description  string  `json:"description" db:"description"`
	Price        float64 `json:"price" db:"price"`
	CategoryID   *int64  `json:"category_id,omitempty" db:"category_id"`
	CategoryName string  `json:"category_name,omitempty" db:"-"`
	ImageKey     string  `json:"image_key,omitempty" db:"image_key"`
	// ImageURL is filled in at render time when object storage is configured.
	ImageURL string `json:"image_url,omitempty" db:"-"`
}

// Client is a customer record, listed on the users page.
type Client struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
