package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Design struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SizeOption struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Size        string          `json:"size"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}
