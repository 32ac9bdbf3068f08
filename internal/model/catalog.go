package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a library/store item. Prices are decimal to avoid float
// rounding when totals are displayed.
type Product struct {
	ID          string          `json:"_id"`
	Title       string          `json:"title"`
	Author      string          `json:"author,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Stock       int             `json:"stock"`
}

// InStock reports whether the product can be ordered.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Post is a community feed entry.
type Post struct {
	ID        string     `json:"_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    SenderInfo `json:"author"`
	Reactions int        `json:"reactionsCount"`
	Comments  int        `json:"commentsCount"`
	Status    string     `json:"status,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
