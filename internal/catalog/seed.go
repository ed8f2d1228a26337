package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

func LaunchSizeOptions() []domain.SizeOption {
	return []domain.SizeOption{
		{
			Name:        "6 Inch Glass Art",
			Size:        "6",
			Price:       decimal.RequireFromString("149.99"),
			Description: "Perfect for desk or shelf display. Compact and elegant.",
		},
		{
			Name:        "12 Inch Glass Art",
			Size:        "12",
			Price:       decimal.RequireFromString("299.99"),
			Description: "Medium size, great for wall mounting or display cases.",
		},
		{
			Name:        "15 Inch Glass Art",
			Size:        "15",
			Price:       decimal.RequireFromString("449.99"),
			Description: "Large statement piece, perfect for living rooms or offices.",
		},
	}
}

func LaunchDesigns() []domain.Design {
	return []domain.Design{
		{
			Title:       "Genesis Block",
			Description: "The first Bitcoin block ever mined, etched in elegant glass with the original hash and timestamp.",
			ImageURL:    "https://images.unsplash.com/photo-1578662996442-48f60103fc96?auto=format&fit=crop&w=800&h=600",
		},
		{
			Title:       "Satoshi's Vision",
			Description: "Abstract representation of the Bitcoin whitepaper's key concepts in flowing glass art.",
			ImageURL:    "https://images.unsplash.com/photo-1559827260-dc66d52bef19?auto=format&fit=crop&w=800&h=600",
		},
		{
			Title:       "Digital Gold",
			Description: "Bitcoin symbol merged with traditional gold patterns, representing the new digital store of value.",
			ImageURL:    "https://images.unsplash.com/photo-1573164713714-d95e436ab8d6?auto=format&fit=crop&w=800&h=600",
		},
		{
			Title:       "Blockchain Network",
			Description: "Interconnected nodes representing the decentralized nature of blockchain technology.",
			ImageURL:    "https://images.unsplash.com/photo-1518186285589-2f7649de83e0?auto=format&fit=crop&w=800&h=600",
		},
		{
			Title:       "Cypherpunk Manifesto",
			Description: "Typography art featuring key quotes from the cypherpunk movement that birthed Bitcoin.",
			ImageURL:    "https://images.unsplash.com/photo-1551288049-bebda4e38f71?auto=format&fit=crop&w=800&h=600",
		},
	}
}
