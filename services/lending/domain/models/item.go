package models

import "github.com/google/uuid"

// CatalogItem is the lending view of a catalog entry. Catalog CRUD is owned
// elsewhere; this context only reads titles and moves stock.
type CatalogItem struct {
	ID            uuid.UUID
	Title         string
	StockQuantity int
	TotalCopies   int
}

// Availability is a display-only snapshot of an item's stock.
type Availability struct {
	ItemID          uuid.UUID `json:"item_id"`
	Title           string    `json:"title"`
	AvailableCopies int       `json:"available_copies"`
	TotalCopies     int       `json:"total_copies"`
	OnLoan          int       `json:"on_loan"`
}

// AvailabilityOf derives the display snapshot for item.
func AvailabilityOf(item *CatalogItem) *Availability {
	return &Availability{
		ItemID:          item.ID,
		Title:           item.Title,
		AvailableCopies: item.StockQuantity,
		TotalCopies:     item.TotalCopies,
		OnLoan:          item.TotalCopies - item.StockQuantity,
	}
}
