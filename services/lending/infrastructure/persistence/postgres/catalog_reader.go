package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ghuser/lendingdesk/pkg/database"
	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

type itemRow struct {
	ID            uuid.UUID `db:"id"`
	Title         string    `db:"title"`
	StockQuantity int       `db:"stock_quantity"`
	TotalCopies   int       `db:"total_copies"`
}

func (r itemRow) toModel() *models.CatalogItem {
	return &models.CatalogItem{
		ID:            r.ID,
		Title:         r.Title,
		StockQuantity: r.StockQuantity,
		TotalCopies:   r.TotalCopies,
	}
}

// CatalogReader implements repositories.CatalogReader over catalog_items.
// Stock read here is a dirty display value.
type CatalogReader struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewCatalogReader returns a CatalogReader over the shared pool.
func NewCatalogReader(db *database.Database) *CatalogReader {
	return &CatalogReader{
		db:      sqlx.NewDb(db.DB(), database.DriverName),
		dialect: goqu.Dialect(dialectPostgres),
	}
}

func (c *CatalogReader) selectItems() *goqu.SelectDataset {
	return c.dialect.From(tableItems).Select(colID, colTitle, colStock, colTotalCopies)
}

// GetItem implements repositories.CatalogReader.
func (c *CatalogReader) GetItem(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error) {
	query, args, err := c.selectItems().Where(goqu.C(colID).Eq(itemID.String())).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}
	var row itemRow
	if err := c.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return row.toModel(), nil
}

// ListItems implements repositories.CatalogReader.
func (c *CatalogReader) ListItems(ctx context.Context) ([]*models.CatalogItem, error) {
	query, args, err := c.selectItems().Order(goqu.C(colTitle).Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}
	var rows []itemRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	out := make([]*models.CatalogItem, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

var _ repositories.CatalogReader = (*CatalogReader)(nil)
