package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/shopspring/decimal"
)

// MySQLCatalogRepo resolves product prices from the storefront's products
// table. This is the authoritative price source; client-submitted prices are
// never consulted.
type MySQLCatalogRepo struct{ db *sql.DB }

func NewMySQLCatalogRepo(db *sql.DB) *MySQLCatalogRepo { return &MySQLCatalogRepo{db: db} }

func (r *MySQLCatalogRepo) ResolvePrice(ctx context.Context, productRef string) (decimal.Decimal, error) {
	var price string
	err := r.db.QueryRowContext(ctx,
		`SELECT price FROM products WHERE id=?`, productRef).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", usecase.ErrUnknownProduct, productRef)
	}
	if err != nil {
		return decimal.Zero, wrapDBErr(err)
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse catalog price for %s: %w", productRef, err)
	}
	return d, nil
}

var _ usecase.Catalog = (*MySQLCatalogRepo)(nil)
