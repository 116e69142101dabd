package coupon

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	"github.com/ssnivlek/kelvo-ecomm/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema for the coupons table, suitable for
// database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const selectActiveCoupons = `
	SELECT code, discount_percent::float8, label, free_shipping
	FROM coupons
	WHERE active
	ORDER BY code`

// LoadPostgres snapshots the active rows of the coupons table into a
// registry. Later table changes are not observed until the next load.
func LoadPostgres(ctx context.Context, db database.DBTX) (reg *Registry, err error) {
	ctx, end := database.TraceQuery(ctx, "LoadCoupons", selectActiveCoupons)
	defer func() { end(err) }()

	rows, err := db.Query(ctx, selectActiveCoupons)
	if err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	defer rows.Close()

	var entries []domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.Code, &c.DiscountPercent, &c.Label, &c.FreeShipping); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		entries = append(entries, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupons: %w", err)
	}

	return NewRegistry(entries)
}
