package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Schema statements are idempotent so they can run on every startup.
var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		capital VARCHAR(255),
		region VARCHAR(100),
		population BIGINT NOT NULL,
		currency_code VARCHAR(10),
		exchange_rate DECIMAL(15, 4),
		estimated_gdp DECIMAL(20, 2),
		flag_url TEXT,
		last_refreshed_at TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_name (name),
		INDEX idx_region (region),
		INDEX idx_currency (currency_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS metadata (
		id INT AUTO_INCREMENT PRIMARY KEY,
		key_name VARCHAR(50) NOT NULL UNIQUE,
		value TEXT,
		updated_at TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// Seed the singleton refresh marker; NULL until the first refresh pass.
	`INSERT IGNORE INTO metadata (key_name, value)
	 VALUES ('last_refreshed_at', NULL)`,
}

// EnsureSchema creates the countries and metadata tables if they are missing
// and seeds the singleton refresh-metadata row.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
