package repository

import (
	"database/sql"
	"fmt"
)

// InitMigration initializes the database. In production, this would use a proper migration
// library like go-migrate
func InitMigration(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tag_categories (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id SERIAL PRIMARY KEY,
			tag VARCHAR(255) NOT NULL,
			link VARCHAR(255) NOT NULL UNIQUE,
			category_id INTEGER REFERENCES tag_categories(id),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS addresses (
			id SERIAL PRIMARY KEY,
			address VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			chain VARCHAR(50) NOT NULL,
			entity_type VARCHAR(100),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE(address, chain)
		)`,
		`CREATE TABLE IF NOT EXISTS address_tags (
			id SERIAL PRIMARY KEY,
			address_id INTEGER NOT NULL REFERENCES addresses(id),
			tag_id INTEGER NOT NULL REFERENCES tags(id),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE(address_id, tag_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_addresses_address ON addresses(address)`,
		`CREATE INDEX IF NOT EXISTS idx_addresses_chain ON addresses(chain)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_link ON tags(link)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_category ON tags(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_address_tags_address ON address_tags(address_id)`,
		`CREATE INDEX IF NOT EXISTS idx_address_tags_tag ON address_tags(tag_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}
