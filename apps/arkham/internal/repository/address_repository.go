package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"arkham/apps/arkham/internal/model"
)

type AddressRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAddressRepository(db *sql.DB, logger *zap.Logger) *AddressRepository {
	return &AddressRepository{db: db, logger: logger}
}

// UpsertRecord persists one normalized record inside a single transaction:
// categories, then tags, then the address, then the address-tag links. All
// statements key on natural unique constraints, so re-processing the same
// record is a no-op on already-present rows.
func (r *AddressRepository) UpsertRecord(record model.TaggedAddress) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if tx.Commit() succeeds

	var addressID int
	err = tx.QueryRow(`
		INSERT INTO addresses (address, name, chain, entity_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address, chain) DO UPDATE SET
			name = EXCLUDED.name,
			entity_type = EXCLUDED.entity_type,
			updated_at = NOW()
		RETURNING id
	`, record.Address, record.Name, record.Chain, record.EntityType).Scan(&addressID)
	if err != nil {
		return fmt.Errorf("failed to upsert address %s: %w", record.Address, err)
	}

	for _, tagRef := range record.Tags {
		tagID, err := upsertTag(tx, tagRef)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO address_tags (address_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT (address_id, tag_id) DO NOTHING
		`, addressID, tagID)
		if err != nil {
			return fmt.Errorf("failed to link address %s to tag %s: %w", record.Address, tagRef.Link, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record for %s: %w", record.Address, err)
	}

	r.logger.Debug("Upserted record",
		zap.String("address", record.Address),
		zap.String("chain", record.Chain),
		zap.Int("tags", len(record.Tags)))
	return nil
}

// SeedCatalog upserts every reference-file category and tag before the
// crawl starts, so reference-file categories always win over categories
// inferred later from API responses.
func (r *AddressRepository) SeedCatalog(tags []model.TagRef) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tagRef := range tags {
		if _, err := upsertTag(tx, tagRef); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog seed: %w", err)
	}

	r.logger.Info("Seeded tag catalog", zap.Int("tags", len(tags)))
	return nil
}

// upsertTag ensures the tag's category and the tag itself exist, returning
// the tag id. A conflicting insert still returns the existing row's id via
// the DO UPDATE no-op.
func upsertTag(tx *sql.Tx, tagRef model.TagRef) (int, error) {
	var categoryID int
	err := tx.QueryRow(`
		INSERT INTO tag_categories (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, tagRef.Category).Scan(&categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert category %s: %w", tagRef.Category, err)
	}

	var tagID int
	err = tx.QueryRow(`
		INSERT INTO tags (tag, link, category_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (link) DO UPDATE SET tag = EXCLUDED.tag
		RETURNING id
	`, tagRef.Tag, tagRef.Link, categoryID).Scan(&tagID)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert tag %s: %w", tagRef.Link, err)
	}

	return tagID, nil
}

// GetAddress returns an address row with its tag labels, or nil if absent.
// chain narrows the lookup when an address exists on multiple chains.
func (r *AddressRepository) GetAddress(address, chain string) (*model.Address, []string, error) {
	query := `
		SELECT id, address, COALESCE(name, ''), chain, COALESCE(entity_type, ''), created_at, updated_at
		FROM addresses
		WHERE address = $1
	`
	args := []interface{}{address}
	if chain != "" {
		query += ` AND chain = $2`
		args = append(args, chain)
	}
	query += ` LIMIT 1`

	var addr model.Address
	err := r.db.QueryRow(query, args...).Scan(
		&addr.ID, &addr.Address, &addr.Name, &addr.Chain, &addr.EntityType, &addr.CreatedAt, &addr.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get address: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT t.tag
		FROM tags t
		JOIN address_tags at ON at.tag_id = t.id
		WHERE at.address_id = $1
		ORDER BY t.tag
	`, addr.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get tags for address: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, nil, fmt.Errorf("failed to scan tag label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating tag labels: %w", err)
	}

	return &addr, labels, nil
}

// GetAddressesByTag returns every address linked to a tag label.
func (r *AddressRepository) GetAddressesByTag(label string) ([]model.Address, error) {
	rows, err := r.db.Query(`
		SELECT a.id, a.address, COALESCE(a.name, ''), a.chain, COALESCE(a.entity_type, ''), a.created_at, a.updated_at
		FROM addresses a
		JOIN address_tags at ON at.address_id = a.id
		JOIN tags t ON t.id = at.tag_id
		WHERE t.tag = $1
		ORDER BY a.address
	`, label)
	if err != nil {
		return nil, fmt.Errorf("failed to get addresses by tag: %w", err)
	}
	defer rows.Close()

	var addresses []model.Address
	for rows.Next() {
		var addr model.Address
		if err := rows.Scan(&addr.ID, &addr.Address, &addr.Name, &addr.Chain, &addr.EntityType, &addr.CreatedAt, &addr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}

// Stats holds row counts for the four tables.
type Stats struct {
	Addresses   int `json:"addresses"`
	Tags        int `json:"tags"`
	Categories  int `json:"categories"`
	AddressTags int `json:"address_tags"`
}

func (r *AddressRepository) GetStats() (*Stats, error) {
	var stats Stats
	err := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM addresses),
			(SELECT COUNT(*) FROM tags),
			(SELECT COUNT(*) FROM tag_categories),
			(SELECT COUNT(*) FROM address_tags)
	`).Scan(&stats.Addresses, &stats.Tags, &stats.Categories, &stats.AddressTags)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}
