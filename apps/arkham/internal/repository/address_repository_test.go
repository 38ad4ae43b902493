package repository

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arkham/apps/arkham/internal/model"
)

// These tests need a real Postgres instance; point TEST_DATABASE_URL at a
// scratch database to run them.
func testRepository(t *testing.T) *AddressRepository {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitMigration(db))

	// Start from empty tables; TRUNCATE keeps the schema and resets ids
	_, err = db.Exec(`TRUNCATE address_tags, addresses, tags, tag_categories RESTART IDENTITY`)
	require.NoError(t, err)

	logger, _ := zap.NewDevelopment()
	return NewAddressRepository(db, logger)
}

func binanceRecord() model.TaggedAddress {
	return model.TaggedAddress{
		Address:    "0xABC",
		Chain:      "ethereum",
		Name:       "Binance 1",
		EntityType: "cex",
		Tags: []model.TagRef{
			{Tag: "Binance", Link: "binance", Category: "Exchange"},
		},
	}
}

func TestUpsertRecordIsIdempotent(t *testing.T) {
	repo := testRepository(t)

	require.NoError(t, repo.UpsertRecord(binanceRecord()))
	require.NoError(t, repo.UpsertRecord(binanceRecord()))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Addresses)
	assert.Equal(t, 1, stats.Tags)
	assert.Equal(t, 1, stats.Categories)
	assert.Equal(t, 1, stats.AddressTags)
}

func TestUpsertRecordUpdatesMetadata(t *testing.T) {
	repo := testRepository(t)

	require.NoError(t, repo.UpsertRecord(binanceRecord()))

	updated := binanceRecord()
	updated.Name = "Binance Cold"
	updated.EntityType = "custodian"
	require.NoError(t, repo.UpsertRecord(updated))

	addr, labels, err := repo.GetAddress("0xABC", "ethereum")
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.Equal(t, "Binance Cold", addr.Name)
	assert.Equal(t, "custodian", addr.EntityType)
	assert.Equal(t, []string{"Binance"}, labels)
}

func TestUpsertRecordSameAddressDifferentChain(t *testing.T) {
	repo := testRepository(t)

	require.NoError(t, repo.UpsertRecord(binanceRecord()))

	other := binanceRecord()
	other.Chain = "bsc"
	require.NoError(t, repo.UpsertRecord(other))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Addresses)
	assert.Equal(t, 2, stats.AddressTags)
	assert.Equal(t, 1, stats.Tags)
}

func TestSeedCatalogThenCrawlKeepsReferenceCategory(t *testing.T) {
	repo := testRepository(t)

	// Reference file says binance is an Exchange tag
	require.NoError(t, repo.SeedCatalog([]model.TagRef{
		{Tag: "Binance", Link: "binance", Category: "Exchange"},
	}))

	// The crawl later sees the same link; category must stay Exchange
	require.NoError(t, repo.UpsertRecord(binanceRecord()))

	var category string
	db := repo.db
	err := db.QueryRow(`
		SELECT tc.name FROM tags t JOIN tag_categories tc ON tc.id = t.category_id
		WHERE t.link = 'binance'
	`).Scan(&category)
	require.NoError(t, err)
	assert.Equal(t, "Exchange", category)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tags)
}

func TestReferentialIntegrity(t *testing.T) {
	repo := testRepository(t)

	record := binanceRecord()
	record.Tags = append(record.Tags, model.TagRef{Tag: "Whale", Link: "whale", Category: "API_Tags"})
	require.NoError(t, repo.UpsertRecord(record))

	var orphans int
	err := repo.db.QueryRow(`
		SELECT COUNT(*) FROM address_tags at
		LEFT JOIN addresses a ON a.id = at.address_id
		LEFT JOIN tags t ON t.id = at.tag_id
		WHERE a.id IS NULL OR t.id IS NULL
	`).Scan(&orphans)
	require.NoError(t, err)
	assert.Equal(t, 0, orphans)
}

func TestGetAddress(t *testing.T) {
	repo := testRepository(t)

	require.NoError(t, repo.UpsertRecord(binanceRecord()))

	addr, labels, err := repo.GetAddress("0xABC", "")
	require.NoError(t, err)
	require.NotNil(t, addr)
	assert.Equal(t, "ethereum", addr.Chain)
	assert.Equal(t, []string{"Binance"}, labels)

	missing, _, err := repo.GetAddress("0xDEF", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetAddressesByTag(t *testing.T) {
	repo := testRepository(t)

	first := binanceRecord()
	second := binanceRecord()
	second.Address = "0xDEF"
	require.NoError(t, repo.UpsertRecord(first))
	require.NoError(t, repo.UpsertRecord(second))

	addresses, err := repo.GetAddressesByTag("Binance")
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	assert.Equal(t, "0xABC", addresses[0].Address)
	assert.Equal(t, "0xDEF", addresses[1].Address)

	none, err := repo.GetAddressesByTag("Nonexistent")
	require.NoError(t, err)
	assert.Empty(t, none)
}
