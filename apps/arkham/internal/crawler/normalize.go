package crawler

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"arkham/apps/arkham/internal/catalog"
	"arkham/apps/arkham/internal/client"
	"arkham/apps/arkham/internal/model"
)

// Category assigned to tags discovered via the API that are not present in
// the reference file.
const apiTagCategory = "API_Tags"

var errMissingAddress = errors.New("record has no address")

// evmChains is the set of chains whose addresses get EIP-55 checksum
// normalization before persistence.
var evmChains = map[string]bool{
	"ethereum":  true,
	"bsc":       true,
	"polygon":   true,
	"arbitrum":  true,
	"optimism":  true,
	"base":      true,
	"avalanche": true,
}

// normalizeRecord turns a raw API record into a persistable one. The
// crawled tag always comes first with its reference-file category; extra
// tags carried on the record resolve through the catalog, falling back to
// the API_Tags bucket for unknown links.
func normalizeRecord(raw client.RawAddress, entry catalog.Entry, cat *catalog.Catalog) (model.TaggedAddress, error) {
	address := strings.TrimSpace(raw.Address)
	if address == "" {
		return model.TaggedAddress{}, errMissingAddress
	}

	chain := strings.TrimSpace(raw.Chain)
	if chain == "" {
		chain = "unknown"
	}

	if evmChains[chain] && common.IsHexAddress(address) {
		address = common.HexToAddress(address).Hex()
	}

	name := raw.EntityName
	if name == "" {
		name = raw.Entity.Name
	}
	entityType := raw.EntityType
	if entityType == "" {
		entityType = raw.Entity.Type
	}

	record := model.TaggedAddress{
		Address:    address,
		Chain:      chain,
		Name:       name,
		EntityType: entityType,
		Tags: []model.TagRef{
			{Tag: entry.Name, Link: entry.Link, Category: entry.Category},
		},
	}

	seen := map[string]bool{entry.Link: true}
	for _, rawTag := range raw.Tags {
		if rawTag.ID == "" || rawTag.Label == "" || seen[rawTag.ID] {
			continue
		}
		seen[rawTag.ID] = true

		category, ok := cat.CategoryFor(rawTag.ID)
		if !ok {
			category = apiTagCategory
		}
		record.Tags = append(record.Tags, model.TagRef{
			Tag:      rawTag.Label,
			Link:     rawTag.ID,
			Category: category,
		})
	}

	return record, nil
}
