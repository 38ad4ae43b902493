package api

import (
	"time"
)

// AddressResponse represents the API response for a tagged address
type AddressResponse struct {
	Address    string    `json:"address"`
	Name       string    `json:"name,omitempty"`
	Chain      string    `json:"chain"`
	EntityType string    `json:"entity_type,omitempty"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TagAddressEntry represents one address linked to the queried tag. The
// address's full tag set is served by the address lookup, not repeated here.
type TagAddressEntry struct {
	Address    string    `json:"address"`
	Name       string    `json:"name,omitempty"`
	Chain      string    `json:"chain"`
	EntityType string    `json:"entity_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TagAddressesResponse represents the addresses linked to one tag label
type TagAddressesResponse struct {
	Tag       string            `json:"tag"`
	Count     int               `json:"count"`
	Addresses []TagAddressEntry `json:"addresses"`
}

// StatsResponse represents table counts plus crawl progress
type StatsResponse struct {
	RunID         string `json:"run_id"`
	Addresses     int    `json:"addresses"`
	Tags          int    `json:"tags"`
	Categories    int    `json:"categories"`
	AddressTags   int    `json:"address_tags"`
	Processed     int    `json:"processed"`
	CompletedTags int    `json:"completed_tags"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
