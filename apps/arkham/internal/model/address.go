package model

import (
	"time"
)

type Address struct {
	ID         int       `db:"id"`
	Address    string    `db:"address"`
	Name       string    `db:"name"`
	Chain      string    `db:"chain"`
	EntityType string    `db:"entity_type"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
