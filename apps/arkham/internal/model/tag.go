package model

import (
	"time"
)

type Tag struct {
	ID         int       `db:"id"`
	Tag        string    `db:"tag"`
	Link       string    `db:"link"`
	CategoryID int       `db:"category_id"`
	CreatedAt  time.Time `db:"created_at"`
}

type TagCategory struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type AddressTag struct {
	ID        int       `db:"id"`
	AddressID int       `db:"address_id"`
	TagID     int       `db:"tag_id"`
	CreatedAt time.Time `db:"created_at"`
}
