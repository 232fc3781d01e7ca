package model

import (
	"strings"
	"time"
)

// ItemType tells whether a listing reports a lost or a found item.
type ItemType string

const (
	ItemLost  ItemType = "lost"
	ItemFound ItemType = "found"
)

// Valid reports whether t is one of the two known listing types.
func (t ItemType) Valid() bool {
	return t == ItemLost || t == ItemFound
}

// Item model
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        ItemType  `json:"type"`
	Image       string    `json:"image"`
	PostedBy    string    `json:"posted_by"`
	Contact     string    `json:"contact"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemData includes the Item and extra data for the detail view
type ItemData struct {
	Item   *Item
	QRCode string
}

// ItemFilter narrows a listing query. A zero filter matches everything.
type ItemFilter struct {
	Type  ItemType
	Query string
}

// Match reports whether the item satisfies both the type filter and the
// case-insensitive substring search against title or description.
func (f ItemFilter) Match(item Item) bool {
	if f.Type != "" && item.Type != f.Type {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(item.Title), q) &&
			!strings.Contains(strings.ToLower(item.Description), q) {
			return false
		}
	}
	return true
}

// BaseData struct to pass value to the base template
type BaseData struct {
	Active      string
	CurrentUser string
	Admin       bool
}

const ItemCollectionName = "items"
