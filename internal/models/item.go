// Package models defines core data structures for catalog items, vector records, and recommendation results.
package models

import "encoding/json"

// Item is a catalog product. Only ID is required; every other field is optional and
// normalizes to its zero value when absent.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	Price       float64  `json:"price"`
	Categories  []string `json:"categories"`
	Images      []string `json:"images"`
	Material    string   `json:"material"`
	Color       string   `json:"color"`
	// CreativeDescription is attached by the recommender to the top-ranked results only.
	CreativeDescription string `json:"creative_description,omitempty"`
}

// itemJSON mirrors Item with pointer fields so that null and missing values can be told apart
// from zero values, and with the uniq_id alias used by product catalog exports.
type itemJSON struct {
	ID                  string   `json:"id"`
	UniqID              string   `json:"uniq_id"`
	Title               *string  `json:"title"`
	Description         *string  `json:"description"`
	Brand               *string  `json:"brand"`
	Price               *float64 `json:"price"`
	Categories          []string `json:"categories"`
	Images              []string `json:"images"`
	Material            *string  `json:"material"`
	Color               *string  `json:"color"`
	CreativeDescription string   `json:"creative_description"`
}

// UnmarshalJSON accepts both "id" and "uniq_id" and maps nulls to zero values.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id := raw.ID
	if id == "" {
		id = raw.UniqID
	}
	*it = Item{
		ID:                  id,
		Title:               deref(raw.Title),
		Description:         deref(raw.Description),
		Brand:               deref(raw.Brand),
		Categories:          raw.Categories,
		Images:              raw.Images,
		Material:            deref(raw.Material),
		Color:               deref(raw.Color),
		CreativeDescription: raw.CreativeDescription,
	}
	if raw.Price != nil {
		it.Price = *raw.Price
	}
	it.Normalize()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Normalize replaces nil slices with empty ones so that items serialize identically
// regardless of how they were built. The id is left exactly as given.
func (it *Item) Normalize() {
	if it.Categories == nil {
		it.Categories = []string{}
	}
	if it.Images == nil {
		it.Images = []string{}
	}
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	out.Categories = append([]string{}, it.Categories...)
	out.Images = append([]string{}, it.Images...)
	return out
}

// EmbeddingText is the composite text embedded for an item.
func (it Item) EmbeddingText() string {
	return it.Title + " - " + it.Description + " - brand:" + it.Brand
}
