// Package describe generates short creative product descriptions with a language model,
// falling back to a fixed template when no model is available.
package describe

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// Describer writes a creative description for an item.
type Describer interface {
	Describe(ctx context.Context, item models.Item) (string, error)
}

const promptTemplate = `Write a short creative product design description for the following product. Keep it 30-80 words.

Title: %s
Brand: %s
Material: %s
Color: %s

Description:`

// Prompt returns the model prompt for an item.
func Prompt(item models.Item) string {
	return fmt.Sprintf(promptTemplate,
		strings.TrimSpace(item.Title),
		strings.TrimSpace(item.Brand),
		strings.TrimSpace(item.Material),
		strings.TrimSpace(item.Color))
}

// Fallback returns the template description used when generation is unavailable or fails.
// Empty fields are left out so the sentence never has doubled spaces.
func Fallback(item models.Item) string {
	parts := []string{"A"}
	for _, f := range []string{item.Color, item.Material, item.Title} {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "piece")
	}
	return strings.Join(parts, " ") + " - clean lines and thoughtful details for modern homes."
}
