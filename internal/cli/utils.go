// Package cli provides output formatting and an HTTP client for the osusume CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a --output flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteRecommendations writes ranked recommendations to w in the given format.
func WriteRecommendations(w io.Writer, items []models.Item, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, models.RecommendResponse{Results: items})
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No recommendations. Ingest a catalog first.")
		return nil
	}
	fmt.Fprintf(w, "\n%d recommendation(s)\n\n", len(items))
	for i, it := range items {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d %s\n", i+1, titleOrID(it))
		fmt.Fprintf(w, "ID: %s", it.ID)
		if it.Brand != "" {
			fmt.Fprintf(w, " | Brand: %s", it.Brand)
		}
		if it.Price > 0 {
			fmt.Fprintf(w, " | Price: %.2f", it.Price)
		}
		fmt.Fprintln(w)
		if len(it.Categories) > 0 {
			fmt.Fprintf(w, "Categories: %s\n", strings.Join(it.Categories, " > "))
		}
		if it.CreativeDescription != "" {
			fmt.Fprintf(w, "\n%s\n", it.CreativeDescription)
		} else if it.Description != "" {
			fmt.Fprintf(w, "\n%s\n", TruncateWords(it.Description, 30))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteStatus writes backend and storage status to w in the given format.
func WriteStatus(w io.Writer, status *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	backend := status.Backend.Kind
	if status.Backend.Degraded {
		backend += " (degraded)"
	}
	fmt.Fprintf(w, "backend:            %s\n", backend)
	if status.Backend.Path != "" {
		fmt.Fprintf(w, "store_path:         %s\n", status.Backend.Path)
	}
	if status.Backend.Reason != "" {
		fmt.Fprintf(w, "reason:             %s\n", status.Backend.Reason)
	}
	fmt.Fprintf(w, "vectors:            %d   # records in the vector store\n", status.Vectors)
	fmt.Fprintf(w, "dimensions:         %d\n", status.Dimensions)
	fmt.Fprintf(w, "catalog_items:      %d   # items recorded in the catalog database\n", status.CatalogItems)
	fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + index files on disk\n", status.DiskUsageBytes)
	for _, d := range status.WatchDirectories {
		fmt.Fprintf(w, "watching:           %s\n", d)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		keys := make([]string, 0, len(status.Config))
		for k := range status.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := status.Config[k]; v != "" {
				fmt.Fprintf(w, "%-19s %s\n", k+":", v)
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func titleOrID(it models.Item) string {
	if it.Title != "" {
		return utils.Truncate(it.Title, 80)
	}
	return it.ID
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
