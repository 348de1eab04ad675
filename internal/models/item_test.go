package models

import (
	"encoding/json"
	"testing"
)

func TestItem_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Item
	}{
		{
			name:  "id field",
			input: `{"id":"p1","title":"Chair","price":12.5,"categories":["home","chairs"]}`,
			want:  Item{ID: "p1", Title: "Chair", Price: 12.5, Categories: []string{"home", "chairs"}, Images: []string{}},
		},
		{
			name:  "uniq_id alias",
			input: `{"uniq_id":"p2","brand":"Acme"}`,
			want:  Item{ID: "p2", Brand: "Acme", Categories: []string{}, Images: []string{}},
		},
		{
			name:  "nulls become zero values",
			input: `{"id":"p3","brand":null,"price":null,"material":null,"color":null,"images":null}`,
			want:  Item{ID: "p3", Categories: []string{}, Images: []string{}},
		},
		{
			name:  "id kept verbatim",
			input: `{"id":" p4 "}`,
			want:  Item{ID: " p4 ", Categories: []string{}, Images: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Item
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatal(err)
			}
			if got.ID != tt.want.ID || got.Title != tt.want.Title || got.Brand != tt.want.Brand || got.Price != tt.want.Price {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if len(got.Categories) != len(tt.want.Categories) || got.Images == nil || got.Categories == nil {
				t.Errorf("slices: got categories=%v images=%v", got.Categories, got.Images)
			}
		})
	}
}

func TestItem_EmbeddingText(t *testing.T) {
	it := Item{Title: "Lamp", Description: "Warm light", Brand: "Lumo"}
	if got, want := it.EmbeddingText(), "Lamp - Warm light - brand:Lumo"; got != want {
		t.Errorf("EmbeddingText() = %q, want %q", got, want)
	}
	if got, want := (Item{}).EmbeddingText(), " -  - brand:"; got != want {
		t.Errorf("empty EmbeddingText() = %q, want %q", got, want)
	}
}

func TestItem_Clone(t *testing.T) {
	it := Item{ID: "a", Categories: []string{"x"}, Images: []string{"u"}}
	c := it.Clone()
	c.Categories[0] = "y"
	if it.Categories[0] != "x" {
		t.Error("Clone should not share category storage")
	}
}
