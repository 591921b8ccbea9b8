package keywords

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtract(t *testing.T) {
	t.Run("theme scenario", func(t *testing.T) {
		got := Extract("Discovering Our Local Ecosystem")
		want := []string{"discovering", "local", "ecosystem"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("empty input yields empty list", func(t *testing.T) {
		if got := Extract(""); len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})

	t.Run("stop words and short tokens removed", func(t *testing.T) {
		got := Extract("The Art and Science of the Sea")
		for _, term := range got {
			if term == "the" || term == "and" || term == "art" || term == "sea" {
				t.Errorf("unexpected token %q in %v", term, got)
			}
		}
		if len(got) != 1 || got[0] != "science" {
			t.Errorf("got %v, want [science]", got)
		}
	})

	t.Run("capped at five terms", func(t *testing.T) {
		got := Extract("ancient castles knights armor siege warfare heraldry kingdoms")
		if len(got) != 5 {
			t.Errorf("expected 5 terms, got %d: %v", len(got), got)
		}
	})

	t.Run("punctuation trimmed", func(t *testing.T) {
		got := Extract("Volcanoes, Earthquakes & Tectonics!")
		want := []string{"volcanoes", "earthquakes", "tectonics"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a := Extract("Discovering Our Local Ecosystem")
		b := Extract("Discovering Our Local Ecosystem")
		if !reflect.DeepEqual(a, b) {
			t.Errorf("not deterministic: %v vs %v", a, b)
		}
	})
}

func TestWhyItFits(t *testing.T) {
	t.Run("matching keywords named", func(t *testing.T) {
		got := WhyItFits("Discovering Our Local Ecosystem", "Local Ecosystem Walk")
		if !strings.Contains(got, "local") || !strings.Contains(got, "ecosystem") {
			t.Errorf("expected matched words in %q", got)
		}
		if !strings.Contains(got, "Discovering Our Local Ecosystem") {
			t.Errorf("expected theme in %q", got)
		}
	})

	t.Run("no match falls back to generic sentence", func(t *testing.T) {
		got := WhyItFits("Discovering Our Local Ecosystem", "Pottery for Kids")
		want := "Enriches your learning about Discovering Our Local Ecosystem."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("always produces a sentence", func(t *testing.T) {
		if got := WhyItFits("", ""); got == "" {
			t.Error("expected a non-empty sentence")
		}
	})
}
