package core_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/aretw0/bidtrail/pkg/core"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		title string
		want  string
	}{
		{"Simple", "PR-2024-001", "Office Supplies", "PR-2024-001-office-supplies"},
		{"Punctuation Runs", "42", "Laptops, Printers & Toner!!", "42-laptops-printers-toner"},
		{"Leading And Trailing", "7", "  --Road Repair--  ", "7-road-repair"},
		{"Unicode Collapses", "9", "Café — Renovação", "9-caf-renova-o"},
		{"Empty Title", "9", "", "9-"},
		{"Only Symbols", "9", "¿¡ … !?", "9-"},
		{"Digits Kept", "1", "Phase 2 of 3", "1-phase-2-of-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.DeriveKey(tt.id, tt.title); got != tt.want {
				t.Errorf("DeriveKey(%q, %q) = %q, want %q", tt.id, tt.title, got, tt.want)
			}
		})
	}
}

func TestDeriveKey_Truncates(t *testing.T) {
	title := strings.Repeat("supply ", 100)
	key := core.DeriveKey("PR-1", title)
	if len(key) != core.MaxKeyLength {
		t.Fatalf("expected key of %d bytes, got %d", core.MaxKeyLength, len(key))
	}
	if !strings.HasPrefix(key, "PR-1-supply-supply") {
		t.Errorf("unexpected prefix: %q", key[:24])
	}
}

func TestDeriveKey_TruncatesOnRuneBoundary(t *testing.T) {
	id := strings.Repeat("é", 150) // 300 bytes
	key := core.DeriveKey(id, "x")
	if len(key) > core.MaxKeyLength {
		t.Fatalf("key too long: %d", len(key))
	}
	if !strings.HasPrefix(id, key) {
		t.Errorf("truncated key is not a prefix of the id")
	}
}

func TestDeriveKey_Properties(t *testing.T) {
	symbols := []rune{' ', '-', '!', '.', ',', '/', '\t', '—', '«', '»'}
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("derivation is deterministic and bounded", prop.ForAll(
		func(id, title string) bool {
			a := core.DeriveKey(id, title)
			b := core.DeriveKey(id, title)
			return a == b && len(a) <= core.MaxKeyLength
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("symbol-only titles yield id plus a single hyphen", prop.ForAll(
		func(id string, title string) bool {
			key := core.DeriveKey(id, title)
			return key == id+"-" && !strings.Contains(key, "--")
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" && len(s) < 100 }),
		gen.SliceOf(gen.IntRange(0, len(symbols)-1)).Map(func(idx []int) string {
			var sb strings.Builder
			for _, i := range idx {
				sb.WriteRune(symbols[i])
			}
			return sb.String()
		}),
	))

	properties.Property("slugs never contain double hyphens or edge hyphens", prop.ForAll(
		func(title string) bool {
			s := core.Slug(title)
			return !strings.Contains(s, "--") && !strings.HasPrefix(s, "-") && !strings.HasSuffix(s, "-")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
