// Package classify implements keyword matching over product listing names.
package classify

import (
	"strings"

	"stockbot/internal/model"
)

// Keywords holds the configured matching lists. All matching is
// case-insensitive substring containment.
type Keywords struct {
	BoosterBox   []string
	Exclude      []string
	PokemonSets  []string
	OnePieceSets []string
}

// Default returns the built-in keyword lists for booster-box tracking.
func Default() Keywords {
	return Keywords{
		BoosterBox: []string{
			"booster box",
			"booster display",
			"booster case",
			"display box",
			"sealed box",
			"36 pack",
			"24 pack",
			"carton",
		},
		Exclude: []string{
			"single",
			"sleeve",
			"binder",
			"playmat",
			"deck box",
			"card protector",
			"top loader",
			"graded",
			"psa",
			"tin",
			"blister",
			"promo",
		},
		PokemonSets: []string{
			"Paldean Fates",
			"Temporal Forces",
			"Twilight Masquerade",
			"Shrouded Fable",
			"Stellar Crown",
			"Surging Sparks",
			"Prismatic Evolutions",
			"Journey Together",
			"151",
			"Obsidian Flames",
			"Paradox Rift",
			"Crown Zenith",
			"Evolving Skies",
		},
		OnePieceSets: []string{
			"Romance Dawn",
			"Paramount War",
			"Pillars of Strength",
			"Kingdoms of Intrigue",
			"Awakening of the New Era",
			"Wings of the Captain",
			"500 Years in the Future",
			"Two Legends",
			"Emperors in the New World",
			"Royal Blood",
		},
	}
}

// IsBoosterBox reports whether a listing name describes a sealed booster
// box rather than an accessory or single pack. Exclusions win over matches.
func (k Keywords) IsBoosterBox(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range k.Exclude {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, kw := range k.BoosterBox {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Category determines which trading card game a listing belongs to.
func (k Keywords) Category(name string) model.Category {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "pokemon") || strings.Contains(lower, "pokémon"):
		return model.CategoryPokemon
	case strings.Contains(lower, "one piece"):
		return model.CategoryOnePiece
	}
	return model.CategoryUnknown
}

// SetName extracts the first known TCG set name found in the listing name,
// or "" when none matches.
func (k Keywords) SetName(name string) string {
	lower := strings.ToLower(name)
	for _, set := range k.PokemonSets {
		if strings.Contains(lower, strings.ToLower(set)) {
			return set
		}
	}
	for _, set := range k.OnePieceSets {
		if strings.Contains(lower, strings.ToLower(set)) {
			return set
		}
	}
	return ""
}
