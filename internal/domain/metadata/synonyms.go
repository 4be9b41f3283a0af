package metadata

import "strings"

// Key is a canonical attribute name.
type Key string

const (
	KeyZoneName                 Key = "zoneName"
	KeyBaseDeliveryFee          Key = "baseDeliveryFee"
	KeyPerMileFee               Key = "perMileFee"
	KeyMinOrderAmount           Key = "minOrderAmount"
	KeyEstimatedPreparationTime Key = "estimatedPreparationTime"
	KeyIsRestricted             Key = "isRestricted"
)

// CanonicalKeys lists every canonical key in display order.
func CanonicalKeys() []Key {
	return []Key{
		KeyZoneName,
		KeyBaseDeliveryFee,
		KeyPerMileFee,
		KeyMinOrderAmount,
		KeyEstimatedPreparationTime,
		KeyIsRestricted,
	}
}

// SynonymTable maps cleaned key spellings to canonical keys. It has no mutators;
// copies share the same read-only map.
type SynonymTable struct {
	entries map[string]Key
}

// NewSynonymTable builds a table from canonical keys to their accepted spellings.
// Spellings are cleaned with CleanKey before they are stored.
func NewSynonymTable(spellings map[Key][]string) SynonymTable {
	entries := make(map[string]Key)
	for key, variants := range spellings {
		entries[CleanKey(string(key))] = key
		for _, v := range variants {
			entries[CleanKey(v)] = key
		}
	}
	return SynonymTable{entries: entries}
}

// Lookup returns the canonical key for an already-cleaned key.
func (t SynonymTable) Lookup(cleaned string) (Key, bool) {
	key, ok := t.entries[cleaned]
	return key, ok
}

// Len returns the number of spellings in the table.
func (t SynonymTable) Len() int { return len(t.entries) }

// CleanKey lower-cases s and drops every character outside [a-z0-9].
func CleanKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var defaultSynonyms = NewSynonymTable(map[Key][]string{
	KeyZoneName: {
		"zone", "name", "zone name", "zone title", "area", "area name", "delivery zone",
	},
	KeyBaseDeliveryFee: {
		"base fee", "base delivery fee", "delivery fee", "base price", "base charge", "flat fee",
	},
	KeyPerMileFee: {
		"per mile fee", "per mile", "fee per mile", "mile fee", "mileage fee", "per mile rate", "per mile charge",
	},
	KeyMinOrderAmount: {
		"min order", "min order amount", "minimum order", "minimum order amount", "min amount", "min order value", "minimum",
	},
	KeyEstimatedPreparationTime: {
		"prep time", "preparation time", "estimated prep time", "estimated preparation time", "prep", "eta", "prep time minutes",
	},
	KeyIsRestricted: {
		"restricted", "is restricted", "restriction", "restricted zone",
	},
})

// DefaultSynonyms returns the built-in synonym table.
func DefaultSynonyms() SynonymTable { return defaultSynonyms }
