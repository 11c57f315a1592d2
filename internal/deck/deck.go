package deck

import "strconv"

// Deck is a named, ordered set of card values players may vote with.
// Decks are a static catalog; they are never created or modified at runtime.
type Deck struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// DefaultType is the deck used when a client asks for an unknown deck type.
const DefaultType = "fibonacci"

// Half is the half-point card. It is the only non-plain-number card that
// still counts toward numeric statistics.
const Half = "½"

var catalog = map[string]Deck{
	"fibonacci": {
		Name:   "Fibonacci",
		Values: []string{"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", "?", "☕"},
	},
	"modifiedFibonacci": {
		Name:   "Modified Fibonacci",
		Values: []string{"0", Half, "1", "2", "3", "5", "8", "13", "20", "40", "100", "?", "☕"},
	},
	"tshirt": {
		Name:   "T-Shirt Sizes",
		Values: []string{"XS", "S", "M", "L", "XL", "XXL", "?", "☕"},
	},
	"powersOfTwo": {
		Name:   "Powers of Two",
		Values: []string{"0", "1", "2", "4", "8", "16", "32", "64", "?", "☕"},
	},
}

// sentinel cards carry no estimate and are excluded from numeric statistics.
var sentinels = map[string]bool{
	"?": true,
	"☕": true,
}

// Lookup resolves a deck type to its deck, falling back to the default deck
// for unknown types. The returned type is the one actually resolved, so
// callers can echo it back to clients.
func Lookup(deckType string) (Deck, string) {
	if d, ok := catalog[deckType]; ok {
		return d, deckType
	}
	return catalog[DefaultType], DefaultType
}

// Contains reports whether value is a card in the deck.
func (d Deck) Contains(value string) bool {
	for _, v := range d.Values {
		if v == value {
			return true
		}
	}
	return false
}

// IsSentinel reports whether value is a card that carries no numeric
// estimate ("?" or "☕").
func IsSentinel(value string) bool {
	return sentinels[value]
}

// NumericValue parses a card value as a number. Sentinel cards and
// non-numeric cards (t-shirt sizes) report ok=false.
func NumericValue(value string) (float64, bool) {
	if IsSentinel(value) {
		return 0, false
	}
	if value == Half {
		return 0.5, true
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
