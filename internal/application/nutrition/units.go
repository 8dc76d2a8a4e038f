package nutrition

import "strings"

// gramsPerUnit converts common portion units to grams. Volume units use
// documented water-density approximations.
var gramsPerUnit = map[string]float64{
	"g":    1,
	"kg":   1000,
	"oz":   28.3495,
	"lb":   453.592,
	"cup":  240,
	"tbsp": 15,
	"tsp":  5,
	"ml":   1,
}

// defaultPortionGrams is assumed for "serving", empty, and unknown units.
const defaultPortionGrams = 100

// PortionGrams converts a quantity and unit to grams. Units outside the
// table, "serving" and the empty unit included, fall back to a 100 g
// serving per quantity; the second return reports that approximation so
// callers can flag the lowered confidence.
func PortionGrams(quantity float64, unit string) (float64, bool) {
	if quantity <= 0 {
		quantity = 1
	}
	if factor, ok := gramsPerUnit[strings.ToLower(strings.TrimSpace(unit))]; ok {
		return quantity * factor, false
	}
	return quantity * defaultPortionGrams, true
}
