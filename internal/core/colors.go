package core

import "strings"

// FallbackColor is used for categories missing from the color table.
const FallbackColor = "#BDBDBD"

var categoryColors = map[string]string{
	"hogar":           "#D7263D",
	"transporte":      "#1B998B",
	"comida":          "#F46036",
	"servicios":       "#2E294E",
	"entretenimiento": "#E2C044",
	"supermercado":    "#6DD47E",
	"salud":           "#3A86FF",
	"educación":       "#8338EC",
	"ropa":            "#FF006E",
	"tecnología":      "#FFBE0B",
	"otros":           "#BDBDBD",
}

// DefaultTopCategories is the fixed list shown by the home summary.
var DefaultTopCategories = []string{
	"hogar", "transporte", "comida", "servicios", "entretenimiento",
	"supermercado", "salud", "educación", "ropa", "tecnología",
}

// CategoryKey is the grouping identity of a category: trimmed and
// lower-cased. Display names keep their original casing.
func CategoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// CategoryColor looks up the chart color of a category, case-insensitively.
func CategoryColor(category string) string {
	if c, ok := categoryColors[CategoryKey(category)]; ok {
		return c
	}
	return FallbackColor
}
