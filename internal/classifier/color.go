// =============================================================================
// AIMsi to CAPSS Converter - Color Extraction
// =============================================================================

package classifier

import "strings"

// DefaultColor is returned when no color word appears in the description.
const DefaultColor = "Other"

// ColorSynonym maps one color word onto its canonical CAPSS color.
type ColorSynonym struct {
	Word      string
	Canonical string
}

// ColorTable is ordered: the first synonym found in a description wins.
type ColorTable []ColorSynonym

// Colors is the color table. Order is significant.
var Colors = ColorTable{
	{"BLACK", "BLACK"},
	{"WHITE", "WHITE"},
	{"RED", "RED"},
	{"BLUE", "BLUE"},
	{"GREEN", "GREEN"},
	{"YELLOW", "YELLOW"},
	{"ORANGE", "ORANGE"},
	{"PURPLE", "PURPLE"},
	{"BROWN", "BROWN"},
	{"GRAY", "GRAY"},
	{"GREY", "GRAY"},
	{"PINK", "PINK"},
	{"SILVER", "SILVER"},
	{"GOLD", "GOLD"},
	{"TAN", "TAN"},
	{"BEIGE", "TAN"},
	{"CREAM", "WHITE"},
	{"IVORY", "WHITE"},
	{"NATURAL", "BROWN"},
	{"SUNBURST", "BROWN"},
	{"TOBACCO", "BROWN"},
	{"CHERRY", "RED"},
	{"WINE", "RED"},
	{"BURGUNDY", "RED"},
	{"CRIMSON", "RED"},
	{"NAVY", "BLUE"},
	{"TEAL", "BLUE"},
	{"TURQUOISE", "BLUE"},
	{"VIOLET", "PURPLE"},
	{"LAVENDER", "PURPLE"},
	{"CHARCOAL", "GRAY"},
	{"SLATE", "GRAY"},
	{"AMBER", "ORANGE"},
	{"COPPER", "ORANGE"},
}

// Extract returns the canonical color of the first table entry that appears
// as a whole space-delimited word in description, case-insensitively.
func (t ColorTable) Extract(description string) string {
	padded := " " + strings.ToUpper(description) + " "
	for _, c := range t {
		if strings.Contains(padded, " "+c.Word+" ") {
			return c.Canonical
		}
	}
	return DefaultColor
}

// ExtractColor looks description up in the default color table.
func ExtractColor(description string) string {
	return Colors.Extract(description)
}
