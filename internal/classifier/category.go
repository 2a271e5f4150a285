// =============================================================================
// AIMsi to CAPSS Converter - Category Classification Module
// =============================================================================

// Package classifier maps AIMsi category identifiers and item descriptions
// onto the article and color vocabulary expected by CAPSS.
package classifier

// DefaultArticle is returned for any (category, subcategory) pair that is not
// in the table.
const DefaultArticle = "INSTRUMENT"

// Article labels used by the category table.
const (
	articleAccessory = "MUSICAL ACCESSORY"
	articleAmplifier = "AMPLIFIER"
	articleDrum      = "DRUM"
	articleGuitar    = "GUITAR"
	articleSound     = "SOUND EQUIPMENT"
)

// =============================================================================
// CATEGORY TABLE
// =============================================================================

// CategoryMap is a two-level lookup: category id -> subcategory id -> label.
// Keys are opaque POS identifiers.
type CategoryMap map[string]map[string]string

// Classify returns the article label for the pair, or DefaultArticle.
func (m CategoryMap) Classify(categoryID, subcategoryID string) string {
	if label, ok := m[categoryID][subcategoryID]; ok {
		return label
	}
	return DefaultArticle
}

// Classify looks the pair up in the AIMsi category table.
func Classify(categoryID, subcategoryID string) string {
	return Categories.Classify(categoryID, subcategoryID)
}

// Categories is the AIMsi category table.
var Categories = CategoryMap{
	// Wind instruments
	"1": {
		"1":  "ACCORDION",
		"2":  "FLUTE",
		"3":  "CLARINET",
		"4":  "INSTRUMENT", // saxophones
		"7":  "HORN",
		"8":  "TRUMPET",
		"9":  "INSTRUMENT", // trombone
		"14": "VIOLIN",
		"27": articleAccessory, // reeds
		"28": articleAccessory, // brass/wind accessories
		"29": articleAccessory, // string accessories
		"31": articleAccessory, // band method books
	},
	// Effects
	"2": {
		"1": "FOOT PEDAL- AUDIO EQUIPMENT",
	},
	// Guitars / fretted
	"3": {
		"1":  articleGuitar, // acoustics
		"3":  articleGuitar, // electrics
		"4":  "BASS",
		"6":  articleAccessory, // tuners
		"7":  articleAccessory, // pickups
		"10": "BANJO",          // banjo/uke/mando
		"11": articleAccessory, // cases
		"19": articleAccessory, // strings
		"20": articleAccessory,
	},
	// Amps
	"4": {
		"1":  articleAmplifier,
		"2":  articleAmplifier,
		"3":  articleAmplifier,
		"4":  articleAmplifier,
		"5":  articleAmplifier,
		"6":  articleAmplifier,
		"19": "PREAMPLIFIER",
		"20": articleAccessory,
	},
	// Drums / percussion
	"5": {
		"1":  articleDrum,
		"2":  "CYMBAL",
		"3":  articleDrum,
		"4":  articleDrum,
		"5":  articleDrum,
		"6":  articleAccessory, // sticks
		"7":  articleDrum,
		"10": articleDrum,
		"20": articleAccessory,
		"21": articleAccessory, // heads
		"22": articleAccessory, // hardware
	},
	// Rentals / consignment
	"6": {
		"1": "INSTRUMENT",
		"2": "INSTRUMENT",
	},
	// PA / sound
	"7": {
		"1":  articleSound,
		"3":  articleSound,
		"4":  articleAmplifier, // PA power amp
		"5":  articleSound,
		"8":  articleSound, // microphones
		"9":  articleSound,
		"10": articleSound,
		"11": articleAccessory, // mic stands
		"12": "RECORDING EQUIPMENT",
		"13": articleSound, // wireless
		"20": articleAccessory,
	},
	// Keyboards
	"9": {
		"1":  "KEYBOARD",
		"2":  "DRUM MACHINE",
		"3":  articleAmplifier,
		"6":  "MODULE",
		"20": articleAccessory,
	},
	// Fees
	"10": {
		"1": articleAccessory,
	},
	// Accessories
	"12": {
		"1":  articleAccessory,
		"2":  articleAccessory,
		"3":  articleAccessory,
		"4":  articleAccessory,
		"5":  articleAccessory,
		"6":  articleAccessory,
		"7":  articleAccessory,
		"8":  articleAccessory,
		"9":  "METRONOME",
		"10": articleAccessory,
		"11": articleAccessory,
		"12": articleAmplifier, // battery/headphone amps
		"13": articleAccessory,
		"14": articleAccessory,
	},
	// Books / methods
	"22": {
		"1": articleAccessory,
		"2": articleAccessory,
		"3": articleAccessory,
	},
	"24": {
		"1": articleAccessory,
		"2": articleAccessory,
		"3": articleAccessory,
		"4": articleAccessory,
	},
	"25": {
		"1": articleAccessory,
		"2": articleAccessory,
		"3": articleAccessory,
	},
	"26": {
		"1": articleAccessory,
		"2": articleAccessory,
		"3": articleAccessory,
		"4": articleAccessory,
		"5": articleAccessory,
	},
}
