// =============================================================================
// AIMsi to CAPSS Converter - Brand Patterns
// =============================================================================

package brand

import (
	"regexp"
	"strings"
	"unicode"
)

// Unknown is the brand returned when no tier produced a result.
const Unknown = "UNKNOWN"

// KnownBrands is ordered: the first brand found in a description wins, so a
// multi-word brand listed after its first word (MESA then MESA BOOGIE) is
// never reached. Duplicates are harmless.
var KnownBrands = []string{
	// Guitars
	"FENDER", "GIBSON", "MARTIN", "TAYLOR", "YAMAHA", "EPIPHONE", "IBANEZ",
	"PRS", "GRETSCH", "RICKENBACKER", "GUILD", "WASHBURN", "DEAN", "JACKSON",
	"ESP", "SCHECTER", "CORT", "TAKAMINE", "OVATION", "SEAGULL", "BREEDLOVE",
	"JAY TURSER", "SQUIER", "MITCHELL", "OSCAR SCHMIDT", "LUNA", "ALVAREZ",
	"GODIN", "PARKER", "MUSIC MAN", "STERLING", "CHAPMAN", "SOLAR", "HARLEY BENTON",

	// Keyboards
	"ROLAND", "KORG", "CASIO", "KAWAI", "NORD", "KURZWEIL", "ALESIS",
	"AKAI", "NOVATION", "ARTURIA", "NATIVE INSTRUMENTS", "MOOG", "SEQUENTIAL",
	"DAVE SMITH", "BEHRINGER", "STEINWAY", "BALDWIN", "WURLITZER",

	// Drums
	"PEARL", "TAMA", "LUDWIG", "DW", "GRETSCH", "ZILDJIAN", "SABIAN",
	"PAISTE", "MEINL", "EVANS", "REMO", "MAPEX", "SONOR", "PACIFIC",
	"SIMMONS", "ALESIS", "ROLAND", "GIBRALTAR", "TOCA", "LP", "LATIN PERCUSSION",

	// Audio
	"MARSHALL", "VOX", "FENDER", "ORANGE", "MESA", "MESA BOOGIE", "PEAVEY",
	"LINE 6", "BOSS", "SHURE", "SENNHEISER", "AKG", "AUDIO-TECHNICA",
	"BLUE", "RODE", "NEUMANN", "MXL", "MACKIE", "PRESONUS", "FOCUSRITE",
	"BEHRINGER", "QSC", "JBL", "YAMAHA", "TASCAM", "ZOOM", "BLACKSTAR",

	// Wind
	"SELMER", "BUFFET", "JUPITER", "MENDINI", "JEAN PAUL", "BUNDY",
	"ARMSTRONG", "GEMEINHARDT", "BACH", "CONN", "KING", "HOLTON", "GETZEN",

	// Accessories
	"DUNLOP", "ERNIE BALL", "DADDARIO", "D'ADDARIO", "ELIXIR", "GHS",
	"LEVY'S", "HERCULES", "ON-STAGE", "SKB", "GATOR", "HARDCASE", "MONO",
	"KALA", "CORDOBA", "HOHNER", "SUZUKI", "TRAYNOR", "RANDALL", "CRATE",
}

// =============================================================================
// PATTERN MATCHER
// =============================================================================

type brandPattern struct {
	name string
	re   *regexp.Regexp
}

// PatternMatcher resolves brands from a fixed ordered list, falling back to a
// word heuristic.
type PatternMatcher struct {
	patterns []brandPattern
}

// NewPatternMatcher compiles brands in order as whole-word, case-insensitive
// patterns.
func NewPatternMatcher(brands []string) *PatternMatcher {
	m := &PatternMatcher{patterns: make([]brandPattern, 0, len(brands))}
	for _, b := range brands {
		m.patterns = append(m.patterns, brandPattern{
			name: b,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(b) + `\b`),
		})
	}
	return m
}

var defaultMatcher = NewPatternMatcher(KnownBrands)

// Match returns the first listed brand found in description.
func (m *PatternMatcher) Match(description string) (string, bool) {
	for _, p := range m.patterns {
		if p.re.MatchString(description) {
			return p.name, true
		}
	}
	return "", false
}

// Resolve tries the brand list, then the heuristic. It never returns "".
func (m *PatternMatcher) Resolve(description string) (string, Source) {
	if b, ok := m.Match(description); ok {
		return b, SourcePattern
	}
	if b := Heuristic(description); b != Unknown {
		return b, SourceHeuristic
	}
	return Unknown, SourceUnknown
}

// =============================================================================
// WORD HEURISTIC
// =============================================================================

var skipPrefixes = map[string]bool{
	"BROKEN": true, "USED": true, "NEW": true, "VINTAGE": true, "ANTIQUE": true,
	"ELECTRIC": true, "ACOUSTIC": true, "CLASSICAL": true, "DIGITAL": true,
	"ANALOG": true, "PORTABLE": true,
}

var fillerWords = map[string]bool{
	"THE": true, "AND": true, "WITH": true, "FOR": true,
}

var modelIndicators = []string{
	"PAUL", "STANDARD", "CUSTOM", "SPECIAL", "DELUXE", "SERIES", "MODEL",
}

// Heuristic guesses a brand as the first plausible word of description.
// A word qualifies when it is longer than two characters, is not a condition
// or type adjective or filler, and either precedes a model indicator word or
// is alphanumeric once hyphens and apostrophes are removed.
func Heuristic(description string) string {
	words := strings.Fields(description)
	for i, word := range words {
		upper := strings.ToUpper(word)
		if skipPrefixes[upper] {
			continue
		}
		if len([]rune(word)) <= 2 || fillerWords[upper] {
			continue
		}

		if i+1 < len(words) {
			next := strings.ToUpper(words[i+1])
			for _, ind := range modelIndicators {
				if strings.Contains(next, ind) {
					return upper
				}
			}
		}

		stripped := strings.NewReplacer("-", "", "'", "").Replace(upper)
		if isAlnum(stripped) {
			return upper
		}
	}
	return Unknown
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
