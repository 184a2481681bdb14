package textgen

import "strings"

var typographic = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
	"—", "-",
	"…", "...",
)

// Normalize maps typographic punctuation to what a keyboard can type.
func Normalize(text string) string {
	return typographic.Replace(text)
}

// Clean trims, normalizes and joins the text onto a single line.
func Clean(text string) string {
	return strings.Join(strings.Fields(Normalize(text)), " ")
}
