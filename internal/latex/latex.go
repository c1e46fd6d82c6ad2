// Package latex normalizes note content on its way into and out of storage.
package latex

import "strings"

// typographic quotes and dashes pasted from word processors break LaTeX
// compilation, so they are canonicalized before storage.
var canonicalizer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"–", "-", // en dash
	"—", "-", // em dash
)

var escaper = strings.NewReplacer(
	"'", `\'`,
	`"`, `\"`,
)

var unescaper = strings.NewReplacer(
	`\'`, "'",
	`\"`, `"`,
	`\\`, `\`,
	"&#027;", "'",
	"&#x27;", "'",
	"&quot;", `"`,
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
)

// Sanitize canonicalizes typographic characters and escapes quotes for
// storage. Unescape reverses it on retrieval.
func Sanitize(content string) string {
	return escaper.Replace(canonicalizer.Replace(content))
}

func Unescape(content string) string {
	return unescaper.Replace(content)
}
