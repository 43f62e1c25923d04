package services

import (
	"regexp"
	"strings"
	"unicode"
)

// backslashCollapsePasses begrenzt das Zusammenfalten `\\` -> `\`. Mehr als
// 2^4-fach verdoppelte Backslashes werden nur teilweise aufgelöst.
const backslashCollapsePasses = 4

// jsSpaceClass entspricht JavaScripts `\s`; `\s` in RE2 kennt nur ASCII.
const jsSpaceClass = `[\s\v\p{Z}\x{FEFF}]`

// latexCommands behalten im Cleaner ihren Backslash.
var latexCommands = map[string]struct{}{
	"frac": {}, "int": {}, "sqrt": {}, "sum": {}, "prod": {}, "lim": {},
	"left": {}, "right": {}, "cdot": {}, "times": {}, "pm": {},
	"ge": {}, "le": {}, "neq": {}, "infty": {},
	"log": {}, "ln": {}, "sin": {}, "cos": {}, "tan": {},
	"pi": {}, "theta": {}, "alpha": {}, "beta": {}, "gamma": {}, "Delta": {},
	"lambda": {}, "mu": {}, "sigma": {}, "phi": {}, "varepsilon": {}, "epsilon": {},
	"forall": {}, "exists": {},
}

// escapedPunctuation bildet ein escaptes Satzzeichen auf das nackte Zeichen ab.
// `{ } ^ _` sind auch LaTeX-Metazeichen; ein gewolltes Escape davon geht ebenfalls verloren.
var escapedPunctuation = map[byte]string{
	'{': "{", '}': "}", '(': "(", ')': ")", '[': "[", ']': "]",
	'^': "^", '_': "_", '+': "+", '=': "=", '.': ".", ':': ":",
	';': ";", '!': "!", '?': "?", ',': ",", '|': "|",
}

var (
	reTokenSpace         = regexp.MustCompile(`\\` + jsSpaceClass)
	reWrappedWord        = regexp.MustCompile(`\\([A-Za-z0-9]+)\\`)
	reEscapedPunctuation = regexp.MustCompile(`\\([{}()\[\]^_+=.:;!?|,])`)
	reBackslashWord      = regexp.MustCompile(`\\([A-Za-z]+)\b`)
	reHorizontalRun      = regexp.MustCompile(`[ \t]{2,}`)
)

// textStage ist ein Schritt des Cleaners.
type textStage struct {
	Label string
	Apply func(string) string
}

// tokenizedStages laufen in dieser Reihenfolge; jede Stufe erzeugt die Muster der nächsten.
var tokenizedStages = []textStage{
	{Label: "doubled backslashes", Apply: collapseDoubledBackslashes},
	{Label: "tokenized spaces", Apply: unescapeTokenSpaces},
	{Label: "wrapped words", Apply: unwrapBackslashWords},
	{Label: "escaped punctuation", Apply: unescapePunctuation},
	{Label: "unknown commands", Apply: stripUnknownCommands},
	{Label: "horizontal whitespace", Apply: collapseHorizontalSpace},
}

// CleanTokenizedText macht aus vom Tokenizer verstümmeltem Exporttext wieder
// Text mit echten Backslashes und echten Leerzeichen.
func CleanTokenizedText(s string) string {
	for _, stage := range tokenizedStages {
		s = stage.Apply(s)
	}
	return s
}

// CleanTokenizedValue bereinigt v, falls es ein String ist; alles andere bleibt unverändert.
func CleanTokenizedValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return CleanTokenizedText(s)
}

func collapseDoubledBackslashes(s string) string {
	for i := 0; i < backslashCollapsePasses; i++ {
		s = strings.ReplaceAll(s, `\\`, `\`)
	}
	return s
}

func unescapeTokenSpaces(s string) string {
	return reTokenSpace.ReplaceAllString(s, " ")
}

// unwrapBackslashWords: \Compute\ -> Compute
func unwrapBackslashWords(s string) string {
	return reWrappedWord.ReplaceAllString(s, "${1}")
}

func unescapePunctuation(s string) string {
	return reEscapedPunctuation.ReplaceAllStringFunc(s, func(m string) string {
		if bare, ok := escapedPunctuation[m[1]]; ok {
			return bare
		}
		return m[1:]
	})
}

func stripUnknownCommands(s string) string {
	return reBackslashWord.ReplaceAllStringFunc(s, func(m string) string {
		if _, ok := latexCommands[m[1:]]; ok {
			return m
		}
		return m[1:]
	})
}

func collapseHorizontalSpace(s string) string {
	s = reHorizontalRun.ReplaceAllString(s, " ")
	return trimJSSpace(s)
}

// isJSSpace meldet, ob r für JavaScripts String.prototype.trim Whitespace ist.
func isJSSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\uFEFF':
		return true
	}
	return unicode.Is(unicode.Z, r)
}

func trimJSSpace(s string) string {
	return strings.TrimFunc(s, isJSSpace)
}
