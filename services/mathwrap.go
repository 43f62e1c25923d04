package services

import (
	"regexp"
	"strings"
)

const mathDelimiter = "$"

// Befehle, an denen ein Math-Span beginnt.
var mathTriggerCommands = []string{
	"frac", "int", "sqrt", "sum", "prod", "lim", "left", "right",
	"ge", "le", "cdot", "times", "pm",
}

// Strengere Menge: mit zusätzlichem Operator wird die ganze Zeile umschlossen.
var strictTriggerCommands = []string{
	"frac", "int", "sqrt", "sum", "prod", "lim", "left", "right",
}

var (
	reMathTrigger      = commandPattern(mathTriggerCommands)
	reStrictTrigger    = commandPattern(strictTriggerCommands)
	reComparisonSignal = commandPattern([]string{"ge", "le"})
	reOperatorSignal   = regexp.MustCompile(`[=_^]`)
	// Einzeiliger Rest und optionales Satzzeichen am Ende
	reTrailingPunct = regexp.MustCompile(`^([^\n\r\x{2028}\x{2029}]*?)([.?!,:;])?$`)
)

// commandPattern findet `\name` für alle names. Ein LaTeX-Control-Word endet am
// ersten Nicht-Buchstaben: `\int_0` und `\frac12` treffen, `\leq` trifft nicht `le`.
func commandPattern(names []string) *regexp.Regexp {
	return regexp.MustCompile(`\\(?:` + strings.Join(names, "|") + `)(?:[^A-Za-z]|$)`)
}

// WrapMathHeuristic setzt `$`-Delimiter um den Math-Span eines Textes, der noch
// keine hat. Der Span beginnt beim ersten Trigger-Befehl und reicht bis zum Ende;
// ein abschließendes Satzzeichen eines einzeiligen Spans bleibt draußen.
// Pro String wird nur ein Span erkannt.
func WrapMathHeuristic(s string) string {
	if strings.Contains(s, mathDelimiter) {
		return s
	}
	loc := reMathTrigger.FindStringIndex(s)
	if loc == nil {
		return s
	}
	prefix, rest := s[:loc[0]], s[loc[0]:]

	core, tail := trimJSSpace(rest), ""
	if m := reTrailingPunct.FindStringSubmatch(rest); m != nil {
		core, tail = trimJSSpace(m[1]), m[2]
	}

	if trimJSSpace(prefix) == "" {
		return mathDelimiter + core + mathDelimiter + tail
	}
	return prefix + mathDelimiter + core + mathDelimiter + tail
}

// NormalizeMarkdownMath bereinigt tokenisierten Text und umschließt seinen Math-Span.
// Mehrzeiliger Text wird als Ganzes behandelt; eine einzelne Zeile wird komplett
// umschlossen, wenn sie einen strengen Trigger und einen Operator enthält, sonst
// greift WrapMathHeuristic.
func NormalizeMarkdownMath(md string) string {
	return wrapCleaned(CleanTokenizedText(md))
}

// NormalizeMarkdownValue normalisiert Strings und gibt alle anderen Werte unverändert zurück.
func NormalizeMarkdownValue(v any) any {
	cleaned, ok := CleanTokenizedValue(v).(string)
	if !ok {
		return v
	}
	return wrapCleaned(cleaned)
}

func wrapCleaned(cleaned string) string {
	if strings.Contains(cleaned, "\n") {
		return WrapMathHeuristic(cleaned)
	}

	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = wrapMathLine(line)
	}
	return strings.Join(lines, "\n")
}

func wrapMathLine(line string) string {
	t := trimJSSpace(line)
	if t == "" {
		return ""
	}
	if strings.Contains(t, mathDelimiter) {
		return line
	}
	if reStrictTrigger.MatchString(t) && (reOperatorSignal.MatchString(t) || reComparisonSignal.MatchString(t)) {
		return mathDelimiter + t + mathDelimiter
	}
	return WrapMathHeuristic(line)
}
