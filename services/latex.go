package services

import "strings"

const (
	formFeed  = "\f"
	backspace = "\b"
)

// controlEscapes macht JSON-Steuerzeichen, die einen Backslash verschluckt haben, wieder zu einem.
var controlEscapes = strings.NewReplacer(formFeed, `\`, backspace, `\`)

// bareCommand ist ein Befehlsname, der ohne seinen Backslash auftauchen kann.
type bareCommand struct {
	Name string
	// AfterLetter erlaubt einen Treffer direkt nach einem Buchstaben (`xfrac{` -> `x\frac{`).
	AfterLetter bool
	// FollowedBy meldet, ob der Text nach Name den Befehl beendet.
	FollowedBy func(rest string) bool
}

// bareCommands werden in dieser Reihenfolge wieder mit Backslash versehen.
var bareCommands = []bareCommand{
	{Name: "frac{", AfterLetter: true, FollowedBy: always},
	{Name: "ge", FollowedBy: endsComparison},
	{Name: "le", FollowedBy: endsComparison},
	{Name: "cdot", FollowedBy: endsWord},
	{Name: "sqrt{", AfterLetter: true, FollowedBy: always},
	{Name: "int", FollowedBy: endsWord},
}

// RepairLatex stellt LaTeX wieder her, das ohne escapte Backslashes durch einen
// JSON-String gegangen ist. Deterministisch; sauberer Text bleibt unverändert.
func RepairLatex(s string) string {
	s = strings.ReplaceAll(s, formFeed+"rac", `\frac`)
	s = controlEscapes.Replace(s)
	for _, cmd := range bareCommands {
		s = prefixBareCommand(s, cmd)
	}
	return s
}

// RepairLatexValue repariert v, falls es ein String ist; alles andere bleibt unverändert.
func RepairLatexValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return RepairLatex(s)
}

func prefixBareCommand(s string, cmd bareCommand) string {
	if !strings.Contains(s, cmd.Name) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	last := 0
	for i := 0; i+len(cmd.Name) <= len(s); {
		if s[i:i+len(cmd.Name)] != cmd.Name || !bareCommandStart(s, i, last, cmd) || !cmd.FollowedBy(s[i+len(cmd.Name):]) {
			i++
			continue
		}
		b.WriteString(s[last:i])
		b.WriteByte('\\')
		b.WriteString(cmd.Name)
		i += len(cmd.Name)
		last = i
	}
	b.WriteString(s[last:])
	return b.String()
}

// bareCommandStart meldet, ob ein Treffer bei i noch nicht escapt ist und, sofern
// der Befehl es nicht erlaubt, nicht das Ende eines längeren Wortes ist (`degree`, `large`).
// Das Zeichen vor i darf nicht zur vorherigen Ersetzung gehören.
func bareCommandStart(s string, i, last int, cmd bareCommand) bool {
	if i == 0 {
		return true
	}
	if i-1 < last || s[i-1] == '\\' {
		return false
	}
	return cmd.AfterLetter || !isASCIILetter(s[i-1])
}

func always(string) bool { return true }

// endsComparison: auf `ge`/`le` folgt Textende, Leerzeichen, Ziffer oder Satzzeichen.
func endsComparison(rest string) bool {
	if rest == "" {
		return true
	}
	c := rest[0]
	return !isASCIILetter(c) && c != '_'
}

func endsWord(rest string) bool {
	return rest == "" || !isWordByte(rest[0])
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isASCIILetter(c) || ('0' <= c && c <= '9') || c == '_'
}
