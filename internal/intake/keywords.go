package intake

import (
	"strings"
	"unicode"
)

var greetings = map[string]struct{}{
	"hola": {}, "hello": {}, "hi": {}, "hey": {},
	"buenos dias": {}, "buenos días": {},
	"buenas tardes": {}, "buenas noches": {}, "buenas": {},
	"buen dia": {}, "buen día": {},
	"que tal": {}, "qué tal": {},
	"ola": {}, "saludos": {}, "holi": {}, "holaa": {},
}

// IsGreeting reports whether text is only a greeting with no content.
func IsGreeting(text string) bool {
	normalized := strings.TrimRight(strings.ToLower(strings.TrimSpace(text)), "!.?,;¡¿")
	normalized = strings.TrimLeft(normalized, "¡¿")
	_, ok := greetings[normalized]
	return ok
}

// Decision is the actor's answer to the summary.
type Decision int

const (
	DecisionCancel Decision = iota
	DecisionAffirm
	DecisionEdit
)

var (
	affirmWords = []string{"sí", "si", "confirmo", "confirmar", "guardar", "ok", "1", "correcto"}
	editWords   = []string{"editar", "cambiar", "modificar", "corregir", "2"}
	noneWords   = []string{"ninguno", "ninguna", "none", "otro", "no"}
)

// ParseDecision reads a reply to the summary. Affirmation wins over edit and
// anything else cancels.
func ParseDecision(answer string) Decision {
	words := tokens(answer)
	switch {
	case containsAny(words, affirmWords):
		return DecisionAffirm
	case containsAny(words, editWords):
		return DecisionEdit
	default:
		return DecisionCancel
	}
}

// ParseSelection reads a numeric candidate pick. It returns the 1-based index,
// 0 for "none of them" and -1 when the answer needs interpretation.
func ParseSelection(answer string, n int) int {
	sel := strings.TrimSpace(answer)
	if len(sel) == 1 && sel[0] >= '1' && sel[0] <= '3' {
		idx := int(sel[0] - '0')
		if idx <= n {
			return idx
		}
		return -1
	}
	if containsAny(tokens(sel), noneWords) {
		return 0
	}
	return -1
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAny(words, set []string) bool {
	for _, w := range words {
		for _, s := range set {
			if w == s {
				return true
			}
		}
	}
	return false
}
