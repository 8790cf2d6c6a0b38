package intake_test

import (
	"testing"

	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/stretchr/testify/assert"
)

func TestIsGreeting(t *testing.T) {
	for _, text := range []string{"Hola", "hola!", "  Buenos días. ", "¡Hola!", "qué tal?", "hey"} {
		assert.True(t, intake.IsGreeting(text), text)
	}
	for _, text := range []string{"hola, se cayó el sistema", "", "buenas noches, no hay internet", "adiós"} {
		assert.False(t, intake.IsGreeting(text), text)
	}
}

func TestParseDecision(t *testing.T) {
	tests := map[string]intake.Decision{
		"1":                 intake.DecisionAffirm,
		"Sí":                intake.DecisionAffirm,
		"ok, guardar":       intake.DecisionAffirm,
		"quiero editar":     intake.DecisionEdit,
		"2":                 intake.DecisionEdit,
		"3":                 intake.DecisionCancel,
		"cancelar":          intake.DecisionCancel,
		"sistema operativo": intake.DecisionCancel,
	}
	for answer, want := range tests {
		assert.Equal(t, want, intake.ParseDecision(answer), answer)
	}
}

func TestParseSelection(t *testing.T) {
	assert.Equal(t, 1, intake.ParseSelection("1", 3))
	assert.Equal(t, 3, intake.ParseSelection(" 3 ", 3))
	assert.Equal(t, -1, intake.ParseSelection("3", 2))
	assert.Equal(t, 0, intake.ParseSelection("Ninguno", 3))
	assert.Equal(t, 0, intake.ParseSelection("no, otro", 3))
	assert.Equal(t, -1, intake.ParseSelection("el segundo", 3))
}

func TestFields(t *testing.T) {
	key, ok := intake.ResolveField(" Línea ")
	assert.True(t, ok)
	assert.Equal(t, "line", key)

	_, ok = intake.ResolveField("color")
	assert.False(t, ok)

	f, ok := intake.LookupField("lot_number")
	assert.True(t, ok)
	assert.Equal(t, "LOT-20260224-001", f.Example)

	missing := intake.MissingRequired(map[string]string{"plant": "Norte", "shift": " ", "description": "x"})
	assert.Equal(t, []string{"line", "work_cell", "shift"}, missing)
}
