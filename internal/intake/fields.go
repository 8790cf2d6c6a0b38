package intake

import "strings"

// Field describes one draft key the actor may be asked for.
type Field struct {
	Key         string
	Description string
	Example     string
}

// RequiredFields must be present before a guided report is summarized.
var RequiredFields = []Field{
	{Key: "plant", Description: "Planta donde ocurrió el incidente", Example: "Planta Norte"},
	{Key: "line", Description: "Línea de producción", Example: "Línea 1"},
	{Key: "work_cell", Description: "Celda de trabajo o estación", Example: "Estación de empaque"},
	{Key: "shift", Description: "Turno actual", Example: "Mañana / Tarde / Noche"},
	{Key: "description", Description: "Descripción detallada de lo que sucedió", Example: "Se atascaron huevos en la curva de la banda 3"},
}

// OptionalFields can only be reached through an edit.
var OptionalFields = []Field{
	{Key: "machine", Description: "Máquina involucrada (si aplica)", Example: "Clasificadora MOBA"},
	{Key: "lot_number", Description: "Número de lote (si aplica)", Example: "LOT-20260224-001"},
	{Key: "production_order", Description: "Orden de producción (si aplica)", Example: "OP-2026-0451"},
}

var fieldAliases = map[string]string{
	"planta":      "plant",
	"plant":       "plant",
	"línea":       "line",
	"linea":       "line",
	"line":        "line",
	"celda":       "work_cell",
	"work_cell":   "work_cell",
	"turno":       "shift",
	"shift":       "shift",
	"descripción": "description",
	"descripcion": "description",
	"máquina":     "machine",
	"maquina":     "machine",
	"lote":        "lot_number",
	"lot":         "lot_number",
	"orden":       "production_order",
}

// LookupField returns the field definition for a draft key.
func LookupField(key string) (Field, bool) {
	for _, f := range RequiredFields {
		if f.Key == key {
			return f, true
		}
	}
	for _, f := range OptionalFields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// ResolveField maps what the actor typed to a draft key.
func ResolveField(answer string) (string, bool) {
	key, ok := fieldAliases[strings.ToLower(strings.TrimSpace(answer))]
	return key, ok
}

// MissingRequired lists the required keys that are empty in draft, in order.
func MissingRequired(draft map[string]string) []string {
	var missing []string
	for _, f := range RequiredFields {
		if strings.TrimSpace(draft[f.Key]) == "" {
			missing = append(missing, f.Key)
		}
	}
	return missing
}
