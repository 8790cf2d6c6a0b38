package intake

import (
	"fmt"
	"math"
	"strings"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// Suspension prompts. They are recorded in the checkpoint, the actor sees the
// assistant message emitted before them.
const (
	promptName         = "Esperando nombre del usuario"
	promptDescription  = "Esperando descripción del incidente"
	promptSelection    = "Esperando selección (1-3 o ninguno)"
	promptConfirmation = "Esperando confirmación (1=confirmar, 2=editar, 3=cancelar)"
	promptEditField    = "Esperando campo a editar"
)

const (
	msgNewUser          = "¡Hola! Soy tu asistente de incidentes de la fábrica. No te tengo registrado aún.\n¿Cuál es tu nombre?"
	msgNameRetry        = "No pude captar tu nombre. ¿Podrías repetirlo?"
	msgClassifyRetry    = "No pude clasificar el incidente. ¿Puedes describirlo de otra forma?"
	msgUnsafeRetry      = "No puedo procesar ese mensaje como un incidente. ¿Puedes describir lo que ocurrió en la agencia?"
	msgClassifyGiveUp   = "No logré identificar el incidente después de varios intentos. Un supervisor revisará tu caso. Envía un nuevo mensaje si deseas intentarlo otra vez."
	msgRetryGiveUp      = "No logré entender tus respuestas. Cerramos esta conversación; envía un nuevo mensaje cuando quieras empezar de nuevo."
	msgDescribeMore     = "Entendido. ¿Podrías describir el incidente con más detalle?"
	msgSelectionUnclear = "No entendí tu selección. ¿Puedes indicar el número (1-3) o 'ninguno'?"
	msgAskEditField     = "¿Qué campo deseas editar? (planta, línea, celda, turno, descripción, máquina, lote, orden)"
	msgUnknownField     = "No reconocí el campo. Opciones: planta, línea, celda, turno, descripción, máquina, lote, orden."
	msgCancelled        = "Reporte cancelado."
)

func greetKnown(p *domain.UserProfile, recent []domain.IncidentRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "¡Hola %s! 👋 Soy tu asistente de incidentes.", p.Name)
	if len(recent) > 0 {
		fmt.Fprintf(&b, "\nTu último reporte fue: %s – %s.", recent[0].IncidentCode, recent[0].IncidentName)
	}
	b.WriteString("\n¿Qué incidente deseas reportar hoy? Descríbelo con tus palabras.")
	return b.String()
}

func welcomeRegistered(name string) string {
	return fmt.Sprintf("¡Encantado, %s! Te he registrado. 😊\n¿Qué incidente deseas reportar? Descríbelo con tus palabras.", name)
}

// actorContext is the system note kept at the top of the log.
func actorContext(p *domain.UserProfile, recent []domain.IncidentRecord) string {
	if p == nil {
		return "Usuario no registrado."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Usuario: %s", p.Name)
	for _, kv := range [][2]string{{"Área", p.Area}, {"Turno", p.Shift}, {"Línea", p.Line}, {"Rol", p.Role}} {
		if kv[1] != "" {
			fmt.Fprintf(&b, " | %s: %s", kv[0], kv[1])
		}
	}
	for _, r := range recent {
		fmt.Fprintf(&b, "\n- %s – %s (%s)", r.IncidentCode, r.IncidentName, r.Status)
	}
	return b.String()
}

func percent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

func candidateList(cands []domain.Candidate) string {
	var b strings.Builder
	b.WriteString("He identificado los siguientes incidentes posibles:\n")
	for i, c := range cands {
		fmt.Fprintf(&b, "\n  %d. **%s** – %s (%d%% confianza)\n     _%s_\n", i+1, c.Code, c.Name, percent(c.Confidence), c.Reason)
	}
	b.WriteString("\n¿Cuál es el correcto? Responde con el número (1-3) o escribe 'ninguno' si no aplica.")
	return b.String()
}

func classifiedAs(t domain.IncidentTemplate, c domain.Candidate) string {
	return fmt.Sprintf("🔎 Clasificado como **%s** – %s (%d%% confianza).", t.Code, t.Name, percent(c.Confidence))
}

func selected(t domain.IncidentTemplate) string {
	return fmt.Sprintf("✅ Seleccionado: **%s** – %s\nSeveridad: %s | Categoría: %s\n\nAhora necesito algunos datos adicionales para completar el reporte.",
		t.Code, t.Name, t.Severity, t.Category)
}

func codeNotFound(code string) string {
	return fmt.Sprintf("No encontré el código %s. Intenta de nuevo.", code)
}

func fieldQuestion(key string) string {
	f, ok := LookupField(key)
	if !ok {
		return "📝 " + key
	}
	q := "📝 " + f.Description
	if f.Example != "" {
		q += "\n   (Ejemplo: " + f.Example + ")"
	}
	return q
}

func summary(draft map[string]string) string {
	get := func(k string) string {
		if v := draft[k]; v != "" {
			return v
		}
		return "N/A"
	}
	lines := []string{
		"📋 **Resumen del incidente:**\n",
		"- **Código:** " + get("incident_code"),
		"- **Nombre:** " + get("incident_name"),
		"- **Categoría:** " + get("category"),
		"- **Severidad:** " + get("severity"),
		"- **Planta:** " + get("plant"),
		"- **Línea:** " + get("line"),
		"- **Celda de trabajo:** " + get("work_cell"),
		"- **Turno:** " + get("shift"),
		"- **Descripción:** " + get("description"),
		"- **Acción inmediata:** " + get("immediate_action"),
	}
	for _, opt := range [][2]string{{"machine", "Máquina"}, {"lot_number", "Lote"}, {"production_order", "Orden"}} {
		if v := draft[opt[0]]; v != "" {
			lines = append(lines, fmt.Sprintf("- **%s:** %s", opt[1], v))
		}
	}
	lines = append(lines, "\n¿Deseas:\n1. ✅ Confirmar y guardar\n2. ✏️ Editar un campo\n3. ❌ Cancelar")
	return strings.Join(lines, "\n")
}

func recordError(err error) string {
	return fmt.Sprintf("Error al crear el registro: %v", err)
}

func savedMessage(id int64, rec domain.IncidentRecord) string {
	return fmt.Sprintf("✅ ¡Incidente guardado exitosamente!\n**ID:** %d\n**Código:** %s – %s\n**Severidad:** %s\n**Estado:** %s",
		id, rec.IncidentCode, rec.IncidentName, rec.Severity, rec.Status)
}
