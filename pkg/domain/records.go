package domain

import (
	"strings"
	"time"
)

// Severity of an incident.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IncidentStatus tracks the lifecycle of a saved incident.
type IncidentStatus string

const (
	StatusOpen       IncidentStatus = "OPEN"
	StatusInProgress IncidentStatus = "IN_PROGRESS"
	StatusContained  IncidentStatus = "CONTAINED"
	StatusClosed     IncidentStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusContained, StatusClosed:
		return true
	}
	return false
}

// Category groups catalog templates.
type Category string

const (
	CategoryPOS Category = "POS"
	CategoryIMP Category = "IMP"
	CategoryNET Category = "NET"
	CategoryELE Category = "ELE"
	CategoryEQU Category = "EQU"
	CategoryINF Category = "INF"
	CategoryMAT Category = "MAT"
	CategoryVEN Category = "VEN"
	CategoryPAG Category = "PAG"
	CategoryCON Category = "CON"
	CategoryFRA Category = "FRA"
	CategoryREC Category = "REC"
)

// CategoryNames maps each category to its display name.
var CategoryNames = map[Category]string{
	CategoryPOS: "Terminales / POS",
	CategoryIMP: "Impresoras / Tickets",
	CategoryNET: "Internet / Conectividad",
	CategoryELE: "Electricidad / Energía",
	CategoryEQU: "Equipos de Cómputo",
	CategoryINF: "Local / Infraestructura",
	CategoryMAT: "Materiales / Suministros",
	CategoryVEN: "Operación de Ventas",
	CategoryPAG: "Pagos y Premios",
	CategoryCON: "Contabilidad / Cuadres",
	CategoryFRA: "Seguridad / Fraude",
	CategoryREC: "Reclamos de Clientes",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := CategoryNames[c]
	return ok
}

// TicketType distinguishes incidents from alerts and complaints.
type TicketType string

const (
	TicketIncidente TicketType = "Incidente"
	TicketAlerta    TicketType = "Alerta"
	TicketReclamo   TicketType = "Reclamo"
)

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	switch t {
	case TicketIncidente, TicketAlerta, TicketReclamo:
		return true
	}
	return false
}

// ParseTicketType is lenient: unknown values default to TicketIncidente.
func ParseTicketType(raw string) TicketType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "alerta":
		return TicketAlerta
	case "reclamo":
		return TicketReclamo
	default:
		return TicketIncidente
	}
}

// ConversationStatus tracks a conversation row.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "ACTIVE"
	ConversationCompleted ConversationStatus = "COMPLETED"
	ConversationCancelled ConversationStatus = "CANCELLED"
)

// UserProfile is the registered actor.
type UserProfile struct {
	PhoneNumber string    `json:"phone_number" mapstructure:"phone_number"`
	Name        string    `json:"name" mapstructure:"name"`
	Area        string    `json:"area,omitempty" mapstructure:"area"`
	Shift       string    `json:"shift,omitempty" mapstructure:"shift"`
	Role        string    `json:"role,omitempty" mapstructure:"role"`
	Line        string    `json:"line,omitempty" mapstructure:"line"`
	CreatedAt   time.Time `json:"created_at" mapstructure:"-"`
	UpdatedAt   time.Time `json:"updated_at" mapstructure:"-"`
}

// IncidentTemplate is one entry of the incident catalog.
type IncidentTemplate struct {
	Code            string     `json:"code" yaml:"code"`
	Category        Category   `json:"category" yaml:"category"`
	SubCategory     string     `json:"sub_category" yaml:"sub_category"`
	Name            string     `json:"name" yaml:"name"`
	Description     string     `json:"description" yaml:"description"`
	Severity        Severity   `json:"severity" yaml:"severity"`
	TicketType      TicketType `json:"ticket_type" yaml:"ticket_type"`
	SLA             string     `json:"sla" yaml:"sla"`
	RequiresImage   bool       `json:"requires_image" yaml:"requires_image"`
	ImmediateAction string     `json:"immediate_action" yaml:"immediate_action"`
	ResponsibleArea string     `json:"responsible_area" yaml:"responsible_area"`
}

// IncidentRecord is the persisted incident.
type IncidentRecord struct {
	ID               int64          `json:"id" mapstructure:"-"`
	IncidentCode     string         `json:"incident_code" mapstructure:"incident_code"`
	IncidentName     string         `json:"incident_name" mapstructure:"incident_name"`
	Category         Category       `json:"category" mapstructure:"category"`
	SubCategory      string         `json:"sub_category" mapstructure:"sub_category"`
	Severity         Severity       `json:"severity" mapstructure:"severity"`
	TicketType       TicketType     `json:"ticket_type" mapstructure:"ticket_type"`
	SLA              string         `json:"sla" mapstructure:"sla"`
	ReportedAt       time.Time      `json:"date_time_reported" mapstructure:"-"`
	ReportedBy       string         `json:"reported_by" mapstructure:"reported_by"`
	Plant            string         `json:"plant" mapstructure:"plant"`
	Line             string         `json:"line" mapstructure:"line"`
	WorkCell         string         `json:"work_cell" mapstructure:"work_cell"`
	Shift            string         `json:"shift" mapstructure:"shift"`
	Machine          string         `json:"machine,omitempty" mapstructure:"machine"`
	ProductionOrder  string         `json:"production_order,omitempty" mapstructure:"production_order"`
	LotNumber        string         `json:"lot_number,omitempty" mapstructure:"lot_number"`
	Description      string         `json:"description" mapstructure:"description"`
	ImmediateAction  string         `json:"immediate_action" mapstructure:"immediate_action"`
	Status           IncidentStatus `json:"status" mapstructure:"status"`
	RootCause        string         `json:"root_cause,omitempty" mapstructure:"root_cause"`
	CorrectiveAction string         `json:"corrective_action,omitempty" mapstructure:"corrective_action"`
	ClosedBy         string         `json:"closed_by,omitempty" mapstructure:"closed_by"`
	CreatedAt        time.Time      `json:"created_at" mapstructure:"-"`
	// StepKey makes SaveIncident idempotent per engine step. Empty disables it.
	StepKey string `json:"-" mapstructure:"-"`
}

// Validate checks required fields and enum values.
func (r *IncidentRecord) Validate() error {
	if strings.TrimSpace(r.IncidentCode) == "" {
		return &RecordError{Field: "incident_code", Value: r.IncidentCode}
	}
	if strings.TrimSpace(r.ReportedBy) == "" {
		return &RecordError{Field: "reported_by", Value: r.ReportedBy}
	}
	if !r.Category.Valid() {
		return &RecordError{Field: "category", Value: string(r.Category)}
	}
	if !r.Severity.Valid() {
		return &RecordError{Field: "severity", Value: string(r.Severity)}
	}
	if !r.Status.Valid() {
		return &RecordError{Field: "status", Value: string(r.Status)}
	}
	if !r.TicketType.Valid() {
		return &RecordError{Field: "ticket_type", Value: string(r.TicketType)}
	}
	return nil
}

// Attachment links a stored media file to an incident.
type Attachment struct {
	ID           int64  `json:"id"`
	IncidentID   int64  `json:"incident_id"`
	FilePath     string `json:"file_path"`
	MediaType    string `json:"media_type"`
	OriginalName string `json:"original_name,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Conversation is one tracked intake session.
type Conversation struct {
	ID            string             `json:"id"`
	ThreadID      string             `json:"thread_id"`
	StartedAt     time.Time          `json:"started_at"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
	Status        ConversationStatus `json:"status"`
	Outcome       string             `json:"outcome,omitempty"`
	IncidentID    int64              `json:"incident_id,omitempty"`
	TotalMessages int                `json:"total_messages"`
}

// LogEntry is one line of the persisted conversation log.
type LogEntry struct {
	ID             int64     `json:"id"`
	ThreadID       string    `json:"thread_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
