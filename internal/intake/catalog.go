package intake

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrEmptyCatalog is returned when a catalog file holds no templates.
var ErrEmptyCatalog = errors.New("catalog has no templates")

var severityAliases = map[string]domain.Severity{
	"baja":    domain.SeverityLow,
	"media":   domain.SeverityMedium,
	"alta":    domain.SeverityHigh,
	"crítica": domain.SeverityCritical,
	"critica": domain.SeverityCritical,
}

// catalogFile is the on-disk shape. Codes are optional and assigned per
// category in file order when missing.
type catalogFile struct {
	Templates []struct {
		Code            string `yaml:"code"`
		Category        string `yaml:"category"`
		SubCategory     string `yaml:"sub_category"`
		Name            string `yaml:"name"`
		Description     string `yaml:"description"`
		Severity        string `yaml:"severity"`
		TicketType      string `yaml:"ticket_type"`
		SLA             string `yaml:"sla"`
		RequiresImage   bool   `yaml:"requires_image"`
		ImmediateAction string `yaml:"immediate_action"`
		ResponsibleArea string `yaml:"responsible_area"`
	} `yaml:"templates"`
}

// Catalog is the immutable set of incident templates.
type Catalog struct {
	templates []domain.IncidentTemplate
	byCode    map[string]domain.IncidentTemplate
	text      string
}

// DefaultCatalog returns the catalog bundled with the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a YAML catalog. An empty path selects the bundled one.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{byCode: make(map[string]domain.IncidentTemplate, len(file.Templates))}
	counters := make(map[domain.Category]int)
	for i, raw := range file.Templates {
		if strings.TrimSpace(raw.Name) == "" {
			continue
		}
		cat, err := parseCategory(raw.Category)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		counters[cat]++

		t := domain.IncidentTemplate{
			Code:            strings.TrimSpace(raw.Code),
			Category:        cat,
			SubCategory:     strings.TrimSpace(raw.SubCategory),
			Name:            strings.TrimSpace(raw.Name),
			Description:     strings.TrimSpace(raw.Description),
			Severity:        parseSeverity(raw.Severity),
			TicketType:      domain.ParseTicketType(raw.TicketType),
			SLA:             strings.TrimSpace(raw.SLA),
			RequiresImage:   raw.RequiresImage,
			ImmediateAction: strings.TrimSpace(raw.ImmediateAction),
			ResponsibleArea: strings.TrimSpace(raw.ResponsibleArea),
		}
		if t.Code == "" {
			t.Code = fmt.Sprintf("%s-%03d", cat, counters[cat])
		}
		if t.Description == "" {
			t.Description = t.Name
		}
		if _, dup := c.byCode[t.Code]; dup {
			return nil, fmt.Errorf("template %d: duplicate code %s", i, t.Code)
		}
		c.byCode[t.Code] = t
		c.templates = append(c.templates, t)
	}
	if len(c.templates) == 0 {
		return nil, ErrEmptyCatalog
	}
	c.text = renderCatalog(c.templates)
	return c, nil
}

// Lookup returns the template with the given code.
func (c *Catalog) Lookup(code string) (domain.IncidentTemplate, bool) {
	t, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return t, ok
}

// Templates returns the templates in file order.
func (c *Catalog) Templates() []domain.IncidentTemplate {
	return append([]domain.IncidentTemplate(nil), c.templates...)
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Text is the markdown rendering handed to the classifier.
func (c *Catalog) Text() string {
	return c.text
}

func renderCatalog(templates []domain.IncidentTemplate) string {
	var b strings.Builder
	b.WriteString("# Catálogo de Incidentes — Agencias de Lotería\n")
	var current domain.Category
	for _, t := range templates {
		if t.Category != current {
			current = t.Category
			fmt.Fprintf(&b, "\n## %s\n\n", domain.CategoryNames[current])
		}
		fmt.Fprintf(&b, "### %s – %s\n", t.Code, t.Name)
		fmt.Fprintf(&b, "- **Subcategoría:** %s\n", t.SubCategory)
		fmt.Fprintf(&b, "- **Tipo de ticket:** %s\n", t.TicketType)
		fmt.Fprintf(&b, "- **Severidad:** %s\n", t.Severity)
		fmt.Fprintf(&b, "- **SLA:** %s\n\n", t.SLA)
	}
	return b.String()
}

func parseCategory(raw string) (domain.Category, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if c := domain.Category(strings.ToUpper(normalized)); c.Valid() {
		return c, nil
	}
	compact := strings.ReplaceAll(normalized, " ", "")
	for c, name := range domain.CategoryNames {
		if strings.ReplaceAll(strings.ToLower(name), " ", "") == compact {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", raw)
}

func parseSeverity(raw string) domain.Severity {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(normalized, "("); i >= 0 {
		normalized = strings.TrimSpace(normalized[:i])
	}
	if s := domain.Severity(strings.ToUpper(normalized)); s.Valid() {
		return s
	}
	for key, sev := range severityAliases {
		if strings.Contains(normalized, key) {
			return sev
		}
	}
	return domain.SeverityMedium
}
