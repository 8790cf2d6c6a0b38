package intake_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := intake.DefaultCatalog()
	require.NoError(t, err)
	assert.Greater(t, c.Len(), 20)

	tmpl, ok := c.Lookup("VEN-001")
	require.True(t, ok)
	assert.Equal(t, "Sistema de ventas caído", tmpl.Name)
	assert.Equal(t, domain.CategoryVEN, tmpl.Category)
	assert.Equal(t, domain.SeverityCritical, tmpl.Severity)
	assert.Equal(t, domain.TicketIncidente, tmpl.TicketType)

	_, ok = c.Lookup(" pos-003 ")
	assert.True(t, ok)
	_, ok = c.Lookup("POS-999")
	assert.False(t, ok)

	text := c.Text()
	assert.True(t, strings.HasPrefix(text, "# Catálogo de Incidentes — Agencias de Lotería"))
	assert.Contains(t, text, "## Operación de Ventas")
	assert.Contains(t, text, "### VEN-001 – Sistema de ventas caído")
	assert.Contains(t, text, "- **Severidad:** CRITICAL")
}

func TestParseCatalog(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		check   func(t *testing.T, c *intake.Catalog)
	}{
		{
			name: "codes assigned per category",
			yaml: `
templates:
  - {category: POS, name: Uno, severity: baja}
  - {category: "Pagos y Premios", name: Dos, severity: "Alta (2h)"}
  - {category: "terminales/pos", name: Tres, severity: raro, ticket_type: alerta}
`,
			check: func(t *testing.T, c *intake.Catalog) {
				codes := []string{}
				for _, tmpl := range c.Templates() {
					codes = append(codes, tmpl.Code)
				}
				assert.Equal(t, []string{"POS-001", "PAG-001", "POS-002"}, codes)

				tres, _ := c.Lookup("POS-002")
				assert.Equal(t, domain.SeverityMedium, tres.Severity)
				assert.Equal(t, domain.TicketAlerta, tres.TicketType)
				assert.Equal(t, "Tres", tres.Description)

				dos, _ := c.Lookup("PAG-001")
				assert.Equal(t, domain.SeverityHigh, dos.Severity)
			},
		},
		{
			name: "explicit code kept",
			yaml: `
templates:
  - {code: FRA-100, category: FRA, name: Robo, severity: CRITICAL}
`,
			check: func(t *testing.T, c *intake.Catalog) {
				_, ok := c.Lookup("FRA-100")
				assert.True(t, ok)
			},
		},
		{
			name:    "unknown category",
			yaml:    "templates:\n  - {category: Cocina, name: Fuego}\n",
			wantErr: "unknown category",
		},
		{
			name:    "duplicate code",
			yaml:    "templates:\n  - {code: X-1, category: POS, name: A}\n  - {code: X-1, category: POS, name: B}\n",
			wantErr: "duplicate code",
		},
		{
			name:    "empty",
			yaml:    "templates: []\n",
			wantErr: intake.ErrEmptyCatalog.Error(),
		},
		{
			name:    "bad yaml",
			yaml:    "templates: [",
			wantErr: "decode catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := intake.ParseCatalog([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates:\n  - {category: NET, name: Sin internet, severity: crítica}\n"), 0o600))

	c, err := intake.LoadCatalog(path)
	require.NoError(t, err)
	tmpl, ok := c.Lookup("NET-001")
	require.True(t, ok)
	assert.Equal(t, domain.SeverityCritical, tmpl.Severity)

	_, err = intake.LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	def, err := intake.LoadCatalog("")
	require.NoError(t, err)
	assert.Greater(t, def.Len(), 1)
}
