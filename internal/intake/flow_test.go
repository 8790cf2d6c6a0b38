package intake_test

import (
	"context"
	"testing"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/JonathanLopez0327/chat-demo/internal/runtime"
	"github.com/JonathanLopez0327/chat-demo/internal/testutils"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "5215550001"

var fixedNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

type harness struct {
	engine *runtime.Engine
	store  *memory.Store
	repo   *memory.Repository
	text   *testutils.TextService
}

func newHarness(t *testing.T, variant intake.Variant, text *testutils.TextService, opts ...intake.Option) *harness {
	t.Helper()
	return newHarnessWithRepo(t, variant, text, memory.NewRepository(), opts...)
}

func newHarnessWithRepo(t *testing.T, variant intake.Variant, text *testutils.TextService, repo *memory.Repository, opts ...intake.Option) *harness {
	t.Helper()
	catalog, err := intake.DefaultCatalog()
	require.NoError(t, err)

	opts = append([]intake.Option{
		intake.WithVariant(variant),
		intake.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	g, err := intake.Build(intake.Deps{Text: text, Repo: repo, Catalog: catalog}, opts...)
	require.NoError(t, err)

	store := memory.NewStore()
	return &harness{
		engine: runtime.NewEngine(g, store),
		store:  store,
		repo:   repo,
		text:   text,
	}
}

func (h *harness) knownActor(t *testing.T, p domain.UserProfile) {
	t.Helper()
	p.PhoneNumber = phone
	require.NoError(t, h.repo.UpsertUser(context.Background(), p))
}

func (h *harness) start(t *testing.T) *domain.StepResult {
	t.Helper()
	res, err := h.engine.Start(context.Background(), phone, domain.NewConversationState(phone))
	require.NoError(t, err)
	return res
}

func (h *harness) send(t *testing.T, text string) *domain.StepResult {
	t.Helper()
	res, err := h.engine.Resume(context.Background(), phone, domain.TextInput(text))
	require.NoError(t, err)
	return res
}

func (h *harness) pending(t *testing.T) string {
	t.Helper()
	cp, err := h.store.Load(context.Background(), phone)
	require.NoError(t, err)
	return cp.PendingNode
}

func TestScenario_NewActorRegisters(t *testing.T) {
	text := testutils.NewTextService()
	text.Profile.Name = "Juan Pérez"
	text.Profile.Shift = "mañana"
	h := newHarness(t, intake.VariantDirect, text)

	res := h.start(t)
	require.True(t, res.Suspended())
	assert.Equal(t, []string{intake.NodeGreeting, intake.NodeRegisterUser}, res.Path)
	assert.Contains(t, res.Reply(), "¿Cuál es tu nombre?")
	assert.Equal(t, intake.NodeRegisterUser, h.pending(t))

	res = h.send(t, "Juan Pérez, turno mañana")
	require.True(t, res.Suspended())
	assert.Equal(t, []string{intake.NodeRegisterUser, intake.NodeCollectDescription}, res.Path)
	assert.Contains(t, res.Reply(), "¡Encantado, Juan Pérez!")
	assert.Equal(t, intake.NodeCollectDescription, h.pending(t))

	require.NotNil(t, res.State.Profile)
	assert.Equal(t, "Juan Pérez", res.State.Profile.Name)
	assert.Equal(t, "mañana", res.State.Profile.Shift)
	assert.Equal(t, "mañana", res.State.Draft["shift"])

	stored, err := h.repo.GetUser(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", stored.Name)
}

func TestRegister_RetriesWhenNoName(t *testing.T) {
	h := newHarness(t, intake.VariantDirect, testutils.NewTextService())
	h.start(t)

	res := h.send(t, "   ")
	require.True(t, res.Suspended())
	assert.Contains(t, res.Reply(), "No pude captar tu nombre")
	assert.Equal(t, intake.NodeRegisterUser, h.pending(t))

	res = h.send(t, "Ana")
	assert.Equal(t, intake.NodeCollectDescription, h.pending(t))
	assert.Equal(t, "Ana", res.State.Profile.Name)
}

func TestRegister_GivesUpAfterMaxRetries(t *testing.T) {
	h := newHarness(t, intake.VariantDirect, testutils.NewTextService(), intake.WithMaxRetries(2))
	h.start(t)

	res := h.send(t, "   ")
	require.True(t, res.Suspended())
	assert.Equal(t, 1, res.State.RetryAttempts)

	res = h.send(t, "\t")
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalUnhandled, res.Terminal)
	assert.Contains(t, res.Reply(), "No logré entender tus respuestas")
	assert.Equal(t, 0, h.text.Calls("Classify"))
}

func TestRegister_SuccessResetsRetries(t *testing.T) {
	h := newHarness(t, intake.VariantDirect, testutils.NewTextService(), intake.WithMaxRetries(2))
	h.start(t)

	h.send(t, "   ")
	res := h.send(t, "Ana")
	require.True(t, res.Suspended())
	assert.Equal(t, 0, res.State.RetryAttempts)
	assert.Equal(t, intake.NodeCollectDescription, h.pending(t))
}

func TestScenario_ConfidentClassificationSaves(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("VEN-001", "Sistema de ventas caído", 0.82),
	))
	h := newHarness(t, intake.VariantDirect, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana", Line: "Agencia Centro", Shift: "tarde"})

	res := h.start(t)
	require.True(t, res.Suspended())
	assert.Contains(t, res.Reply(), "¡Hola Ana!")
	assert.Equal(t, intake.NodeCollectDescription, h.pending(t))

	res = h.send(t, "se cayó el sistema de ventas")
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalSaved, res.Terminal)
	assert.Equal(t, []string{intake.NodeCollectDescription, intake.NodeClassify, intake.NodeSave}, res.Path)
	assert.Equal(t, "saved", res.State.CurrentNode)
	assert.NotZero(t, res.State.IncidentID)
	assert.Contains(t, res.Reply(), "¡Incidente guardado exitosamente!")
	assert.Empty(t, h.pending(t))

	recs, err := h.repo.RecentIncidents(context.Background(), phone, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "VEN-001", recs[0].IncidentCode)
	assert.Equal(t, domain.CategoryVEN, recs[0].Category)
	assert.Equal(t, domain.SeverityCritical, recs[0].Severity)
	assert.Equal(t, domain.StatusOpen, recs[0].Status)
	assert.Equal(t, "Agencia Centro", recs[0].Line)
	assert.Equal(t, "se cayó el sistema de ventas", recs[0].Description)
	assert.Equal(t, fixedNow, recs[0].ReportedAt)
}

func TestScenario_UnsafeTwiceIsUnhandled(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("VEN-001", "Sistema de ventas caído", 0.99),
	))
	text.Unsafe = true
	text.UnsafeReason = "spam"
	h := newHarness(t, intake.VariantDirect, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)

	res := h.send(t, "GANA DINERO YA http://spam.example")
	require.True(t, res.Suspended())
	assert.Equal(t, 1, res.State.ClassifyAttempts)
	assert.Equal(t, intake.NodeCollectDescription, h.pending(t))

	res = h.send(t, "GANA DINERO YA http://spam.example")
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalUnhandled, res.Terminal)
	assert.Equal(t, 2, res.State.ClassifyAttempts)
	assert.Contains(t, res.Reply(), "después de varios intentos")

	assert.Equal(t, 2, text.Calls("SafetyCheck"))
	assert.Zero(t, text.Calls("Classify"))
	recs, err := h.repo.RecentIncidents(context.Background(), phone, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDirect_LowConfidenceRetriesWithinBound(t *testing.T) {
	text := testutils.NewTextService(
		testutils.Classification(testutils.Candidate("POS-001", "Terminal POS no enciende", 0.4)),
		testutils.Classification(testutils.Candidate("POS-001", "Terminal POS no enciende", 0.91)),
	)
	h := newHarness(t, intake.VariantDirect, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)

	res := h.send(t, "no sirve")
	require.True(t, res.Suspended())
	assert.Contains(t, res.Reply(), "No pude clasificar el incidente")
	assert.Equal(t, 1, res.State.ClassifyAttempts)
	assert.NotEmpty(t, res.State.Error)

	// A retry while the failure is outstanding keeps the count.
	res = h.send(t, "la terminal POS no prende")
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalSaved, res.Terminal)
	assert.Equal(t, 1, res.State.ClassifyAttempts)
	assert.Empty(t, res.State.Error)
}

func TestDirect_MediaBecomesDescriptionAndAttachment(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("IMP-001", "Impresora no imprime tickets", 0.95),
	))
	h := newHarness(t, intake.VariantDirect, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)

	res, err := h.engine.Resume(context.Background(), phone, domain.Input{
		Text: "mire la impresora",
		Media: []domain.MediaRef{{
			Type:        domain.MediaImage,
			Description: "impresora térmica con luz roja",
			Filename:    "wamid1.jpg",
			FilePath:    "/data/media/wamid1.jpg",
			MimeType:    "image/jpeg",
		}},
	})
	require.NoError(t, err)
	require.True(t, res.Finished())
	assert.Equal(t, "mire la impresora\n[Descripción visual: impresora térmica con luz roja]", res.State.Description)

	atts := h.repo.Attachments(res.State.IncidentID)
	require.Len(t, atts, 1)
	assert.Equal(t, "/data/media/wamid1.jpg", atts[0].FilePath)
	assert.Equal(t, domain.MediaImage, atts[0].MediaType)
}

type rejectingRepo struct {
	*memory.Repository
}

func (r rejectingRepo) SaveIncident(context.Context, domain.IncidentRecord) (int64, error) {
	return 0, &domain.RecordError{Field: "plant", Value: ""}
}

func TestSave_InvalidRecordEndsInError(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("VEN-001", "Sistema de ventas caído", 0.9),
	))
	catalog, err := intake.DefaultCatalog()
	require.NoError(t, err)
	repo := memory.NewRepository()
	require.NoError(t, repo.UpsertUser(context.Background(), domain.UserProfile{PhoneNumber: phone, Name: "Ana"}))

	g, err := intake.Build(intake.Deps{Text: text, Repo: rejectingRepo{repo}, Catalog: catalog})
	require.NoError(t, err)
	engine := runtime.NewEngine(g, memory.NewStore())

	_, err = engine.Start(context.Background(), phone, domain.NewConversationState(phone))
	require.NoError(t, err)
	res, err := engine.Resume(context.Background(), phone, domain.TextInput("se cayó el sistema"))
	require.NoError(t, err)

	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalError, res.Terminal)
	assert.Contains(t, res.Reply(), "Error al crear el registro")
	assert.NotEmpty(t, res.State.Error)
}

func TestGuided_SelectFillEditConfirm(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("NET-001", "Sin conexión a internet", 0.55),
		testutils.Candidate("VEN-001", "Sistema de ventas caído", 0.7),
		testutils.Candidate("NET-002", "Conexión intermitente o lenta", 0.3),
	))
	h := newHarness(t, intake.VariantGuided, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana", Line: "Agencia Centro", Shift: "mañana"})
	h.start(t)

	res := h.send(t, "no hay sistema para vender")
	require.True(t, res.Suspended())
	assert.Equal(t, intake.NodeConfirmClassification, h.pending(t))
	assert.Contains(t, res.Reply(), "1. **VEN-001** – Sistema de ventas caído (70% confianza)")
	assert.Contains(t, res.Reply(), "3. **NET-002**")

	res = h.send(t, "1")
	require.True(t, res.Suspended())
	assert.Equal(t, "VEN-001", res.State.SelectedCode)
	assert.Equal(t, intake.NodeCollectFields, h.pending(t))
	assert.Equal(t, []string{"plant", "work_cell"}, res.State.MissingFields)
	assert.Contains(t, res.Reply(), "Planta donde ocurrió el incidente")

	res = h.send(t, "Planta Norte")
	assert.Contains(t, res.Reply(), "Celda de trabajo")

	res = h.send(t, "Caja 2")
	require.True(t, res.Suspended())
	assert.Equal(t, intake.NodeProcessConfirmation, h.pending(t))
	assert.Contains(t, res.Reply(), "📋 **Resumen del incidente:**")
	assert.Contains(t, res.Reply(), "- **Celda de trabajo:** Caja 2")

	res = h.send(t, "2")
	assert.Equal(t, intake.NodeEdit, h.pending(t))
	assert.Contains(t, res.Reply(), "¿Qué campo deseas editar?")

	res = h.send(t, "color")
	assert.Equal(t, intake.NodeEdit, h.pending(t))
	assert.Contains(t, res.Reply(), "No reconocí el campo")

	res = h.send(t, "Turno")
	assert.Equal(t, intake.NodeCollectFields, h.pending(t))
	assert.Contains(t, res.Reply(), "Turno actual")

	res = h.send(t, "tarde")
	assert.Contains(t, res.Reply(), "- **Turno:** tarde")

	res = h.send(t, "sí, confirmo")
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalSaved, res.Terminal)
	assert.True(t, *res.State.Confirmed)

	recs, err := h.repo.RecentIncidents(context.Background(), phone, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Planta Norte", recs[0].Plant)
	assert.Equal(t, "Caja 2", recs[0].WorkCell)
	assert.Equal(t, "tarde", recs[0].Shift)
	assert.Equal(t, "VEN-001", recs[0].IncidentCode)
}

func TestGuided_NoneReturnsToDescription(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("POS-001", "Terminal POS no enciende", 0.5),
	))
	h := newHarness(t, intake.VariantGuided, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)
	h.send(t, "la máquina")

	res := h.send(t, "ninguno")
	require.True(t, res.Suspended())
	assert.Equal(t, intake.NodeCollectDescription, h.pending(t))
	assert.Contains(t, res.Reply(), "¿Podrías describir el incidente con más detalle?")
	assert.Empty(t, res.State.Candidates)
}

func TestGuided_UnclearSelectionAsksInterpreter(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("POS-001", "Terminal POS no enciende", 0.6),
		testutils.Candidate("POS-002", "Terminal POS congelada o lenta", 0.5),
	))
	text.Selection = -1
	h := newHarness(t, intake.VariantGuided, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)
	h.send(t, "la terminal")

	res := h.send(t, "la de arriba creo")
	assert.Equal(t, intake.NodeConfirmClassification, h.pending(t))
	assert.Contains(t, res.Reply(), "No entendí tu selección")

	text.Selection = 2
	res = h.send(t, "la que se congela")
	assert.Equal(t, "POS-002", res.State.SelectedCode)
	assert.Equal(t, 2, text.Calls("InterpretSelection"))
}

func TestGuided_UnclearSelectionGivesUp(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("POS-001", "Terminal POS no enciende", 0.6),
	))
	text.Selection = -1
	h := newHarness(t, intake.VariantGuided, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)
	h.send(t, "la terminal")

	var res *domain.StepResult
	for i := 0; i < intake.DefaultMaxRetries; i++ {
		res = h.send(t, "quizás la primera")
	}
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalUnhandled, res.Terminal)
	assert.Equal(t, intake.DefaultMaxRetries, res.State.RetryAttempts)
	assert.Contains(t, res.Reply(), "No logré entender tus respuestas")
	assert.NotContains(t, res.Reply(), "No entendí tu selección")
}

func TestGuided_UnknownEditFieldGivesUp(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("MAT-001", "Falta de papel para tickets", 0.9),
	))
	h := newHarness(t, intake.VariantGuided, text, intake.WithMaxRetries(2))
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)
	h.send(t, "no hay papel")
	h.send(t, "1")
	for _, answer := range []string{"Planta Sur", "L3", "Caja 1", "noche"} {
		h.send(t, answer)
	}
	h.send(t, "2")

	res := h.send(t, "color")
	require.True(t, res.Suspended())
	assert.Equal(t, intake.NodeEdit, h.pending(t))

	res = h.send(t, "sabor")
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalUnhandled, res.Terminal)

	recs, err := h.repo.RecentIncidents(context.Background(), phone, 1)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGuided_Cancel(t *testing.T) {
	text := testutils.NewTextService(testutils.Classification(
		testutils.Candidate("MAT-001", "Falta de papel para tickets", 0.9),
	))
	h := newHarness(t, intake.VariantGuided, text)
	h.knownActor(t, domain.UserProfile{Name: "Ana"})
	h.start(t)
	h.send(t, "no hay papel")
	h.send(t, "1")
	for _, answer := range []string{"Planta Sur", "L3", "Caja 1", "noche"} {
		h.send(t, answer)
	}

	res := h.send(t, "3")
	require.True(t, res.Finished())
	assert.Equal(t, intake.TerminalCancelled, res.Terminal)
	assert.Equal(t, "Reporte cancelado.", res.Reply())
}

func TestBuild(t *testing.T) {
	catalog, err := intake.DefaultCatalog()
	require.NoError(t, err)
	deps := intake.Deps{Text: testutils.NewTextService(), Repo: memory.NewRepository(), Catalog: catalog}

	direct, err := intake.Build(deps)
	require.NoError(t, err)
	_, ok := direct.Node(intake.NodeConfirmClassification)
	assert.False(t, ok)
	assert.True(t, direct.IsTerminal(intake.TerminalUnhandled))
	assert.False(t, direct.IsTerminal(intake.TerminalCancelled))

	guided, err := intake.Build(deps, intake.WithVariant(intake.VariantGuided))
	require.NoError(t, err)
	_, ok = guided.Node(intake.NodeEdit)
	assert.True(t, ok)
	assert.True(t, guided.IsTerminal(intake.TerminalCancelled))

	_, err = intake.Build(intake.Deps{})
	assert.Error(t, err)

	_, err = intake.Build(deps, intake.WithVariant("wizard"))
	assert.Error(t, err)
}

func TestParseVariant(t *testing.T) {
	v, err := intake.ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, intake.VariantDirect, v)

	v, err = intake.ParseVariant(" Guided ")
	require.NoError(t, err)
	assert.Equal(t, intake.VariantGuided, v)

	_, err = intake.ParseVariant("other")
	assert.Error(t, err)
}
