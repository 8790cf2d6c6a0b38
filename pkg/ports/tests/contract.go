package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/google/uuid"
)

// RepositoryContractTest is a reusable test suite that verifies if an adapter complies with ports.Repository.
func RepositoryContractTest(t *testing.T, repo ports.Repository) {
	t.Helper()
	ctx := context.Background()
	phone := "52155" + time.Now().Format("150405.000000")

	// 1. Users
	t.Run("Users", func(t *testing.T) {
		if _, err := repo.GetUser(ctx, phone); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
		}
		if err := repo.UpsertUser(ctx, domain.UserProfile{PhoneNumber: phone, Name: "Ana"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := repo.UpsertUser(ctx, domain.UserProfile{PhoneNumber: phone, Name: "Ana", Line: "L2"}); err != nil {
			t.Fatalf("second upsert: %v", err)
		}
		got, err := repo.GetUser(ctx, phone)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != "Ana" || got.Line != "L2" {
			t.Errorf("unexpected profile %+v", got)
		}
	})

	// 2. Incidents
	t.Run("Incidents", func(t *testing.T) {
		for _, code := range []string{"IMP-001", "NET-002"} {
			id, err := repo.SaveIncident(ctx, domain.IncidentRecord{
				IncidentCode: code,
				Category:     domain.CategoryIMP,
				Severity:     domain.SeverityLow,
				Status:       domain.StatusOpen,
				TicketType:   domain.TicketIncidente,
				ReportedBy:   phone,
				ReportedAt:   time.Now().UTC(),
				Description:  "sin papel",
			})
			if err != nil {
				t.Fatalf("save incident: %v", err)
			}
			if id <= 0 {
				t.Fatalf("expected positive id, got %d", id)
			}
			if _, err := repo.SaveAttachment(ctx, domain.Attachment{IncidentID: id, FilePath: "/tmp/x.jpg", MediaType: "image"}); err != nil {
				t.Fatalf("save attachment: %v", err)
			}
		}

		recent, err := repo.RecentIncidents(ctx, phone, 1)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(recent) != 1 || recent[0].IncidentCode != "NET-002" {
			t.Errorf("expected most recent NET-002, got %+v", recent)
		}

		n, err := repo.DeleteIncidentsByUser(ctx, phone)
		if err != nil {
			t.Fatalf("delete incidents: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 deleted incidents, got %d", n)
		}
	})

	// 3. Incidents keyed by step
	t.Run("IncidentStepKey", func(t *testing.T) {
		rec := domain.IncidentRecord{
			IncidentCode: "NET-001",
			Category:     domain.CategoryNET,
			Severity:     domain.SeverityHigh,
			Status:       domain.StatusOpen,
			TicketType:   domain.TicketIncidente,
			ReportedBy:   phone,
			ReportedAt:   time.Now().UTC(),
			StepKey:      phone + ":3:0",
		}
		first, err := repo.SaveIncident(ctx, rec)
		if err != nil {
			t.Fatalf("save incident: %v", err)
		}

		rec.Description = "otra réplica"
		again, err := repo.SaveIncident(ctx, rec)
		if !errors.Is(err, ports.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for a repeated step key, got %v", err)
		}
		if again != first {
			t.Errorf("expected the first id %d, got %d", first, again)
		}

		rec.StepKey = ""
		if _, err := repo.SaveIncident(ctx, rec); err != nil {
			t.Fatalf("save without step key: %v", err)
		}
		rec.StepKey = ""
		if _, err := repo.SaveIncident(ctx, rec); err != nil {
			t.Fatalf("empty step keys must not collide: %v", err)
		}

		recent, err := repo.RecentIncidents(ctx, phone, 0)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(recent) != 3 {
			t.Errorf("expected 3 incidents, got %d", len(recent))
		}
		if _, err := repo.DeleteIncidentsByUser(ctx, phone); err != nil {
			t.Fatalf("delete incidents: %v", err)
		}
	})

	// 4. Conversations
	t.Run("Conversations", func(t *testing.T) {
		thread := "thread-" + phone
		if _, err := repo.ActiveConversation(ctx, thread); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		conv := domain.Conversation{
			ID:        uuid.NewString(),
			ThreadID:  thread,
			StartedAt: time.Now().UTC(),
			Status:    domain.ConversationActive,
		}
		if err := repo.CreateConversation(ctx, conv); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.IncrementMessages(ctx, conv.ID, 2); err != nil {
			t.Fatalf("increment: %v", err)
		}
		if err := repo.AppendLog(ctx, domain.LogEntry{ThreadID: thread, Role: domain.RoleUser, Content: "hola", ConversationID: conv.ID}); err != nil {
			t.Fatalf("append log: %v", err)
		}

		active, err := repo.ActiveConversation(ctx, thread)
		if err != nil {
			t.Fatalf("active: %v", err)
		}
		if active.ID != conv.ID || active.TotalMessages != 2 {
			t.Errorf("unexpected conversation %+v", active)
		}

		if err := repo.FinishConversation(ctx, conv.ID, domain.ConversationCompleted, "Incidente creado", 0); err != nil {
			t.Fatalf("finish: %v", err)
		}
		if _, err := repo.ActiveConversation(ctx, thread); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("finished conversation must not be active, got %v", err)
		}
		if err := repo.DeleteLog(ctx, thread); err != nil {
			t.Fatalf("delete log: %v", err)
		}
	})

	// 5. Delete user
	t.Run("DeleteUser", func(t *testing.T) {
		if err := repo.DeleteUser(ctx, phone); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := repo.GetUser(ctx, phone); !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.DeleteUser(ctx, phone); err != nil {
			t.Errorf("delete should be idempotent: %v", err)
		}
	})
}
