package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/JonathanLopez0327/chat-demo/internal/testutils"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
)

func noop(context.Context, domain.ConversationState, *domain.Input) (domain.Update, error) {
	return domain.Update{}, nil
}

func TestValidateGraph(t *testing.T) {
	// Scenario A: start -> ask -> done
	b := dsl.New("start")
	b.Add("start").Run(noop).Next("ask")
	b.Add("ask").Wait(noop).Next("done")
	b.Terminal("done")
	g, err := b.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := ValidateGraph(g); err != nil {
		t.Errorf("Scenario A (Valid) failed: %v", err)
	}

	// Scenario B: start branches into a loop that never ends.
	b = dsl.New("start")
	b.Add("start").Run(noop).Branch(func(domain.ConversationState) string { return "done" }, "done", "loop")
	b.Add("loop").Wait(noop).Next("again")
	b.Add("again").Run(noop).Next("loop")
	b.Terminal("done")
	g, err = b.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	err = ValidateGraph(g)
	if err == nil {
		t.Fatal("Scenario B (Trap) should have failed, but got nil")
	}
	for _, want := range []string{"'loop'", "'again'"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in error, got: %v", want, err)
		}
	}
	if strings.Contains(err.Error(), "'start'") {
		t.Errorf("start can reach done: %v", err)
	}
}

func TestValidateGraph_IntakeVariants(t *testing.T) {
	catalog, err := intake.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []intake.Variant{intake.VariantDirect, intake.VariantGuided} {
		g, err := intake.Build(intake.Deps{
			Text:    testutils.NewTextService(),
			Repo:    memory.NewRepository(),
			Catalog: catalog,
		}, intake.WithVariant(v))
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if err := ValidateGraph(g); err != nil {
			t.Errorf("%s: %v", v, err)
		}
	}
}
