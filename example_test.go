package chatdemo_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	chatdemo "github.com/JonathanLopez0327/chat-demo"
	"github.com/JonathanLopez0327/chat-demo/internal/config"
	"github.com/JonathanLopez0327/chat-demo/internal/testutils"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
)

// ExampleNew wires a bot entirely in memory. A real deployment injects
// nothing and lets config pick the SQL database and OpenAI.
func ExampleNew() {
	ctx := context.Background()
	cfg := &config.Config{
		CheckpointBackend:   config.BackendMemory,
		FlowVariant:         "direct",
		ConfidenceThreshold: 0.8,
		MaxClassifyAttempts: 2,
		MaxInputSize:        4096,
	}

	bot, err := chatdemo.New(ctx,
		chatdemo.WithConfig(cfg),
		chatdemo.WithRepository(memory.NewRepository()),
		chatdemo.WithTextService(testutils.NewTextService()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer bot.Close()

	reply, err := bot.Handle(ctx, "5215550001", domain.TextInput("hola"))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(strings.Contains(reply, "¿Cuál es tu nombre?"))

	cp, err := bot.Sessions().Load(ctx, "5215550001")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(cp.PendingNode)

	// Output:
	// true
	// register_user
}

// ExampleRunner drives a bot from a script instead of a terminal.
func ExampleRunner() {
	var out strings.Builder
	r := &chatdemo.Runner{
		Input:    strings.NewReader("hola\nexit\n"),
		Output:   &out,
		Headless: true,
	}
	echo := handlerFunc(func(_ context.Context, _ string, in domain.Input) (string, error) {
		return "eco: " + in.Text, nil
	})

	if err := r.Run(context.Background(), echo, "5215550001"); err != nil {
		log.Fatal(err)
	}
	fmt.Print(out.String())

	// Output:
	// eco: hola
}

type handlerFunc func(context.Context, string, domain.Input) (string, error)

func (f handlerFunc) Handle(ctx context.Context, threadID string, in domain.Input) (string, error) {
	return f(ctx, threadID, in)
}
