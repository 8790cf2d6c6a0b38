package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	chatdemo "github.com/JonathanLopez0327/chat-demo"
	"github.com/JonathanLopez0327/chat-demo/internal/config"
	"github.com/JonathanLopez0327/chat-demo/internal/intake"
	"github.com/JonathanLopez0327/chat-demo/internal/presentation/graph"
	"github.com/JonathanLopez0327/chat-demo/internal/validator"
	"github.com/JonathanLopez0327/chat-demo/pkg/adapters/memory"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/dsl"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

var errOffline = errors.New("text service unavailable offline")

// offlineText satisfies ports.TextService for commands that compile the
// graph without running it.
type offlineText struct{}

func (offlineText) Classify(context.Context, string, string) (ports.Classification, error) {
	return ports.Classification{}, errOffline
}

func (offlineText) SafetyCheck(context.Context, string, []string) (ports.Safety, error) {
	return ports.Safety{}, errOffline
}

func (offlineText) ExtractProfile(context.Context, string) (ports.ProfileFields, error) {
	return ports.ProfileFields{}, errOffline
}

func (offlineText) InterpretSelection(context.Context, string, []domain.Candidate) (int, error) {
	return 0, errOffline
}

// StaticGraph compiles the configured flow and catalog without any external
// service.
func StaticGraph(cfg *config.Config) (*dsl.Graph, error) {
	catalog, err := catalogFor(cfg)
	if err != nil {
		return nil, err
	}
	return chatdemo.BuildGraph(cfg, intake.Deps{
		Text:    offlineText{},
		Repo:    memory.NewRepository(),
		Catalog: catalog,
	})
}

func catalogFor(cfg *config.Config) (*intake.Catalog, error) {
	if cfg.CatalogPath == "" {
		return intake.DefaultCatalog()
	}
	return intake.LoadCatalog(cfg.CatalogPath)
}

// RunGraph prints the flow as a Mermaid diagram.
func RunGraph(opts Options, out io.Writer) error {
	cfg, err := opts.Load()
	if err != nil {
		return err
	}
	g, err := StaticGraph(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(out, graph.GenerateMermaid(g, nil))
	return nil
}

// RunValidate checks the configuration, the catalog and both flow variants.
func RunValidate(opts Options, out io.Writer) error {
	cfg, err := opts.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	catalog, err := catalogFor(cfg)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	fmt.Fprintf(out, "catalog: %d templates\n", catalog.Len())

	for _, v := range []intake.Variant{intake.VariantDirect, intake.VariantGuided} {
		variantCfg := *cfg
		variantCfg.FlowVariant = string(v)
		g, err := StaticGraph(&variantCfg)
		if err != nil {
			return fmt.Errorf("%s flow: %w", v, err)
		}
		if err := validator.ValidateGraph(g); err != nil {
			return fmt.Errorf("%s flow: %w", v, err)
		}
		fmt.Fprintf(out, "%s flow: %d nodes\n", v, len(g.Nodes()))
	}
	return nil
}
