package textai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

// Classify ranks catalog codes for a description.
func (c *Client) Classify(ctx context.Context, description, catalog string) (ports.Classification, error) {
	prompt, err := render("classify", map[string]string{"Catalog": catalog, "Description": description})
	if err != nil {
		return ports.Classification{}, err
	}
	content, err := c.complete(ctx, "classify", prompt, true)
	if err != nil {
		return ports.Classification{}, fmt.Errorf("classify: %w", err)
	}

	var out ports.Classification
	if err := decodeJSON(content, &out); err != nil {
		return ports.Classification{}, fmt.Errorf("classify: %w", err)
	}
	kept := out.Candidates[:0]
	for _, cand := range out.Candidates {
		cand.Code = strings.ToUpper(strings.TrimSpace(cand.Code))
		if cand.Code == "" {
			continue
		}
		cand.Confidence = clamp(cand.Confidence)
		kept = append(kept, cand)
	}
	out.Candidates = kept
	return out, nil
}

// SafetyCheck decides whether a description is a legitimate report.
func (c *Client) SafetyCheck(ctx context.Context, description string, media []string) (ports.Safety, error) {
	prompt, err := render("safety", map[string]any{"Description": description, "Media": media})
	if err != nil {
		return ports.Safety{}, err
	}
	content, err := c.complete(ctx, "safety", prompt, true)
	if err != nil {
		return ports.Safety{}, fmt.Errorf("safety check: %w", err)
	}
	var out ports.Safety
	if err := decodeJSON(content, &out); err != nil {
		return ports.Safety{}, fmt.Errorf("safety check: %w", err)
	}
	return out, nil
}

// ExtractProfile pulls the actor's name and work details out of free text.
// An unparseable answer falls back to the raw text as the name.
func (c *Client) ExtractProfile(ctx context.Context, raw string) (ports.ProfileFields, error) {
	prompt, err := render("profile", map[string]string{"Raw": raw})
	if err != nil {
		return ports.ProfileFields{}, err
	}
	content, err := c.complete(ctx, "profile", prompt, true)
	if err != nil {
		return ports.ProfileFields{}, fmt.Errorf("extract profile: %w", err)
	}
	var out ports.ProfileFields
	if err := decodeJSON(content, &out); err != nil {
		c.logger.WarnContext(ctx, "profile answer not JSON, using raw text", "err", err)
		return ports.ProfileFields{Name: strings.TrimSpace(raw)}, nil
	}
	return out, nil
}

// InterpretSelection maps a free answer to a candidate index.
func (c *Client) InterpretSelection(ctx context.Context, answer string, candidates []domain.Candidate) (int, error) {
	prompt, err := render("selection", map[string]any{"Answer": answer, "Candidates": candidates})
	if err != nil {
		return -1, err
	}
	content, err := c.complete(ctx, "selection", prompt, false)
	if err != nil {
		return -1, fmt.Errorf("interpret selection: %w", err)
	}
	return parseChoice(content, len(candidates)), nil
}

func parseChoice(content string, n int) int {
	choice := strings.ToLower(strings.Trim(strings.TrimSpace(content), ".'\""))
	if idx, err := strconv.Atoi(choice); err == nil {
		if idx >= 1 && idx <= n {
			return idx
		}
		return -1
	}
	if strings.Contains(choice, "ninguno") {
		return 0
	}
	return -1
}

// decodeJSON accepts bare JSON or JSON wrapped in a markdown fence.
func decodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return nil
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
