// Package parser turns raw vision-model output into recipe objects.
// Models wrap their JSON in markdown fences, refuse outright, or hand
// back prose, so full-recipe parsing is deliberately forgiving: text
// that is not JSON at all becomes a fixed placeholder recipe, while
// JSON that decodes but violates the recipe shape is an error.
package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aizhuhelper/recipevision/internal/domain"
)

// fencePattern strips one leading/trailing markdown code fence with an
// optional language tag.
var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// Parser decodes and validates model responses.
type Parser struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "parser")}
}

// stripFence removes a surrounding markdown code block, if any.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// rawRecipe mirrors the recipe shape with deferred list fields so a
// non-list value can be told apart from a decode failure.
type rawRecipe struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Ingredients  json.RawMessage `json:"ingredients"`
	Steps        json.RawMessage `json:"steps"`
	Servings     int             `json:"servings"`
	PrepTime     int             `json:"prep_time"`
	CookTime     int             `json:"cook_time"`
	Tags         []string        `json:"tags"`
	Completeness string          `json:"completeness"`
}

// ParseRecipe decodes a model response into a recipe. Text that is not
// JSON (a refusal, prose) yields the creative fallback recipe with no
// error, so the caller always has something to serve. JSON that decodes
// but fails shape validation is returned as an error.
func (p *Parser) ParseRecipe(raw string) (*domain.Recipe, error) {
	text := stripFence(raw)

	var rr rawRecipe
	if err := json.Unmarshal([]byte(text), &rr); err != nil {
		p.logger.Warn("model response is not JSON, using fallback recipe",
			"error", err, "head", head(raw, 120))
		return FallbackRecipe(), nil
	}

	recipe := &domain.Recipe{
		Name:         rr.Name,
		Description:  rr.Description,
		Servings:     rr.Servings,
		PrepTime:     rr.PrepTime,
		CookTime:     rr.CookTime,
		Tags:         rr.Tags,
		Completeness: rr.Completeness,
	}

	if len(rr.Ingredients) > 0 && string(rr.Ingredients) != "null" {
		if err := json.Unmarshal(rr.Ingredients, &recipe.Ingredients); err != nil {
			return nil, &domain.ValidationError{Field: "ingredients", Reason: "must be a list"}
		}
	}
	if len(rr.Steps) > 0 && string(rr.Steps) != "null" {
		if err := json.Unmarshal(rr.Steps, &recipe.Steps); err != nil {
			return nil, &domain.ValidationError{Field: "steps", Reason: "must be a list"}
		}
	}

	if err := p.Validate(recipe); err != nil {
		return nil, err
	}
	return recipe, nil
}

// Validate checks required fields. An empty-but-present list is not an
// error; the recipe is downgraded to incomplete instead.
func (p *Parser) Validate(recipe *domain.Recipe) error {
	if recipe.Name == "" {
		return &domain.ValidationError{Field: "name", Reason: "missing"}
	}
	if recipe.Ingredients == nil {
		return &domain.ValidationError{Field: "ingredients", Reason: "missing"}
	}
	if recipe.Steps == nil {
		return &domain.ValidationError{Field: "steps", Reason: "missing"}
	}

	if len(recipe.Ingredients) == 0 || len(recipe.Steps) == 0 {
		p.logger.Warn("recipe has empty ingredients or steps, marking incomplete",
			"name", recipe.Name)
		recipe.Completeness = "incomplete"
	}
	return nil
}

// ParseName extracts just the recipe name. Unlike ParseRecipe this
// errors on any malformed input; there is no sensible fallback for a
// single field.
func (p *Parser) ParseName(raw string) (string, error) {
	text := stripFence(raw)

	var partial struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if partial.Name == "" {
		return "", fmt.Errorf("%w: response carries no name", domain.ErrMalformedResponse)
	}
	return partial.Name, nil
}

// FallbackRecipe is the deterministic stand-in served when the model
// refuses structured output. Deliberately whimsical so readers
// recognize it as a placeholder rather than a real extraction.
func FallbackRecipe() *domain.Recipe {
	return &domain.Recipe{
		Name:        "神秘料理",
		Description: "AI 暫時無法解析這道料理，以下是一份充滿想像力的占位食譜。",
		Ingredients: []domain.Ingredient{
			{Name: "好奇心", Amount: "1", Unit: "顆"},
			{Name: "神秘食材", Amount: "適量", Unit: ""},
			{Name: "耐心", Amount: "少許", Unit: ""},
		},
		Steps: []domain.Step{
			{StepNumber: 1, Description: "重新上傳影片或稍後再試一次。"},
			{StepNumber: 2, Description: "如果問題持續，換一個拍攝角度更清楚的影片。"},
		},
		Servings:     1,
		Tags:         []string{"簡易"},
		Completeness: "incomplete",
	}
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
