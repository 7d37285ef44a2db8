package domain

// Ingredient is a single ingredient with its quantity.
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// Step is a single cooking step in temporal order.
type Step struct {
	StepNumber      int      `json:"step_number"`
	Description     string   `json:"description"`
	DurationMinutes int      `json:"duration_minutes"`
	Temperature     string   `json:"temperature,omitempty"`
	Tips            []string `json:"tips,omitempty"`
}

// Recipe is the structured recipe extracted from video frames.
type Recipe struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Ingredients  []Ingredient `json:"ingredients"`
	Steps        []Step       `json:"steps"`
	Servings     int          `json:"servings"`
	PrepTime     int          `json:"prep_time"`
	CookTime     int          `json:"cook_time"`
	Tags         []string     `json:"tags"`
	Completeness string       `json:"completeness,omitempty"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
}

// Usage records token consumption for a single model call.
type Usage struct {
	Provider     string `json:"provider"`
	PromptTokens int    `json:"prompt_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
}

// AnalysisResult pairs a recipe with the usage metadata of the call
// that produced it. Immutable once returned.
type AnalysisResult struct {
	Recipe *Recipe
	Usage  Usage
}
