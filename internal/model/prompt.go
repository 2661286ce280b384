package model

const (
	PromptScopeUser = "user"
	PromptScopeTeam = "team"

	PromptModelGeneration = "generation"
	PromptModelCompliance = "compliance"
)

type Prompt struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
	ModelType   string `json:"model_type"`
	Scope       string `json:"scope,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	// Library marks built-in prompts from defaultPrompts.
	Library bool `json:"library"`
}

type PromptList struct {
	DefaultPrompts []Prompt `json:"defaultPrompts"`
	UserPrompts    []Prompt `json:"userPrompts"`
}

// All returns library prompts first, flagged, followed by user prompts.
func (l PromptList) All() []Prompt {
	out := make([]Prompt, 0, len(l.DefaultPrompts)+len(l.UserPrompts))
	for _, p := range l.DefaultPrompts {
		p.Library = true
		out = append(out, p)
	}
	for _, p := range l.UserPrompts {
		p.Library = false
		out = append(out, p)
	}
	return out
}

type PromptInput struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=1000"`
	Content     string `json:"content" validate:"required,min=10"`
	ModelType   string `json:"model_type" validate:"required,oneof=generation compliance"`
	Scope       string `json:"scope" validate:"required,oneof=user team"`
	Library     bool   `json:"-"`
}
