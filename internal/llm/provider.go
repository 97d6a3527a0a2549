package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ppiankov/sidefx/internal/model"
	"github.com/ppiankov/sidefx/internal/table"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Extract asks the model for the adverse effects described in a label section
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ExtractRequest contains the input for adverse effect extraction
type ExtractRequest struct {
	// DrugName is used only for context in the prompt
	DrugName string

	// Content is the adverse reactions HTML table or free text
	Content string

	// Table is an optional pre-parsed form of Content sent as a hint
	Table *table.Table

	// Prompt overrides the default instructions when set
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ExtractResponse contains the parsed model output
type ExtractResponse struct {
	// Effects are validated and deduplicated
	Effects []model.Effect

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int

	// Raw is the unparsed model output
	Raw string
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Model:     "",
		Timeout:   60,
		MaxTokens: 500,
	}
}

// SystemPrompt is sent as the system message by every provider
const SystemPrompt = "You are a helpful assistant that extracts the adverse effects from drug labels of FDA approved drugs."

// Instructions describe the task and output format to the model
const Instructions = `The drug labels are downloaded from https://open.fda.gov/apis/drug/label/download/.
The drug labels are in JSON format and contain a field called 'adverse_reactions_table'.
The 'adverse_reactions_table' field contains an HTML table with the adverse effects.

Your task is to extract the adverse effects from the HTML table and return them in a structured format.
The structured format should be a JSON object with (key, value) pairs, where the key
is the name of the adverse effect and the value is the percentage of patients that experienced that adverse effect.
The percentage should be a float between 0 and 100.

The adverse effects may have different names in different drug labels, so you should make sure to
normalize the names of the adverse effects (use MedDRA preferred terms where possible).
The percentage may be in different formats, such as '29 %', '<1 %', or '0.5 %'.
Convert them to a float between 0 and 100. For a bound such as '<1 %' report the bound itself (1).
If the table reports several treatment arms, use the drug arm, not placebo.

If you receive free text instead of a table, extract the adverse effects mentioned with a percentage.

Make sure to ONLY return the structured data and nothing else.
The structured data should be in a JSON format.`

// BuildPrompt constructs the user message for an extraction request
func BuildPrompt(req ExtractRequest) string {
	if req.Prompt != "" {
		return req.Prompt + "\n\n" + req.Content
	}

	var b strings.Builder
	b.WriteString(Instructions)
	b.WriteString("\n\n")

	if req.DrugName != "" {
		b.WriteString("Drug: ")
		b.WriteString(req.DrugName)
		b.WriteString("\n\n")
	}

	b.WriteString("Adverse reactions content:\n")
	b.WriteString(req.Content)

	if req.Table != nil && len(req.Table.Rows) > 0 {
		if hint, err := json.Marshal(req.Table); err == nil {
			b.WriteString("\n\nThe same table pre-parsed as JSON (numbers already converted):\n")
			b.Write(hint)
		}
	}

	return b.String()
}

// resolve fills model and token limits from the request, then config, then defaults
func resolve(req ExtractRequest, cfg Config, defaultModel string) (string, int) {
	model := req.Model
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		model = defaultModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 500
	}

	return model, maxTokens
}
