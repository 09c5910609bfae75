package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/openai"
	"ledgerlens/src/pkg/parsers"
	"ledgerlens/src/pkg/util"
)

// Extractor is the uniform LLM capability set the workflow drives. The
// OpenAI implementation below is the real one; workflow tests use fakes.
type Extractor interface {
	// Extract sends the composed messages and returns the decoded candidate.
	// Invalid JSON in the response is an *xerr.Error; the orchestrator counts
	// it as an LLM failure unless both rungs produce it.
	Extract(systemMessage string, userMessage string, model string) (*parsers.ParsedReceipt, *openai.LLMRunMetadata, *xerr.Error)
	// Provider names the backing provider for rate limiting and run records.
	Provider() string
}

// OpenAIExtractor drives the Responses API with a strict receipt schema.
type OpenAIExtractor struct {
	ReasoningEffort openai.Effort
	MaxOutputTokens int
}

func NewOpenAIExtractor() *OpenAIExtractor {
	return &OpenAIExtractor{
		ReasoningEffort: openai.EffortLow,
		MaxOutputTokens: 8192,
	}
}

func (x *OpenAIExtractor) Provider() string {
	return "openai"
}

/*
Extract sends the receipt-extraction prompt and decodes the structured
candidate. The schema is strict, but the decode still tolerates Markdown
code fences — some models wrap JSON in them despite the format contract.
*/
func (x *OpenAIExtractor) Extract(systemMessage string, userMessage string, model string) (parsed *parsers.ParsedReceipt, meta *openai.LLMRunMetadata, e *xerr.Error) {
	tl.Log(
		tl.Notice, palette.BlueBold, "%s with %s model '%s'",
		"Extracting receipt", "OpenAI", model,
	)

	schema := openai.StrictObj(receiptSchemaProperties())
	textOptions := openai.TextAsJSONSchema("parsed-receipt", schema, true)

	inputParameters := openai.InputParameters{
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		Model:        model,
		Reasoning:    &openai.Reasoning{Effort: util.Ptr(x.ReasoningEffort)},
		Instructions: systemMessage,
		Input: []openai.InputItem{
			{Role: openai.RoleUser, Content: userMessage},
		},
		Temperature:     util.Ptr(1.0), // GPT-5 family accepts only 1.0
		MaxOutputTokens: util.Ptr(x.MaxOutputTokens),
		Text:            &textOptions,
		ToolChoice:      "none",
	}

	responseText, runMetadata, e := openai.SendPromptReturnResponse(inputParameters)
	if e != nil {
		return nil, &runMetadata, e
	}

	parsed, e = DecodeReceiptJSON(responseText)
	if e != nil {
		return nil, &runMetadata, e
	}

	tl.Log(
		tl.Notice1, palette.GreenBold, "%s with %s model '%s': '%s' items",
		"Extracted receipt", "OpenAI", model, fmt.Sprintf("%d", len(parsed.Items)),
	)
	return parsed, &runMetadata, nil
}

/*
DecodeReceiptJSON unmarshals a model response into a candidate, stripping a
Markdown code fence when the model wrapped its output in one.
*/
func DecodeReceiptJSON(responseText string) (parsed *parsers.ParsedReceipt, e *xerr.Error) {
	cleaned := stripCodeFence(responseText)

	parsed = &parsers.ParsedReceipt{}
	if err := json.Unmarshal([]byte(cleaned), parsed); err != nil {
		return nil, xerr.NewError(err, "decode receipt JSON from LLM response", truncateForLog(cleaned))
	}

	// A candidate from the model is successful iff it carries items; the
	// model has no error log of its own.
	parsed.Success = len(parsed.Items) > 0
	if parsed.ErrorLog == nil {
		parsed.ErrorLog = []string{}
	}
	parsed.Validation.ItemCount = len(parsed.Items)
	parsed.Validation.HasSubtotal = parsed.Subtotal != nil
	parsed.Validation.HasTotal = parsed.Total != nil
	return parsed, nil
}

// IsInvalidJSON reports whether an extraction error came from undecodable
// model output rather than the provider or transport. The orchestrator
// counts invalid JSON as a plain LLM failure unless both rungs produce it.
func IsInvalidJSON(e *xerr.Error) bool {
	return e != nil && strings.Contains(fmt.Sprintf("%v", e), "decode receipt JSON")
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncateForLog(text string) string {
	if len(text) <= 500 {
		return text
	}
	return text[:500] + "..."
}
