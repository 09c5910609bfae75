package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"ledgerlens/src/pkg/ocrnorm"
	"ledgerlens/src/pkg/parsers"
)

// DefaultRawTextBudget bounds how much raw OCR text goes into the user
// message; beyond it the text is truncated with an explicit marker so the
// model knows it saw a prefix.
const DefaultRawTextBudget = 12000

// RagMetadata records which snippets were merged into a prompt, for run
// records and debug bundles.
type RagMetadata struct {
	SnippetTags []string `json:"snippet_tags,omitempty"`
	Location    string   `json:"location,omitempty"`
}

/*
Request carries everything the formatter composes from. SecondOcrText is
set on the fallback rung only; the retry prompt shows the model both OCR
readings side by side along with the result that failed the sum check.
*/
type Request struct {
	RawText       string
	SecondOcrText string
	TrustedHints  map[string]ocrnorm.EntityValue
	InitialParse  *parsers.ParsedReceipt
	FailedResult  *parsers.ParsedReceipt
	Snippets      []Snippet
	Location      string
	RawTextBudget int
}

const systemContract = `You are a receipt-understanding engine. You receive the OCR text of one
retail receipt, optional trusted hints, and optionally a rule-based parser's
candidate result. Reconstruct the receipt faithfully:

- extract every purchased item with its line total; include quantity, unit
  and unit price when the receipt prints them;
- keep discounts attached to their items (a discounted item keeps its
  pre-discount price as unit_price and sets on_sale);
- extract merchant name, address, purchase date and time, membership id,
  subtotal, taxes, fees, total, payment method and card last4 when present;
- bottle deposits and environmental fees are items, never taxes;
- never invent items or amounts that the text does not support;
- the arithmetic must close: items sum to the subtotal (when printed) and
  subtotal plus fees plus tax equals the total.

Respond with a single JSON object matching the provided schema and nothing
else.`

/*
Format composes the system and user messages for a receipt-extraction call.

The system message is the fixed parsing contract plus any selected RAG
snippets. The user message stacks raw OCR text (truncated to budget),
trusted hints as JSON, the parser's candidate under an "Initial Parse
Result" heading, and — on the fallback rung — the second OCR reading and
the failed result.
*/
func Format(request Request) (systemMessage string, userMessage string, meta RagMetadata) {
	budget := request.RawTextBudget
	if budget <= 0 {
		budget = DefaultRawTextBudget
	}

	var system strings.Builder
	system.WriteString(systemContract)
	for _, snippet := range request.Snippets {
		system.WriteString("\n\n")
		system.WriteString(snippet.Text)
		meta.SnippetTags = append(meta.SnippetTags, snippet.Tag)
	}
	meta.Location = request.Location

	var user strings.Builder
	user.WriteString("=== OCR TEXT START ===\n")
	user.WriteString(truncateToBudget(request.RawText, budget))
	user.WriteString("\n=== OCR TEXT END ===\n")

	if request.SecondOcrText != "" {
		user.WriteString("\n=== SECOND OCR TEXT START ===\n")
		user.WriteString(truncateToBudget(request.SecondOcrText, budget))
		user.WriteString("\n=== SECOND OCR TEXT END ===\n")
	}

	if len(request.TrustedHints) > 0 {
		user.WriteString("\nTrusted hints (high-confidence OCR entities):\n")
		writeJSONBlock(&user, request.TrustedHints)
	}

	if request.InitialParse != nil {
		user.WriteString("\nInitial Parse Result:\n")
		writeJSONBlock(&user, request.InitialParse)
	}

	if request.FailedResult != nil {
		user.WriteString("\nPrevious attempt (failed the arithmetic check, do not repeat its mistakes):\n")
		writeJSONBlock(&user, request.FailedResult)
	}

	tl.Log(
		tl.Info, palette.Blue, "%s prompt: '%s' system chars, '%s' user chars, '%s' snippets",
		"Composed", fmt.Sprintf("%d", system.Len()), fmt.Sprintf("%d", user.Len()),
		fmt.Sprintf("%d", len(request.Snippets)),
	)
	return system.String(), user.String(), meta
}

func truncateToBudget(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	return text[:budget] + "\n[... truncated ...]"
}

func writeJSONBlock(builder *strings.Builder, value any) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		builder.WriteString("(unavailable)\n")
		return
	}
	builder.Write(encoded)
	builder.WriteString("\n")
}
