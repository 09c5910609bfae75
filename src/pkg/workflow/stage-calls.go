package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/llm"
	"ledgerlens/src/pkg/ocrnorm"
	"ledgerlens/src/pkg/openai"
	"ledgerlens/src/pkg/parsers"
	"ledgerlens/src/pkg/storecfg"
)

// DefaultStageTimeoutSecond bounds an external call when the chain config
// does not override it.
const DefaultStageTimeoutSecond = 60

func stageTimeout(cfg *storecfg.StoreConfig) time.Duration {
	seconds := 0
	if cfg != nil {
		seconds = cfg.Pipeline.StageTimeoutSecond
	}
	if seconds <= 0 {
		seconds = DefaultStageTimeoutSecond
	}
	return time.Duration(seconds) * time.Second
}

type stageResult[T any] struct {
	value T
	e     *xerr.Error
}

/*
await runs one external call with a deadline. A timed-out or cancelled call
is abandoned, not interrupted — the provider client keeps its own transport
timeouts — and reported as a stage failure so the ladder can take the next
rung.
*/
func await[T any](ctx context.Context, timeout time.Duration, stage string, call func() (T, *xerr.Error)) (value T, e *xerr.Error) {
	done := make(chan stageResult[T], 1)
	go func() {
		result, callErr := call()
		done <- stageResult[T]{value: result, e: callErr}
	}()

	select {
	case result := <-done:
		return result.value, result.e
	case <-time.After(timeout):
		return value, xerr.NewError(fmt.Errorf("timed out after %s", timeout), "stage deadline exceeded", stage)
	case <-ctx.Done():
		return value, xerr.NewError(ctx.Err(), "stage cancelled", stage)
	}
}

func callOcr(ctx context.Context, provider ocrnorm.Provider, imageBytes []byte, mimeType string, timeout time.Duration) (*ocrnorm.NormalizedOcr, *xerr.Error) {
	return await(ctx, timeout, "ocr:"+provider.Tag(), func() (*ocrnorm.NormalizedOcr, *xerr.Error) {
		return provider.Parse(imageBytes, mimeType)
	})
}

type extraction struct {
	candidate *parsers.ParsedReceipt
	metadata  *openai.LLMRunMetadata
}

func callExtract(ctx context.Context, extractor llm.Extractor, systemMessage string, userMessage string, model string, timeout time.Duration) (extraction, *xerr.Error) {
	return await(ctx, timeout, "llm:"+model, func() (extraction, *xerr.Error) {
		candidate, metadata, e := extractor.Extract(systemMessage, userMessage, model)
		return extraction{candidate: candidate, metadata: metadata}, e
	})
}

// regionCodes are the province/state tokens a receipt address may carry;
// they gate location-scoped RAG snippets (bottle deposits are provincial).
var regionCodes = map[string]bool{
	"AB": true, "BC": true, "MB": true, "NB": true, "NL": true, "NS": true,
	"NT": true, "NU": true, "ON": true, "PE": true, "QC": true, "SK": true,
	"YT": true,
	"AZ": true, "CA": true, "CO": true, "FL": true, "IL": true, "MA": true,
	"NJ": true, "NV": true, "NY": true, "OR": true, "TX": true, "WA": true,
}

// regionFromAddress extracts the first province/state code from an address
// line, or "" when none is recognizable.
func regionFromAddress(address string) string {
	for _, token := range strings.FieldsFunc(strings.ToUpper(address), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.'
	}) {
		if regionCodes[token] {
			return token
		}
	}
	return ""
}
