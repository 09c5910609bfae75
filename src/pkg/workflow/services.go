package workflow

import (
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/config"
	"ledgerlens/src/pkg/llm"
	"ledgerlens/src/pkg/notify"
	"ledgerlens/src/pkg/ocrnorm"
	"ledgerlens/src/pkg/prompt"
	"ledgerlens/src/pkg/ratelimit"
	"ledgerlens/src/pkg/repository"
	"ledgerlens/src/pkg/storecfg"
)

/*
Services aggregates every shared dependency the engine drives. The OCR
providers, extractors and registries are safe for concurrent use; everything
mutable inside them carries its own lock. Repository, Artifacts and the
review notification are optional — a nil field disables that side effect,
which is how unit tests run the ladder in isolation.
*/
type Services struct {
	OcrPrimary ocrnorm.Provider
	OcrBackup  ocrnorm.Provider

	PrimaryExtractor  llm.Extractor
	FallbackExtractor llm.Extractor
	PrimaryModel      string
	FallbackModel     string

	// Limiters is keyed by extractor provider tag.
	Limiters map[string]*ratelimit.Limiter

	Stores   *storecfg.Registry
	Snippets *prompt.SnippetRegistry

	Repository *repository.Store
	Artifacts  *ArtifactWriter

	ReviewerEmail string
	EmailProvider notify.Provider
	SenderEmail   string
}

/*
NewServicesFromConfig wires the production service set from the loaded
application config: Textract primary OCR, local tesseract backup, the OpenAI
extractor on both rungs (different models), one limiter per provider, the
store-config and RAG registries, the sqlite repository and the artifact
writer.
*/
func NewServicesFromConfig() (services *Services, e *xerr.Error) {
	ocrPrimary, e := ocrnorm.NewTextractProvider()
	if e != nil {
		return nil, e
	}
	ocrBackup := ocrnorm.NewTesseractProvider("")

	stores, e := storecfg.NewRegistry(config.Cfg.StoreConfigDir)
	if e != nil {
		return nil, e
	}
	snippets, e := prompt.NewSnippetRegistry(config.Cfg.RagSnippetPath)
	if e != nil {
		return nil, e
	}
	store, e := repository.NewStore(config.Cfg.DatabasePath)
	if e != nil {
		return nil, e
	}

	extractor := llm.NewOpenAIExtractor()
	limiter := ratelimit.NewLimiter(extractor.Provider(), config.Cfg.LlmMaxRequests, config.Cfg.LlmWindowSecond)

	return &Services{
		OcrPrimary:        ocrPrimary,
		OcrBackup:         ocrBackup,
		PrimaryExtractor:  extractor,
		FallbackExtractor: extractor,
		PrimaryModel:      config.Cfg.PrimaryLlmModel,
		FallbackModel:     config.Cfg.FallbackLlmModel,
		Limiters:          map[string]*ratelimit.Limiter{extractor.Provider(): limiter},
		Stores:            stores,
		Snippets:          snippets,
		Repository:        store,
		Artifacts:         NewArtifactWriter(config.Cfg.OutputDir),
		ReviewerEmail:     config.Cfg.ReviewerEmail,
		EmailProvider:     notify.Provider(config.Cfg.EmailProvider),
		SenderEmail:       config.Cfg.SenderEmail,
	}, nil
}

// allow consults the limiter for the extractor's provider; a provider
// without a limiter is unmetered.
func (s *Services) allow(extractor llm.Extractor, userID string) bool {
	limiter, metered := s.Limiters[extractor.Provider()]
	if !metered {
		return true
	}
	allowed, _, _ := limiter.Check(userID)
	return allowed
}
