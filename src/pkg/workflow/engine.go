package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/llm"
	"ledgerlens/src/pkg/notify"
	"ledgerlens/src/pkg/ocrnorm"
	"ledgerlens/src/pkg/parsers"
	"ledgerlens/src/pkg/prompt"
	"ledgerlens/src/pkg/repository"
	"ledgerlens/src/pkg/storecfg"
	"ledgerlens/src/pkg/validate"
)

// Status is the user-visible terminal state of one receipt run.
type Status string

const (
	StatusPassed               Status = "passed"
	StatusPassedWithResolution Status = "passed_with_resolution"
	StatusPassedAfterFallback  Status = "passed_after_fallback"
	StatusPassedAfterBackup    Status = "passed_after_backup"
	StatusNeedsManualReview    Status = "needs_manual_review"
	StatusError                Status = "error"
)

// Request is one receipt to process. Exactly one of ImageBytes/ImagePath
// must be set; Mime defaults to image/jpeg.
type Request struct {
	UserID     string
	ImagePath  string
	ImageBytes []byte
	Mime       string
}

// Outcome is the terminal result of a run: the final candidate (possibly
// partial), the validation report behind the verdict, and the stage timeline.
type Outcome struct {
	ReceiptID string                     `json:"receipt_id"`
	Status    Status                     `json:"status"`
	Success   bool                       `json:"success"`
	Reason    string                     `json:"reason,omitempty"`
	Candidate *parsers.ParsedReceipt     `json:"candidate,omitempty"`
	Report    *validate.ValidationReport `json:"report,omitempty"`
	Timeline  *Timeline                  `json:"timeline,omitempty"`
}

// snippetTags are the RAG fragments every extraction prompt may draw on;
// location-scoped snippets additionally require a matching region code.
var snippetTags = []string{"deposit_and_fee", "package_promotion"}

// Engine drives the fallback ladder over the shared services. One Engine
// serves all workers; per-receipt state lives in the run.
type Engine struct {
	services *Services
}

func NewEngine(services *Services) *Engine {
	return &Engine{services: services}
}

// run is the mutable state of one in-flight receipt.
type run struct {
	services  *Services
	request   Request
	receiptID string

	imageBytes []byte
	mimeType   string

	timeline *Timeline
	payloads map[string]any // debug bundle payloads keyed by stage

	cfg           *storecfg.StoreConfig
	unified       ocrnorm.UnifiedInfo
	initialParse  *parsers.ParsedReceipt
	usedBackupOcr bool
	secondOcr     *ocrnorm.NormalizedOcr
}

/*
Process runs one receipt through the ladder:

 1. primary OCR (backup OCR stands in when it fails)
 2. store-config resolution and the rule-based parse
 3. primary LLM extraction and the sum check
 4. on a failed check: second OCR, fallback LLM with both readings and the
    failed result, second sum check
 5. still failing: terminal needs_manual_review with a debug bundle

Cancellation is honored between stages; an in-flight external call is
abandoned on timeout, never interrupted.
*/
func (engine *Engine) Process(ctx context.Context, request Request) (outcome Outcome) {
	r := &run{
		services: engine.services,
		request:  request,
		mimeType: request.Mime,
		timeline: NewTimeline(),
		payloads: make(map[string]any),
	}
	if r.mimeType == "" {
		r.mimeType = "image/jpeg"
	}

	tl.Log(
		tl.Notice, palette.BlueBold, "%s receipt for user '%s' ('%s')",
		"Processing", request.UserID, describeInput(request),
	)

	outcome = r.execute(ctx)
	outcome.Timeline = r.timeline

	colorizer := palette.GreenBold
	if !outcome.Success {
		colorizer = palette.PurpleBold
	}
	tl.Log(
		tl.Notice1, colorizer, "%s receipt '%s' with status '%s' in '%s' ms",
		"Processed", outcome.ReceiptID, outcome.Status, fmt.Sprintf("%d", r.timeline.TotalMs()),
	)
	return outcome
}

func (r *run) execute(ctx context.Context) Outcome {
	if e := r.loadImage(); e != nil {
		return r.finishError(KindOcrFailure, "input image not readable", nil, nil)
	}
	r.createReceipt()

	// Rung 1 OCR: primary provider, backup standing in on failure.
	normalized, failure := r.primaryOcr(ctx)
	if failure != nil {
		return r.finishError(failure.Kind, failure.Error(), nil, nil)
	}
	r.unified = normalized.ExtractUnifiedInfo()
	r.resolveStoreConfig()
	r.runInitialParse(normalized)

	if ctx.Err() != nil {
		return r.finishError(KindOcrFailure, "cancelled between stages", nil, nil)
	}

	// Rung 1 LLM + sum check.
	candidate, rung1Failure := r.extractionRung(ctx, repository.StageLlmPrimary, "", nil)
	var report *validate.ValidationReport
	if rung1Failure == nil {
		report = r.checkCandidate(candidate, repository.StageLlmPrimary)
		switch report.Verdict {
		case validate.VerdictPass:
			return r.finishPass(candidate, report, repository.StageLlmPrimary)
		case validate.VerdictNeedsReview:
			return r.finishNeedsReview(candidate, report, "sum check requires manual review")
		}
		rung1Failure = newFailure(KindMathFailure, repository.StageLlmPrimary, nil)
	}
	if rung1Failure.Kind == KindRateLimited {
		return r.finishError(KindRateLimited, "all providers over budget", candidate, report)
	}

	if ctx.Err() != nil {
		return r.finishError(KindOcrFailure, "cancelled between stages", candidate, report)
	}

	// Rung 2: second OCR reading plus the failed result, fallback model.
	secondText := r.secondOcrText(ctx)
	failedCandidate := candidate
	if report != nil {
		attachReport(failedCandidate, report)
	}

	candidate2, rung2Failure := r.extractionRung(ctx, repository.StageLlmFallback, secondText, failedCandidate)
	if rung2Failure != nil {
		if rung2Failure.Kind == KindLlmInvalidJson && rung1Failure.Kind == KindLlmInvalidJson {
			return r.finishError(KindLlmInvalidJson, "both models returned undecodable output", failedCandidate, report)
		}
		if failedCandidate != nil {
			return r.finishNeedsReview(failedCandidate, report, rung2Failure.Error())
		}
		return r.finishError(rung2Failure.Kind, rung2Failure.Error(), nil, nil)
	}

	report2 := r.checkCandidate(candidate2, repository.StageLlmFallback)
	if report2.Verdict == validate.VerdictPass {
		return r.finishPass(candidate2, report2, repository.StageLlmFallback)
	}
	return r.finishNeedsReview(candidate2, report2, "sum check failed on both rungs")
}

func (r *run) loadImage() *xerr.Error {
	if len(r.request.ImageBytes) > 0 {
		r.imageBytes = r.request.ImageBytes
		return nil
	}
	fileBytes, readErr := os.ReadFile(r.request.ImagePath)
	if readErr != nil {
		return xerr.NewError(readErr, "read receipt image", r.request.ImagePath)
	}
	r.imageBytes = fileBytes
	return nil
}

func (r *run) createReceipt() {
	hash := sha256.Sum256(r.imageBytes)
	fileHash := hex.EncodeToString(hash[:])

	if r.services.Repository != nil {
		receiptID, e := r.services.Repository.CreateReceipt(r.request.UserID, r.request.ImagePath, fileHash)
		if e == nil {
			r.receiptID = receiptID
			_ = r.services.Repository.UpdateReceiptState(r.receiptID, repository.StageOcr, repository.StatusProcessing)
			return
		}
		tl.Log(tl.Warning, palette.PurpleBold, "%s receipt row: %v", "Could not create", e)
	}
	r.receiptID = uuid.NewString()
}

// primaryOcr produces the primary normalized reading: provider A, with
// provider B standing in when A fails. Both failing is terminal.
func (r *run) primaryOcr(ctx context.Context) (*ocrnorm.NormalizedOcr, *Failure) {
	timeout := stageTimeout(nil)

	r.timeline.Start("ocr_a")
	normalized, e := callOcr(ctx, r.services.OcrPrimary, r.imageBytes, r.mimeType, timeout)
	r.timeline.End("ocr_a")
	if e == nil {
		r.payloads["ocr_a"] = normalized
		return normalized, nil
	}

	tl.Log(tl.Warning, palette.PurpleBold, "%s OCR failed, trying backup: %v", "Primary", e)
	r.recordRun(repository.StageOcr, r.services.OcrPrimary.Tag(), "", "fail", "", "", "", e)

	r.timeline.Start("ocr_b")
	normalized, e = callOcr(ctx, r.services.OcrBackup, r.imageBytes, r.mimeType, timeout)
	r.timeline.End("ocr_b")
	if e != nil {
		r.recordRun(repository.StageOcr, r.services.OcrBackup.Tag(), "", "fail", "", "", "", e)
		return nil, newFailure(KindOcrFailure, "ocr_b", e)
	}

	r.usedBackupOcr = true
	r.secondOcr = normalized // both providers are spent; rung 2 reuses this
	r.payloads["ocr_b"] = normalized
	return normalized, nil
}

func (r *run) resolveStoreConfig() {
	cfg := r.services.Stores.ResolveByMerchant(r.unified.MerchantName)
	if cfg == nil {
		cfg = r.services.Stores.ResolveByMerchant(firstLines(r.unified.RawText, 5))
	}
	if cfg == nil {
		// Unknown merchant: default tolerances, no fee patterns, no rule parse.
		cfg = &storecfg.StoreConfig{ChainID: "generic"}
		tl.Log(tl.Info, palette.Yellow, "%s store chain for merchant '%s', using generic validation", "Could not resolve", r.unified.MerchantName)
	}
	r.cfg = cfg
}

// runInitialParse runs the rule-based layout parser when the chain and the
// block geometry allow it. A parser that finds nothing (or an unknown
// family) only costs the LLM its hint.
func (r *run) runInitialParse(normalized *ocrnorm.NormalizedOcr) {
	if len(normalized.Blocks) == 0 || r.cfg.LayoutFamily == "" {
		return
	}

	r.timeline.Start("parse")
	parsed, e := parsers.Run(normalized.Blocks, r.cfg, r.unified.MerchantName)
	r.timeline.End("parse")
	if e != nil {
		tl.Log(tl.Warning, palette.PurpleBold, "%s rule parser: %v", "Skipping", e)
		return
	}
	if parsed.Success {
		r.initialParse = parsed
	}
}

/*
extractionRung performs one LLM extraction: admission through the rate
limiter (primary model first, fallback model when the primary is over
budget), prompt composition, the call, and the run record. On the fallback
rung the prompt additionally carries the second OCR text and the candidate
that failed the sum check.
*/
func (r *run) extractionRung(ctx context.Context, stage string, secondOcrText string, failedResult *parsers.ParsedReceipt) (*parsers.ParsedReceipt, *Failure) {
	extractor, model, admitted := r.admit(stage)
	if !admitted {
		return nil, newFailure(KindRateLimited, stage, nil)
	}

	location := r.location()
	systemMessage, userMessage, ragMeta := prompt.Format(prompt.Request{
		RawText:       r.unified.RawText,
		SecondOcrText: secondOcrText,
		TrustedHints:  r.unified.TrustedHints,
		InitialParse:  r.initialParse,
		FailedResult:  failedResult,
		Snippets:      r.services.Snippets.Select(snippetTags, location),
		Location:      location,
	})

	r.timeline.Start(stage)
	result, e := callExtract(ctx, extractor, systemMessage, userMessage, model, stageTimeout(r.cfg))
	r.timeline.End(stage)

	if e != nil {
		kind := KindLlmFailure
		if llm.IsInvalidJSON(e) {
			kind = KindLlmInvalidJson
		}
		r.recordRun(stage, extractor.Provider(), model, "fail", "", userMessage, "", e)
		return nil, newFailure(kind, stage, e)
	}

	candidate := result.candidate
	if candidate.MerchantName == "" {
		candidate.MerchantName = r.unified.MerchantName
	}
	if candidate.StoreChainID == "" && r.cfg.ChainID != "generic" {
		candidate.StoreChainID = r.cfg.ChainID
	}
	r.payloads[stage] = candidate
	tl.LogJSON(tl.Verbose, palette.CyanDim, "rag metadata for "+stage, ragMeta)

	outputJSON, _ := json.Marshal(candidate)
	r.recordRun(stage, extractor.Provider(), model, "pass", "", userMessage, string(outputJSON), nil)
	return candidate, nil
}

// admit picks the model for a rung: the rung's own model when its provider
// has budget, the other model otherwise, nothing when both are spent.
func (r *run) admit(stage string) (extractor llm.Extractor, model string, admitted bool) {
	first, firstModel := r.services.PrimaryExtractor, r.services.PrimaryModel
	second, secondModel := r.services.FallbackExtractor, r.services.FallbackModel
	if stage == repository.StageLlmFallback {
		first, firstModel, second, secondModel = second, secondModel, first, firstModel
	}

	if r.services.allow(first, r.request.UserID) {
		return first, firstModel, true
	}
	if r.services.allow(second, r.request.UserID) {
		tl.Log(tl.Info, palette.Purple, "%s to model '%s' after rate limit", "Falling back", secondModel)
		return second, secondModel, true
	}
	return nil, "", false
}

func (r *run) checkCandidate(candidate *parsers.ParsedReceipt, stage string) *validate.ValidationReport {
	r.timeline.Start("validate:" + stage)
	report := validate.CheckSums(candidate, r.unified.RawText, r.cfg)
	r.timeline.End("validate:" + stage)

	if len(candidate.Items) == 0 && candidate.Subtotal == nil && candidate.Total == nil {
		report.Verdict = validate.VerdictNeedsReview
		report.Errors = append(report.Errors, "degenerate candidate: no items and no totals")
	}
	return &report
}

// secondOcrText obtains the fallback OCR reading for rung 2. When the backup
// provider already served as primary there is no fresh reading to add.
func (r *run) secondOcrText(ctx context.Context) string {
	if r.usedBackupOcr {
		return ""
	}
	if r.secondOcr != nil {
		return r.secondOcr.RawText
	}

	r.timeline.Start("ocr_b")
	normalized, e := callOcr(ctx, r.services.OcrBackup, r.imageBytes, r.mimeType, stageTimeout(r.cfg))
	r.timeline.End("ocr_b")
	if e != nil {
		tl.Log(tl.Warning, palette.PurpleBold, "%s OCR failed, fallback prompt carries one reading: %v", "Second", e)
		return ""
	}
	r.secondOcr = normalized
	r.payloads["ocr_b"] = normalized
	return normalized.RawText
}

func (r *run) location() string {
	if r.initialParse != nil && r.initialParse.Address != "" {
		return regionFromAddress(r.initialParse.Address)
	}
	return ""
}

func (r *run) finishPass(candidate *parsers.ParsedReceipt, report *validate.ValidationReport, stage string) Outcome {
	resolvedCount := validate.ResolveConflicts(candidate, r.unified.TrustedHints)
	attachReport(candidate, report)

	status := StatusPassed
	switch {
	case stage == repository.StageLlmFallback:
		status = StatusPassedAfterFallback
	case r.usedBackupOcr:
		status = StatusPassedAfterBackup
	case resolvedCount > 0:
		status = StatusPassedWithResolution
	}

	if failure := r.commit(candidate, report, stage, repository.StatusSuccess); failure != nil {
		return r.finishError(KindRepositoryError, failure.Error(), candidate, report)
	}
	r.updateStatistics(stage, true, false, false)

	outcome := Outcome{
		ReceiptID: r.receiptID,
		Status:    status,
		Success:   true,
		Candidate: candidate,
		Report:    report,
		Timeline:  r.timeline,
	}
	if r.services.Artifacts != nil {
		if e := r.services.Artifacts.WriteSuccess(r.receiptID, &outcome); e != nil {
			tl.Log(tl.Warning, palette.PurpleBold, "%s success artifacts: %v", "Could not write", e)
		}
	}
	return outcome
}

func (r *run) finishNeedsReview(candidate *parsers.ParsedReceipt, report *validate.ValidationReport, reason string) Outcome {
	if candidate != nil {
		if report != nil {
			attachReport(candidate, report)
		}
		stage := repository.StageManual
		if failure := r.commit(candidate, report, stage, repository.StatusNeedsReview); failure != nil {
			return r.finishError(KindRepositoryError, failure.Error(), candidate, report)
		}
	} else if r.services.Repository != nil && r.receiptID != "" {
		_ = r.services.Repository.UpdateReceiptState(r.receiptID, repository.StageManual, repository.StatusNeedsReview)
	}
	r.updateStatistics(repository.StageManual, false, false, true)
	r.writeDebugBundle()
	r.notifyReviewer(reason)

	return Outcome{
		ReceiptID: r.receiptID,
		Status:    StatusNeedsManualReview,
		Reason:    reason,
		Candidate: candidate,
		Report:    report,
		Timeline:  r.timeline,
	}
}

func (r *run) finishError(kind Kind, reason string, candidate *parsers.ParsedReceipt, report *validate.ValidationReport) Outcome {
	if r.services.Repository != nil && r.receiptID != "" {
		_ = r.services.Repository.UpdateReceiptState(r.receiptID, repository.StageManual, repository.StatusFailed)
	}
	r.updateStatistics(string(kind), false, true, false)
	r.writeDebugBundle()

	return Outcome{
		ReceiptID: r.receiptID,
		Status:    StatusError,
		Reason:    fmt.Sprintf("%s: %s", kind, reason),
		Candidate: candidate,
		Report:    report,
		Timeline:  r.timeline,
	}
}

func (r *run) commit(candidate *parsers.ParsedReceipt, report *validate.ValidationReport, stage string, status string) *Failure {
	if r.services.Repository == nil {
		return nil
	}

	validationStatus := ""
	if report != nil {
		validationStatus = string(report.Verdict)
	}
	outputJSON, _ := json.Marshal(candidate)
	finalRun := repository.ProcessingRun{
		Stage:            stage,
		ModelProvider:    r.services.PrimaryExtractor.Provider(),
		Status:           statusToRunStatus(status),
		ValidationStatus: validationStatus,
		OutputPayload:    string(outputJSON),
	}

	if e := r.services.Repository.CommitResult(r.receiptID, candidate, finalRun, stage, status); e != nil {
		tl.Log(tl.Error, palette.RedBold, "%s receipt '%s': %v", "Could not commit", r.receiptID, e)
		return newFailure(KindRepositoryError, "commit", e)
	}
	return nil
}

func (r *run) recordRun(stage string, provider string, model string, status string, validationStatus string, input string, output string, cause *xerr.Error) {
	if r.services.Repository == nil || r.receiptID == "" {
		return
	}
	errorMessage := ""
	if cause != nil {
		errorMessage = fmt.Sprintf("%v", cause)
	}
	if _, e := r.services.Repository.SaveProcessingRun(r.receiptID, stage, provider, model, status, validationStatus, input, output, errorMessage); e != nil {
		tl.Log(tl.Warning, palette.PurpleBold, "%s processing run for '%s': %v", "Could not save", r.receiptID, e)
	}
}

func (r *run) updateStatistics(provider string, passed bool, isError bool, isManualReview bool) {
	if r.services.Repository == nil {
		return
	}
	if e := r.services.Repository.UpdateStatistics(provider, passed, isError, isManualReview); e != nil {
		tl.Log(tl.Warning, palette.PurpleBold, "%s statistics for '%s': %v", "Could not update", provider, e)
	}
}

func (r *run) writeDebugBundle() {
	if r.services.Artifacts == nil {
		return
	}
	extension := filepath.Ext(r.request.ImagePath)
	if e := r.services.Artifacts.WriteDebugBundle(r.receiptID, r.payloads, r.imageBytes, extension, r.timeline); e != nil {
		tl.Log(tl.Warning, palette.PurpleBold, "%s debug bundle: %v", "Could not write", e)
	}
}

// notifyReviewer emails the configured reviewer about a needs_review
// terminal state. Notification failures are logged, never fatal.
func (r *run) notifyReviewer(reason string) {
	if r.services.ReviewerEmail == "" {
		return
	}
	subject := fmt.Sprintf("Receipt %s needs manual review", r.receiptID)
	body := fmt.Sprintf(
		"Receipt %s for user %s could not be validated automatically.\n\nReason: %s\n\nThe debug bundle is available under the output root.\n",
		r.receiptID, r.request.UserID, reason,
	)
	if e := notify.SendMessage(r.services.EmailProvider, r.services.SenderEmail, r.services.ReviewerEmail, subject, body); e != nil {
		tl.Log(tl.Warning, palette.PurpleBold, "%s reviewer notification: %v", "Could not send", e)
	}
}

// attachReport folds the checker's findings into the candidate's own
// validation block, so the persisted candidate is self-describing.
func attachReport(candidate *parsers.ParsedReceipt, report *validate.ValidationReport) {
	if candidate == nil || report == nil {
		return
	}
	candidate.Validation.ItemCount = len(candidate.Items)
	candidate.Validation.HasSubtotal = candidate.Subtotal != nil
	candidate.Validation.HasTotal = candidate.Total != nil
	for _, message := range report.Errors {
		candidate.Validation.Warnings = append(candidate.Validation.Warnings, message)
	}
}

func statusToRunStatus(receiptStatus string) string {
	switch receiptStatus {
	case repository.StatusSuccess:
		return "pass"
	case repository.StatusNeedsReview:
		return "needs_review"
	default:
		return "fail"
	}
}

func describeInput(request Request) string {
	if request.ImagePath != "" {
		return request.ImagePath
	}
	return fmt.Sprintf("%d bytes", len(request.ImageBytes))
}

func firstLines(text string, count int) string {
	lines := strings.SplitN(text, "\n", count+1)
	if len(lines) > count {
		lines = lines[:count]
	}
	return strings.Join(lines, " ")
}
