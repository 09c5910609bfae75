package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

/*
ArtifactWriter persists run artifacts under one output root:

  - success: <receipt_id>_output.json and <receipt_id>_timeline.json
  - review/error: a debug/ bundle with every stage payload
    (<id>_{ocr_a,ocr_b,llm_primary,llm_fallback}.json), a copy of the
    original image, and the timeline.
*/
type ArtifactWriter struct {
	OutputDir string
}

func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{OutputDir: outputDir}
}

// WriteSuccess persists the final outcome and its timeline side by side.
func (w *ArtifactWriter) WriteSuccess(receiptID string, outcome *Outcome) (e *xerr.Error) {
	if e = ensureDirectory(w.OutputDir); e != nil {
		return e
	}
	if e = saveJSONToFile(filepath.Join(w.OutputDir, receiptID+"_output.json"), outcome); e != nil {
		return e
	}
	return saveJSONToFile(filepath.Join(w.OutputDir, receiptID+"_timeline.json"), outcome.Timeline)
}

/*
WriteDebugBundle persists everything a reviewer needs to replay a failed or
review-bound run. Stage payloads are written under their stage name; nil
payloads (stages that never ran) are skipped. imageBytes may be empty when
the original upload is no longer available.
*/
func (w *ArtifactWriter) WriteDebugBundle(receiptID string, stagePayloads map[string]any, imageBytes []byte, imageExtension string, timeline *Timeline) (e *xerr.Error) {
	bundleDir := filepath.Join(w.OutputDir, "debug")
	if e = ensureDirectory(bundleDir); e != nil {
		return e
	}

	for stage, payload := range stagePayloads {
		if payload == nil {
			continue
		}
		path := filepath.Join(bundleDir, fmt.Sprintf("%s_%s.json", receiptID, stage))
		if e = saveJSONToFile(path, payload); e != nil {
			return e
		}
	}

	if len(imageBytes) > 0 {
		if imageExtension == "" {
			imageExtension = ".bin"
		}
		imagePath := filepath.Join(bundleDir, receiptID+"_original"+imageExtension)
		if writeErr := os.WriteFile(imagePath, imageBytes, 0o644); writeErr != nil {
			return xerr.NewError(writeErr, "copy original image into debug bundle", imagePath)
		}
	}

	if timeline != nil {
		if e = saveJSONToFile(filepath.Join(bundleDir, receiptID+"_timeline.json"), timeline); e != nil {
			return e
		}
	}

	tl.Log(
		tl.Notice1, palette.Yellow, "%s debug bundle for receipt '%s' under '%s'",
		"Wrote", receiptID, bundleDir,
	)
	return nil
}

func ensureDirectory(path string) (e *xerr.Error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return xerr.NewError(err, "create artifact directory", path)
	}
	return nil
}

/*
saveJSONToFile marshals the given value to pretty-printed JSON and writes it
to the given path, overwriting any existing file.
*/
func saveJSONToFile(destinationPath string, value any) (e *xerr.Error) {
	jsonBytes, marshalErr := json.MarshalIndent(value, "", "  ")
	if marshalErr != nil {
		return xerr.NewError(marshalErr, "marshal artifact to JSON", destinationPath)
	}

	if writeErr := os.WriteFile(destinationPath, jsonBytes, 0o644); writeErr != nil {
		return xerr.NewError(writeErr, "write artifact JSON file", destinationPath)
	}

	tl.Log(
		tl.Info1, palette.Green, "Saved JSON artifact to '%s'",
		destinationPath,
	)
	return nil
}
