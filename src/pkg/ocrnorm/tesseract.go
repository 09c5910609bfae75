package ocrnorm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/gosseract/v2"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// TesseractProviderTag identifies the local, text-only fallback OCR.
const TesseractProviderTag = "tesseract_local"

/*
TesseractProvider is the text-only fallback OCR. It runs a local tesseract
over a preprocessed copy of the receipt and returns raw text with no
geometry — enough for the fallback LLM prompt, which receives both OCR
outputs side by side.
*/
type TesseractProvider struct {
	Language string // tesseract language codes, e.g. "eng" or "eng+chi_sim" for T&T
}

func NewTesseractProvider(language string) *TesseractProvider {
	if language == "" {
		language = "eng"
	}
	return &TesseractProvider{Language: language}
}

func (p *TesseractProvider) Tag() string {
	return TesseractProviderTag
}

/*
Parse writes the image to a temp file, preprocesses it for thermal-paper
contrast, and runs tesseract in single-block mode with interword spaces
preserved (receipts are column layouts; collapsing runs of spaces destroys
the amount column).
*/
func (p *TesseractProvider) Parse(imageBytes []byte, mimeType string) (normalized *NormalizedOcr, e *xerr.Error) {
	tl.Log(tl.Notice, palette.BlueBold, "%s with %s (language '%s')", "Running OCR", "local tesseract", p.Language)

	tempDir, tempErr := os.MkdirTemp("", "ledgerlens-ocr-")
	if tempErr != nil {
		return nil, xerr.NewError(tempErr, "create temp dir for local OCR", nil)
	}
	defer func() {
		_ = os.RemoveAll(tempDir)
	}()

	originalPath := filepath.Join(tempDir, "orig"+extensionForMime(mimeType))
	if writeErr := os.WriteFile(originalPath, imageBytes, 0o644); writeErr != nil {
		return nil, xerr.NewError(writeErr, "write image for local OCR", originalPath)
	}

	processedPath := filepath.Join(tempDir, "clean.png")
	if e = createProcessedImage(originalPath, processedPath); e != nil {
		return nil, e
	}

	text, e := runTesseract(processedPath, p.Language)
	if e != nil {
		return nil, e
	}

	normalized = Normalize(ProviderOutput{RawText: text}, TesseractProviderTag)
	tl.Log(tl.Notice1, palette.GreenBold, "%s with %s (text length '%s')", "OCR completed", "local tesseract", fmt.Sprintf("%d", len(text)))
	return normalized, nil
}

func runTesseract(imagePath string, language string) (text string, e *xerr.Error) {
	client := gosseract.NewClient()
	defer func() {
		_ = client.Close()
	}()

	if err := client.SetLanguage(language); err != nil {
		return "", xerr.NewError(err, "tesseract SetLanguage", language)
	}

	// Column layouts need the interword spacing kept intact.
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", xerr.NewError(err, "tesseract SetVariable preserve_interword_spaces", imagePath)
	}

	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", xerr.NewError(err, "tesseract SetPageSegMode PSM_SINGLE_BLOCK", imagePath)
	}

	if err := client.SetImage(imagePath); err != nil {
		return "", xerr.NewError(err, "tesseract SetImage", imagePath)
	}

	text, ocrErr := client.Text()
	if ocrErr != nil {
		return "", xerr.NewError(ocrErr, "tesseract text extraction", imagePath)
	}

	return text, nil
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}
