package ocrnorm

import "github.com/tuumbleweed/xerr"

// Provider is the uniform OCR capability set the workflow drives. Both the
// primary (Textract) and the fallback (local tesseract) implement it, as do
// the fakes in workflow tests.
type Provider interface {
	// Parse runs OCR over the raw image bytes and returns the normalized
	// result. Provider-level and transport failures come back as *xerr.Error;
	// the orchestrator maps them onto its fallback ladder.
	Parse(imageBytes []byte, mimeType string) (*NormalizedOcr, *xerr.Error)
	// Tag names the provider in run records and debug artifacts.
	Tag() string
}
