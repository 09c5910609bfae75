package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/config"
	"ledgerlens/src/pkg/util"
	"ledgerlens/src/pkg/workflow"
)

/*
main runs the full receipt-understanding workflow over one image or a
directory of images.

-image can be:
  - a single image file (.jpg/.jpeg/.png)
  - a directory containing images (.jpg/.jpeg/.png)

Each image goes through OCR, the rule-based parse, LLM extraction and the
sum check, with the fallback ladder on failure. Artifacts land under the
configured output root; results are committed to the sqlite repository.
*/
func main() {
	config.CheckIfEnvVarsPresent("OPENAI_API_KEY")

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	// Program-specific flags.
	imagePath := flag.String("image", "", "Path to a receipt image OR a directory with images (.jpg/.jpeg/.png).")
	userID := flag.String("user", "cli", "User id to record on the receipts.")

	flag.Parse()
	util.RequiredFlag(imagePath, "image")
	util.EnsureFlags()
	config.InitializeConfig(*configPath)

	tl.Log(
		tl.Notice, palette.BlueBold, "%s entrypoint. Config path: '%s'",
		"Running receipt workflow", *configPath,
	)

	services, e := workflow.NewServicesFromConfig()
	e.QuitIf("error")
	engine := workflow.NewEngine(services)

	imagesToProcess, e := resolveImagesToProcess(*imagePath)
	e.QuitIf("error")

	if len(imagesToProcess) == 0 {
		tl.Log(
			tl.Warning, palette.PurpleBold, "No .jpg/.jpeg/.png files found at: '%s'",
			*imagePath,
		)
		os.Exit(0)
	}

	if len(imagesToProcess) > 1 {
		tl.Log(
			tl.Notice1, palette.GreenBold, "Found '%s' images to process",
			fmt.Sprintf("%d", len(imagesToProcess)),
		)
	}

	passedCount := 0
	reviewCount := 0
	errorCount := 0

	for _, imgPath := range imagesToProcess {
		tl.Log(tl.Notice, palette.BlueBold, "%s '%s'", "Processing image", imgPath)

		outcome := engine.Process(context.Background(), workflow.Request{
			UserID:    *userID,
			ImagePath: imgPath,
			Mime:      mimeForImage(imgPath),
		})

		switch outcome.Status {
		case workflow.StatusError:
			errorCount++
			tl.Log(
				tl.Error, palette.RedBold, "Failed processing '%s': '%s'",
				imgPath, outcome.Reason,
			)
		case workflow.StatusNeedsManualReview:
			reviewCount++
			tl.Log(
				tl.Warning, palette.PurpleBold, "Receipt '%s' needs manual review: '%s'",
				outcome.ReceiptID, outcome.Reason,
			)
		default:
			passedCount++
			tl.Log(
				tl.Notice1, palette.GreenBold, "%s receipt '%s' with status '%s'",
				"Validated", outcome.ReceiptID, outcome.Status,
			)
		}
	}

	tl.Log(
		tl.Notice, palette.GreenBold, "Done. Passed: '%s', review: '%s', errors: '%s'",
		fmt.Sprintf("%d", passedCount), fmt.Sprintf("%d", reviewCount), fmt.Sprintf("%d", errorCount),
	)
}

func resolveImagesToProcess(inputPath string) (images []string, e *xerr.Error) {
	trimmed := strings.TrimSpace(inputPath)
	if trimmed == "" {
		err := fmt.Errorf("input path is empty")
		e = xerr.NewError(err, "missing -image input", inputPath)
		return
	}

	info, statErr := os.Stat(trimmed)
	if statErr != nil {
		e = xerr.NewError(statErr, "stat -image input path", trimmed)
		return
	}

	if info.IsDir() {
		return listImagesInDir(trimmed)
	}

	// File path
	ext := strings.ToLower(filepath.Ext(trimmed))
	if !isAllowedImageExt(ext) {
		err := fmt.Errorf("unsupported image extension: %s", ext)
		e = xerr.NewError(err, "input file is not .jpg/.jpeg/.png", trimmed)
		return
	}

	return []string{trimmed}, nil
}

func listImagesInDir(dirPath string) (images []string, e *xerr.Error) {
	entries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		e = xerr.NewError(readErr, "read directory", dirPath)
		return
	}

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if !isAllowedImageExt(ext) {
			continue
		}

		images = append(images, filepath.Join(dirPath, ent.Name()))
	}

	sort.Strings(images)
	return
}

func isAllowedImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

func mimeForImage(imagePath string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(imagePath)))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType
}
