package ocrnorm

import (
	"image/color"

	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// binarizeThreshold separates thermal-paper ink from background after the
// contrast boost. Usable range in practice is ~180-220.
const binarizeThreshold = uint8(200)

/*
createProcessedImage prepares a receipt photo for tesseract:

  - grayscale (thermal receipts carry no useful color),
  - double the height to help small print,
  - mild sharpen, then a strong contrast push,
  - hard black/white threshold.

The result is written as PNG to destinationPath.
*/
func createProcessedImage(sourcePath string, destinationPath string) (e *xerr.Error) {
	tl.Log(tl.Info1, palette.Blue, "Preprocessing receipt image '%s' into '%s'", sourcePath, destinationPath)

	originalImage, openErr := imaging.Open(sourcePath)
	if openErr != nil {
		return xerr.NewError(openErr, "open receipt image for preprocessing", sourcePath)
	}

	grayscaleImage := imaging.Grayscale(originalImage)

	targetHeight := grayscaleImage.Bounds().Dy() * 2
	resizedImage := imaging.Resize(grayscaleImage, 0, targetHeight, imaging.Lanczos)

	sharpenedImage := imaging.Sharpen(resizedImage, 1.0)
	highContrastImage := imaging.AdjustContrast(sharpenedImage, 100.0)

	binarizedImage := imaging.AdjustFunc(highContrastImage, func(c color.NRGBA) color.NRGBA {
		// Already grayscale; the red channel stands in for brightness.
		if c.R > binarizeThreshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	})

	if saveErr := imaging.Save(binarizedImage, destinationPath); saveErr != nil {
		return xerr.NewError(saveErr, "save preprocessed receipt image", destinationPath)
	}

	tl.Log(tl.Info1, palette.Green, "Saved preprocessed image to '%s'", destinationPath)
	return nil
}
