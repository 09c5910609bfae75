package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"ledgerlens/src/pkg/config"
	echomw "ledgerlens/src/pkg/echo-middleware"
	"ledgerlens/src/pkg/workflow"
)

// MaxUploadBytes bounds a single receipt image upload.
const MaxUploadBytes = 15 << 20

/*
main serves the receipt intake surface:

	POST /v1/receipts  — bearer-authenticated multipart upload (field "image");
	                     runs the full workflow and returns the outcome envelope
	GET  /healthz      — liveness probe

The surface stays thin: it only adapts HTTP to workflow.Engine.Process.
*/
func main() {
	config.CheckIfEnvVarsPresent("OPENAI_API_KEY", echomw.EnvIntakeBearerToken)

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	flag.Parse()
	config.InitializeConfig(*configPath)
	echomw.InitializeConfig(nil)
	echomw.UptdateRateLimits(echomw.Cfg.MiddlewareRateLimit, echomw.Cfg.MiddlewareBurst)

	services, e := workflow.NewServicesFromConfig()
	e.QuitIf("error")
	engine := workflow.NewEngine(services)

	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.Use(echomw.RouteAccessLoggerMiddleware)
	server.Use(echomw.RateLimiterMiddleware)

	server.GET("/healthz", handleHealth)
	server.POST("/v1/receipts", handleIntake(engine), echomw.RequireBearerToken)

	address := fmt.Sprintf("%s:%d", echomw.Cfg.Address, echomw.Cfg.Port)
	tl.Log(
		tl.Notice, palette.BlueBold, "%s receipt intake server on '%s'",
		"Starting", address,
	)

	startErr := server.Start(address)
	xerr.QuitIfError(startErr, "start intake HTTP server")
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

/*
handleIntake accepts one receipt image and runs the workflow to completion
before responding. The response is the outcome envelope: success, status,
receipt id, the final candidate (possibly partial), and the failure reason
when there is one.
*/
func handleIntake(engine *workflow.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		imageBytes, mimeType, readErr := readUpload(c)
		if readErr != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": readErr.Error()})
		}

		userID := strings.TrimSpace(c.Request().Header.Get("X-User-ID"))
		if userID == "" {
			userID = "anonymous"
		}

		outcome := engine.Process(c.Request().Context(), workflow.Request{
			UserID:     userID,
			ImageBytes: imageBytes,
			Mime:       mimeType,
		})

		return c.JSON(statusCodeFor(outcome), outcome)
	}
}

// readUpload pulls the image out of the multipart form (field "image"), or
// falls back to the raw request body for clients that post bytes directly.
func readUpload(c echo.Context) (imageBytes []byte, mimeType string, err error) {
	fileHeader, formErr := c.FormFile("image")
	if formErr == nil {
		if fileHeader.Size > MaxUploadBytes {
			return nil, "", fmt.Errorf("image exceeds %d bytes", MaxUploadBytes)
		}
		file, openErr := fileHeader.Open()
		if openErr != nil {
			return nil, "", fmt.Errorf("open uploaded image: %w", openErr)
		}
		defer func() {
			_ = file.Close()
		}()

		imageBytes, err = io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
		if err != nil {
			return nil, "", fmt.Errorf("read uploaded image: %w", err)
		}
		return imageBytes, fileHeader.Header.Get("Content-Type"), nil
	}

	body := c.Request().Body
	imageBytes, err = io.ReadAll(io.LimitReader(body, MaxUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read request body: %w", err)
	}
	if len(imageBytes) == 0 {
		return nil, "", fmt.Errorf("no image provided")
	}
	if len(imageBytes) > MaxUploadBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxUploadBytes)
	}
	return imageBytes, c.Request().Header.Get("Content-Type"), nil
}

func statusCodeFor(outcome workflow.Outcome) int {
	if outcome.Status != workflow.StatusError {
		return http.StatusOK
	}
	if strings.HasPrefix(outcome.Reason, string(workflow.KindRateLimited)) {
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
