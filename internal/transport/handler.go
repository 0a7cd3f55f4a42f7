package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"go-ocr-enhancer/internal/config"
	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/internal/logger"
	"go-ocr-enhancer/internal/observer"
	"go-ocr-enhancer/internal/recorder"
	"go-ocr-enhancer/internal/service"
	"go-ocr-enhancer/internal/storage"
	"go-ocr-enhancer/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultMethod = "original"

// Handler bundles what the HTTP routes need. Store and Metrics may be nil.
type Handler struct {
	Service service.OCRPipelineService
	RunLog  *recorder.CSVLog
	Store   storage.ArtifactStore
	Metrics *observer.MetricsObserver
	Config  *config.Config
}

func NewHandler(h Handler) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(h.Config.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/methods", listMethods(h.Service))
	r.POST("/run", runOCR(h.Service, h.Config))
	r.GET("/results", downloadResults(h.RunLog))
	r.GET("/metrics", runMetrics(h.Metrics))
	r.GET("/artifacts/*key", serveArtifact(h.Store))

	return r
}

func listMethods(svc service.OCRPipelineService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Methods())
	}
}

func runOCR(svc service.OCRPipelineService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing OCR run request")

		in, err := readRunInput(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid request", err)
			return
		}

		resp, err := svc.Run(ctx, in)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "run failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"filename":           resp.Record.Filename,
			"enhancement":        resp.Record.Method,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"ocr_ms":             resp.Record.ProcessingMs,
			"scored":             resp.Record.Scored(),
		}).Info("OCR run completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

// readRunInput reads the multipart form. The image file is optional when
// image_url is given.
func readRunInput(c *gin.Context) (service.RunInput, error) {
	in := service.RunInput{
		Method:      strings.TrimSpace(c.DefaultPostForm("method", defaultMethod)),
		GroundTruth: c.PostForm("ground_truth"),
		ImageURL:    strings.TrimSpace(c.PostForm("image_url")),
	}
	if in.Method == "" {
		in.Method = defaultMethod
	}

	file, err := c.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, &apperrors.AppError{
				Type:       apperrors.ErrorTypeValidation,
				Message:    fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				StatusCode: http.StatusRequestEntityTooLarge,
				Cause:      err,
			}
		}
		return in, apperrors.NewValidationError("invalid multipart form", err)
	}

	f, err := file.Open()
	if err != nil {
		return in, apperrors.NewValidationError("failed to open uploaded image", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return in, apperrors.NewValidationError("failed to read uploaded image", err)
	}
	in.Data = data
	in.Filename = file.Filename
	return in, nil
}

func downloadResults(runLog *recorder.CSVLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var buf bytes.Buffer
		if _, err := runLog.WriteTo(&buf); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to read run log", err)
			return
		}
		if buf.Len() == 0 {
			err := apperrors.NewNotFoundError("no runs recorded yet", nil)
			respondError(c, err.StatusCode, "run log unavailable", err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(runLog.Path())))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}

func runMetrics(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.JSON(http.StatusOK, observer.Metrics{})
			return
		}
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func serveArtifact(store storage.ArtifactStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			err := apperrors.NewNotFoundError("artifact storage is disabled", nil)
			respondError(c, err.StatusCode, "artifact unavailable", err)
			return
		}

		key := strings.TrimPrefix(c.Param("key"), "/")
		rc, err := store.Open(c.Request.Context(), key)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "artifact unavailable", err)
			return
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			err = apperrors.NewStorageError("failed to read artifact", err)
			respondError(c, http.StatusInternalServerError, "artifact unavailable", err)
			return
		}

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	fields := logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}
	entry := logger.WithError(err).WithFields(fields)
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
		resp.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
	}
	c.AbortWithStatusJSON(code, resp)
}
