package service

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"path"
	"strings"
	"time"

	"go-ocr-enhancer/internal/analyzer"
	"go-ocr-enhancer/internal/enhance"
	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/internal/logger"
	"go-ocr-enhancer/internal/observer"
	"go-ocr-enhancer/internal/ocr"
	"go-ocr-enhancer/internal/recorder"
	"go-ocr-enhancer/internal/scoring"
	"go-ocr-enhancer/internal/storage"
	"go-ocr-enhancer/pkg/models"
	"go-ocr-enhancer/pkg/validation"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultFilename = "image"

// RunInput is one request to the pipeline. Data takes precedence over
// ImageURL; one of them must be set.
type RunInput struct {
	Data        []byte
	Filename    string
	ImageURL    string
	Method      string
	GroundTruth string
}

// OCRPipelineService runs the enhance, recognize, score and record pipeline
type OCRPipelineService interface {
	Run(ctx context.Context, in RunInput) (*models.RunResponse, error)
	Methods() []models.MethodInfo
}

// TextRecognizer is the recognition step of the pipeline
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (models.RecognitionResult, error)
	Config() ocr.EngineConfig
}

// Dependencies wires the pipeline. Recognizer and Recorder are required;
// the rest are optional.
type Dependencies struct {
	Recognizer      TextRecognizer
	Recorder        *recorder.Recorder
	Analyzer        analyzer.QualityAnalyzer
	Quality         *validation.QualityValidator
	Store           storage.ArtifactStore
	Fetcher         storage.ImageFetcher
	Events          observer.Subject
	AnalysisTimeout time.Duration
	Now             func() time.Time
}

type ocrPipelineService struct {
	deps Dependencies
}

// NewOCRPipelineService creates the pipeline service
func NewOCRPipelineService(deps Dependencies) OCRPipelineService {
	if deps.Analyzer == nil {
		deps.Analyzer = analyzer.NewQualityAnalyzer()
	}
	if deps.Quality == nil {
		deps.Quality = validation.NewQualityValidator()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ocrPipelineService{deps: deps}
}

func (s *ocrPipelineService) Methods() []models.MethodInfo {
	return enhance.Methods()
}

// Run executes one pipeline invocation. Failures before the record is
// appended leave the run log untouched.
func (s *ocrPipelineService) Run(ctx context.Context, in RunInput) (*models.RunResponse, error) {
	started := time.Now()
	name := sanitizeFilename(in.Filename)
	s.publish(ctx, observer.RunEvent{EventType: observer.RunStarted, Filename: name, Method: in.Method})

	resp, err := s.run(ctx, in, name)
	if err != nil {
		var errType string
		if appErr, ok := asAppError(err); ok {
			errType = string(appErr.Type)
		}
		s.publish(ctx, observer.RunEvent{
			EventType:      observer.RunFailed,
			Filename:       name,
			Method:         in.Method,
			ProcessingTime: time.Since(started),
			ErrorType:      errType,
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	s.publish(ctx, observer.RunEvent{
		EventType:      observer.RunCompleted,
		Filename:       resp.Record.Filename,
		Method:         resp.Record.Method,
		ProcessingTime: time.Duration(resp.Recognition.ProcessingMs * float64(time.Millisecond)),
		Success:        true,
		CharAccuracy:   resp.Record.CharAccuracy,
	})
	return resp, nil
}

func (s *ocrPipelineService) run(ctx context.Context, in RunInput, name string) (*models.RunResponse, error) {
	method, err := enhance.ParseMethod(in.Method)
	if err != nil {
		return nil, err
	}

	data := in.Data
	if len(data) == 0 {
		if data, name, err = s.fetch(ctx, in, name); err != nil {
			return nil, err
		}
	}

	img, format, err := storage.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	enhanced, err := enhance.Enhance(img, method)
	if err != nil {
		return nil, err
	}

	now := s.deps.Now()
	ts := recorder.FormatTimestamp(now)
	storedName := ts + "_" + name

	resp := &models.RunResponse{
		InputMetrics:  s.deps.Analyzer.Measure(img),
		OutputMetrics: s.deps.Analyzer.Measure(enhanced),
	}
	resp.InputIssues = s.deps.Quality.Validate(resp.InputMetrics)

	if s.deps.Store != nil {
		if resp.InputImage, resp.OutputImage, err = s.saveArtifacts(ctx, storedName, data, format, enhanced); err != nil {
			return nil, err
		}
	}

	recCtx := ctx
	if s.deps.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		recCtx, cancel = context.WithTimeout(ctx, s.deps.AnalysisTimeout)
		defer cancel()
	}
	recognition, err := s.deps.Recognizer.Recognize(recCtx, enhanced)
	if err != nil {
		return nil, err
	}

	score := scoring.Score(in.GroundTruth, recognition.Text)

	rec, err := s.deps.Recorder.Record(ctx, recorder.RunData{
		Time:        now,
		Filename:    storedName,
		Method:      string(method),
		Lang:        s.deps.Recognizer.Config().Language,
		GroundTruth: in.GroundTruth,
		Recognition: recognition,
		Score:       score,
	})
	if err != nil {
		return nil, err
	}

	resp.Record = rec
	resp.Recognition = recognition
	resp.Score = score
	if score != nil {
		pct := accuracyPercent(score.CharAccuracy)
		resp.CharAccuracyPct = &pct
	}

	logger.WithFields(logrus.Fields{
		"filename":      rec.Filename,
		"method":        rec.Method,
		"processing_ms": rec.ProcessingMs,
		"scored":        rec.Scored(),
	}).Debug("Pipeline run finished")

	return resp, nil
}

func (s *ocrPipelineService) fetch(ctx context.Context, in RunInput, name string) ([]byte, string, error) {
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, name, apperrors.NewValidationError("an image file or image_url is required", nil)
	}
	if s.deps.Fetcher == nil {
		return nil, name, apperrors.NewValidationError("image_url input is not enabled", nil)
	}

	fetched, err := s.deps.Fetcher.Fetch(ctx, in.ImageURL)
	if err != nil {
		s.publish(ctx, observer.RunEvent{
			EventType:    observer.ImageFetchFailed,
			Method:       in.Method,
			ErrorMessage: err.Error(),
			Metadata:     map[string]interface{}{"image_url": in.ImageURL},
		})
		return nil, name, err
	}
	if strings.TrimSpace(in.Filename) == "" {
		name = sanitizeFilename(fetched.Filename)
	}
	s.publish(ctx, observer.RunEvent{
		EventType: observer.ImageFetched,
		Filename:  name,
		Method:    in.Method,
		Success:   true,
		Metadata:  map[string]interface{}{"image_url": in.ImageURL, "bytes": len(fetched.Data)},
	})
	return fetched.Data, name, nil
}

// saveArtifacts stores the upload as received and the enhanced image as PNG.
func (s *ocrPipelineService) saveArtifacts(ctx context.Context, storedName string, data []byte, format string, enhanced image.Image) (string, string, error) {
	inKey := storage.Key(storage.NamespaceUploads, storedName)
	if err := s.deps.Store.Save(ctx, inKey, data, "image/"+format); err != nil {
		return "", "", err
	}

	png, err := storage.EncodePNG(enhanced)
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to encode enhanced image", err)
	}
	outKey := storage.Key(storage.NamespaceResults, "enh_"+storedName+".png")
	if err := s.deps.Store.Save(ctx, outKey, png, "image/png"); err != nil {
		return "", "", err
	}
	return inKey, outKey, nil
}

func (s *ocrPipelineService) publish(ctx context.Context, event observer.RunEvent) {
	if s.deps.Events != nil {
		s.deps.Events.NotifyObservers(ctx, event)
	}
}

// accuracyPercent renders a [0,1] accuracy as a percentage with 2 decimals.
func accuracyPercent(acc float64) float64 {
	return decimal.NewFromFloat(acc).Shift(2).Round(2).InexactFloat64()
}

// sanitizeFilename keeps the last path element of a client supplied name.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." || name == "" {
		return defaultFilename
	}
	return name
}

func asAppError(err error) (*apperrors.AppError, bool) {
	var appErr *apperrors.AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}
