package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/internal/logger"
	"go-ocr-enhancer/internal/observer"
	"go-ocr-enhancer/internal/ocr"
	"go-ocr-enhancer/internal/recorder"
	"go-ocr-enhancer/internal/storage"

	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type stubEngine struct {
	mu    sync.Mutex
	text  string
	err   error
	block bool
	calls int
	last  *image.Gray
}

func (s *stubEngine) Recognize(ctx context.Context, img *image.Gray, cfg ocr.EngineConfig) (string, error) {
	s.mu.Lock()
	s.calls++
	s.last = img
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

type stubFetcher struct {
	image *storage.FetchedImage
	err   error
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (*storage.FetchedImage, error) {
	return f.image, f.err
}

var fixedTime = time.Date(2024, 1, 31, 15, 45, 2, 123000, time.UTC)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(40)
			if (x/4+y/4)%2 == 0 {
				v = 210
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	svc     OCRPipelineService
	engine  *stubEngine
	log     *recorder.CSVLog
	store   *storage.LocalStore
	metrics *observer.MetricsObserver
	dir     string
}

func newFixture(t *testing.T, engine *stubEngine, mutate func(*Dependencies)) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "results"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	log := recorder.NewCSVLog(filepath.Join(dir, "results.csv"))

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher(quiet)
	events.Subscribe(metrics)

	deps := Dependencies{
		Recognizer: ocr.NewRecognizer(engine, ocr.DefaultEngineConfig()),
		Recorder:   recorder.NewRecorder(log),
		Store:      store,
		Events:     events,
		Now:        func() time.Time { return fixedTime },
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &fixture{
		svc:     NewOCRPipelineService(deps),
		engine:  engine,
		log:     log,
		store:   store,
		metrics: metrics,
		dir:     dir,
	}
}

func (f *fixture) records(t *testing.T) int {
	t.Helper()
	recs, err := f.log.Records()
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	return len(recs)
}

func TestRun_ScoredRun(t *testing.T) {
	f := newFixture(t, &stubEngine{text: "  HELLO W0RLD\n"}, nil)

	resp, err := f.svc.Run(context.Background(), RunInput{
		Data:        pngBytes(t, 32, 24),
		Filename:    "scan.png",
		Method:      "clahe",
		GroundTruth: " HELLO WORLD ",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	rec := resp.Record
	if rec.Timestamp != "20240131_154502_000123" {
		t.Errorf("Unexpected timestamp %q", rec.Timestamp)
	}
	if rec.Filename != "20240131_154502_000123_scan.png" {
		t.Errorf("Unexpected filename %q", rec.Filename)
	}
	if rec.Method != "clahe" || rec.Lang != "eng" {
		t.Errorf("Unexpected method/lang %s/%s", rec.Method, rec.Lang)
	}
	if rec.GroundTruth != "HELLO WORLD" || rec.OCRText != "HELLO W0RLD" {
		t.Errorf("Unexpected texts %q / %q", rec.GroundTruth, rec.OCRText)
	}
	if !rec.Scored() || *rec.EditDistance != 1 {
		t.Fatalf("Expected edit distance 1, got %+v", rec)
	}
	if math.Abs(*rec.CharAccuracy-10.0/11.0) > 1e-9 {
		t.Errorf("Expected accuracy 10/11, got %f", *rec.CharAccuracy)
	}
	if resp.CharAccuracyPct == nil || *resp.CharAccuracyPct != 90.91 {
		t.Errorf("Expected 90.91%%, got %v", resp.CharAccuracyPct)
	}
	if resp.Score == nil || resp.Score.WordErrorRate <= 0 {
		t.Errorf("Expected a positive WER, got %+v", resp.Score)
	}
	if resp.InputMetrics.Width != 32 || resp.OutputMetrics.Height != 24 {
		t.Errorf("Unexpected metrics %+v / %+v", resp.InputMetrics, resp.OutputMetrics)
	}
	if len(resp.InputIssues) == 0 || resp.InputIssues[0].Type != "low_resolution" {
		t.Errorf("Expected low_resolution issue first, got %+v", resp.InputIssues)
	}

	if f.engine.last.Bounds() != image.Rect(0, 0, 32, 24) {
		t.Errorf("Engine got %v", f.engine.last.Bounds())
	}
	if n := f.records(t); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}

	if resp.InputImage != "uploads/20240131_154502_000123_scan.png" {
		t.Errorf("Unexpected input key %q", resp.InputImage)
	}
	if resp.OutputImage != "results/enh_20240131_154502_000123_scan.png.png" {
		t.Errorf("Unexpected output key %q", resp.OutputImage)
	}
	for _, key := range []string{resp.InputImage, resp.OutputImage} {
		rc, err := f.store.Open(context.Background(), key)
		if err != nil {
			t.Fatalf("Artifact %s missing: %v", key, err)
		}
		if _, _, err := storage.DecodeImage(rc); err != nil {
			t.Errorf("Artifact %s is not an image: %v", key, err)
		}
		rc.Close()
	}

	m := f.metrics.GetMetrics()
	if m.TotalRuns != 1 || m.CompletedRuns != 1 || m.Methods["clahe"].ScoredRuns != 1 {
		t.Errorf("Unexpected metrics %+v", m)
	}
}

func TestRun_WithoutGroundTruth(t *testing.T) {
	f := newFixture(t, &stubEngine{text: "anything"}, nil)

	resp, err := f.svc.Run(context.Background(), RunInput{
		Data:     pngBytes(t, 8, 8),
		Filename: "a.png",
		Method:   "original",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Score != nil || resp.CharAccuracyPct != nil || resp.Record.Scored() {
		t.Errorf("Expected unscored run, got %+v", resp)
	}
	if n := f.records(t); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
}

func TestRun_FailuresWriteNoRecord(t *testing.T) {
	testCases := []struct {
		name     string
		engine   *stubEngine
		input    RunInput
		wantType apperrors.ErrorType
		engineOK bool
	}{
		{
			name:     "Unknown method",
			engine:   &stubEngine{text: "x"},
			input:    RunInput{Method: "sepia"},
			wantType: apperrors.ErrorTypeUnsupportedMethod,
		},
		{
			name:     "Undecodable input",
			engine:   &stubEngine{text: "x"},
			input:    RunInput{Data: []byte("not an image"), Method: "original"},
			wantType: apperrors.ErrorTypeDecode,
		},
		{
			name:     "Missing input",
			engine:   &stubEngine{text: "x"},
			input:    RunInput{Method: "original"},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "Engine unavailable",
			engine:   &stubEngine{err: apperrors.NewEngineUnavailableError("no tesseract", nil)},
			input:    RunInput{Method: "sharpen"},
			wantType: apperrors.ErrorTypeEngineUnavailable,
			engineOK: true,
		},
		{
			name:     "Engine failure",
			engine:   &stubEngine{err: errors.New("segfault")},
			input:    RunInput{Method: "sharpen"},
			wantType: apperrors.ErrorTypeRecognition,
			engineOK: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.engine, nil)
			if tc.engineOK {
				tc.input.Data = pngBytes(t, 8, 8)
			}

			resp, err := f.svc.Run(context.Background(), tc.input)
			if resp != nil {
				t.Error("Expected nil response")
			}
			if !apperrors.IsType(err, tc.wantType) {
				t.Fatalf("Expected %s error, got %v", tc.wantType, err)
			}
			if _, statErr := os.Stat(f.log.Path()); !os.IsNotExist(statErr) {
				t.Errorf("Expected no run log, stat returned %v", statErr)
			}
			if !tc.engineOK && tc.engine.calls != 0 {
				t.Errorf("Engine should not run, got %d calls", tc.engine.calls)
			}

			m := f.metrics.GetMetrics()
			if m.FailedRuns != 1 || m.FailuresByType[string(tc.wantType)] != 1 {
				t.Errorf("Unexpected failure metrics %+v", m)
			}
		})
	}
}

func TestRun_RecognitionTimeout(t *testing.T) {
	f := newFixture(t, &stubEngine{block: true}, func(d *Dependencies) {
		d.AnalysisTimeout = 20 * time.Millisecond
	})

	_, err := f.svc.Run(context.Background(), RunInput{Data: pngBytes(t, 8, 8), Method: "original"})
	if !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if n := f.records(t); n != 0 {
		t.Errorf("Expected no records, got %d", n)
	}
}

func TestRun_ImageURL(t *testing.T) {
	fetcher := &stubFetcher{image: &storage.FetchedImage{Data: pngBytes(t, 16, 16), Filename: "remote.png"}}
	f := newFixture(t, &stubEngine{text: "ok"}, func(d *Dependencies) {
		d.Fetcher = fetcher
	})

	resp, err := f.svc.Run(context.Background(), RunInput{ImageURL: "https://example.com/remote.png", Method: "contrast"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Record.Filename != "20240131_154502_000123_remote.png" {
		t.Errorf("Unexpected filename %q", resp.Record.Filename)
	}
}

func TestRun_ImageURLFailure(t *testing.T) {
	fetcher := &stubFetcher{err: apperrors.NewNetworkError("down", nil)}
	f := newFixture(t, &stubEngine{text: "ok"}, func(d *Dependencies) {
		d.Fetcher = fetcher
	})

	_, err := f.svc.Run(context.Background(), RunInput{ImageURL: "https://example.com/x.png", Method: "original"})
	if !apperrors.IsType(err, apperrors.ErrorTypeNetwork) {
		t.Fatalf("Expected network error, got %v", err)
	}
}

func TestRun_ImageURLDisabled(t *testing.T) {
	f := newFixture(t, &stubEngine{text: "ok"}, nil)

	_, err := f.svc.Run(context.Background(), RunInput{ImageURL: "https://example.com/x.png", Method: "original"})
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestRun_WithoutStore(t *testing.T) {
	f := newFixture(t, &stubEngine{text: "ok"}, func(d *Dependencies) {
		d.Store = nil
	})

	resp, err := f.svc.Run(context.Background(), RunInput{Data: pngBytes(t, 8, 8), Method: "thresh_otsu"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.InputImage != "" || resp.OutputImage != "" {
		t.Errorf("Expected no artifact keys, got %q / %q", resp.InputImage, resp.OutputImage)
	}
	if resp.Record.Filename != "20240131_154502_000123_image" {
		t.Errorf("Unexpected filename %q", resp.Record.Filename)
	}
}

func TestMethods(t *testing.T) {
	f := newFixture(t, &stubEngine{}, nil)
	methods := f.svc.Methods()
	if len(methods) != 8 || methods[0].ID != "original" || methods[7].ID != "thresh_otsu" {
		t.Errorf("Unexpected methods %v", methods)
	}
}

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"scan.png", "scan.png"},
		{"  scan.png ", "scan.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan.jpg`, "scan.jpg"},
		{"", "image"},
		{"..", "image"},
		{"/", "image"},
	}

	for _, tc := range testCases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAccuracyPercent(t *testing.T) {
	testCases := []struct {
		in, want float64
	}{
		{10.0 / 11.0, 90.91},
		{1, 100},
		{0, 0},
		{0.12345, 12.35},
	}

	for _, tc := range testCases {
		if got := accuracyPercent(tc.in); got != tc.want {
			t.Errorf("accuracyPercent(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
