package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingObserver struct {
	name   string
	events []RunEvent
}

func (r *recordingObserver) OnEvent(ctx context.Context, event RunEvent) {
	r.events = append(r.events, event)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event RunEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                     { return "panicking" }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func acc(v float64) *float64 { return &v }

func TestMetricsObserver_Counts(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	events := []RunEvent{
		{EventType: RunStarted, Method: "clahe"},
		{EventType: RunCompleted, Method: "clahe", ProcessingTime: 10 * time.Millisecond, CharAccuracy: acc(0.5)},
		{EventType: RunStarted, Method: "clahe"},
		{EventType: RunCompleted, Method: "clahe", ProcessingTime: 30 * time.Millisecond, CharAccuracy: acc(1)},
		{EventType: RunStarted, Method: "sharpen"},
		{EventType: RunCompleted, Method: "sharpen", ProcessingTime: 5 * time.Millisecond},
		{EventType: RunStarted, Method: "sepia"},
		{EventType: RunFailed, Method: "sepia", ErrorType: "unsupported_method"},
		{EventType: RunStarted},
		{EventType: RunFailed},
	}
	for _, e := range events {
		m.OnEvent(ctx, e)
	}

	got := m.GetMetrics()
	if got.TotalRuns != 5 || got.CompletedRuns != 3 || got.FailedRuns != 2 {
		t.Fatalf("Unexpected totals: %+v", got)
	}
	if got.FailuresByType["unsupported_method"] != 1 || got.FailuresByType["unknown"] != 1 {
		t.Errorf("Unexpected failures: %v", got.FailuresByType)
	}

	clahe := got.Methods["clahe"]
	if clahe.Runs != 2 || clahe.ScoredRuns != 2 {
		t.Errorf("Unexpected clahe counts: %+v", clahe)
	}
	if math.Abs(clahe.MeanCharAccuracy-0.75) > 1e-9 {
		t.Errorf("Expected mean accuracy 0.75, got %f", clahe.MeanCharAccuracy)
	}
	if math.Abs(clahe.AvgProcessingMs-20) > 1e-9 {
		t.Errorf("Expected 20ms average, got %f", clahe.AvgProcessingMs)
	}

	sharpen := got.Methods["sharpen"]
	if sharpen.ScoredRuns != 0 || sharpen.MeanCharAccuracy != 0 {
		t.Errorf("Unscored runs must not affect accuracy: %+v", sharpen)
	}
}

func TestMetricsObserver_SnapshotIsCopy(t *testing.T) {
	m := NewMetricsObserver()
	m.OnEvent(context.Background(), RunEvent{EventType: RunFailed, ErrorType: "timeout"})

	snap := m.GetMetrics()
	snap.FailuresByType["timeout"] = 99

	if m.GetMetrics().FailuresByType["timeout"] != 1 {
		t.Error("Mutating a snapshot changed the observer")
	}
}

func TestEventPublisher_DeliversInOrder(t *testing.T) {
	p := NewEventPublisher(quietLogger())
	first := &recordingObserver{name: "first"}
	second := &recordingObserver{name: "second"}
	p.Subscribe(first)
	p.Subscribe(second)

	p.NotifyObservers(context.Background(), RunEvent{EventType: RunStarted, Filename: "a.png"})
	p.NotifyObservers(context.Background(), RunEvent{EventType: RunCompleted, Filename: "a.png"})

	for _, obs := range []*recordingObserver{first, second} {
		if len(obs.events) != 2 {
			t.Fatalf("%s: expected 2 events, got %d", obs.name, len(obs.events))
		}
		if obs.events[0].EventType != RunStarted || obs.events[1].EventType != RunCompleted {
			t.Errorf("%s: unexpected order %v", obs.name, obs.events)
		}
		if obs.events[0].Timestamp.IsZero() {
			t.Errorf("%s: expected timestamp to be filled in", obs.name)
		}
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	p := NewEventPublisher(quietLogger())
	obs := &recordingObserver{name: "obs"}
	p.Subscribe(obs)
	p.Unsubscribe(obs)

	p.NotifyObservers(context.Background(), RunEvent{EventType: RunStarted})
	if len(obs.events) != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", len(obs.events))
	}
}

func TestEventPublisher_RecoversFromPanic(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)

	p := NewEventPublisher(l)
	after := &recordingObserver{name: "after"}
	p.Subscribe(panickingObserver{})
	p.Subscribe(after)

	p.NotifyObservers(context.Background(), RunEvent{EventType: RunStarted})

	if len(after.events) != 1 {
		t.Error("Expected observers after a panicking one to still receive the event")
	}
	if !strings.Contains(buf.String(), "Observer panicked") {
		t.Errorf("Expected panic to be logged, got %q", buf.String())
	}
}

func TestLoggingObserver_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(l)
	obs.OnEvent(context.Background(), RunEvent{
		EventType:      RunCompleted,
		Filename:       "scan.png",
		Method:         "clahe",
		ProcessingTime: 1500 * time.Microsecond,
		Success:        true,
		CharAccuracy:   acc(0.9),
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "info" || entry["msg"] != "OCR run completed" {
		t.Errorf("Unexpected entry: %v", entry)
	}
	if entry["method"] != "clahe" || entry["filename"] != "scan.png" {
		t.Errorf("Missing run fields: %v", entry)
	}
	if entry["processing_ms"] != 1.5 || entry["char_accuracy"] != 0.9 {
		t.Errorf("Unexpected numeric fields: %v", entry)
	}
}
