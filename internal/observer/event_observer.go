package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RunEvent represents one step of a pipeline run
type RunEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Filename       string                 `json:"filename"`
	Method         string                 `json:"method"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	CharAccuracy   *float64               `json:"char_accuracy,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of run event
type EventType string

const (
	// RunStarted when a pipeline run begins
	RunStarted EventType = "run_started"
	// RunCompleted when a run was recognized and recorded
	RunCompleted EventType = "run_completed"
	// RunFailed when a run stops before its record is written
	RunFailed EventType = "run_failed"
	// ImageFetched when a remote input image was downloaded
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when a remote input image could not be downloaded
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event RunEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event RunEvent)
}

// LoggingObserver logs run events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles run events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event RunEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"filename":   event.Filename,
		"method":     event.Method,
		"success":    event.Success,
	}
	if event.ProcessingTime > 0 {
		fields["processing_ms"] = float64(event.ProcessingTime.Microseconds()) / 1000
	}
	if event.CharAccuracy != nil {
		fields["char_accuracy"] = *event.CharAccuracy
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_type"] = event.ErrorType
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case RunStarted:
		entry.Debug("OCR run started")
	case RunCompleted:
		entry.Info("OCR run completed")
	case RunFailed:
		entry.Error("OCR run failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	default:
		entry.Info("Run event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MethodStats aggregates completed runs of one enhancement method.
// MeanCharAccuracy only covers runs that carried a ground truth.
type MethodStats struct {
	Runs             int64   `json:"runs"`
	ScoredRuns       int64   `json:"scored_runs"`
	MeanCharAccuracy float64 `json:"mean_char_accuracy"`
	AvgProcessingMs  float64 `json:"avg_processing_ms"`
}

// Metrics is a point-in-time copy of the collected counters
type Metrics struct {
	TotalRuns      int64                  `json:"total_runs"`
	CompletedRuns  int64                  `json:"completed_runs"`
	FailedRuns     int64                  `json:"failed_runs"`
	FailuresByType map[string]int64       `json:"failures_by_type"`
	Methods        map[string]MethodStats `json:"methods"`
}

type methodTotals struct {
	runs        int64
	scored      int64
	accuracySum float64
	processing  time.Duration
}

// MetricsObserver collects counters from run events
type MetricsObserver struct {
	mu             sync.RWMutex
	totalRuns      int64
	completedRuns  int64
	failedRuns     int64
	failuresByType map[string]int64
	methods        map[string]*methodTotals
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		failuresByType: make(map[string]int64),
		methods:        make(map[string]*methodTotals),
	}
}

// OnEvent handles run events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event RunEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case RunStarted:
		o.totalRuns++
	case RunCompleted:
		o.completedRuns++
		m, ok := o.methods[event.Method]
		if !ok {
			m = &methodTotals{}
			o.methods[event.Method] = m
		}
		m.runs++
		m.processing += event.ProcessingTime
		if event.CharAccuracy != nil {
			m.scored++
			m.accuracySum += *event.CharAccuracy
		}
	case RunFailed:
		o.failedRuns++
		errType := event.ErrorType
		if errType == "" {
			errType = "unknown"
		}
		o.failuresByType[errType]++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := Metrics{
		TotalRuns:      o.totalRuns,
		CompletedRuns:  o.completedRuns,
		FailedRuns:     o.failedRuns,
		FailuresByType: make(map[string]int64, len(o.failuresByType)),
		Methods:        make(map[string]MethodStats, len(o.methods)),
	}
	for k, v := range o.failuresByType {
		out.FailuresByType[k] = v
	}
	for name, m := range o.methods {
		stats := MethodStats{Runs: m.runs, ScoredRuns: m.scored}
		if m.scored > 0 {
			stats.MeanCharAccuracy = m.accuracySum / float64(m.scored)
		}
		if m.runs > 0 {
			stats.AvgProcessingMs = float64(m.processing.Microseconds()) / 1000 / float64(m.runs)
		}
		out.Methods[name] = stats
	}
	return out
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *logrus.Logger
}

// NewEventPublisher creates a new event publisher. Panicking observers are
// reported through logger.
func NewEventPublisher(logger *logrus.Logger) *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		logger:    logger,
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer in subscription order.
// Delivery is synchronous so counters are current when the run returns.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event RunEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		p.deliver(ctx, obs, event)
	}
}

func (p *EventPublisher) deliver(ctx context.Context, obs Observer, event RunEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
