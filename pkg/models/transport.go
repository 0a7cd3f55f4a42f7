package models

// MethodInfo is one selectable enhancement method in display order
type MethodInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// RunResponse is returned by the run endpoint.
// CharAccuracyPct mirrors Score.CharAccuracy as a percentage rounded to 2 decimals.
type RunResponse struct {
	Record          RunRecord         `json:"record"`
	Recognition     RecognitionResult `json:"recognition"`
	Score           *ScoreResult      `json:"score,omitempty"`
	CharAccuracyPct *float64          `json:"char_accuracy_pct,omitempty"`
	InputMetrics    ImageMetrics      `json:"input_metrics"`
	OutputMetrics   ImageMetrics      `json:"output_metrics"`
	InputIssues     []QualityIssue    `json:"input_issues,omitempty"`
	InputImage      string            `json:"input_image,omitempty"`
	OutputImage     string            `json:"output_image,omitempty"`
}
