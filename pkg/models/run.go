package models

// RecognitionResult is the output of one recognition engine call
type RecognitionResult struct {
	Text         string  `json:"text"`
	ProcessingMs float64 `json:"processing_ms"`
}

// ScoreResult compares a prediction against a ground truth transcription.
// WordErrorRate is reported to callers but is not part of the run log.
type ScoreResult struct {
	EditDistance  int     `json:"edit_distance"`
	CharAccuracy  float64 `json:"char_accuracy"`
	WordErrorRate float64 `json:"word_error_rate"`
}

// RunRecord is one row of the persisted run history.
// CharAccuracy and EditDistance are nil when no ground truth was supplied.
type RunRecord struct {
	Timestamp    string   `json:"timestamp"`
	Filename     string   `json:"filename"`
	Method       string   `json:"method"`
	Lang         string   `json:"lang"`
	ProcessingMs float64  `json:"processing_ms"`
	GroundTruth  string   `json:"ground_truth"`
	OCRText      string   `json:"ocr_text"`
	CharAccuracy *float64 `json:"char_accuracy"`
	EditDistance *int     `json:"edit_distance"`
}

// Scored reports whether the record carries accuracy metrics
func (r RunRecord) Scored() bool {
	return r.CharAccuracy != nil && r.EditDistance != nil
}

// ImageMetrics represents image quality metrics.
// Brightness and Contrast are on the 0-255 grey scale, Saturation in [0,1].
// SkewAngle is nil when the image has too few edges to estimate it.
type ImageMetrics struct {
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Brightness   float64  `json:"brightness"`
	Contrast     float64  `json:"contrast"`
	LaplacianVar float64  `json:"laplacian_variance"`
	Saturation   float64  `json:"saturation"`
	SkewAngle    *float64 `json:"skew_angle,omitempty"`
}

// QualityIssue flags a property of an input image that hurts recognition.
// SuggestedMethod names the enhancement method that targets it, if any.
type QualityIssue struct {
	Type            string  `json:"type"`
	Message         string  `json:"message"`
	Severity        string  `json:"severity"`
	ActualValue     float64 `json:"actual_value"`
	Threshold       float64 `json:"threshold"`
	SuggestedMethod string  `json:"suggested_method,omitempty"`
}
