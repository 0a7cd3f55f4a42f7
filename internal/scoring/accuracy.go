package scoring

import (
	"strings"
	"unicode/utf8"

	"go-ocr-enhancer/pkg/models"

	"github.com/codycollier/wer"
)

// CharAccuracy returns 1 - d/max(len(gt), 1) over the trimmed inputs,
// clamped to [0, 1]. An empty ground truth scores 1 only against an empty
// prediction.
func CharAccuracy(groundTruth, prediction string) float64 {
	gt := strings.TrimSpace(groundTruth)
	pred := strings.TrimSpace(prediction)
	return accuracy(EditDistance(gt, pred), utf8.RuneCountInString(gt))
}

func accuracy(distance, gtLen int) float64 {
	acc := 1 - float64(distance)/float64(max(gtLen, 1))
	if acc < 0 {
		return 0
	}
	if acc > 1 {
		return 1
	}
	return acc
}

// WordErrorRate is the word-level edit rate over whitespace separated
// tokens of the trimmed inputs. An empty reference yields 0 against an empty
// candidate and 1 otherwise.
func WordErrorRate(groundTruth, prediction string) float64 {
	ref := strings.Fields(groundTruth)
	hyp := strings.Fields(prediction)
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	rate, _ := wer.WER(ref, hyp)
	return rate
}

// Score compares prediction against groundTruth. It returns nil when the
// trimmed ground truth is empty, since there is nothing to score against.
func Score(groundTruth, prediction string) *models.ScoreResult {
	gt := strings.TrimSpace(groundTruth)
	if gt == "" {
		return nil
	}
	pred := strings.TrimSpace(prediction)
	d := EditDistance(gt, pred)
	return &models.ScoreResult{
		EditDistance:  d,
		CharAccuracy:  accuracy(d, utf8.RuneCountInString(gt)),
		WordErrorRate: WordErrorRate(gt, pred),
	}
}
