package truth

import (
	"fmt"
	"time"

	"github.com/venturelane/vceo/internal/store"
)

// Period restricts calibration to a lookback window.
type Period string

// Lookback windows.
const (
	PeriodWeek    Period = "week"    // 7 days
	PeriodMonth   Period = "month"   // 30 days
	PeriodQuarter Period = "quarter" // 90 days
	PeriodAll     Period = "all"     // unbounded
)

func (p Period) cutoff(now time.Time) (time.Time, error) {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth:
		return now.AddDate(0, 0, -30), nil
	case PeriodQuarter:
		return now.AddDate(0, 0, -90), nil
	case PeriodAll, "":
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("unknown calibration period %q", p)
}

const calibrationBuckets = 10

// BucketStat is one confidence bucket's observed behavior. Bucket i
// covers [i/10, (i+1)/10), except the last which includes 1.0.
type BucketStat struct {
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Midpoint float64 `json:"midpoint"`
	Count    int     `json:"count"`
	Accuracy float64 `json:"accuracy"`
}

// Report holds calibration statistics over one period. Accuracy and
// BrierScore are nil, not zero, when no resolved predictions fall in
// the window. "Never measured" and "always wrong" must not look alike.
type Report struct {
	Period     Period   `json:"period"`
	AgentID    string   `json:"agent_id"`
	Resolved   int      `json:"resolved"`
	Accuracy   *float64 `json:"accuracy"`
	BrierScore *float64 `json:"brier_score"`
	// CalibrationError is the count-weighted mean absolute deviation
	// between each non-empty bucket's midpoint confidence and its
	// observed accuracy.
	CalibrationError *float64           `json:"calibration_error"`
	Buckets          []BucketStat       `json:"buckets,omitempty"`
	AccuracyByType   map[string]float64 `json:"accuracy_by_type,omitempty"`
}

// Calibration computes the agent's calibration report for a period.
// Only resolved predictions within the window contribute; the Brier
// score averages the deltas stored at resolution time.
func (r *Recorder) Calibration(agentID string, period Period) (*Report, error) {
	cutoff, err := period.cutoff(time.Now())
	if err != nil {
		return nil, err
	}

	preds, err := store.ResolvedPredictionsSince(r.db, agentID, cutoff)
	if err != nil {
		return nil, err
	}

	report := &Report{Period: period, AgentID: agentID, Resolved: len(preds)}
	if len(preds) == 0 {
		return report, nil
	}

	var (
		correct    int
		brierSum   float64
		byType     = make(map[string]*[2]int) // type -> [correct, total]
		bucketHit  [calibrationBuckets]int
		bucketSeen [calibrationBuckets]int
	)

	for _, p := range preds {
		wasCorrect := p.WasCorrect != nil && *p.WasCorrect
		if wasCorrect {
			correct++
		}
		if p.CalibrationDelta != nil {
			brierSum += *p.CalibrationDelta
		}

		counts, ok := byType[p.Type]
		if !ok {
			counts = &[2]int{}
			byType[p.Type] = counts
		}
		if wasCorrect {
			counts[0]++
		}
		counts[1]++

		b := bucketIndex(p.Confidence)
		bucketSeen[b]++
		if wasCorrect {
			bucketHit[b]++
		}
	}

	accuracy := float64(correct) / float64(len(preds))
	brier := brierSum / float64(len(preds))
	report.Accuracy = &accuracy
	report.BrierScore = &brier

	var (
		deviationSum float64
		counted      int
	)
	for i := 0; i < calibrationBuckets; i++ {
		if bucketSeen[i] == 0 {
			continue
		}
		low := float64(i) / calibrationBuckets
		high := float64(i+1) / calibrationBuckets
		mid := (low + high) / 2
		acc := float64(bucketHit[i]) / float64(bucketSeen[i])

		report.Buckets = append(report.Buckets, BucketStat{
			Low: low, High: high, Midpoint: mid,
			Count: bucketSeen[i], Accuracy: acc,
		})

		dev := mid - acc
		if dev < 0 {
			dev = -dev
		}
		deviationSum += dev * float64(bucketSeen[i])
		counted += bucketSeen[i]
	}
	if counted > 0 {
		calErr := deviationSum / float64(counted)
		report.CalibrationError = &calErr
	}

	report.AccuracyByType = make(map[string]float64, len(byType))
	for t, counts := range byType {
		report.AccuracyByType[t] = float64(counts[0]) / float64(counts[1])
	}

	return report, nil
}

// bucketIndex maps a confidence in [0,1] to its width-0.1 bucket.
// Confidence 1.0 falls in the top bucket rather than an eleventh.
func bucketIndex(confidence float64) int {
	i := int(confidence * calibrationBuckets)
	if i >= calibrationBuckets {
		i = calibrationBuckets - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
