// Package overfit classifies how much of a strategy's in-sample performance
// survives out of sample.
//
// The PBO value is a fixed lookup on the efficiency ratio. It is a heuristic
// classifier, not a calibrated probability of backtest overfitting, and the
// number of trials is recorded without influencing the thresholds.
package overfit

import (
	"math"

	"strategy-validation-lab/internal/domain"
)

// Efficiency thresholds shared by the verdict and the PBO lookup.
const (
	RobustThreshold     = 0.7
	AcceptableThreshold = 0.5
	ModerateThreshold   = 0.3
)

// PBO lookup values per band.
const (
	PBORobust     = 0.2
	PBOAcceptable = 0.4
	PBOModerate   = 0.6
	PBOHigh       = 0.8
)

// Efficiency returns outSample / inSample, or 0 when the ratio is undefined
// (zero in-sample metric) or not finite.
func Efficiency(inSample, outSample float64) float64 {
	if inSample == 0 {
		return 0
	}
	e := outSample / inSample
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return 0
	}
	return e
}

// Classify maps an efficiency ratio to its PBO value and verdict.
func Classify(efficiency float64) (float64, domain.OverfitVerdict) {
	switch {
	case efficiency >= RobustThreshold:
		return PBORobust, domain.VerdictRobust
	case efficiency >= AcceptableThreshold:
		return PBOAcceptable, domain.VerdictAcceptable
	case efficiency >= ModerateThreshold:
		return PBOModerate, domain.VerdictModerateOverfit
	default:
		return PBOHigh, domain.VerdictHighOverfit
	}
}

// Score computes the overfit score of one in-sample/out-of-sample pair.
// For a fixed positive in-sample metric, a higher out-of-sample metric never
// lowers efficiency or worsens the verdict.
func Score(inSample, outSample float64, nTrials int) domain.OverfitScore {
	eff := Efficiency(inSample, outSample)
	pbo, verdict := Classify(eff)
	return domain.OverfitScore{
		InSample:   inSample,
		OutSample:  outSample,
		Efficiency: eff,
		PBO:        pbo,
		Verdict:    verdict,
		NTrials:    nTrials,
	}
}

// FromRecord scores a trial using its train and test values of objective.
func FromRecord(rec domain.TrialRecord, objective domain.Objective, nTrials int) (domain.OverfitScore, error) {
	in, err := rec.TrainMetrics.Value(objective)
	if err != nil {
		return domain.OverfitScore{}, err
	}
	out, err := rec.TestMetrics.Value(objective)
	if err != nil {
		return domain.OverfitScore{}, err
	}
	return Score(in, out, nTrials), nil
}
