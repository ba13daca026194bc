package resample

import (
	"math"

	"github.com/montanaflynn/stats"
)

// FoldScores are the error metrics of one fold, computed against the fold's
// own response mean.
type FoldScores struct {
	N    int
	R2   float64
	RMSE float64
	MAE  float64
}

// Score computes R² (1 - SSE/SST), RMSE and MAE over the finite
// observed/predicted pairs. Returns ok=false when fewer than two finite
// pairs remain or the fold response has no variance.
func Score(observed, predicted []float64) (FoldScores, bool) {
	var obs, pred []float64
	for i := range observed {
		if isFinite(observed[i]) && isFinite(predicted[i]) {
			obs = append(obs, observed[i])
			pred = append(pred, predicted[i])
		}
	}
	n := len(obs)
	if n < 2 {
		return FoldScores{}, false
	}

	mean := 0.0
	for _, v := range obs {
		mean += v
	}
	mean /= float64(n)

	sse, sst, sae := 0.0, 0.0, 0.0
	for i := range obs {
		d := obs[i] - pred[i]
		sse += d * d
		sae += math.Abs(d)
		t := obs[i] - mean
		sst += t * t
	}
	if sst == 0 {
		return FoldScores{}, false
	}

	return FoldScores{
		N:    n,
		R2:   1 - sse/sst,
		RMSE: math.Sqrt(sse / float64(n)),
		MAE:  sae / float64(n),
	}, true
}

// meanSD aggregates one metric across repeat×fold cells
func meanSD(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	mean, _ := stats.Mean(values)
	if len(values) < 2 {
		return mean, 0
	}
	sd, _ := stats.StandardDeviationSample(values)
	return mean, sd
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
