package stats

import "github.com/axton-labs/backtrader/position"

// WalkForwardResult is the optional 70/30 train/test split check named in
// §4.7: a profit factor that holds up out-of-sample is evidence against
// overfitting; one that collapses is flagged.
type WalkForwardResult struct {
	TrainPF  float64
	TestPF   float64
	Ratio    float64
	Overfit  bool
}

// WalkForward splits the ledger 70/30 by order and compares profit factor
// on each half. Returns nil when there are too few trades to split
// meaningfully (fewer than 10, so each half carries some signal).
func WalkForward(trades []position.CompletedTrade) *WalkForwardResult {
	if len(trades) < 10 {
		return nil
	}

	splitAt := int(float64(len(trades)) * 0.7)
	train := trades[:splitAt]
	test := trades[splitAt:]

	trainPF := ComputeMetrics(train, 0).ProfitFactor
	testPF := ComputeMetrics(test, 0).ProfitFactor

	var ratio float64
	switch {
	case trainPF == 0:
		ratio = 0
	default:
		ratio = testPF / trainPF
	}

	return &WalkForwardResult{
		TrainPF: trainPF,
		TestPF:  testPF,
		Ratio:   ratio,
		Overfit: ratio < 0.5,
	}
}
