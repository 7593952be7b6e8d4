package candle

// Aggregate rolls source-interval candles up into target-interval bars.
// Target bars are aligned to floor(t / targetMs) * targetMs: open is the
// first source bar's open, high/low are the max/min across the bucket,
// close is the last source bar's close, and volume/count are summed.
//
// If target is not a whole multiple of source, or target <= source, the
// input is returned unchanged (per §4.1: "If target <= source, return the
// input unchanged").
func Aggregate(src []Candle, source, target Interval) ([]Candle, error) {
	if len(src) == 0 {
		return nil, nil
	}

	sourceMs, err := source.Milliseconds()
	if err != nil {
		return nil, err
	}
	targetMs, err := target.Milliseconds()
	if err != nil {
		return nil, err
	}
	if targetMs <= sourceMs || targetMs%sourceMs != 0 {
		out := make([]Candle, len(src))
		copy(out, src)
		return out, nil
	}

	out := make([]Candle, 0, len(src)*int(sourceMs)/int(targetMs)+1)
	var bucket *Candle
	var bucketStart int64 = -1

	flush := func() {
		if bucket != nil {
			out = append(out, *bucket)
			bucket = nil
		}
	}

	for _, c := range src {
		start := (c.T / targetMs) * targetMs
		if start != bucketStart {
			flush()
			bucketStart = start
			b := c
			b.T = start
			bucket = &b
			continue
		}
		if c.H > bucket.H {
			bucket.H = c.H
		}
		if c.L < bucket.L {
			bucket.L = c.L
		}
		bucket.C = c.C
		bucket.V += c.V
		bucket.N += c.N
	}
	flush()

	return out, nil
}
