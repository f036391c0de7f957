package strategy

// sma returns the simple moving average of closes[i-window+1..i] for every i.
// ok[i] is false until window closes are available.
func sma(closes []float64, window int) (avg []float64, ok []bool) {
	avg = make([]float64, len(closes))
	ok = make([]bool, len(closes))
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= window {
			sum -= closes[i-window]
		}
		if i >= window-1 {
			avg[i] = sum / float64(window)
			ok[i] = true
		}
	}
	return avg, ok
}

// periodReturn is the net return of holding position from prev to cur close,
// charged for moving from the previous position.
//   - gross = position * (cur/prev - 1)
//   - cost  = |position - held| * commission_bps / 10000 + fixed_fee / capital (on change)
func periodReturn(prev, cur, held, position float64, cfg Config, capitalBase float64) float64 {
	gross := position * (cur/prev - 1)

	turnover := position - held
	if turnover < 0 {
		turnover = -turnover
	}
	cost := turnover * cfg.CommissionBps / 10_000
	if turnover > 0 && capitalBase > 0 {
		cost += cfg.FixedFee / capitalBase
	}
	return gross - cost
}
