package s2_signals

import "math"

// Series helpers. Undefined positions (warm-up windows, missing inputs) are NaN,
// and every comparison against NaN is false, so a flag never fires on a partial window.

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// fill replaces non-positive or NaN values with the previous valid value,
// then back-fills any leading gap with the first valid value.
func fill(x []float64) []float64 {
	out := make([]float64, len(x))
	last := math.NaN()
	for i, v := range x {
		if v > 0 && !math.IsNaN(v) {
			last = v
		}
		out[i] = last
	}
	first := math.NaN()
	for _, v := range out {
		if !math.IsNaN(v) {
			first = v
			break
		}
	}
	for i := range out {
		if !math.IsNaN(out[i]) {
			break
		}
		out[i] = first
	}
	return out
}

// sma is the simple moving average over window n
func sma(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n <= 0 || len(x) < n {
		return out
	}
	var sum float64
	for i, v := range x {
		sum += v
		if i >= n {
			sum -= x[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// rollingStd is the sample (n-1) standard deviation over window n
func rollingStd(x []float64, n int) []float64 {
	out := nanSeries(len(x))
	if n <= 1 || len(x) < n {
		return out
	}
	for i := n - 1; i < len(x); i++ {
		var mean float64
		for _, v := range x[i-n+1 : i+1] {
			mean += v
		}
		mean /= float64(n)
		var ss float64
		for _, v := range x[i-n+1 : i+1] {
			ss += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// ema is the recursive exponential average seeded with the first value (no bias adjustment)
func ema(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// diff is x[i] - x[i-1]
func diff(x []float64) []float64 {
	out := nanSeries(len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

// wilderRSI computes RSI with Wilder smoothing: the first average is a simple mean
// of the first n changes, later averages are (prev*(n-1) + current) / n.
func wilderRSI(close []float64, n int) []float64 {
	out := nanSeries(len(close))
	if n <= 0 || len(close) <= n {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		ch := close[i] - close[i-1]
		if ch > 0 {
			avgGain += ch
		} else {
			avgLoss -= ch
		}
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiValue(avgGain, avgLoss)

	for i := n + 1; i < len(close); i++ {
		ch := close[i] - close[i-1]
		gain, loss := 0.0, 0.0
		if ch > 0 {
			gain = ch
		} else {
			loss = -ch
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// wilderADX computes the average directional index over period n.
// The first ADX value appears at index 2n-1.
func wilderADX(high, low, close []float64, n int) []float64 {
	size := len(close)
	out := nanSeries(size)
	if n <= 0 || size < 2*n {
		return out
	}

	tr := make([]float64, size)
	plusDM := make([]float64, size)
	minusDM := make([]float64, size)
	for i := 1; i < size; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))

		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var sTR, sPlus, sMinus float64
	for i := 1; i <= n; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	dx := nanSeries(size)
	dx[n] = dxValue(sPlus, sMinus, sTR)
	for i := n + 1; i < size; i++ {
		sTR = sTR - sTR/float64(n) + tr[i]
		sPlus = sPlus - sPlus/float64(n) + plusDM[i]
		sMinus = sMinus - sMinus/float64(n) + minusDM[i]
		dx[i] = dxValue(sPlus, sMinus, sTR)
	}

	var adx float64
	for i := n; i < 2*n; i++ {
		adx += dx[i]
	}
	adx /= float64(n)
	out[2*n-1] = adx
	for i := 2 * n; i < size; i++ {
		adx = (adx*float64(n-1) + dx[i]) / float64(n)
		out[i] = adx
	}
	return out
}

func dxValue(sPlus, sMinus, sTR float64) float64 {
	if sTR == 0 {
		return 0
	}
	plusDI := 100 * sPlus / sTR
	minusDI := 100 * sMinus / sTR
	if plusDI+minusDI == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
}
