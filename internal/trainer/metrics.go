package trainer

import "math"

func accuracy(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	hits := 0
	for i := range want {
		if want[i] == got[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

func meanAbsoluteError(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	var sum float64
	for i := range want {
		sum += math.Abs(want[i] - got[i])
	}
	return sum / float64(len(want))
}

func meanSquaredError(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	var sum float64
	for i := range want {
		d := want[i] - got[i]
		sum += d * d
	}
	return sum / float64(len(want))
}

// rSquared is 1 - SSres/SStot; 0 when the target is constant.
func rSquared(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	var mean float64
	for _, v := range want {
		mean += v
	}
	mean /= float64(len(want))

	var ssRes, ssTot float64
	for i := range want {
		ssRes += (want[i] - got[i]) * (want[i] - got[i])
		ssTot += (want[i] - mean) * (want[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
