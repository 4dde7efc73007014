package numeric

import "math"

// NormPDF evaluates the normal probability density with the given mean and
// variance at x. A zero variance degenerates to a point mass: 1 at the mean,
// 0 elsewhere.
func NormPDF(x, mean, variance float64) float64 {
	if variance == 0 {
		if x == mean {
			return 1
		}
		return 0
	}
	return math.Exp(-((x-mean)*(x-mean))/(2*variance)) / math.Sqrt(2*math.Pi*variance)
}
