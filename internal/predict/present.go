package predict

import (
	"math"
	"math/big"
	"strconv"
)

// Outcome labels.
const (
	LabelFatal    = "Fatal"
	LabelNonFatal = "Non-Fatal Injury"
)

// Presentation is the rendered form of a Result.
type Presentation struct {
	Label string `json:"label"`
	// PercentText is the probability of fatality with two decimals and a
	// trailing percent sign. Empty when HasProbability is false.
	PercentText    string `json:"percentText,omitempty"`
	HasProbability bool   `json:"hasProbability"`
}

// Present renders a result. Only the first element of each array is read.
func Present(r *Result) Presentation {
	var p Presentation
	p.Label = LabelNonFatal
	if r == nil {
		return p
	}
	if len(r.Prediction) > 0 && r.Prediction[0] == 1 {
		p.Label = LabelFatal
	}
	if prob, ok := r.Probability(); ok {
		p.HasProbability = true
		p.PercentText = toFixed2(prob*100) + "%"
	}
	return p
}

// Probability returns the first fatality probability, if the service sent one.
func (r *Result) Probability() (float64, bool) {
	if r == nil || len(r.ProbabilityFatal) == 0 {
		return 0, false
	}
	return r.ProbabilityFatal[0], true
}

// toFixed2 formats x with two decimals, rounding exact ties away from zero.
// strconv rounds ties to even, so the rounding runs on the exact binary value.
func toFixed2(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', 2, 64)
	}
	sign := ""
	if x < 0 {
		sign, x = "-", -x
	}
	v := new(big.Float).SetPrec(2048).SetFloat64(x)
	v.Mul(v, big.NewFloat(100))
	v.Add(v, big.NewFloat(0.5))
	n, _ := v.Int(nil)

	digits := n.String()
	for len(digits) < 3 {
		digits = "0" + digits
	}
	return sign + digits[:len(digits)-2] + "." + digits[len(digits)-2:]
}
