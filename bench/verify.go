package bench

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Stats compares a decompressed grid to its original.
type Stats struct {
	N int

	Min, Max, Range float64

	MaxAbsError   float64
	MaxErrorIndex int

	// MaxRelError is MaxAbsError as a fraction of the value range.
	MaxRelError float64

	MSE   float64
	RMSE  float64
	NRMSE float64

	// PSNR in dB; +Inf when the reconstruction is exact.
	PSNR float64
}

// Verify returns error statistics of dec relative to orig.
func Verify[T constraints.Float](orig, dec []T) (Stats, error) {
	if len(orig) != len(dec) {
		return Stats{}, fmt.Errorf("can't compare %d original values to %d decompressed", len(orig), len(dec))
	}
	s := Stats{N: len(orig)}
	if s.N == 0 {
		return s, nil
	}
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	var sumSq float64
	for i := range orig {
		o, d := float64(orig[i]), float64(dec[i])
		if o < s.Min {
			s.Min = o
		}
		if o > s.Max {
			s.Max = o
		}
		diff := math.Abs(o - d)
		if diff > s.MaxAbsError {
			s.MaxAbsError = diff
			s.MaxErrorIndex = i
		}
		sumSq += diff * diff
	}
	s.Range = s.Max - s.Min
	s.MSE = sumSq / float64(s.N)
	s.RMSE = math.Sqrt(s.MSE)
	if s.Range > 0 {
		s.MaxRelError = s.MaxAbsError / s.Range
		s.NRMSE = s.RMSE / s.Range
		s.PSNR = 20*math.Log10(s.Range) - 10*math.Log10(s.MSE)
	} else if s.MSE == 0 {
		s.PSNR = math.Inf(1)
	}
	return s, nil
}

func (s Stats) String() string {
	return fmt.Sprintf("range [%g, %g], max error %g (relative %g) at %d, PSNR %.2f dB, NRMSE %g",
		s.Min, s.Max, s.MaxAbsError, s.MaxRelError, s.MaxErrorIndex, s.PSNR, s.NRMSE)
}
