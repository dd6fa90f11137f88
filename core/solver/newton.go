package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/SebastianAlessandro/gcam-core/core/market"
)

// newtonStep applies one damped Newton-Raphson update to the prices of nr.
// The Jacobian of excess demand is built by forward differences: each
// perturbation is evaluated and then rolled back with RestoreInfo. The step
// is halved until the residual norm decreases. It reports whether a step was
// accepted; on rejection the marketplace is left as it was on entry.
func (s *Solver) newtonStep(st *periodState, nr []*market.Market) (bool, error) {
	n := len(nr)
	base := make([]float64, n)
	f0 := make([]float64, n)
	for i, m := range nr {
		base[i] = m.RawPrice()
		f0[i] = m.ExcessDemand()
	}
	norm0 := residualNorm(nr)

	s.mp.StoreInfo(st.period)
	jac := mat.NewDense(n, n, nil)
	for j, mj := range nr {
		mj.SetPrice(base[j] + s.cfg.Newton.Delta*math.Max(math.Abs(base[j]), 1))
		h := mj.RawPrice() - base[j]
		if err := s.evaluate(st); err != nil {
			s.mp.RestoreInfo(st.period)
			return false, err
		}
		for i, mi := range nr {
			jac.Set(i, j, (mi.ExcessDemand()-f0[i])/h)
		}
		s.mp.RestoreInfo(st.period)
	}

	var lu mat.LU
	lu.Factorize(jac)
	if cond := lu.Cond(); math.IsNaN(cond) || cond > s.cfg.Newton.MaxCondition {
		s.log.Debugf("period %d: newton jacobian ill-conditioned (cond=%g)", st.period, cond)
		return false, nil
	}
	rhs := mat.NewVecDense(n, nil)
	for i := range f0 {
		rhs.SetVec(i, -f0[i])
	}
	var dx mat.VecDense
	if err := lu.SolveVecTo(&dx, false, rhs); err != nil {
		s.log.Debugf("period %d: newton solve failed: %v", st.period, err)
		return false, nil
	}

	lambda := 1.0
	for k := 0; k < s.cfg.Newton.LineSearchSteps; k++ {
		for i, m := range nr {
			m.SetPrice(base[i] + lambda*dx.AtVec(i))
		}
		if err := s.evaluate(st); err != nil {
			s.mp.RestoreInfo(st.period)
			return false, err
		}
		if residualNorm(nr) < norm0 {
			return true, nil
		}
		s.mp.RestoreInfo(st.period)
		lambda /= 2
	}
	s.log.Debugf("period %d: newton line search found no improvement", st.period)
	return false, nil
}

// residualNorm is the Euclidean norm of the excess demands of ms.
func residualNorm(ms []*market.Market) float64 {
	var sum float64
	for _, m := range ms {
		ed := m.ExcessDemand()
		sum += ed * ed
	}
	return math.Sqrt(sum)
}
