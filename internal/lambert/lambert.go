// Package lambert solves Lambert's problem: given two position vectors and
// an elapsed time, find the two-body Keplerian orbit that connects them.
//
// The solver uses the universal-variable formulation. The time-of-flight
// equation is monotonic in the universal variable z over a single
// revolution, so it is bracketed and bisected with a fixed iteration cap.
// Multi-revolution branches are not produced.
package lambert

import (
	"math"

	"github.com/latency-space/porkchop/internal/vector"
)

const (
	maxIterations = 100

	// Relative time-of-flight tolerance for early exit.
	tolerance = 1e-8

	// Accepted when the bracket has collapsed without reaching tolerance.
	looseTolerance = 1e-6

	// |r1 x r2| below this fraction of |r1||r2| counts as collinear.
	collinearEpsilon = 1e-12

	// Stumpff functions switch to their series expansion inside |z| < seriesLimit.
	seriesLimit = 1e-3
)

// zMax is the single-revolution upper bound of z, where C(z) vanishes.
const zMax = 4 * math.Pi * math.Pi

// Solution holds the velocities at both ends of a transfer arc.
type Solution struct {
	V1 vector.Vec3 // velocity at r1, km/s
	V2 vector.Vec3 // velocity at r2, km/s
}

// Solve returns the transfer velocities for the arc from r1 to r2 taking dt
// seconds under gravitational parameter mu. prograde selects the branch whose
// angular momentum points along +z.
//
// The boolean is false when no usable transfer exists: r1 and r2 are
// collinear, the root finder did not converge, or the inputs are not finite
// and positive where required.
func Solve(r1, r2 vector.Vec3, dt, mu float64, prograde bool) (Solution, bool) {
	if !r1.IsFinite() || !r2.IsFinite() || !positive(dt) || !positive(mu) {
		return Solution{}, false
	}

	r1n, r2n := r1.Mag(), r2.Mag()
	if r1n == 0 || r2n == 0 {
		return Solution{}, false
	}

	// Transfer angle 0 or pi leaves the transfer plane undefined
	normal := r1.Cross(r2)
	if normal.Mag() <= collinearEpsilon*r1n*r2n {
		return Solution{}, false
	}

	cosTheta := clamp(r1.Dot(r2)/(r1n*r2n), -1, 1)
	theta := math.Acos(cosTheta)
	if (normal.Z >= 0) != prograde {
		theta = 2*math.Pi - theta
	}

	a := math.Sin(theta) * math.Sqrt(r1n*r2n/(1-cosTheta))
	if a == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
		return Solution{}, false
	}

	g := geometry{r1: r1n, r2: r2n, a: a, sqrtMu: math.Sqrt(mu)}

	z, ok := g.solveZ(dt)
	if !ok {
		return Solution{}, false
	}

	y := g.y(z)
	f := 1 - y/r1n
	gg := a * math.Sqrt(y/mu)
	gdot := 1 - y/r2n
	if gg == 0 || math.IsNaN(gg) {
		return Solution{}, false
	}

	sol := Solution{
		V1: r2.Sub(r1.Scale(f)).Scale(1 / gg),
		V2: r2.Scale(gdot).Sub(r1).Scale(1 / gg),
	}
	if !sol.V1.IsFinite() || !sol.V2.IsFinite() {
		return Solution{}, false
	}
	return sol, true
}

// geometry carries the per-problem constants of the time-of-flight equation.
type geometry struct {
	r1, r2 float64
	a      float64
	sqrtMu float64
}

func (g geometry) y(z float64) float64 {
	return g.r1 + g.r2 + g.a*(z*stumpffS(z)-1)/math.Sqrt(stumpffC(z))
}

// timeOfFlight returns false where y(z) is negative, which only happens
// below the feasible range of z.
func (g geometry) timeOfFlight(z float64) (float64, bool) {
	y := g.y(z)
	if y < 0 || math.IsNaN(y) {
		return 0, false
	}
	c, s := stumpffC(z), stumpffS(z)
	x := math.Sqrt(y / c)
	return (x*x*x*s + g.a*math.Sqrt(y)) / g.sqrtMu, true
}

func (g geometry) solveZ(dt float64) (float64, bool) {
	lo, hi := -zMax, zMax

	for i := 0; i < maxIterations; i++ {
		z := 0.5 * (lo + hi)
		t, ok := g.timeOfFlight(z)
		if ok && math.Abs(t-dt) <= tolerance*dt {
			return z, true
		}
		if !ok || t < dt {
			lo = z
		} else {
			hi = z
		}
	}

	z := 0.5 * (lo + hi)
	t, ok := g.timeOfFlight(z)
	if !ok || math.Abs(t-dt) > looseTolerance*dt {
		return 0, false
	}
	return z, true
}

func stumpffC(z float64) float64 {
	switch {
	case z > seriesLimit:
		return (1 - math.Cos(math.Sqrt(z))) / z
	case z < -seriesLimit:
		return (math.Cosh(math.Sqrt(-z)) - 1) / -z
	default:
		return 1.0/2 - z/24 + z*z/720
	}
}

func stumpffS(z float64) float64 {
	switch {
	case z > seriesLimit:
		s := math.Sqrt(z)
		return (s - math.Sin(s)) / (s * s * s)
	case z < -seriesLimit:
		s := math.Sqrt(-z)
		return (math.Sinh(s) - s) / (s * s * s)
	default:
		return 1.0/6 - z/120 + z*z/5040
	}
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
