package ephemeris

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/latency-space/porkchop/internal/bodies"
	"github.com/latency-space/porkchop/internal/vector"
)

// calendarLayout mirrors the calendar column of a Horizons vector table.
const calendarLayout = "A.D. 2006-Jan-02 15:04:05.0000"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-Jan-02",
}

// ElementsSource propagates each planet's mean Keplerian elements instead
// of calling an upstream service. It is accurate to a few hundred thousand
// km for the inner planets, which is enough for grid previews and tests.
type ElementsSource struct{}

// NewElementsSource creates an offline source.
func NewElementsSource() *ElementsSource {
	return &ElementsSource{}
}

// Name returns the source name for logging and metrics.
func (s *ElementsSource) Name() string {
	return "elements"
}

// Fetch samples req.Samples+1 evenly spaced epochs over [Start, End].
func (s *ElementsSource) Fetch(_ context.Context, req Request) Result {
	start, err := ParseDate(req.Start)
	if err != nil {
		return Failure(OutcomeFormat, err.Error())
	}
	end, err := ParseDate(req.End)
	if err != nil {
		return Failure(OutcomeFormat, err.Error())
	}
	if end.Before(start) {
		return Failure(OutcomeFormat, fmt.Sprintf("stop time %s is before start time %s", req.End, req.Start))
	}
	if req.Samples < 1 {
		return Failure(OutcomeEmpty, "no samples requested")
	}

	jd0 := julian.TimeToJD(start)
	step := (julian.TimeToJD(end) - jd0) / float64(req.Samples)
	stepDur := end.Sub(start) / time.Duration(req.Samples)

	series := make(Series, 0, req.Samples+1)
	for i := 0; i <= req.Samples; i++ {
		jd := jd0 + float64(i)*step
		pos, vel := StateFromElements(req.Body.Elements, jd)
		series = append(series, StateVector{
			Epoch:        jd,
			CalendarDate: start.Add(time.Duration(i) * stepDur).Format(calendarLayout),
			Position:     pos,
			Velocity:     vel,
		})
	}
	return Success(series)
}

// ParseDate accepts the date forms the API documents (ISO dates with an
// optional time of day) and returns the instant in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// StateFromElements returns the heliocentric ecliptic position (km) and
// velocity (km/s) described by el at Julian date jd.
func StateFromElements(el bodies.Elements, jd float64) (vector.Vec3, vector.Vec3) {
	// Centuries since J2000
	T := (jd - bodies.J2000Epoch) / bodies.DaysPerCentury

	a := (el.A + T*el.DA) * bodies.AU
	e := el.E + T*el.DE
	i := degToRad(el.I + T*el.DI)
	L := degToRad(normalizeDegrees(el.L + T*el.DL))
	wbar := degToRad(normalizeDegrees(el.LP + T*el.DLP))
	node := degToRad(normalizeDegrees(el.N + T*el.DN))

	M := normalizeRadians(L - wbar)
	w := normalizeRadians(wbar - node)

	E := solveKeplerEquation(M, e)

	// Position and velocity in the orbital plane
	n := math.Sqrt(bodies.MuSun / (a * a * a))
	cosE, sinE := math.Cos(E), math.Sin(E)
	b := a * math.Sqrt(1-e*e)
	eDot := n / (1 - e*cosE)

	xOrb := a * (cosE - e)
	yOrb := b * sinE
	vxOrb := -a * sinE * eDot
	vyOrb := b * cosE * eDot

	// Rotate by argument of perihelion, inclination and ascending node
	cw, sw := math.Cos(w), math.Sin(w)
	ci, si := math.Cos(i), math.Sin(i)
	cn, sn := math.Cos(node), math.Sin(node)

	rotate := func(x, y float64) vector.Vec3 {
		return vector.Vec3{
			X: (cw*cn-sw*sn*ci)*x + (-sw*cn-cw*sn*ci)*y,
			Y: (cw*sn+sw*cn*ci)*x + (-sw*sn+cw*cn*ci)*y,
			Z: (sw*si)*x + (cw*si)*y,
		}
	}

	return rotate(xOrb, yOrb), rotate(vxOrb, vyOrb)
}

// solveKeplerEquation solves M = E - e sin E for the eccentric anomaly.
func solveKeplerEquation(M, e float64) float64 {
	// Danby's starter
	E := M + e*math.Sin(M)*(1.0+e*math.Cos(M))

	for iter := 0; iter < 15; iter++ {
		f := E - e*math.Sin(E) - M
		if math.Abs(f) < 1e-14 {
			break
		}
		E -= f / (1.0 - e*math.Cos(E))
	}

	return normalizeRadians(E)
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// normalizeRadians wraps an angle to [0, 2*pi)
func normalizeRadians(angle float64) float64 {
	angle = math.Mod(angle, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}

// normalizeDegrees wraps an angle to [0, 360)
func normalizeDegrees(angle float64) float64 {
	angle = math.Mod(angle, 360.0)
	if angle < 0 {
		angle += 360.0
	}
	return angle
}
