package ephemeris

import (
	"math"
	"strconv"
	"strings"

	"github.com/latency-space/porkchop/internal/vector"
)

// Markers bounding the data block of a Horizons text response.
const (
	startMarker = "$$SOE"
	endMarker   = "$$EOE"
)

// Parse extracts state vectors from a Horizons CSV vector table. Each data
// row is "JD, calendar date, X, Y, Z, VX, VY, VZ" with any further columns
// ignored. Rows whose Julian date or vector components are not finite
// numbers are skipped.
func Parse(body string) Result {
	start := strings.Index(body, startMarker)
	end := strings.Index(body, endMarker)
	if start < 0 || end < 0 || end < start {
		return Failure(OutcomeFormat, "missing "+startMarker+"/"+endMarker+" markers: "+excerpt(body))
	}

	var series Series
	for _, line := range strings.Split(body[start+len(startMarker):end], "\n") {
		sv, ok := parseRow(line)
		if !ok {
			continue
		}
		series = append(series, sv)
	}

	if len(series) == 0 {
		return Failure(OutcomeEmpty, "no rows between markers")
	}
	return Success(series)
}

func parseRow(line string) (StateVector, bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 8 {
		return StateVector{}, false
	}

	jd, ok := parseFinite(fields[0])
	if !ok {
		return StateVector{}, false
	}

	var nums [6]float64
	for i := range nums {
		v, ok := parseFinite(fields[i+2])
		if !ok {
			return StateVector{}, false
		}
		nums[i] = v
	}

	return StateVector{
		Epoch:        jd,
		CalendarDate: strings.TrimSpace(fields[1]),
		Position:     vector.Vec3{X: nums[0], Y: nums[1], Z: nums[2]},
		Velocity:     vector.Vec3{X: nums[3], Y: nums[4], Z: nums[5]},
	}, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
