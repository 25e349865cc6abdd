package porkchop

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latency-space/porkchop/internal/ephemeris"
)

// recordingProvider delegates to an offline provider and records each call.
type recordingProvider struct {
	mu      sync.Mutex
	calls   []string
	samples []int
	fail    map[string]error
	inner   *ephemeris.Provider
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{
		fail:  map[string]error{},
		inner: ephemeris.NewProvider(ephemeris.NewElementsSource(), nil),
	}
}

func (p *recordingProvider) GetEphemeris(ctx context.Context, body, start, end string, samples int) (ephemeris.Series, error) {
	p.mu.Lock()
	p.calls = append(p.calls, body)
	p.samples = append(p.samples, samples)
	err := p.fail[body]
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return p.inner.GetEphemeris(ctx, body, start, end, samples)
}

func earthToMars() Request {
	return Request{
		DepartureBody:  "earth",
		ArrivalBody:    "mars",
		DepartureStart: "2026-10-15",
		DepartureEnd:   "2026-11-14",
		ArrivalStart:   "2027-04-13",
		ArrivalEnd:     "2027-05-13",
		Resolution:     10,
	}
}

// assertConsistent checks that each cell is finite in every matrix or NaN in
// every matrix.
func assertConsistent(t *testing.T, g *Grid) {
	t.Helper()
	for i := 0; i < g.Rows(); i++ {
		for j := 0; j < g.Cols(); j++ {
			s := g.At(i, j)
			values := []float64{s.C3, s.DeltaV, s.DepartureExcess, s.ArrivalExcess, s.TimeOfFlight}
			nan := math.IsNaN(values[0])
			for _, v := range values {
				assert.Equal(t, nan, math.IsNaN(v), "cell [%d][%d] mixes NaN and values", i, j)
				if !nan {
					assert.False(t, math.IsInf(v, 0), "cell [%d][%d]", i, j)
				}
			}
		}
	}
}

func TestBuild_EarthToMars(t *testing.T) {
	b := NewBuilder(newRecordingProvider())

	g, err := b.Build(context.Background(), earthToMars())
	require.NoError(t, err)

	assert.Equal(t, "earth", g.Departure.Body)
	assert.Equal(t, "mars", g.Arrival.Body)
	for _, m := range []Matrix{g.C3, g.DeltaV, g.DepartureExcess, g.ArrivalExcess, g.TimeOfFlight} {
		require.Len(t, m, 11)
		for _, row := range m {
			assert.Len(t, row, 11)
		}
	}
	assert.Len(t, g.Departure.Epochs, 11)
	assert.Len(t, g.Arrival.Dates, 11)

	require.True(t, g.Valid(0, 0))
	cell := g.At(0, 0)
	assert.Greater(t, cell.C3, 0.0)
	assert.Greater(t, cell.DeltaV, 0.0)
	assert.InDelta(t, 180.0, cell.TimeOfFlight, 1e-6)
	assert.InDelta(t, cell.DepartureExcess*cell.DepartureExcess, cell.C3, 1e-9)
	assert.InDelta(t, cell.DepartureExcess+cell.ArrivalExcess, cell.DeltaV, 1e-9)

	// A 180-day Earth-Mars transfer sits well inside these bounds
	assert.Less(t, cell.C3, 100.0)
	assert.Less(t, cell.DeltaV, 25.0)

	assertConsistent(t, g)
}

func TestBuild_NonPositiveTimeOfFlightIsInvalid(t *testing.T) {
	b := NewBuilder(newRecordingProvider())
	req := Request{
		DepartureBody:  "earth",
		ArrivalBody:    "mars",
		DepartureStart: "2026-01-01",
		DepartureEnd:   "2026-01-11",
		ArrivalStart:   "2026-01-01",
		ArrivalEnd:     "2026-01-11",
		Resolution:     10,
	}

	g, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 11, g.Rows())
	require.Equal(t, 11, g.Cols())

	for i := 0; i < g.Rows(); i++ {
		for j := 0; j <= i; j++ {
			assert.False(t, g.Valid(i, j), "cell [%d][%d] has arrival at or before departure", i, j)
			assert.True(t, math.IsNaN(g.C3[i][j]))
			assert.True(t, math.IsNaN(g.DeltaV[i][j]))
			assert.True(t, math.IsNaN(g.DepartureExcess[i][j]))
			assert.True(t, math.IsNaN(g.ArrivalExcess[i][j]))
		}
	}
	assertConsistent(t, g)
}

func TestBuild_UnknownBody(t *testing.T) {
	testCases := []struct {
		name  string
		mod   func(*Request)
		field string
	}{
		{"departure", func(r *Request) { r.DepartureBody = "pluto" }, "departureBody"},
		{"arrival", func(r *Request) { r.ArrivalBody = "pluto" }, "arrivalBody"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newRecordingProvider()
			req := earthToMars()
			tc.mod(&req)

			g, err := NewBuilder(p).Build(context.Background(), req)
			assert.Nil(t, g)

			var invalid *ephemeris.InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.field, invalid.Field)
			assert.Equal(t, []string{"mercury", "venus", "earth", "mars", "jupiter", "saturn", "uranus", "neptune"}, invalid.Valid)
			assert.Empty(t, p.calls, "no fetch for invalid input")
		})
	}
}

func TestBuild_MissingDates(t *testing.T) {
	testCases := []struct {
		field string
		mod   func(*Request)
	}{
		{"departureStart", func(r *Request) { r.DepartureStart = "" }},
		{"departureEnd", func(r *Request) { r.DepartureEnd = " " }},
		{"arrivalStart", func(r *Request) { r.ArrivalStart = "" }},
		{"arrivalEnd", func(r *Request) { r.ArrivalEnd = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.field, func(t *testing.T) {
			p := newRecordingProvider()
			req := earthToMars()
			tc.mod(&req)

			_, err := NewBuilder(p).Build(context.Background(), req)

			var invalid *ephemeris.InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.field, invalid.Field)
			assert.Empty(t, p.calls)
		})
	}
}

func TestBuild_BodyNamesNormalized(t *testing.T) {
	req := earthToMars()
	req.DepartureBody = " Earth "
	req.ArrivalBody = "MARS"

	g, err := NewBuilder(newRecordingProvider()).Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "earth", g.Departure.Body)
	assert.Equal(t, "mars", g.Arrival.Body)
}

func TestBuild_ResolutionClamped(t *testing.T) {
	testCases := []struct {
		name       string
		resolution int
		opts       []Option
		want       int
	}{
		{"below minimum", 2, nil, MinResolution},
		{"negative", -4, nil, MinResolution},
		{"above maximum", 500, nil, MaxResolution},
		{"unset uses default", 0, nil, DefaultResolution},
		{"unset uses configured default", 0, []Option{WithDefaultResolution(20)}, 20},
		{"configured default is clamped", 0, []Option{WithDefaultResolution(1000)}, MaxResolution},
		{"in range", 12, nil, 12},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newRecordingProvider()
			req := earthToMars()
			req.Resolution = tc.resolution

			g, err := NewBuilder(p, tc.opts...).Build(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, []int{tc.want, tc.want}, p.samples)
			assert.Equal(t, tc.want+1, g.Rows())
			assert.Equal(t, tc.want+1, g.Cols())
		})
	}
}

func TestBuild_FetchFailure(t *testing.T) {
	p := newRecordingProvider()
	p.fail["mars"] = &ephemeris.NetworkError{BodyID: "499", Status: 503, Excerpt: "unavailable"}

	g, err := NewBuilder(p).Build(context.Background(), earthToMars())
	assert.Nil(t, g)

	var netErr *ephemeris.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 503, netErr.Status)
	assert.Contains(t, err.Error(), "arrival ephemeris")
}

// barrierProvider blocks each call until both fetches are in flight.
type barrierProvider struct {
	arrived chan string
	release chan struct{}
	fail    map[string]error
	inner   *ephemeris.Provider
}

func newBarrierProvider() *barrierProvider {
	return &barrierProvider{
		arrived: make(chan string, 2),
		release: make(chan struct{}),
		fail:    map[string]error{},
		inner:   ephemeris.NewProvider(ephemeris.NewElementsSource(), nil),
	}
}

func (p *barrierProvider) GetEphemeris(ctx context.Context, body, start, end string, samples int) (ephemeris.Series, error) {
	p.arrived <- body
	if err := p.fail[body]; err != nil {
		return nil, err
	}
	select {
	case <-p.release:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("%s fetch was never joined by the other body", body)
	}
	return p.inner.GetEphemeris(ctx, body, start, end, samples)
}

func TestBuild_FetchesBothBodiesConcurrently(t *testing.T) {
	p := newBarrierProvider()
	go func() {
		<-p.arrived
		<-p.arrived
		close(p.release)
	}()

	g, err := NewBuilder(p).Build(context.Background(), earthToMars())
	require.NoError(t, err)
	assert.Equal(t, 11, g.Rows())
}

func TestBuild_FetchFailureWhileOtherInFlight(t *testing.T) {
	p := newBarrierProvider()
	p.fail["mars"] = &ephemeris.NetworkError{BodyID: "499", Status: 503, Excerpt: "unavailable"}

	type result struct {
		grid *Grid
		err  error
	}
	done := make(chan result, 1)
	go func() {
		g, err := NewBuilder(p).Build(context.Background(), earthToMars())
		done <- result{g, err}
	}()

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case body := <-p.arrived:
			got[body] = true
		case <-time.After(5 * time.Second):
			t.Fatal("fetches did not overlap")
		}
	}
	assert.Equal(t, map[string]bool{"earth": true, "mars": true}, got)

	select {
	case <-done:
		t.Fatal("build returned while the departure fetch was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(p.release)

	select {
	case res := <-done:
		assert.Nil(t, res.grid)
		var netErr *ephemeris.NetworkError
		require.ErrorAs(t, res.err, &netErr)
		assert.Contains(t, res.err.Error(), "arrival ephemeris")
	case <-time.After(5 * time.Second):
		t.Fatal("build did not finish")
	}
}

func TestStream_RowsInOrder(t *testing.T) {
	var seen []int
	g, err := NewBuilder(newRecordingProvider()).Stream(context.Background(), earthToMars(), func(g *Grid, i int) error {
		seen = append(seen, i)
		for j := 0; j < g.Cols(); j++ {
			assert.True(t, g.Valid(i, j) || math.IsNaN(g.C3[i][j]))
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)
	assert.Equal(t, 11, g.Rows())
}

func TestStream_CallbackErrorStops(t *testing.T) {
	stop := errors.New("client went away")
	calls := 0

	g, err := NewBuilder(newRecordingProvider()).Stream(context.Background(), earthToMars(), func(*Grid, int) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})

	assert.Nil(t, g)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, calls)
}

// contextSource serves offline elements but fails if its context is done.
type contextSource struct {
	calls atomic.Int32
	inner *ephemeris.ElementsSource
}

func (s *contextSource) Name() string { return "context-checking" }

func (s *contextSource) Fetch(ctx context.Context, req ephemeris.Request) ephemeris.Result {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return ephemeris.Failure(ephemeris.OutcomeNetwork, err.Error())
	}
	return s.inner.Fetch(ctx, req)
}

func TestBuild_CancelledCallerStillCompletes(t *testing.T) {
	src := &contextSource{inner: ephemeris.NewElementsSource()}
	b := NewBuilder(ephemeris.NewProvider(src, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := 0
	g, err := b.Stream(ctx, earthToMars(), func(*Grid, int) error {
		rows++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 11, rows)
	assert.Equal(t, 11, g.Rows())
	assert.Equal(t, 11, g.Cols())
	assert.Equal(t, int32(2), src.calls.Load())

	_, err = b.Build(context.Background(), earthToMars())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "both series cached by the abandoned build")
}

func TestBuild_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	b := NewBuilder(newRecordingProvider(), WithMetrics(m))

	_, err := b.Build(context.Background(), earthToMars())
	require.NoError(t, err)

	req := earthToMars()
	req.ArrivalBody = "pluto"
	_, err = b.Build(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("error")))
	total := testutil.ToFloat64(m.cells.WithLabelValues("valid")) + testutil.ToFloat64(m.cells.WithLabelValues("invalid"))
	assert.Equal(t, 121.0, total)
}
