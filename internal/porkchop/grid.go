package porkchop

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

// Matrix is a row-major grid of metric values indexed [departure][arrival].
// Invalid cells hold NaN, which is encoded as null in JSON.
type Matrix [][]float64

func newMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// MarshalJSON encodes the matrix with NaN and infinities as null.
func (m Matrix) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	cells := 0
	for _, row := range m {
		cells += len(row)
	}
	buf := make([]byte, 0, 16*cells+2*len(m)+2)
	buf = append(buf, '[')
	for i, row := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendRow(buf, row)
	}
	buf = append(buf, ']')
	return buf, nil
}

func appendRow(buf []byte, row []float64) []byte {
	buf = append(buf, '[')
	for j, v := range row {
		if j > 0 {
			buf = append(buf, ',')
		}
		buf = appendValue(buf, v)
	}
	return append(buf, ']')
}

func appendValue(buf []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(buf, "null"...)
	}
	return strconv.AppendFloat(buf, v, 'g', -1, 64)
}

// Row is one departure row of a grid, with NaN cells encoded as null.
type Row []float64

// MarshalJSON encodes the row with NaN and infinities as null.
func (r Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return appendRow(make([]byte, 0, 16*len(r)), r), nil
}

// Axis labels one dimension of the grid.
type Axis struct {
	Body   string    `json:"body"`
	Epochs []float64 `json:"epochs"` // Julian dates
	Dates  []string  `json:"dates"`  // Horizons calendar strings
}

// Grid holds the transfer metrics for every departure/arrival pair. All
// matrices share dimensions len(Departure.Epochs) x len(Arrival.Epochs), and a
// cell is either finite in every matrix or NaN in every matrix.
type Grid struct {
	Departure Axis `json:"departure"`
	Arrival   Axis `json:"arrival"`

	C3              Matrix `json:"c3"`              // km^2/s^2
	DeltaV          Matrix `json:"deltaV"`          // km/s
	DepartureExcess Matrix `json:"departureExcess"` // km/s
	ArrivalExcess   Matrix `json:"arrivalExcess"`   // km/s
	TimeOfFlight    Matrix `json:"timeOfFlight"`    // days
}

func newGrid(dep, arr Axis) *Grid {
	rows, cols := len(dep.Epochs), len(arr.Epochs)
	return &Grid{
		Departure:       dep,
		Arrival:         arr,
		C3:              newMatrix(rows, cols),
		DeltaV:          newMatrix(rows, cols),
		DepartureExcess: newMatrix(rows, cols),
		ArrivalExcess:   newMatrix(rows, cols),
		TimeOfFlight:    newMatrix(rows, cols),
	}
}

// Rows returns the number of departure samples.
func (g *Grid) Rows() int {
	return len(g.Departure.Epochs)
}

// Cols returns the number of arrival samples.
func (g *Grid) Cols() int {
	return len(g.Arrival.Epochs)
}

// Sample is the set of metrics for one cell.
type Sample struct {
	DepartureExcess float64 `json:"departureExcess"`
	ArrivalExcess   float64 `json:"arrivalExcess"`
	C3              float64 `json:"c3"`
	DeltaV          float64 `json:"deltaV"`
	TimeOfFlight    float64 `json:"timeOfFlight"`
}

func (g *Grid) set(i, j int, s Sample) {
	g.C3[i][j] = s.C3
	g.DeltaV[i][j] = s.DeltaV
	g.DepartureExcess[i][j] = s.DepartureExcess
	g.ArrivalExcess[i][j] = s.ArrivalExcess
	g.TimeOfFlight[i][j] = s.TimeOfFlight
}

func (g *Grid) invalidate(i, j int) {
	nan := math.NaN()
	g.set(i, j, Sample{DepartureExcess: nan, ArrivalExcess: nan, C3: nan, DeltaV: nan, TimeOfFlight: nan})
}

// Valid reports whether cell (i, j) holds a transfer.
func (g *Grid) Valid(i, j int) bool {
	return !math.IsNaN(g.DeltaV[i][j])
}

// At returns the metrics of cell (i, j).
func (g *Grid) At(i, j int) Sample {
	return Sample{
		DepartureExcess: g.DepartureExcess[i][j],
		ArrivalExcess:   g.ArrivalExcess[i][j],
		C3:              g.C3[i][j],
		DeltaV:          g.DeltaV[i][j],
		TimeOfFlight:    g.TimeOfFlight[i][j],
	}
}

// Best returns the cell with the lowest total delta-v. ok is false when the
// grid has no valid cell.
func (g *Grid) Best() (i, j int, ok bool) {
	best := math.Inf(1)
	for r, row := range g.DeltaV {
		for c, dv := range row {
			if !math.IsNaN(dv) && dv < best {
				best, i, j, ok = dv, r, c, true
			}
		}
	}
	return i, j, ok
}

var csvHeader = []string{
	"departure_date", "arrival_date", "departure_jd", "arrival_jd",
	"tof_days", "c3", "delta_v", "vinf_departure", "vinf_arrival",
}

// WriteCSV writes one record per valid cell, in row-major order.
func (g *Grid) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', 6, 64)
	}

	for i := 0; i < g.Rows(); i++ {
		for j := 0; j < g.Cols(); j++ {
			if !g.Valid(i, j) {
				continue
			}
			s := g.At(i, j)
			record := []string{
				g.Departure.Dates[i],
				g.Arrival.Dates[j],
				format(g.Departure.Epochs[i]),
				format(g.Arrival.Epochs[j]),
				format(s.TimeOfFlight),
				format(s.C3),
				format(s.DeltaV),
				format(s.DepartureExcess),
				format(s.ArrivalExcess),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
