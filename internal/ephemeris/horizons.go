package ephemeris

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultHorizonsURL is the JPL Horizons API endpoint.
const DefaultHorizonsURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

// maxResponseSize bounds how much of a Horizons response is read.
const maxResponseSize = 8 << 20

// HorizonsSource fetches vector tables from the JPL Horizons API.
type HorizonsSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHorizonsSource creates a Horizons client. An empty baseURL selects
// DefaultHorizonsURL; timeout applies to each request.
func NewHorizonsSource(baseURL string, timeout time.Duration) *HorizonsSource {
	if baseURL == "" {
		baseURL = DefaultHorizonsURL
	}
	return &HorizonsSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the source name for logging and metrics.
func (h *HorizonsSource) Name() string {
	return "horizons"
}

// Fetch requests Sun-centred ecliptic state vectors in km and km/s, sampled
// at req.Samples equal intervals.
func (h *HorizonsSource) Fetch(ctx context.Context, req Request) Result {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"?"+query(req).Encode(), nil)
	if err != nil {
		return Result{Outcome: OutcomeNetwork, Detail: fmt.Sprintf("failed to create request: %v", err), Cause: err}
	}

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return Result{Outcome: OutcomeNetwork, Detail: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{Outcome: OutcomeNetwork, Status: resp.StatusCode, Detail: fmt.Sprintf("failed to read response: %v", err), Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Outcome: OutcomeNetwork, Status: resp.StatusCode, Detail: excerpt(string(body))}
	}

	return Parse(string(body))
}

func query(req Request) url.Values {
	q := url.Values{}
	q.Set("format", "text")
	q.Set("COMMAND", quote(req.Body.HorizonsID))
	q.Set("OBJ_DATA", quote("NO"))
	q.Set("MAKE_EPHEM", quote("YES"))
	q.Set("EPHEM_TYPE", quote("VECTORS"))
	q.Set("CENTER", quote("500@10"))
	q.Set("REF_PLANE", quote("ECLIPTIC"))
	q.Set("REF_SYSTEM", quote("ICRF"))
	q.Set("OUT_UNITS", quote("KM-S"))
	q.Set("VEC_TABLE", quote("2"))
	q.Set("VEC_LABELS", quote("NO"))
	q.Set("CSV_FORMAT", quote("YES"))
	q.Set("START_TIME", quote(req.Start))
	q.Set("STOP_TIME", quote(req.End))
	// A unitless step size asks for that many equal intervals
	q.Set("STEP_SIZE", quote(strconv.Itoa(req.Samples)))
	return q
}

func quote(s string) string {
	return "'" + s + "'"
}
