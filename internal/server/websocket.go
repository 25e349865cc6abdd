package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/latency-space/porkchop/internal/ephemeris"
	"github.com/latency-space/porkchop/internal/porkchop"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadWait  = 30 * time.Second
)

// WebSocket upgrader with permissive origin check for cross-origin requests
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream message types.
const (
	msgAxes  = "axes"
	msgRow   = "row"
	msgDone  = "done"
	msgError = "error"
)

type streamMessage struct {
	Type string `json:"type"`

	Departure *porkchop.Axis `json:"departure,omitempty"`
	Arrival   *porkchop.Axis `json:"arrival,omitempty"`

	Index           *int         `json:"index,omitempty"`
	C3              porkchop.Row `json:"c3,omitempty"`
	DeltaV          porkchop.Row `json:"deltaV,omitempty"`
	DepartureExcess porkchop.Row `json:"departureExcess,omitempty"`
	ArrivalExcess   porkchop.Row `json:"arrivalExcess,omitempty"`
	TimeOfFlight    porkchop.Row `json:"timeOfFlight,omitempty"`

	Best   *Cell  `json:"best,omitempty"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status,omitempty"`
}

func rowMessage(g *porkchop.Grid, i int) streamMessage {
	return streamMessage{
		Type:            msgRow,
		Index:           &i,
		C3:              porkchop.Row(g.C3[i]),
		DeltaV:          porkchop.Row(g.DeltaV[i]),
		DepartureExcess: porkchop.Row(g.DepartureExcess[i]),
		ArrivalExcess:   porkchop.Row(g.ArrivalExcess[i]),
		TimeOfFlight:    porkchop.Row(g.TimeOfFlight[i]),
	}
}

// handleWebSocket reads one request document from the client, then streams
// the axes, each grid row as it completes, and a final done or error message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBody)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))

	var req porkchop.Request
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Info("WebSocket request unreadable", "error", err)
		s.sendError(conn, &ephemeris.InvalidInputError{Field: "request", Reason: err.Error()})
		return
	}

	send := func(msg streamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}

	grid, err := s.builder.Stream(r.Context(), req, func(g *porkchop.Grid, i int) error {
		if i == 0 {
			if err := send(streamMessage{Type: msgAxes, Departure: &g.Departure, Arrival: &g.Arrival}); err != nil {
				return err
			}
		}
		if err := send(rowMessage(g, i)); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordStreamedRow()
		}
		return nil
	})
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("Porkchop stream failed", "status", status, "error", err)
		s.sendError(conn, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTransfer(grid.Departure.Body, grid.Arrival.Body)
	}

	if err := send(streamMessage{Type: msgDone, Best: bestCell(grid)}); err != nil {
		s.logger.Info("WebSocket client went away", "error", err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}

func (s *Server) sendError(conn *websocket.Conn, err error) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteJSON(streamMessage{Type: msgError, Error: err.Error(), Status: statusFor(err)})
}
