package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dispatchd/internal/model"
	"dispatchd/internal/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsLocationPush struct {
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

type wsAck struct {
	DriverID string `json:"driverId,omitempty"`
	Applied  bool   `json:"applied"`
	Error    string `json:"error,omitempty"`
}

// DriverWSHandler handles /v1/drivers/ws: a stream of GPS pushes from
// driver apps. Each message is applied like a POST to the location
// endpoint; malformed or rate-limited pushes are acked with an error
// but do not close the connection.
func (s *Server) DriverWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var push wsLocationPush
		if err := conn.ReadJSON(&push); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		ack := wsAck{DriverID: push.DriverID}
		switch {
		case push.DriverID == "":
			ack.Error = "driverId required"
		case !s.limits.allow(push.DriverID):
			ack.Error = "rate limited"
		case validateCoordinates(push.Lat, push.Lng) != nil:
			ack.Error = "invalid coordinates"
		default:
			err := s.ingestLocation(r.Context(), push.DriverID, model.GeoPoint{Lat: push.Lat, Lng: push.Lng})
			switch {
			case errors.Is(err, store.ErrNotFound):
				ack.Error = "unknown driver"
			case err != nil:
				ack.Error = "update failed"
			default:
				ack.Applied = true
			}
		}
		if err := writeWS(conn, ack); err != nil {
			return
		}
	}
}

func writeWS(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
