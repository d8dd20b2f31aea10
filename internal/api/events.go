package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// DriverEventsStream handles GET /v1/drivers/{id}/events/stream as
// server-sent events. Dispatch dashboards use it to follow a courier
// without polling.
func (s *Server) DriverEventsStream(w http.ResponseWriter, r *http.Request, driverID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if driverID == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok || s.Broker == nil {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(driverID)

	for {
		select {
		case <-r.Context().Done():
			s.Broker.Unsubscribe(driverID, ch)
			return
		case evt, open := <-ch:
			if !open {
				// broker-side close (e.g. pubsub connection loss)
				return
			}
			payload, err := json.Marshal(evt.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
			flusher.Flush()
		}
	}
}
