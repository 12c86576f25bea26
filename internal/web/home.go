package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gps-locker/internal/geo"
	"gps-locker/internal/homeupdate"
)

// A "<lat>,<lng>" body never needs more than this.
const maxHomeBody = 256

// HomeWriter accepts a raw coordinate payload, exactly like a BLE write.
type HomeWriter interface {
	Handle(payload []byte) (geo.Coordinate, error)
}

// Lat and Lng are null when the lenient parser produced a non-finite value.
type homeResponse struct {
	OK  bool     `json:"ok"`
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func homeHandler(hw HomeWriter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if hw == nil {
			http.Error(w, "home update unavailable", http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxHomeBody+1))
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}
		if len(body) > maxHomeBody {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		c, err := hw.Handle(body)
		switch {
		case errors.Is(err, homeupdate.ErrMalformedPayload), errors.Is(err, homeupdate.ErrInvalidCoordinate):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			// Applied in memory but not persisted.
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		b, err := json.Marshal(homeResponse{OK: true, Lat: geo.JSONFloat(c.Lat), Lng: geo.JSONFloat(c.Lng)})
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})
}
