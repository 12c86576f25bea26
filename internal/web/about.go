package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"gps-locker/internal/ble"
)

type AboutResponse struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`

	BLEService   string            `json:"ble_service"`
	BLEWriteChar string            `json:"ble_write_char"`
	Deps         map[string]string `json:"deps,omitempty"`
}

func about(now time.Time) AboutResponse {
	resp := AboutResponse{
		Service:      serviceName,
		NowUTC:       now.UTC().Format(time.RFC3339Nano),
		GoVersion:    runtime.Version(),
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		BLEService:   ble.ServiceUUID,
		BLEWriteChar: ble.WriteCharUUID,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return resp
	}
	resp.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			resp.Commit = s.Value
		case "vcs.modified":
			resp.Dirty = s.Value == "true"
		}
	}
	if len(bi.Deps) > 0 {
		resp.Deps = make(map[string]string, len(bi.Deps))
		for _, d := range bi.Deps {
			resp.Deps[d.Path] = d.Version
		}
	}
	return resp
}

func AboutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		b, err := json.MarshalIndent(about(time.Now()), "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})
}
