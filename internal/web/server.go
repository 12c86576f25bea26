package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"path"
	"time"
)

const serviceName = "gps-locker"

// Deps are the pieces the HTTP surface reads from or writes to. Logs and
// Home are optional.
type Deps struct {
	Status *Status
	Logs   *LogBuffer
	Home   HomeWriter
}

func Handler(d Deps) http.Handler {
	status := d.Status
	if status == nil {
		status = NewStatus(nil)
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	mux.Handle("/api/home", homeHandler(d.Home))

	if d.Logs != nil {
		mux.Handle("/api/logs", d.Logs.Handler())
	}

	mux.Handle("/api/about", AboutHandler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			if path.Dir(r.URL.Path) == "/api" {
				http.NotFound(w, r)
				return
			}
		}

		snap := status.Snapshot(time.Now().UTC())
		ls := snap.Locker
		dist := "n/a"
		if ls.DistanceM != nil {
			dist = fmt.Sprintf("%.2f m", *ls.DistanceM)
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>GPS Locker</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>GPS Locker</h1>")
		_, _ = fmt.Fprintf(w, "<pre>state=%s\nhome=%s\ndistance=%s\nthreshold=%.0f m\nfixes=%d\nuptime_sec=%d</pre>",
			html.EscapeString(ls.State.String()), html.EscapeString(ls.Home.String()), dist, ls.ThresholdM, ls.FixCount, snap.UptimeSec,
		)
		_, _ = fmt.Fprintf(w, "<p>JSON: <a href=\"/api/status\">/api/status</a> &middot; <a href=\"/api/logs?format=text\">/api/logs</a></p>")
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, d Deps) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
