package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"replaychart/internal/barset"
	"replaychart/internal/domain"
)

// keepAliveInterval spaces SSE comment pings on idle streams.
const keepAliveInterval = 15 * time.Second

// ChartServer serves the chart HTTP API.
type ChartServer struct {
	book    *barset.Book
	dataDir string
	log     *slog.Logger
}

// NewChartServer creates a new chart HTTP server. If dataDir is non-empty
// its files are served under /data/.
func NewChartServer(book *barset.Book, dataDir string, log *slog.Logger) *ChartServer {
	return &ChartServer{book: book, dataDir: dataDir, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *ChartServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chart", s.handleChart)
	mux.HandleFunc("GET /api/bars", s.handleBars)
	mux.HandleFunc("GET /api/volume", s.handleVolume)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	if s.dataDir != "" {
		mux.Handle("GET /data/", http.StripPrefix("/data/", http.FileServer(http.Dir(s.dataDir))))
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *ChartServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *ChartServer) handleChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.chartJSON(s.book.Snapshot()))
}

func (s *ChartServer) handleBars(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	version := s.book.Snapshot().Version
	series := s.book.Range(from, to)
	writeJSON(w, BarsJSON{
		Version: version,
		Count:   len(series.Bars),
		Bars:    emptyIfNil(series.Bars),
	})
}

func (s *ChartServer) handleVolume(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	version := s.book.Snapshot().Version
	series := s.book.Range(from, to)
	writeJSON(w, VolumeJSON{
		Version: version,
		Count:   len(series.Volume),
		Volume:  emptyIfNil(series.Volume),
	})
}

func (s *ChartServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusJSON{
		Status:      s.book.Status(),
		Timezone:    s.book.Timezone(),
		Subscribers: s.book.Subscribers(),
	})
}

// handleStream pushes a "chart" event with the full payload on connect (when
// data exists) and after every change, and a "done" event once the run ends.
func (s *ChartServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	subID, ch := s.book.Subscribe(16)
	defer s.book.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	last := s.book.Snapshot()
	if last.Version > 0 {
		s.writeEvent(w, "chart", s.chartJSON(last))
	}
	if last.Done {
		s.writeEvent(w, "done", DoneJSON{Version: last.Version, Bars: last.Series.Len()})
	}
	flusher.Flush()

	s.log.Info("sse client subscribed", "subID", subID, "remote", r.RemoteAddr)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sse client disconnected", "subID", subID)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case upd, ok := <-ch:
			if !ok {
				return
			}
			if upd.Version > last.Version {
				s.writeEvent(w, "chart", s.chartJSON(upd))
			}
			if upd.Done && !last.Done {
				s.writeEvent(w, "done", DoneJSON{Version: upd.Version, Bars: upd.Series.Len()})
			}
			if upd.Version >= last.Version {
				last = upd
			}
			flusher.Flush()
		}
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *ChartServer) chartJSON(u barset.Update) ChartJSON {
	return ChartJSON{
		Symbol:   domain.TargetSymbol,
		Timezone: s.book.Timezone(),
		Version:  u.Version,
		Done:     u.Done,
		Bars:     emptyIfNil(u.Series.Bars),
		Volume:   emptyIfNil(u.Series.Volume),
		Style:    s.book.Style(),
	}
}

func (s *ChartServer) writeEvent(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encoding SSE event", "event", name, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

// parseRange reads the optional from/to epoch-second query params.
func parseRange(r *http.Request) (from, to int64, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = strconv.ParseInt(v, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid from %q", v)
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = strconv.ParseInt(v, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid to %q", v)
		}
	}
	if from != 0 && to != 0 && from > to {
		return 0, 0, fmt.Errorf("from %d after to %d", from, to)
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
