// Package api serves the slicing pipeline and the run manifest over HTTP.
package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/itemsheet/internal/config"
	"github.com/banshee-data/itemsheet/internal/fsutil"
	"github.com/banshee-data/itemsheet/internal/sheet/qualitygate"
	"github.com/banshee-data/itemsheet/internal/sheetdb"
	"github.com/banshee-data/itemsheet/internal/version"
)

// DefaultMaxUploadBytes bounds the size of an uploaded sheet.
const DefaultMaxUploadBytes = 32 << 20

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

type Server struct {
	db     *sheetdb.DB
	cfg    *config.SliceConfig
	fs     fsutil.FileSystem
	outDir string

	// MaxUploadBytes limits POST /api/slice bodies.
	MaxUploadBytes int64
	// Gate runs the quality gate on every uploaded sheet.
	Gate        bool
	GateOptions qualitygate.Options
}

// NewServer returns a Server that writes each run's assets under
// outDir/<run id> and records runs in db.
func NewServer(db *sheetdb.DB, cfg *config.SliceConfig, outDir string) *Server {
	return &Server{
		db:             db,
		cfg:            cfg,
		fs:             fsutil.OSFileSystem{},
		outDir:         outDir,
		MaxUploadBytes: DefaultMaxUploadBytes,
		GateOptions:    qualitygate.DefaultOptions(),
	}
}

// WithFileSystem replaces the filesystem assets are written to.
func (s *Server) WithFileSystem(fsys fsutil.FileSystem) *Server {
	s.fs = fsys
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/api/slice", s.slice)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.getRun)
	mux.HandleFunc("/api/runs/{id}/assets", s.listAssets)
	mux.HandleFunc("/charts/areas", s.areaChart)
	return mux
}

type healthResponse struct {
	Status string       `json:"status"`
	Build  version.Info `json:"build"`
	Schema uint         `json:"schema_version"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Build: version.Current()}
	v, dirty, err := s.db.MigrateVersion()
	switch {
	case err != nil:
		resp.Status = "degraded: " + err.Error()
	case dirty:
		resp.Status = "degraded: schema dirty"
	default:
		resp.Schema = v
	}
	writeJSON(w, http.StatusOK, resp)
}

func isNotFound(err error) bool { return errors.Is(err, sheetdb.ErrRunNotFound) }
