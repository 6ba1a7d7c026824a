package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/itemsheet/internal/httputil"
	"github.com/banshee-data/itemsheet/internal/report"
	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheetdb"
	"github.com/banshee-data/itemsheet/internal/slicer"
)

var writeJSON = httputil.WriteJSON

// slice runs the pipeline over the raw image in the request body. Query
// parameters: profile (named threshold profile) and prefix (file prefix).
func (s *Server) slice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}

	cfg, err := s.cfg.WithProfile(r.URL.Query().Get("profile"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		cfg.OutputPrefix = &prefix
	}
	if err := cfg.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	data, ok := httputil.ReadLimited(w, r, s.MaxUploadBytes)
	if !ok {
		return
	}
	if len(data) == 0 {
		httputil.BadRequest(w, "empty request body")
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "upload"
	}
	out, err := slicer.Run(r.Context(), slicer.Job{
		Source:      source,
		Data:        data,
		Config:      cfg,
		FS:          s.fs,
		OutDir:      s.outDir,
		PerRunDir:   true,
		Gate:        s.Gate,
		GateOptions: s.GateOptions,
		DB:          s.db,
	})
	switch {
	case errors.Is(err, sheet.ErrInputDecode):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("slice failed: %v", err))
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.db.Runs(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []sheetdb.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	run, err := s.db.GetRun(r.PathValue("id"))
	if isNotFound(err) {
		httputil.NotFound(w, err.Error())
		return
	} else if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	assets, ok := s.runAssets(w, r.PathValue("id"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, assets)
}

// runAssets loads the assets of an existing run, writing the error
// response itself when it returns ok=false.
func (s *Server) runAssets(w http.ResponseWriter, runID string) ([]sheetdb.AssetRecord, bool) {
	if _, err := s.db.GetRun(runID); isNotFound(err) {
		httputil.NotFound(w, err.Error())
		return nil, false
	} else if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	assets, err := s.db.Assets(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	if assets == nil {
		assets = []sheetdb.AssetRecord{}
	}
	return assets, true
}

// areaChart renders the box chart of one run, or of the newest run when
// the run query parameter is absent.
func (s *Server) areaChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	runID := r.URL.Query().Get("run")
	if runID == "" {
		runs, err := s.db.Runs(1)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		if len(runs) == 0 {
			httputil.NotFound(w, "no runs recorded")
			return
		}
		runID = runs[0].ID
	}
	assets, ok := s.runAssets(w, runID)
	if !ok {
		return
	}

	objects := make([]sheet.ObjectRecord, len(assets))
	boxes := make([]sheet.Box, len(assets))
	for i, a := range assets {
		b := sheet.Box{X1: a.X1, Y1: a.Y1, X2: a.X2, Y2: a.Y2, Area: a.Area}
		objects[i] = sheet.ObjectRecord{Index: a.Index, Box: b}
		boxes[i] = b
	}

	var buf bytes.Buffer
	if err := report.RenderBoxChart(&buf, objects, boxes); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
