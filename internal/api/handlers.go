package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/tracker"
	"github.com/signalsfoundry/iss-tracker/model"
)

type epochResponse struct {
	Index int    `json:"index"`
	Epoch string `json:"epoch"`
}

type statusResponse struct {
	Status       string `json:"status"`
	StateVectors int    `json:"state_vectors,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Loaded bool   `json:"loaded"`
}

func (s *Server) listAll(w http.ResponseWriter, r *http.Request) {
	all, err := s.engine.ListAll()
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) listEpochs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := tracker.ParsePage(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	epochs, err := s.engine.ListEpochs(page)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, epochs)
}

func (s *Server) epochAt(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	epoch, err := s.engine.EpochAt(idx)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, epochResponse{Index: idx, Epoch: epoch})
}

func (s *Server) speed(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sp, err := s.engine.Speed(idx)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) location(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	frame, err := s.frameParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	loc, err := s.engine.Locate(r.Context(), idx, frame)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	s.logLocation(r, loc)
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) now(w http.ResponseWriter, r *http.Request) {
	frame, err := s.frameParam(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	loc, err := s.engine.LocateNow(r.Context(), frame)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	s.logLocation(r, loc)
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) logLocation(r *http.Request, loc model.Location) {
	ctx := r.Context()
	logging.FromContext(ctx, s.log).Debug(ctx, "location resolved",
		logging.String("epoch", loc.Position.Epoch),
		logging.Float("lat", loc.Position.LatitudeDeg),
		logging.Float("lon", loc.Position.LongitudeDeg),
		logging.String("place", loc.Place),
	)
}

func (s *Server) comments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.engine.Comments()
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) header(w http.ResponseWriter, r *http.Request) {
	header, err := s.engine.Header()
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, header)
}

func (s *Server) metadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.engine.Metadata()
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) deleteData(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear()
	logging.FromContext(r.Context(), s.log).Info(r.Context(), "dataset cleared")
	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}

func (s *Server) postData(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, r, s.log, fmt.Errorf("%w: no feed configured", ErrFeedUnavailable))
		return
	}
	n, err := s.refresher.Refresh(r.Context())
	if err != nil {
		if r.Context().Err() == nil {
			err = fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
		}
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "reloaded", StateVectors: n})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Loaded: s.engine.IsLoaded()})
}

func (s *Server) help(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, usage)
}

const usage = `usage: curl -X [METHOD] [host]:5000/[ROUTE]

An HTTP API for ISS position and velocity data. Responses are JSON except
for this page.

Methods:
  GET     Used for all but two routes
  DELETE  Used for /delete-data
  POST    Used for /post-data

Routes:
  /                 All state vectors in feed order
  /epochs           All epoch labels
  /epochs?limit=int&offset=int
                    Epoch labels after skipping offset, at most limit
  /epochs/<index>   Epoch label at the given index
  /epochs/<index>/speed
                    Instantaneous speed at the given index
  /epochs/<index>/location[?frame=empirical|sidereal]
                    Latitude, longitude, altitude and place at the index
  /now[?frame=empirical|sidereal]
                    Location of the epoch closest to the current time
  /comment          Comments from the dataset
  /header           Header of the dataset
  /metadata         Metadata of the dataset
  /delete-data      Clears the loaded dataset
  /post-data        Reloads the dataset from the feed
  /healthz          Liveness and whether a dataset is loaded
  /help             This page

Loading:
  /post-data rejects the whole feed when any state vector lacks a position or
  velocity component, or when an epoch is malformed. An epoch needs at least
  16 ASCII digits (YYYYDDDHHMMSSmmm) with day of year, hour, minute and second
  in range; non-ASCII digits are rejected. The previous dataset stays loaded.
`
