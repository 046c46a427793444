package httpserver

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

func versionParams(r *http.Request) (uuid.UUID, int64, error) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		return uuid.Nil, 0, err
	}
	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil || number < 1 {
		return uuid.Nil, 0, strconv.ErrSyntax
	}
	return nodeID, number, nil
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	versions, err := s.versions.List(r.Context(), nodeID, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTOs(versions))
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	nodeID, number, err := versionParams(r)
	if err != nil {
		http.Error(w, "bad version path", http.StatusBadRequest)
		return
	}
	v, err := s.versions.Get(r.Context(), nodeID, number, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionDTO(v))
}

func (s *Server) handleVersionContent(w http.ResponseWriter, r *http.Request) {
	nodeID, number, err := versionParams(r)
	if err != nil {
		http.Error(w, "bad version path", http.StatusBadRequest)
		return
	}
	rc, v, err := s.versions.Content(r.Context(), nodeID, number, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(v.Size, 10))
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	nodeID, number, err := versionParams(r)
	if err != nil {
		http.Error(w, "bad version path", http.StatusBadRequest)
		return
	}
	v, err := s.versions.Restore(r.Context(), nodeID, number, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionDTO(v))
}

func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	nodeID, number, err := versionParams(r)
	if err != nil {
		http.Error(w, "bad version path", http.StatusBadRequest)
		return
	}
	if err := s.versions.Delete(r.Context(), nodeID, number, actor(r)); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
