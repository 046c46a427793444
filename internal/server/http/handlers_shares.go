package httpserver

import (
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/model"
)

type shareRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	var req shareRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	granteeID, err := uuid.FromString(req.UserID)
	if err != nil {
		http.Error(w, "bad user id", http.StatusBadRequest)
		return
	}
	perm := model.Permission(req.Permission)
	if req.Permission == "" {
		perm = model.PermRead
	}
	share, err := s.shares.Grant(r.Context(), nodeID, actor(r), granteeID, perm)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShareDTO(share))
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	granteeID, err := pathUUID(r, "granteeID")
	if err != nil {
		http.Error(w, "bad grantee id", http.StatusBadRequest)
		return
	}
	if err := s.shares.Revoke(r.Context(), nodeID, actor(r), granteeID); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	shares, err := s.shares.SharedWith(r.Context(), nodeID, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShareDTOs(shares))
}

func (s *Server) handleSharedWithMe(w http.ResponseWriter, r *http.Request) {
	shares, err := s.shares.SharedWithMe(r.Context(), actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShareDTOs(shares))
}
