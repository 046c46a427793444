package httpserver

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/model"
)

// uploadLimit bounds in-memory request content.
const uploadLimit = 128 << 20 // 128 MB

// parseOptionalUUID turns an optional form/query value into a NullUUID.
func parseOptionalUUID(s string) (uuid.NullUUID, error) {
	if s == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadLimit); err != nil {
		http.Error(w, "bad multipart form", http.StatusBadRequest)
		return
	}
	parentID, err := parseOptionalUUID(r.FormValue("parent_id"))
	if err != nil {
		http.Error(w, "bad parent id", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, uploadLimit))
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}
	mime := header.Header.Get("Content-Type")

	n, err := s.tree.Create(r.Context(), actor(r), header.Filename, model.TypeFile, parentID, content, mime)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNodeDTO(n))
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		http.Error(w, "bad parent id", http.StatusBadRequest)
		return
	}
	n, err := s.tree.Create(r.Context(), actor(r), req.Name, model.TypeFolder, parentID, nil, "")
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNodeDTO(n))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	parentID, err := parseOptionalUUID(r.URL.Query().Get("parent_id"))
	if err != nil {
		http.Error(w, "bad parent id", http.StatusBadRequest)
		return
	}
	nodes, err := s.tree.List(r.Context(), parentID, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNodeDTOs(nodes))
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	n, err := s.tree.Get(r.Context(), nodeID, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNodeDTO(n))
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	if err := s.tree.Delete(r.Context(), nodeID, actor(r)); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	rc, n, err := s.tree.Content(r.Context(), nodeID, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	defer rc.Close()

	if n.MIMEType != "" {
		w.Header().Set("Content-Type", n.MIMEType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(n.Size, 10))
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	content, err := io.ReadAll(io.LimitReader(r.Body, uploadLimit))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	v, err := s.tree.UpdateContent(r.Context(), nodeID, actor(r), content)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionDTO(v))
}

type moveRequest struct {
	ParentID string `json:"parent_id,omitempty"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	var req moveRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	newParent, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		http.Error(w, "bad parent id", http.StatusBadRequest)
		return
	}
	if err := s.tree.Move(r.Context(), nodeID, newParent, actor(r)); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathUUID(r, "nodeID")
	if err != nil {
		http.Error(w, "bad node id", http.StatusBadRequest)
		return
	}
	var req renameRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := s.tree.Rename(r.Context(), nodeID, req.Name, actor(r)); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
