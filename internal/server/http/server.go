// Package httpserver exposes the storage core over a thin JSON HTTP API.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	identity service.IdentityService
	tree     service.TreeService
	shares   service.ShareService
	versions service.VersionService
	signKey  []byte
	log      *zap.Logger
}

// New constructs a Server with injected services.
func New(identity service.IdentityService, tree service.TreeService, shares service.ShareService, versions service.VersionService, signKey []byte, log *zap.Logger) *Server {
	return &Server{identity: identity, tree: tree, shares: shares, versions: versions, signKey: signKey, log: log}
}

// Router builds the route tree with logging, recovery and bearer auth.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log), RequestLogger(s.log))

	r.Post("/register", s.handleRegister)
	r.Post("/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(Auth(s.signKey))

		r.Get("/users/me", s.handleMe)
		r.Post("/users/me/deactivate", s.handleDeactivate)
		r.Get("/users", s.handleListUsers)
		r.Patch("/users/{userID}/admin", s.handleSetAdmin)
		r.Delete("/users/{userID}", s.handleDeleteUser)

		r.Post("/files", s.handleUpload)
		r.Post("/folders", s.handleCreateFolder)
		r.Get("/files", s.handleList)
		r.Get("/shared-with-me", s.handleSharedWithMe)

		r.Route("/files/{nodeID}", func(r chi.Router) {
			r.Get("/", s.handleGetNode)
			r.Delete("/", s.handleDeleteNode)
			r.Get("/content", s.handleContent)
			r.Put("/content", s.handleUpdateContent)
			r.Patch("/move", s.handleMove)
			r.Patch("/rename", s.handleRename)

			r.Post("/share", s.handleShare)
			r.Get("/shares", s.handleListShares)
			r.Delete("/share/{granteeID}", s.handleRevoke)

			r.Get("/versions", s.handleListVersions)
			r.Route("/versions/{number}", func(r chi.Router) {
				r.Get("/", s.handleGetVersion)
				r.Get("/content", s.handleVersionContent)
				r.Post("/restore", s.handleRestoreVersion)
				r.Delete("/", s.handleDeleteVersion)
			})
		})
	})
	return r
}

// writeErr maps domain sentinels to HTTP status codes.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrPermissionDenied), errors.Is(err, errs.ErrUserInactive):
		code = http.StatusForbidden
	case errors.Is(err, errs.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, errs.ErrRateLimited):
		code = http.StatusTooManyRequests
	case errors.Is(err, errs.ErrDuplicateEmail),
		errors.Is(err, errs.ErrDuplicateUsername),
		errors.Is(err, errs.ErrNameConflict),
		errors.Is(err, errs.ErrVersionConflict),
		errors.Is(err, errs.ErrSelfShare):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrInvalidParent),
		errors.Is(err, errs.ErrCycleDetected),
		errors.Is(err, errs.ErrNotAFile),
		errors.Is(err, errs.ErrCurrentVersion):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrStorageUnavailable):
		code = http.StatusServiceUnavailable
	default:
		s.log.Error("internal error", zap.Error(err))
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// actor returns the authenticated user ID; auth middleware guarantees presence.
func actor(r *http.Request) uuid.UUID {
	id, _ := UserIDFromCtx(r.Context())
	return id
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.FromString(chi.URLParam(r, name))
}
