package httpserver

import (
	"time"

	"github.com/skobelin/sharedrive/internal/model"
)

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u *model.User) userDTO {
	return userDTO{
		ID:        u.ID.String(),
		Email:     u.Email,
		Username:  u.Username,
		IsActive:  u.IsActive,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

type nodeDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	MIMEType  string    `json:"mime_type,omitempty"`
	OwnerID   string    `json:"owner_id"`
	ParentID  *string   `json:"parent_id"`
	IsShared  bool      `json:"is_shared"`
	CreatedAt time.Time `json:"created_at"`
}

func toNodeDTO(n *model.Node) nodeDTO {
	d := nodeDTO{
		ID:        n.ID.String(),
		Name:      n.Name,
		Type:      string(n.Type),
		Size:      n.Size,
		MIMEType:  n.MIMEType,
		OwnerID:   n.OwnerID.String(),
		IsShared:  n.IsShared,
		CreatedAt: n.CreatedAt,
	}
	if n.ParentID.Valid {
		p := n.ParentID.UUID.String()
		d.ParentID = &p
	}
	return d
}

func toNodeDTOs(ns []model.Node) []nodeDTO {
	out := make([]nodeDTO, 0, len(ns))
	for i := range ns {
		out = append(out, toNodeDTO(&ns[i]))
	}
	return out
}

type shareDTO struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	SharedWith string    `json:"shared_with_id"`
	Permission string    `json:"permission"`
	CreatedAt  time.Time `json:"created_at"`
}

func toShareDTO(s *model.Share) shareDTO {
	return shareDTO{
		ID:         s.ID.String(),
		FileID:     s.NodeID.String(),
		SharedWith: s.GranteeID.String(),
		Permission: string(s.Permission),
		CreatedAt:  s.CreatedAt,
	}
}

func toShareDTOs(ss []model.Share) []shareDTO {
	out := make([]shareDTO, 0, len(ss))
	for i := range ss {
		out = append(out, toShareDTO(&ss[i]))
	}
	return out
}

type versionDTO struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	Number    int64     `json:"version_number"`
	Size      int64     `json:"size"`
	CreatedBy *string   `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toVersionDTO(v *model.Version) versionDTO {
	d := versionDTO{
		ID:        v.ID.String(),
		FileID:    v.NodeID.String(),
		Number:    v.Number,
		Size:      v.Size,
		CreatedAt: v.CreatedAt,
	}
	if v.AuthorID.Valid {
		a := v.AuthorID.UUID.String()
		d.CreatedBy = &a
	}
	return d
}

func toVersionDTOs(vs []model.Version) []versionDTO {
	out := make([]versionDTO, 0, len(vs))
	for i := range vs {
		out = append(out, toVersionDTO(&vs[i]))
	}
	return out
}
