package service

import (
	"context"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
	"github.com/skobelin/sharedrive/internal/repository"
)

// memState is shared map-backed storage behind the in-memory repository
// fakes, mirroring the relational semantics the services rely on.
type memState struct {
	nodes    map[uuid.UUID]*model.Node
	shares   map[shareKey]*model.Share
	versions map[uuid.UUID][]model.Version
	clock    time.Time
}

type shareKey struct{ node, grantee uuid.UUID }

func newMemState() *memState {
	return &memState{
		nodes:    make(map[uuid.UUID]*model.Node),
		shares:   make(map[shareKey]*model.Share),
		versions: make(map[uuid.UUID][]model.Version),
		clock:    time.Unix(1700000000, 0),
	}
}

// tick returns a strictly increasing timestamp.
func (st *memState) tick() time.Time {
	st.clock = st.clock.Add(time.Second)
	return st.clock
}

func (st *memState) siblingTaken(ownerID uuid.UUID, parent uuid.NullUUID, name string, self uuid.UUID) bool {
	for _, n := range st.nodes {
		if n.ID == self {
			continue
		}
		if n.OwnerID == ownerID && n.ParentID == parent && n.Name == name {
			return true
		}
	}
	return false
}

func (st *memState) checkParent(parent, ownerID uuid.UUID) error {
	p, ok := st.nodes[parent]
	if !ok || !p.IsFolder() || p.OwnerID != ownerID {
		return errs.ErrInvalidParent
	}
	return nil
}

func (st *memState) subtree(id uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{id}
	for i := 0; i < len(ids); i++ {
		for _, n := range st.nodes {
			if n.ParentID.Valid && n.ParentID.UUID == ids[i] {
				ids = append(ids, n.ID)
			}
		}
	}
	return ids
}

type memNodes struct{ st *memState }

var _ repository.NodeRepository = (*memNodes)(nil)

func (r *memNodes) Create(_ context.Context, n *model.Node, initial *model.Version) error {
	if n.ParentID.Valid {
		if err := r.st.checkParent(n.ParentID.UUID, n.OwnerID); err != nil {
			return err
		}
	}
	if r.st.siblingTaken(n.OwnerID, n.ParentID, n.Name, uuid.Nil) {
		return errs.ErrNameConflict
	}
	n.CreatedAt = r.st.tick()
	cp := *n
	r.st.nodes[n.ID] = &cp
	if initial != nil {
		initial.NodeID = n.ID
		initial.Number = 1
		initial.CreatedAt = n.CreatedAt
		r.st.versions[n.ID] = append(r.st.versions[n.ID], *initial)
	}
	return nil
}

func (r *memNodes) Get(_ context.Context, id uuid.UUID) (*model.Node, error) {
	n, ok := r.st.nodes[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *memNodes) Move(_ context.Context, id uuid.UUID, newParent uuid.NullUUID) error {
	n, ok := r.st.nodes[id]
	if !ok {
		return errs.ErrNotFound
	}
	if newParent.Valid {
		if newParent.UUID == id {
			return errs.ErrCycleDetected
		}
		if err := r.st.checkParent(newParent.UUID, n.OwnerID); err != nil {
			return err
		}
		for cur := newParent; cur.Valid; {
			if cur.UUID == id {
				return errs.ErrCycleDetected
			}
			cur = r.st.nodes[cur.UUID].ParentID
		}
	}
	if r.st.siblingTaken(n.OwnerID, newParent, n.Name, id) {
		return errs.ErrNameConflict
	}
	n.ParentID = newParent
	return nil
}

func (r *memNodes) Rename(_ context.Context, id uuid.UUID, name string) error {
	n, ok := r.st.nodes[id]
	if !ok {
		return errs.ErrNotFound
	}
	if r.st.siblingTaken(n.OwnerID, n.ParentID, name, id) {
		return errs.ErrNameConflict
	}
	n.Name = name
	return nil
}

func (r *memNodes) DeleteSubtree(_ context.Context, id uuid.UUID) ([]string, error) {
	if _, ok := r.st.nodes[id]; !ok {
		return nil, errs.ErrNotFound
	}
	var locators []string
	for _, nid := range r.st.subtree(id) {
		n := r.st.nodes[nid]
		if n.Locator != "" {
			locators = append(locators, n.Locator)
		}
		for _, v := range r.st.versions[nid] {
			locators = append(locators, v.Locator)
		}
		delete(r.st.versions, nid)
		for k := range r.st.shares {
			if k.node == nid {
				delete(r.st.shares, k)
			}
		}
		delete(r.st.nodes, nid)
	}
	return locators, nil
}

func (r *memNodes) Children(_ context.Context, parentID uuid.UUID) ([]model.Node, error) {
	var out []model.Node
	for _, n := range r.st.nodes {
		if n.ParentID.Valid && n.ParentID.UUID == parentID {
			out = append(out, *n)
		}
	}
	sortNodes(out)
	return out, nil
}

func (r *memNodes) Roots(_ context.Context, ownerID uuid.UUID) ([]model.Node, error) {
	var out []model.Node
	for _, n := range r.st.nodes {
		if n.OwnerID == ownerID && !n.ParentID.Valid {
			out = append(out, *n)
		}
	}
	sortNodes(out)
	return out, nil
}

func (r *memNodes) ListSharedWith(_ context.Context, userID uuid.UUID) ([]model.Node, error) {
	var out []model.Node
	for k := range r.st.shares {
		if k.grantee == userID {
			out = append(out, *r.st.nodes[k.node])
		}
	}
	sortNodes(out)
	return out, nil
}

type memShares struct{ st *memState }

var _ repository.ShareRepository = (*memShares)(nil)

func (r *memShares) Upsert(_ context.Context, s *model.Share) error {
	k := shareKey{node: s.NodeID, grantee: s.GranteeID}
	if cur, ok := r.st.shares[k]; ok {
		cur.Permission = s.Permission
		s.ID, s.CreatedAt = cur.ID, cur.CreatedAt
	} else {
		s.CreatedAt = r.st.tick()
		cp := *s
		r.st.shares[k] = &cp
	}
	if n, ok := r.st.nodes[s.NodeID]; ok {
		n.IsShared = true
	}
	return nil
}

func (r *memShares) Get(_ context.Context, nodeID, granteeID uuid.UUID) (*model.Share, error) {
	s, ok := r.st.shares[shareKey{node: nodeID, grantee: granteeID}]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memShares) Delete(_ context.Context, nodeID, granteeID uuid.UUID) error {
	k := shareKey{node: nodeID, grantee: granteeID}
	if _, ok := r.st.shares[k]; !ok {
		return errs.ErrNotFound
	}
	delete(r.st.shares, k)
	if n, ok := r.st.nodes[nodeID]; ok {
		n.IsShared = false
		for sk := range r.st.shares {
			if sk.node == nodeID {
				n.IsShared = true
			}
		}
	}
	return nil
}

func (r *memShares) ListForNode(_ context.Context, nodeID uuid.UUID) ([]model.Share, error) {
	var out []model.Share
	for k, s := range r.st.shares {
		if k.node == nodeID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memShares) ListForGrantee(_ context.Context, granteeID uuid.UUID) ([]model.Share, error) {
	var out []model.Share
	for k, s := range r.st.shares {
		if k.grantee == granteeID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memVersions struct{ st *memState }

var _ repository.VersionRepository = (*memVersions)(nil)

func (r *memVersions) Append(_ context.Context, nodeID, author uuid.UUID, locator string, size int64) (*model.Version, error) {
	n, ok := r.st.nodes[nodeID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if n.IsFolder() {
		return nil, errs.ErrNotAFile
	}
	var max int64
	for _, v := range r.st.versions[nodeID] {
		if v.Number > max {
			max = v.Number
		}
	}
	v := model.Version{
		ID:        uuid.Must(uuid.NewV4()),
		NodeID:    nodeID,
		Number:    max + 1,
		Locator:   locator,
		Size:      size,
		AuthorID:  uuid.NullUUID{UUID: author, Valid: true},
		CreatedAt: r.st.tick(),
	}
	r.st.versions[nodeID] = append(r.st.versions[nodeID], v)
	n.Locator, n.Size = locator, size
	return &v, nil
}

func (r *memVersions) ListForNode(_ context.Context, nodeID uuid.UUID) ([]model.Version, error) {
	out := append([]model.Version(nil), r.st.versions[nodeID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memVersions) Get(_ context.Context, nodeID uuid.UUID, number int64) (*model.Version, error) {
	for _, v := range r.st.versions[nodeID] {
		if v.Number == number {
			cp := v
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *memVersions) Delete(_ context.Context, nodeID uuid.UUID, number int64) (string, error) {
	if _, ok := r.st.nodes[nodeID]; !ok {
		return "", errs.ErrNotFound
	}
	vs := r.st.versions[nodeID]
	var max int64
	for _, v := range vs {
		if v.Number > max {
			max = v.Number
		}
	}
	if number == max && max != 0 {
		return "", errs.ErrCurrentVersion
	}
	for i, v := range vs {
		if v.Number == number {
			r.st.versions[nodeID] = append(vs[:i:i], vs[i+1:]...)
			return v.Locator, nil
		}
	}
	return "", errs.ErrNotFound
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User

	delIn       uuid.UUID
	delLocators []string
	delErr      error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo(us ...*model.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
	for _, u := range us {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	for _, cur := range f.users {
		if cur.Email == u.Email {
			return errs.ErrDuplicateEmail
		}
		if cur.Username == u.Username {
			return errs.ErrDuplicateUsername
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	u, ok := f.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (f *fakeUserRepo) SetAdmin(_ context.Context, id uuid.UUID, admin bool) error {
	u, ok := f.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.IsAdmin = admin
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) ([]string, error) {
	f.delIn = id
	if f.delErr != nil {
		return nil, f.delErr
	}
	if _, ok := f.users[id]; !ok {
		return nil, errs.ErrNotFound
	}
	delete(f.users, id)
	return f.delLocators, nil
}

type fakeLimiter struct {
	allow        bool
	blockOnFail  bool
	allowCalls   int
	successCalls int
	failureCalls int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, _ []byte) (bool, time.Duration, error) {
	f.allowCalls++
	return f.allow, 0, nil
}

func (f *fakeLimiter) Success(_ context.Context, _ string, _ []byte) error {
	f.successCalls++
	return nil
}

func (f *fakeLimiter) Failure(_ context.Context, _ string, _ []byte) (bool, time.Duration, error) {
	f.failureCalls++
	return f.blockOnFail, 0, nil
}
