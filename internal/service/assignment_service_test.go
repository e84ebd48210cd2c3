package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trainlink/trainlink/internal/domain"
)

// fakeUserRepo is an in-memory domain.UserRepository for service tests.
type fakeUserRepo struct {
	users map[string]*domain.User
	seq   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) add(user *domain.User) *domain.User {
	f.users[user.ID] = user
	return user
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	f.seq++
	user.ID = fmt.Sprintf("user-%d", f.seq)
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) GetAll(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, user)
	}
	return out, nil
}

func (f *fakeUserRepo) GetByRole(_ context.Context, role string) ([]*domain.User, error) {
	var out []*domain.User
	for _, user := range f.users {
		if user.Role == role {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetClientsByPT(_ context.Context, ptID string) ([]*domain.User, error) {
	var out []*domain.User
	for _, user := range f.users {
		if user.Role == domain.RoleClient && user.PTID == ptID {
			out = append(out, user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) CountClientsByPT(ctx context.Context, ptID string) (int64, error) {
	clients, _ := f.GetClientsByPT(ctx, ptID)
	return int64(len(clients)), nil
}

func (f *fakeUserRepo) SetValidated(_ context.Context, ptID string, validated bool) error {
	user, ok := f.users[ptID]
	if !ok {
		return domain.ErrNotFound
	}
	user.Validated = validated
	return nil
}

func (f *fakeUserRepo) AssignPT(_ context.Context, clientID, ptID string) error {
	user, ok := f.users[clientID]
	if !ok {
		return domain.ErrNotFound
	}
	user.PTID = ptID
	return nil
}

func (f *fakeUserRepo) IncClientCount(_ context.Context, ptID string, delta int) error {
	user, ok := f.users[ptID]
	if !ok {
		return domain.ErrNotFound
	}
	if delta < 0 && user.ClientCount == 0 {
		return nil
	}
	user.ClientCount += delta
	return nil
}

func (f *fakeUserRepo) AddPTChangeRequest(_ context.Context, clientID string, req domain.PTChangeRequest) error {
	user, ok := f.users[clientID]
	if !ok {
		return domain.ErrNotFound
	}
	user.PTChangeRequests = append(user.PTChangeRequests, req)
	return nil
}

func (f *fakeUserRepo) UpdatePTChangeRequest(_ context.Context, clientID string, req domain.PTChangeRequest) error {
	user, ok := f.users[clientID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range user.PTChangeRequests {
		if user.PTChangeRequests[i].ID == req.ID {
			user.PTChangeRequests[i] = req
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeUserRepo) RemovePTChangeRequest(_ context.Context, clientID, requestID string) error {
	user, ok := f.users[clientID]
	if !ok {
		return domain.ErrNotFound
	}
	kept := user.PTChangeRequests[:0]
	for _, req := range user.PTChangeRequests {
		if req.ID != requestID {
			kept = append(kept, req)
		}
	}
	user.PTChangeRequests = kept
	return nil
}

func (f *fakeUserRepo) GetPendingPTChangeRequests(_ context.Context) ([]*domain.User, error) {
	var out []*domain.User
	for _, user := range f.users {
		for _, req := range user.PTChangeRequests {
			if req.IsPending() {
				out = append(out, user)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) AddClientRequest(_ context.Context, clientID string, req domain.ClientRequest) error {
	user, ok := f.users[clientID]
	if !ok {
		return domain.ErrNotFound
	}
	user.ClientRequests = append(user.ClientRequests, req)
	return nil
}

func (f *fakeUserRepo) UpdateClientRequest(_ context.Context, clientID string, req domain.ClientRequest) error {
	user, ok := f.users[clientID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range user.ClientRequests {
		if user.ClientRequests[i].ID == req.ID {
			user.ClientRequests[i] = req
			return nil
		}
	}
	return domain.ErrNotFound
}

func seedReassignment(repo *fakeUserRepo) (oldPT, newPT, client *domain.User) {
	oldPT = repo.add(&domain.User{ID: "pt-old", Name: "Old PT", Role: domain.RolePT, Validated: true, ClientCount: 1})
	newPT = repo.add(&domain.User{ID: "pt-new", Name: "New PT", Role: domain.RolePT, Validated: true, ClientCount: 0})
	client = repo.add(&domain.User{ID: "client-1", Name: "Client", Role: domain.RoleClient, PTID: "pt-old"})
	return oldPT, newPT, client
}

func TestApprovePTChangeReassignsAndShiftsCounts(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	seedReassignment(repo)
	svc := NewAssignmentService(repo)

	req, err := svc.RequestPTChange(ctx, "client-1", "pt-new", "moving cities")
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusPending, req.Status)
	require.Equal(t, "pt-old", req.FromPTID)

	require.NoError(t, svc.ApprovePTChange(ctx, "admin-1", "client-1", req.ID))

	client, _ := repo.GetByID(ctx, "client-1")
	assert.Equal(t, "pt-new", client.PTID)

	oldPT, _ := repo.GetByID(ctx, "pt-old")
	newPT, _ := repo.GetByID(ctx, "pt-new")
	assert.Equal(t, 0, oldPT.ClientCount)
	assert.Equal(t, 1, newPT.ClientCount)

	stored := client.PTChangeRequests[0]
	assert.Equal(t, domain.RequestStatusApproved, stored.Status)
	assert.Equal(t, "admin-1", stored.RespondedBy)
	require.NotNil(t, stored.RespondedAt)
}

func TestRejectPTChangeLeavesAssignmentUntouched(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	seedReassignment(repo)
	svc := NewAssignmentService(repo)

	req, err := svc.RequestPTChange(ctx, "client-1", "pt-new", "")
	require.NoError(t, err)

	require.NoError(t, svc.RejectPTChange(ctx, "admin-1", "client-1", req.ID, "stay put"))

	client, _ := repo.GetByID(ctx, "client-1")
	assert.Equal(t, "pt-old", client.PTID)

	oldPT, _ := repo.GetByID(ctx, "pt-old")
	newPT, _ := repo.GetByID(ctx, "pt-new")
	assert.Equal(t, 1, oldPT.ClientCount)
	assert.Equal(t, 0, newPT.ClientCount)

	stored := client.PTChangeRequests[0]
	assert.Equal(t, domain.RequestStatusRejected, stored.Status)
	assert.Equal(t, "stay put", stored.Reason)
	require.NotNil(t, stored.RespondedAt)
}

func TestApprovePTChangeTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	seedReassignment(repo)
	svc := NewAssignmentService(repo)

	req, err := svc.RequestPTChange(ctx, "client-1", "pt-new", "")
	require.NoError(t, err)

	require.NoError(t, svc.ApprovePTChange(ctx, "admin-1", "client-1", req.ID))
	err = svc.ApprovePTChange(ctx, "admin-1", "client-1", req.ID)
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	// Counts must not shift a second time.
	newPT, _ := repo.GetByID(ctx, "pt-new")
	assert.Equal(t, 1, newPT.ClientCount)
}

func TestCancelPTChange(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	seedReassignment(repo)
	svc := NewAssignmentService(repo)

	req, err := svc.RequestPTChange(ctx, "client-1", "pt-new", "")
	require.NoError(t, err)

	require.NoError(t, svc.CancelPTChange(ctx, "client-1", req.ID))
	client, _ := repo.GetByID(ctx, "client-1")
	assert.Empty(t, client.PTChangeRequests)

	// A responded request is history and cannot be cancelled.
	req2, err := svc.RequestPTChange(ctx, "client-1", "pt-new", "")
	require.NoError(t, err)
	require.NoError(t, svc.RejectPTChange(ctx, "admin-1", "client-1", req2.ID, ""))

	err = svc.CancelPTChange(ctx, "client-1", req2.ID)
	assert.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestRequestPTChangeRejectsSecondPending(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	seedReassignment(repo)
	svc := NewAssignmentService(repo)

	_, err := svc.RequestPTChange(ctx, "client-1", "pt-new", "")
	require.NoError(t, err)

	_, err = svc.RequestPTChange(ctx, "client-1", "pt-new", "")
	assert.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestRequestPTChangeValidatesTarget(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	seedReassignment(repo)
	repo.add(&domain.User{ID: "pt-unvalidated", Role: domain.RolePT, Validated: false})
	svc := NewAssignmentService(repo)

	_, err := svc.RequestPTChange(ctx, "client-1", "pt-unvalidated", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.RequestPTChange(ctx, "client-1", "pt-old", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestApproveClientRequestFromUnassignedClient(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	pt := repo.add(&domain.User{ID: "pt-1", Role: domain.RolePT, Validated: true})
	repo.add(&domain.User{ID: "client-free", Role: domain.RoleClient})
	svc := NewAssignmentService(repo)

	req, err := svc.RequestClient(ctx, pt.ID, "client-free")
	require.NoError(t, err)

	require.NoError(t, svc.ApproveClientRequest(ctx, "admin-1", "client-free", req.ID))

	client, _ := repo.GetByID(ctx, "client-free")
	assert.Equal(t, "pt-1", client.PTID)

	ptAfter, _ := repo.GetByID(ctx, "pt-1")
	assert.Equal(t, 1, ptAfter.ClientCount)
}

func TestRejectClientRequestKeepsReason(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	seedReassignment(repo)
	svc := NewAssignmentService(repo)

	req, err := svc.RequestClient(ctx, "pt-new", "client-1")
	require.NoError(t, err)

	require.NoError(t, svc.RejectClientRequest(ctx, "admin-1", "client-1", req.ID, "client prefers current trainer"))

	client, _ := repo.GetByID(ctx, "client-1")
	assert.Equal(t, "pt-old", client.PTID)
	stored := client.ClientRequests[0]
	assert.Equal(t, domain.RequestStatusRejected, stored.Status)
	assert.Equal(t, "client prefers current trainer", stored.RejectionReason)
}

func TestAddClientByPT(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	repo.add(&domain.User{ID: "pt-1", Role: domain.RolePT, Validated: true})
	svc := NewAssignmentService(repo)

	client, err := svc.AddClientByPT(ctx, "pt-1", AddClientRequest{
		Name:     "Joana",
		Email:    "Joana@Example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, client.Role)
	assert.Equal(t, "pt-1", client.PTID)
	assert.Equal(t, "joana@example.com", client.Email)
	assert.True(t, client.Validated)

	pt, _ := repo.GetByID(ctx, "pt-1")
	assert.Equal(t, 1, pt.ClientCount)

	_, err = svc.AddClientByPT(ctx, "pt-1", AddClientRequest{Name: "x", Email: "a@b.c", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
