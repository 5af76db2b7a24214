package workspace

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
)

type fakeWorkspaceRepo struct {
	workspace.WorkspaceRepository
	workspaces map[string]workspace.Workspace
	members    map[string]workspace.Member
	removed    []string
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{
		workspaces: map[string]workspace.Workspace{},
		members:    map[string]workspace.Member{},
	}
}

func (f *fakeWorkspaceRepo) Create(_ context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	ws.ID = "ws-" + ws.Slug
	f.workspaces[ws.ID] = ws
	return ws, nil
}

func (f *fakeWorkspaceRepo) GetByID(_ context.Context, id string) (workspace.Workspace, error) {
	ws, ok := f.workspaces[id]
	if !ok {
		return workspace.Workspace{}, pgx.ErrNoRows
	}
	return ws, nil
}

func (f *fakeWorkspaceRepo) SlugExists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeWorkspaceRepo) Update(_ context.Context, ws workspace.Workspace) (workspace.Workspace, error) {
	f.workspaces[ws.ID] = ws
	return ws, nil
}

func (f *fakeWorkspaceRepo) AddMember(_ context.Context, m workspace.Member) (workspace.Member, error) {
	f.members[m.WorkspaceID+"|"+m.UserID] = m
	return m, nil
}

func (f *fakeWorkspaceRepo) GetMember(_ context.Context, workspaceID, userID string) (workspace.Member, error) {
	m, ok := f.members[workspaceID+"|"+userID]
	if !ok {
		return workspace.Member{}, pgx.ErrNoRows
	}
	return m, nil
}

func (f *fakeWorkspaceRepo) UpdateMemberRole(_ context.Context, workspaceID, userID string, role workspace.Role) error {
	m := f.members[workspaceID+"|"+userID]
	m.Role = role
	f.members[workspaceID+"|"+userID] = m
	return nil
}

func (f *fakeWorkspaceRepo) RemoveMember(_ context.Context, workspaceID, userID string) error {
	delete(f.members, workspaceID+"|"+userID)
	f.removed = append(f.removed, userID)
	return nil
}

type fakeCategoryRepo struct {
	expense.CategoryRepository
	created []expense.Category
}

func (f *fakeCategoryRepo) CreateMany(_ context.Context, c []expense.Category) error {
	f.created = append(f.created, c...)
	return nil
}

type fakeReminderRepo struct {
	reminder.ReminderRepository
	created []reminder.Rule
}

func (f *fakeReminderRepo) CreateMany(_ context.Context, r []reminder.Rule) error {
	f.created = append(f.created, r...)
	return nil
}

type fixture struct {
	svc        workspace.WorkspaceService
	repo       *fakeWorkspaceRepo
	categories *fakeCategoryRepo
	reminders  *fakeReminderRepo
	tx         *testutil.Transactor
}

func newFixture() fixture {
	f := fixture{
		repo:       newFakeWorkspaceRepo(),
		categories: &fakeCategoryRepo{},
		reminders:  &fakeReminderRepo{},
		tx:         &testutil.Transactor{},
	}
	f.svc = NewWorkspaceService(f.tx, f.repo, f.categories, f.reminders, nil)
	return f
}

func TestWorkspaceService_CreateSeedsDefaults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ws, err := f.svc.Create(ctx, "user-1", "Ada's Workspace")
	require.NoError(t, err)

	assert.Regexp(t, `^ada-s-workspace-[0-9a-f]{6}$`, ws.Slug)
	assert.Equal(t, "INV", ws.InvoicePrefix)
	assert.Equal(t, "USD", ws.DefaultCurrency)
	assert.Equal(t, 1, f.tx.Calls)

	owner, err := f.svc.GetMembership(ctx, ws.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, workspace.RoleOwner, owner.Role)

	assert.Len(t, f.categories.created, 10)
	assert.Len(t, f.reminders.created, 3)
	for _, c := range f.categories.created {
		assert.Equal(t, ws.ID, c.WorkspaceID)
	}
}

func TestWorkspaceService_MemberRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ws, err := f.svc.Create(ctx, "owner", "Acme")
	require.NoError(t, err)
	_, _ = f.repo.AddMember(ctx, workspace.Member{WorkspaceID: ws.ID, UserID: "bob", Role: workspace.RoleMember})

	err = f.svc.UpdateMemberRole(ctx, ws.ID, "bob", workspace.UpdateMemberRoleRequest{Role: workspace.RoleOwner})
	assert.ErrorIs(t, err, workspace.ErrCannotAssignOwner)

	err = f.svc.UpdateMemberRole(ctx, ws.ID, "owner", workspace.UpdateMemberRoleRequest{Role: workspace.RoleAdmin})
	assert.ErrorIs(t, err, workspace.ErrCannotChangeOwner)

	require.NoError(t, f.svc.UpdateMemberRole(ctx, ws.ID, "bob", workspace.UpdateMemberRoleRequest{Role: workspace.RoleAdmin}))
	bob, _ := f.svc.GetMembership(ctx, ws.ID, "bob")
	assert.Equal(t, workspace.RoleAdmin, bob.Role)

	assert.ErrorIs(t, f.svc.RemoveMember(ctx, ws.ID, "bob", "owner"), workspace.ErrCannotRemoveOwner)
	assert.ErrorIs(t, f.svc.Leave(ctx, ws.ID, "owner"), workspace.ErrOwnerCannotLeave)

	require.NoError(t, f.svc.Leave(ctx, ws.ID, "bob"))
	_, err = f.svc.GetMembership(ctx, ws.ID, "bob")
	assert.ErrorIs(t, err, workspace.ErrNotAMember)
}

func TestWorkspaceService_Update(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ws, err := f.svc.Create(ctx, "owner", "Acme")
	require.NoError(t, err)

	currency := "eur"
	prefix := "acme"
	resp, err := f.svc.Update(ctx, ws.ID, workspace.UpdateWorkspaceRequest{DefaultCurrency: &currency, InvoicePrefix: &prefix})
	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.DefaultCurrency)
	assert.Equal(t, "ACME", resp.InvoicePrefix)

	bad := "#zzz"
	_, err = f.svc.Update(ctx, ws.ID, workspace.UpdateWorkspaceRequest{PrimaryColor: &bad})
	assert.Error(t, err)

	_, err = f.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, workspace.ErrWorkspaceNotFound)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Café Olé Studio":  "cafe-ole-studio",
		"  --Acme, Inc.--": "acme-inc",
		"!!!":              "workspace",
		"Ünïcödé 2025":     "unicode-2025",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}
