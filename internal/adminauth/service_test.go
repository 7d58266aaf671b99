package adminauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kassabook.org/internal/audit"
	"kassabook.org/internal/ids"
)

// memStore is an in-memory Store used by service tests; the SQL-backed
// implementation has its own tests against sqlmock.
type memStore struct {
	mu        sync.Mutex
	ops       map[string]*Operator
	roles     map[string]*Role
	roleCodes map[string][]string
	perms     []Permission
}

func newMemStore() *memStore {
	return &memStore{
		ops:       make(map[string]*Operator),
		roles:     make(map[string]*Role),
		roleCodes: make(map[string][]string),
	}
}

func (m *memStore) Operators(context.Context) OperatorStore     { return &memOperators{m} }
func (m *memStore) Roles(context.Context) RoleStore             { return &memRoles{m} }
func (m *memStore) Permissions(context.Context) PermissionStore { return &memPerms{m} }

type memOperators struct{ s *memStore }

// cloneOperator returns a copy so callers never share the stored struct,
// mirroring how the SQL store hands back freshly scanned rows.
func cloneOperator(op *Operator) *Operator {
	c := *op
	if op.LastLoginAt != nil {
		t := *op.LastLoginAt
		c.LastLoginAt = &t
	}
	if op.LockedUntil != nil {
		t := *op.LockedUntil
		c.LockedUntil = &t
	}
	return &c
}

// get returns the live stored operator; callers must hold s.mu.
func (m *memOperators) get(id string) (*Operator, error) {
	op, ok := m.s.ops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return op, nil
}

func (m *memOperators) Create(_ context.Context, op *Operator) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if op.ID == "" {
		op.ID = ids.New()
	}
	m.s.ops[op.ID] = op
	return nil
}

func (m *memOperators) Find(_ context.Context, id string) (*Operator, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	op, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return cloneOperator(op), nil
}

func (m *memOperators) FindByUsername(_ context.Context, username string) (*Operator, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, op := range m.s.ops {
		if op.Username == username {
			return cloneOperator(op), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOperators) FindByEmail(_ context.Context, email string) (*Operator, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, op := range m.s.ops {
		if op.Email == email {
			return cloneOperator(op), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOperators) List(context.Context) ([]*Operator, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*Operator, 0, len(m.s.ops))
	for _, op := range m.s.ops {
		out = append(out, op)
	}
	return out, nil
}

func (m *memOperators) Count(context.Context) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.ops), nil
}

func (m *memOperators) Update(_ context.Context, id string, upd OperatorUpdate) (*Operator, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	op, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		op.Email = *upd.Email
	}
	if upd.DisplayName != nil {
		op.DisplayName = *upd.DisplayName
	}
	if upd.Phone != nil {
		op.Phone = *upd.Phone
	}
	if upd.RoleID != nil {
		op.RoleID = *upd.RoleID
	}
	if upd.IsActive != nil {
		op.IsActive = *upd.IsActive
	}
	return cloneOperator(op), nil
}

func (m *memOperators) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	op, err := m.get(id)
	if err != nil {
		return err
	}
	op.PasswordHash = passwordHash
	return nil
}

func (m *memOperators) SetMFA(_ context.Context, id string, enabled bool, secret string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	op, err := m.get(id)
	if err != nil {
		return err
	}
	op.MFAEnabled = enabled
	op.MFASecret = secret
	return nil
}

func (m *memOperators) RecordLoginFailure(_ context.Context, id string, failedCount int, lockedUntil *time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	op, err := m.get(id)
	if err != nil {
		return err
	}
	op.FailedLoginCount = failedCount
	op.LockedUntil = lockedUntil
	return nil
}

func (m *memOperators) RecordLoginSuccess(_ context.Context, id string, at time.Time, origin string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	op, err := m.get(id)
	if err != nil {
		return err
	}
	op.FailedLoginCount = 0
	op.LockedUntil = nil
	op.LastLoginAt = &at
	op.LastLoginIP = origin
	op.LoginCount++
	return nil
}

type memRoles struct{ s *memStore }

func (m *memRoles) Create(_ context.Context, role *Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if role.ID == "" {
		role.ID = ids.New()
	}
	m.s.roles[role.ID] = role
	return nil
}

func (m *memRoles) Find(_ context.Context, id string) (*Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	role, ok := m.s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return role, nil
}

func (m *memRoles) FindByName(_ context.Context, name string) (*Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, role := range m.s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRoles) List(context.Context) ([]*Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*Role, 0, len(m.s.roles))
	for _, role := range m.s.roles {
		out = append(out, role)
	}
	return out, nil
}

func (m *memRoles) Update(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	role, err := m.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.DisplayName != nil {
		role.DisplayName = *upd.DisplayName
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	if upd.IsActive != nil {
		role.IsActive = *upd.IsActive
	}
	if upd.SortOrder != nil {
		role.SortOrder = *upd.SortOrder
	}
	return role, nil
}

func (m *memRoles) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.roles, id)
	delete(m.s.roleCodes, id)
	return nil
}

func (m *memRoles) SetPermissions(_ context.Context, roleID string, codes []string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.roleCodes[roleID] = append([]string(nil), codes...)
	return nil
}

func (m *memRoles) PermissionCodes(_ context.Context, roleID string) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]string(nil), m.s.roleCodes[roleID]...), nil
}

type memPerms struct{ s *memStore }

func (m *memPerms) Ensure(_ context.Context, perms []Permission) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range perms {
		exists := false
		for _, have := range m.s.perms {
			if have.Code == p.Code {
				exists = true
				break
			}
		}
		if !exists {
			m.s.perms = append(m.s.perms, p)
		}
	}
	return nil
}

func (m *memPerms) List(context.Context) ([]Permission, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]Permission(nil), m.s.perms...), nil
}

// captureStore records audit entries for assertions.
type captureStore struct {
	entries []*audit.Entry
}

func (c *captureStore) Append(_ context.Context, entry *audit.Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func (c *captureStore) List(context.Context, audit.Filter) ([]*audit.Entry, error) {
	return c.entries, nil
}

func (c *captureStore) last() *audit.Entry {
	if len(c.entries) == 0 {
		return nil
	}
	return c.entries[len(c.entries)-1]
}

type memBlacklist struct {
	mu      sync.Mutex
	revoked map[string]struct{}
}

func newMemBlacklist() *memBlacklist {
	return &memBlacklist{revoked: make(map[string]struct{})}
}

func (b *memBlacklist) Revoke(_ context.Context, jti string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[jti] = struct{}{}
	return nil
}

func (b *memBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[jti]
	return ok, nil
}

type fixture struct {
	svc   *Service
	store *memStore
	audit *captureStore
	list  *memBlacklist
	now   *time.Time
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tokens, err := NewTokenService([]byte("test-signing-key"), WithTokenClock(clock))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	store := newMemStore()
	capture := &captureStore{}
	recorder, err := audit.NewRecorder(capture, audit.WithClock(clock))
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	list := newMemBlacklist()

	all := append([]ServiceOption{
		WithClock(clock),
		WithRecorder(recorder),
		WithBlacklist(list),
	}, opts...)
	svc, err := NewService(store, tokens, all...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, store: store, audit: capture, list: list, now: &now}
}

func (f *fixture) addOperator(t *testing.T, op *Operator, password string) *Operator {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	op.PasswordHash = hash
	if op.ID == "" {
		op.ID = ids.New()
	}
	f.store.ops[op.ID] = op
	return op
}

func (f *fixture) advance(d time.Duration) { *f.now = f.now.Add(d) }

var testMeta = &audit.RequestMeta{
	RemoteAddr: "10.0.0.9:39822",
	UserAgent:  "go-test",
	Method:     "POST",
	Path:       "/admin/v1/auth/login",
}

func TestAuthenticateSuccess(t *testing.T) {
	f := newFixture(t)
	op := f.addOperator(t, &Operator{Username: "root", IsActive: true}, "Correct1pass")

	pair, got, err := f.svc.Authenticate(context.Background(), "root", "Correct1pass", "", testMeta)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != op.ID {
		t.Fatalf("operator id = %q, want %q", got.ID, op.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("token pair is incomplete")
	}
	if got.LoginCount != 1 || got.LastLoginAt == nil || got.LastLoginIP != "10.0.0.9" {
		t.Fatalf("login bookkeeping not updated: %+v", got)
	}

	entry := f.audit.last()
	if entry == nil || entry.Action != "auth.login" {
		t.Fatalf("expected auth.login audit entry, got %+v", entry)
	}
	if entry.IPAddress != "10.0.0.9" {
		t.Fatalf("audit ip = %q, want 10.0.0.9", entry.IPAddress)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Authenticate(context.Background(), "ghost", "whatever", "", testMeta)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateDisabledAccount(t *testing.T) {
	f := newFixture(t)
	f.addOperator(t, &Operator{Username: "root", IsActive: false}, "Correct1pass")

	_, _, err := f.svc.Authenticate(context.Background(), "root", "Correct1pass", "", testMeta)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestAuthenticateLockout(t *testing.T) {
	f := newFixture(t, WithLockoutPolicy(3, 15*time.Minute))
	op := f.addOperator(t, &Operator{Username: "root", IsActive: true}, "Correct1pass")
	ctx := context.Background()

	// Failures below the threshold only bump the counter.
	for i := 1; i <= 2; i++ {
		_, _, err := f.svc.Authenticate(ctx, "root", "wrong", "", testMeta)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("failure %d: err = %v, want ErrInvalidCredentials", i, err)
		}
		if op.FailedLoginCount != i {
			t.Fatalf("failure %d: count = %d", i, op.FailedLoginCount)
		}
		if op.LockedUntil != nil {
			t.Fatalf("failure %d: locked early", i)
		}
	}

	// Threshold failure sets the lockout deadline and still reports bad
	// credentials.
	_, _, err := f.svc.Authenticate(ctx, "root", "wrong", "", testMeta)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("threshold failure: err = %v", err)
	}
	wantUntil := f.now.Add(15 * time.Minute)
	if op.LockedUntil == nil || !op.LockedUntil.Equal(wantUntil) {
		t.Fatalf("locked_until = %v, want %v", op.LockedUntil, wantUntil)
	}

	// While locked even the correct password is refused.
	_, _, err = f.svc.Authenticate(ctx, "root", "Correct1pass", "", testMeta)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("during lockout: err = %v, want ErrAccountLocked", err)
	}

	// The lock expires at the deadline itself; correct credentials then
	// succeed and reset the counter.
	f.advance(15 * time.Minute)
	_, got, err := f.svc.Authenticate(ctx, "root", "Correct1pass", "", testMeta)
	if err != nil {
		t.Fatalf("after lockout window: %v", err)
	}
	if got.FailedLoginCount != 0 || got.LockedUntil != nil {
		t.Fatalf("lockout state not reset: %+v", got)
	}
}

func TestAuthorizePermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role := &Role{Name: "support", IsActive: true}
	if err := f.store.Roles(ctx).Create(ctx, role); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := f.store.Roles(ctx).SetPermissions(ctx, role.ID, []string{"user:*", "log:view"}); err != nil {
		t.Fatalf("set permissions: %v", err)
	}
	f.addOperator(t, &Operator{Username: "sam", IsActive: true, RoleID: role.ID}, "Correct1pass")

	pair, _, err := f.svc.Authenticate(ctx, "sam", "Correct1pass", "", testMeta)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if _, err := f.svc.Authorize(ctx, pair.AccessToken, "user:edit"); err != nil {
		t.Fatalf("wildcard-covered permission refused: %v", err)
	}
	if _, err := f.svc.Authorize(ctx, pair.AccessToken, "log:view"); err != nil {
		t.Fatalf("exact permission refused: %v", err)
	}
	if _, err := f.svc.Authorize(ctx, pair.AccessToken, "setting:edit"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("ungranted permission: err = %v, want ErrForbidden", err)
	}

	// Superadmins bypass role resolution entirely.
	f.addOperator(t, &Operator{Username: "boss", IsActive: true, IsSuperadmin: true}, "Correct1pass")
	superPair, _, err := f.svc.Authenticate(ctx, "boss", "Correct1pass", "", testMeta)
	if err != nil {
		t.Fatalf("Authenticate superadmin: %v", err)
	}
	if _, err := f.svc.Authorize(ctx, superPair.AccessToken, "anything:at_all"); err != nil {
		t.Fatalf("superadmin refused: %v", err)
	}
}

func TestAuthorizeRevokedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.addOperator(t, &Operator{Username: "root", IsActive: true, IsSuperadmin: true}, "Correct1pass")

	pair, _, err := f.svc.Authenticate(ctx, "root", "Correct1pass", "", testMeta)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := f.svc.Logout(ctx, pair.AccessToken, op, testMeta); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.Authorize(ctx, pair.AccessToken, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked token: err = %v, want ErrInvalidToken", err)
	}
	if entry := f.audit.last(); entry == nil || entry.Action != "auth.logout" {
		t.Fatalf("expected auth.logout audit entry, got %+v", entry)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.addOperator(t, &Operator{Username: "root", IsActive: true}, "Correct1pass")

	pair, _, err := f.svc.Authenticate(ctx, "root", "Correct1pass", "", testMeta)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	access, _, err := f.svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	claims, err := f.svc.Tokens().ValidateAccess(access)
	if err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}
	if claims.Subject != op.ID {
		t.Fatalf("subject = %q, want %q", claims.Subject, op.ID)
	}

	// An access token is not accepted where a refresh token is expected.
	if _, _, err := f.svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access-as-refresh: err = %v, want ErrInvalidToken", err)
	}

	// Disabling the operator invalidates outstanding refresh tokens.
	op.IsActive = false
	if _, _, err := f.svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("disabled operator refresh: err = %v, want ErrInvalidToken", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.addOperator(t, &Operator{Username: "root", IsActive: true}, "Correct1pass")

	if err := f.svc.ChangePassword(ctx, op, "nope", "NewPass1word", testMeta); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong old password: err = %v", err)
	}
	if err := f.svc.ChangePassword(ctx, op, "Correct1pass", "weak", testMeta); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak new password: err = %v", err)
	}
	if err := f.svc.ChangePassword(ctx, op, "Correct1pass", "NewPass1word", testMeta); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if !VerifyPassword(op.PasswordHash, "NewPass1word") {
		t.Fatal("new password does not verify")
	}
	if entry := f.audit.last(); entry == nil || entry.Action != "auth.password_change" {
		t.Fatalf("expected auth.password_change audit entry, got %+v", entry)
	}
}

func TestEnsureBuiltinsAndBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}
	// Idempotent on a second run.
	if err := f.svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins again: %v", err)
	}
	roles, err := f.svc.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != len(BuiltinRoles) {
		t.Fatalf("roles = %d, want %d", len(roles), len(BuiltinRoles))
	}

	super, err := f.store.Roles(ctx).FindByName(ctx, "super_admin")
	if err != nil {
		t.Fatalf("super_admin missing: %v", err)
	}
	codes, err := f.store.Roles(ctx).PermissionCodes(ctx, super.ID)
	if err != nil || len(codes) != 1 || codes[0] != PermissionAll {
		t.Fatalf("super_admin codes = %v (%v), want [*]", codes, err)
	}

	op, err := f.svc.BootstrapSuperadmin(ctx, "root", "root@kassabook.org", "Bootstrap1pw")
	if err != nil {
		t.Fatalf("BootstrapSuperadmin: %v", err)
	}
	if op == nil || !op.IsSuperadmin || op.RoleID != super.ID {
		t.Fatalf("bootstrap operator = %+v", op)
	}
	// No-op when an operator already exists.
	again, err := f.svc.BootstrapSuperadmin(ctx, "other", "o@kassabook.org", "Bootstrap1pw")
	if err != nil || again != nil {
		t.Fatalf("second bootstrap = %+v, %v", again, err)
	}
}

func TestRoleManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := f.addOperator(t, &Operator{Username: "boss", IsActive: true, IsSuperadmin: true}, "Correct1pass")

	if err := f.svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}

	role, err := f.svc.CreateRole(ctx, actor, CreateRoleParams{
		Name:        "night_shift",
		DisplayName: "Night shift",
		Permissions: []string{PermUserList, PermUserList, " ", "log:view"},
	}, testMeta)
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	_, codes, err := f.svc.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("codes = %v, want deduped pair", codes)
	}

	if _, err := f.svc.CreateRole(ctx, actor, CreateRoleParams{Name: "night_shift"}, testMeta); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate role: err = %v, want ErrConflict", err)
	}
	if err := f.svc.SetRolePermissions(ctx, actor, role.ID, []string{"no:such_permission"}, testMeta); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown code: err = %v, want ErrValidation", err)
	}

	super, err := f.store.Roles(ctx).FindByName(ctx, "super_admin")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if err := f.svc.DeleteRole(ctx, actor, super.ID, testMeta); !errors.Is(err, ErrValidation) {
		t.Fatalf("system role delete: err = %v, want ErrValidation", err)
	}
	if err := f.svc.DeleteRole(ctx, actor, role.ID, testMeta); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
}

func TestCreateOperatorValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := f.addOperator(t, &Operator{Username: "boss", IsActive: true, IsSuperadmin: true}, "Correct1pass")

	if _, err := f.svc.CreateOperator(ctx, actor, CreateOperatorParams{
		Username: "new", Email: "not-an-email", Password: "GoodPass1",
	}, testMeta); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email: err = %v", err)
	}
	if _, err := f.svc.CreateOperator(ctx, actor, CreateOperatorParams{
		Username: "new", Email: "new@kassabook.org", Password: "weak",
	}, testMeta); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak password: err = %v", err)
	}
	if _, err := f.svc.CreateOperator(ctx, actor, CreateOperatorParams{
		Username: "boss", Email: "dup@kassabook.org", Password: "GoodPass1",
	}, testMeta); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username: err = %v", err)
	}

	op, err := f.svc.CreateOperator(ctx, actor, CreateOperatorParams{
		Username: "new", Email: "new@kassabook.org", Password: "GoodPass1",
	}, testMeta)
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if op.CreatedBy != actor.ID || !op.IsActive {
		t.Fatalf("created operator = %+v", op)
	}
	if entry := f.audit.last(); entry == nil || entry.Action != "admin.create" {
		t.Fatalf("expected admin.create audit entry, got %+v", entry)
	}

	// The contact address is unique across accounts.
	if _, err := f.svc.CreateOperator(ctx, actor, CreateOperatorParams{
		Username: "other", Email: "new@kassabook.org", Password: "GoodPass1",
	}, testMeta); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email: err = %v", err)
	}

	second, err := f.svc.CreateOperator(ctx, actor, CreateOperatorParams{
		Username: "other", Email: "other@kassabook.org", Password: "GoodPass1",
	}, testMeta)
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	taken := "new@kassabook.org"
	if _, err := f.svc.UpdateOperator(ctx, actor, second.ID, OperatorUpdate{Email: &taken}, testMeta); !errors.Is(err, ErrConflict) {
		t.Fatalf("update to taken email: err = %v", err)
	}
	// Re-submitting an operator's own address is not a conflict.
	own := "other@kassabook.org"
	if _, err := f.svc.UpdateOperator(ctx, actor, second.ID, OperatorUpdate{Email: &own}, testMeta); err != nil {
		t.Fatalf("update to own email: %v", err)
	}
}
