package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
	"github.com/sakif/sharedlist/internal/repository/memory"
)

// scriptedCodes returns a generator that hands out codes in order and then
// repeats the last one.
func scriptedCodes(codes ...string) CodeGenerator {
	i := 0
	return func() string {
		c := codes[min(i, len(codes)-1)]
		i++
		return c
	}
}

func newTestGroupService(t *testing.T, opts ...GroupOption) (*GroupService, *failingStore) {
	t.Helper()
	store := &failingStore{Store: memory.New()}
	return NewGroupService(store, testLogger(), opts...), store
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestRandomCode_Shape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := RandomCode()
		if !ValidCode(code) {
			t.Fatalf("RandomCode() = %q, not a six-digit code", code)
		}
		if code[0] == '0' {
			t.Fatalf("RandomCode() = %q, has a leading zero", code)
		}
	}
}

func TestCreateGroup_CreatorIsFirstMember(t *testing.T) {
	svc, _ := newTestGroupService(t, WithCodeGenerator(scriptedCodes("482913")))

	g, err := svc.Create(context.Background(), "A", "  Flat 4  ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.Code != "482913" {
		t.Errorf("Code = %q, want 482913", g.Code)
	}
	if g.Name != "Flat 4" {
		t.Errorf("Name = %q, want trimmed %q", g.Name, "Flat 4")
	}

	ms, err := svc.Memberships(context.Background(), "A")
	if err != nil {
		t.Fatalf("Memberships() error = %v", err)
	}
	if len(ms) != 1 || ms[0].Code != "482913" {
		t.Errorf("Memberships() = %+v, want the new group only", ms)
	}
}

func TestCreateGroup_EmptyName(t *testing.T) {
	svc, _ := newTestGroupService(t)

	_, err := svc.Create(context.Background(), "A", "   ")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestCreateGroup_NameTooLong(t *testing.T) {
	svc, _ := newTestGroupService(t)

	_, err := svc.Create(context.Background(), "A", strings.Repeat("x", MaxGroupNameLength+1))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestCreateGroup_RetriesOnCollision(t *testing.T) {
	svc, _ := newTestGroupService(t, WithCodeGenerator(scriptedCodes("111111", "111111", "222222")))

	first, err := svc.Create(context.Background(), "A", "First")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := svc.Create(context.Background(), "B", "Second")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if first.Code != "111111" || second.Code != "222222" {
		t.Errorf("codes = %q, %q; want 111111, 222222", first.Code, second.Code)
	}

	name, err := svc.ResolveName(context.Background(), "111111")
	if err != nil {
		t.Fatalf("ResolveName() error = %v", err)
	}
	if name != "First" {
		t.Errorf("collision overwrote the first group: name = %q", name)
	}
}

// racingRepo simulates another creator claiming the code between our
// GetGroup check and our insert.
type racingRepo struct {
	*failingStore
	stolen string
}

func (r *racingRepo) CreateGroup(ctx context.Context, g *model.Group) error {
	if g.Code == r.stolen {
		_ = r.failingStore.CreateGroup(ctx, &model.Group{Code: g.Code, Name: "Other", CreatedBy: "Z"})
	}
	return r.failingStore.CreateGroup(ctx, g)
}

func TestCreateGroup_RetriesOnStoreConflict(t *testing.T) {
	repo := &racingRepo{failingStore: &failingStore{Store: memory.New()}, stolen: "333333"}
	svc := NewGroupService(repo, testLogger(), WithCodeGenerator(scriptedCodes("333333", "444444")))

	g, err := svc.Create(context.Background(), "A", "Mine")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.Code != "444444" {
		t.Errorf("Code = %q, want 444444 after the conflict", g.Code)
	}
}

func TestCreateGroup_ExhaustedAttempts(t *testing.T) {
	svc, _ := newTestGroupService(t,
		WithCodeGenerator(scriptedCodes("555555")),
		WithMaxCodeAttempts(3),
	)

	if _, err := svc.Create(context.Background(), "A", "First"); err != nil {
		t.Fatalf("setup: Create() error = %v", err)
	}

	_, err := svc.Create(context.Background(), "B", "Second")
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestCreateGroup_StoreFailure(t *testing.T) {
	svc, store := newTestGroupService(t)
	store.failOn = "GetGroup"
	store.err = errors.New("database is locked")

	_, err := svc.Create(context.Background(), "A", "Flat")
	if !errors.Is(err, apperror.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

// =========================================================================
// JOIN TESTS
// =========================================================================

func TestJoin_TwiceKeepsOneMembership(t *testing.T) {
	svc, _ := newTestGroupService(t, WithCodeGenerator(scriptedCodes("482913")))
	if _, err := svc.Create(context.Background(), "A", "Flat"); err != nil {
		t.Fatalf("setup: Create() error = %v", err)
	}

	res, err := svc.Join(context.Background(), "B", "482913")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if res.AlreadyMember {
		t.Error("first Join() reported AlreadyMember")
	}
	if res.Group.Name != "Flat" {
		t.Errorf("Group.Name = %q, want Flat", res.Group.Name)
	}

	res, err = svc.Join(context.Background(), "B", " 482913 ")
	if err != nil {
		t.Fatalf("second Join() error = %v", err)
	}
	if !res.AlreadyMember {
		t.Error("second Join() did not report AlreadyMember")
	}

	ms, err := svc.Memberships(context.Background(), "B")
	if err != nil {
		t.Fatalf("Memberships() error = %v", err)
	}
	if len(ms) != 1 {
		t.Errorf("Memberships() = %+v, want exactly one entry", ms)
	}
}

func TestJoin_UnknownCode(t *testing.T) {
	svc, _ := newTestGroupService(t)

	_, err := svc.Join(context.Background(), "B", "999999")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestJoin_MalformedCode(t *testing.T) {
	svc, _ := newTestGroupService(t)

	for _, code := range []string{"", "12345", "1234567", "12a456", "hello"} {
		_, err := svc.Join(context.Background(), "B", code)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Join(%q) error = %v, want ErrValidation", code, err)
		}
	}
}

func TestMemberships_JoinOrder(t *testing.T) {
	svc, _ := newTestGroupService(t, WithCodeGenerator(scriptedCodes("300000", "100000", "200000")))
	for _, name := range []string{"C", "A", "B"} {
		if _, err := svc.Create(context.Background(), "owner", name); err != nil {
			t.Fatalf("setup: Create() error = %v", err)
		}
	}

	for _, code := range []string{"200000", "300000", "100000"} {
		if _, err := svc.Join(context.Background(), "U", code); err != nil {
			t.Fatalf("Join(%s) error = %v", code, err)
		}
	}

	ms, err := svc.Memberships(context.Background(), "U")
	if err != nil {
		t.Fatalf("Memberships() error = %v", err)
	}
	var got []string
	for _, m := range ms {
		got = append(got, m.Code)
	}
	want := []string{"200000", "300000", "100000"}
	if !equalStrings(got, want) {
		t.Errorf("Memberships() order = %v, want %v", got, want)
	}
}

func TestResolveName_FallsBackToCode(t *testing.T) {
	svc, store := newTestGroupService(t)
	// A row from before names were required.
	if err := store.CreateGroup(context.Background(), &model.Group{Code: "654321", CreatedBy: "A"}); err != nil {
		t.Fatalf("setup: CreateGroup() error = %v", err)
	}

	for _, code := range []string{"654321", "000000"} {
		name, err := svc.ResolveName(context.Background(), code)
		if err != nil {
			t.Fatalf("ResolveName(%s) error = %v", code, err)
		}
		if name != code {
			t.Errorf("ResolveName(%s) = %q, want the code", code, name)
		}
	}
}

// =========================================================================
// SHARED LIST SCENARIO
// =========================================================================

func TestSharedListScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	groups := NewGroupService(store, testLogger(), WithCodeGenerator(scriptedCodes("482913")))
	lists := NewListService(store, testLogger())

	g, err := groups.Create(ctx, "A", "Flat")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.Code != "482913" {
		t.Fatalf("Code = %q, want 482913", g.Code)
	}

	if _, err := groups.Join(ctx, "B", "482913"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	ms, err := groups.Memberships(ctx, "B")
	if err != nil {
		t.Fatalf("Memberships() error = %v", err)
	}
	if len(ms) != 1 || ms[0].Code != "482913" || ms[0].Name != "Flat" {
		t.Fatalf("Memberships(B) = %+v", ms)
	}

	ref := model.GroupList(g.Code)
	if _, _, err := lists.Append(ctx, ref, "Milk", "A"); err != nil {
		t.Fatalf("Append(A) error = %v", err)
	}
	if _, _, err := lists.Append(ctx, ref, "milk ", "B"); err != nil {
		t.Fatalf("Append(B) error = %v", err)
	}
	if got := texts(t, lists, ref); !equalStrings(got, []string{"Milk", "Milk"}) {
		t.Fatalf("Items() = %v, want [Milk Milk]", got)
	}

	if removed, err := lists.Remove(ctx, ref, "Milk"); err != nil || !removed {
		t.Fatalf("Remove() = %v, %v", removed, err)
	}
	if got := texts(t, lists, ref); !equalStrings(got, []string{"Milk"}) {
		t.Errorf("Items() = %v, want [Milk]", got)
	}
}
