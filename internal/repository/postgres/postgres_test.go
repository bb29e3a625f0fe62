package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/xid"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
)

// newTestDB connects to DATABASE_URL, or skips. Tests share the database,
// so every key they touch is made unique with xid.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping postgres tests")
	}
	db, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func unique(prefix string) string {
	return prefix + "-" + xid.New().String()
}

func texts(t *testing.T, db *DB, ref model.ListRef) []string {
	t.Helper()
	items, err := db.Items(context.Background(), ref)
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	return model.Texts(items)
}

func TestPersonalList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ref := model.PersonalList(unique("user"))

	for _, text := range []string{"Milk", "Bread", "Milk"} {
		if err := db.AppendItem(ctx, ref, &model.Item{Text: text, AddedBy: ref.Key}); err != nil {
			t.Fatalf("AppendItem(%q) error = %v", text, err)
		}
	}
	if diff := cmp.Diff([]string{"Milk", "Bread", "Milk"}, texts(t, db, ref)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	removed, err := db.RemoveItem(ctx, ref, "Milk")
	if err != nil || !removed {
		t.Fatalf("RemoveItem() = %v, %v; want true, nil", removed, err)
	}
	if diff := cmp.Diff([]string{"Bread", "Milk"}, texts(t, db, ref)); diff != "" {
		t.Errorf("after remove (-want +got):\n%s", diff)
	}

	items, err := db.Items(ctx, ref)
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	got, removed, err := db.RemoveItemByID(ctx, ref, items[0].ID)
	if err != nil || !removed || got.Text != "Bread" {
		t.Fatalf("RemoveItemByID() = %+v, %v, %v; want Bread, true, nil", got, removed, err)
	}
	if _, removed, err := db.RemoveItemByID(ctx, ref, items[0].ID); err != nil || removed {
		t.Errorf("RemoveItemByID(again) = %v, %v; want false, nil", removed, err)
	}

	removed, err = db.RemoveItem(ctx, ref, "Eggs")
	if err != nil || removed {
		t.Errorf("RemoveItem(absent) = %v, %v; want false, nil", removed, err)
	}

	if err := db.Clear(ctx, ref); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := texts(t, db, ref); len(got) != 0 {
		t.Errorf("after Clear() items = %v, want none", got)
	}
}

func TestGroups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	code, alice, bob := unique("g"), unique("alice"), unique("bob")

	if err := db.CreateGroup(ctx, &model.Group{Code: code, Name: "Home", CreatedBy: alice}); err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	err := db.CreateGroup(ctx, &model.Group{Code: code, CreatedBy: bob})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateGroup(duplicate) error = %v, want ErrConflict", err)
	}

	g, err := db.GetGroup(ctx, code)
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if g.Name != "Home" || g.CreatedBy != alice {
		t.Errorf("GetGroup() = %+v", g)
	}

	if _, err := db.GetGroup(ctx, unique("missing")); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetGroup(missing) error = %v, want ErrNotFound", err)
	}

	added, err := db.AddMember(ctx, code, bob)
	if err != nil || !added {
		t.Fatalf("AddMember() = %v, %v; want true, nil", added, err)
	}
	added, err = db.AddMember(ctx, code, bob)
	if err != nil || added {
		t.Errorf("AddMember(again) = %v, %v; want false, nil", added, err)
	}
	if _, err := db.AddMember(ctx, unique("missing"), bob); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AddMember(missing group) error = %v, want ErrNotFound", err)
	}

	for _, user := range []string{alice, bob} {
		ok, err := db.IsMember(ctx, code, user)
		if err != nil || !ok {
			t.Errorf("IsMember(%s) = %v, %v; want true, nil", user, ok, err)
		}
	}

	ms, err := db.Memberships(ctx, bob)
	if err != nil {
		t.Fatalf("Memberships() error = %v", err)
	}
	if len(ms) != 1 || ms[0].Code != code || ms[0].Name != "Home" {
		t.Errorf("Memberships() = %+v", ms)
	}

	if err := db.AppendItem(ctx, model.GroupList(unique("missing")), &model.Item{Text: "Milk"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AppendItem(missing group) error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentAppends(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	code := unique("g")
	if err := db.CreateGroup(ctx, &model.Group{Code: code, CreatedBy: "a"}); err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	ref := model.GroupList(code)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.AppendItem(ctx, ref, &model.Item{Text: fmt.Sprintf("item %d", i)})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendItem() error = %v", err)
		}
	}

	if got := texts(t, db, ref); len(got) != n {
		t.Errorf("got %d items after %d concurrent appends", len(got), n)
	}
}
