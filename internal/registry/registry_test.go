package registry

import (
	"path/filepath"
	"reflect"
	"testing"
)

func openTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.toml")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return r, path
}

func TestAddCategory(t *testing.T) {
	r, _ := openTestRegistry(t)

	ok, err := r.AddCategory("Food")
	if err != nil {
		t.Fatalf("AddCategory(Food) error = %v", err)
	}
	if !ok {
		t.Fatal("AddCategory(Food) = false, want true")
	}

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"duplicate", "Food", false},
		{"duplicate different case", "fOOD", false},
		{"blank", "   ", false},
		{"new", "Transport", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := r.AddCategory(tt.input)
			if err != nil {
				t.Fatalf("AddCategory(%q) error = %v", tt.input, err)
			}
			if ok != tt.want {
				t.Errorf("AddCategory(%q) = %v, want %v", tt.input, ok, tt.want)
			}
		})
	}
}

func TestDeleteCategoryProtected(t *testing.T) {
	r, _ := openTestRegistry(t)

	// Non-expense categories are seeded as protected.
	ok, err := r.DeleteCategory("Savings")
	if err != nil {
		t.Fatalf("DeleteCategory error = %v", err)
	}
	if ok {
		t.Error("protected category should not be deletable")
	}

	if ok, _ := r.DeleteCategory("Nonexistent"); ok {
		t.Error("absent category should not be deletable")
	}

	if ok, _ := r.AddCategory("Hobby"); !ok {
		t.Fatal("AddCategory(Hobby) failed")
	}
	if ok, _ := r.DeleteCategory("Hobby"); !ok {
		t.Error("plain category should be deletable")
	}
}

func TestAddAndDeleteTag(t *testing.T) {
	r, _ := openTestRegistry(t)
	if ok, _ := r.AddCategory("Food"); !ok {
		t.Fatal("AddCategory failed")
	}

	if ok, _ := r.AddTag("Food", "Groceries"); !ok {
		t.Fatal("AddTag should succeed")
	}
	if ok, _ := r.AddTag("Food", "groceries"); ok {
		t.Error("case-insensitive duplicate tag should be refused")
	}
	if ok, _ := r.AddTag("Missing", "Tag"); ok {
		t.Error("tag under absent category should be refused")
	}

	if ok, _ := r.DeleteTag("Food", "Groceries"); !ok {
		t.Error("existing tag should be deletable")
	}
	if ok, _ := r.DeleteTag("Food", "Groceries"); ok {
		t.Error("second delete should report no change")
	}
}

func TestReallocateTagsRoundTrip(t *testing.T) {
	r, _ := openTestRegistry(t)
	for _, c := range []string{"Food", "Household"} {
		if ok, _ := r.AddCategory(c); !ok {
			t.Fatalf("AddCategory(%s) failed", c)
		}
	}
	for _, tag := range []string{"Groceries", "Takeaway"} {
		if ok, _ := r.AddTag("Food", tag); !ok {
			t.Fatalf("AddTag(%s) failed", tag)
		}
	}
	if ok, _ := r.AddTag("Household", "Cleaning"); !ok {
		t.Fatal("AddTag(Cleaning) failed")
	}

	before := r.Snapshot()

	if ok, _ := r.ReallocateTags("Food", "Household", []string{"Takeaway"}); !ok {
		t.Fatal("ReallocateTags forward failed")
	}
	tags, _ := r.Snapshot().TagsFor("Household")
	if !reflect.DeepEqual(tags, []string{"Cleaning", "Takeaway"}) {
		t.Errorf("Household tags after move = %v", tags)
	}

	if ok, _ := r.ReallocateTags("Household", "Food", []string{"Takeaway"}); !ok {
		t.Fatal("ReallocateTags back failed")
	}
	after := r.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("round trip changed registry: before %v, after %v", before, after)
	}

	if ok, _ := r.ReallocateTags("Food", "Nowhere", []string{"Takeaway"}); ok {
		t.Error("reallocate to absent category should be refused")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	r, path := openTestRegistry(t)
	if ok, _ := r.AddCategory("Food"); !ok {
		t.Fatal("AddCategory failed")
	}
	for _, tag := range []string{"Groceries", "Takeaway", "Restaurants"} {
		if ok, _ := r.AddTag("Food", tag); !ok {
			t.Fatalf("AddTag(%s) failed", tag)
		}
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, ok := reloaded.Snapshot().TagsFor("Food")
	if !ok {
		t.Fatal("Food missing after reload")
	}
	want := []string{"Groceries", "Takeaway", "Restaurants"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags after reload = %v, want %v (order must survive)", got, want)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	r, _ := openTestRegistry(t)
	if ok, _ := r.AddCategory("Food"); !ok {
		t.Fatal("AddCategory failed")
	}
	if ok, _ := r.AddTag("Food", "Groceries"); !ok {
		t.Fatal("AddTag failed")
	}

	snap := r.Snapshot()
	tags, _ := snap.TagsFor("Food")
	tags[0] = "mutated"

	fresh, _ := r.Snapshot().TagsFor("Food")
	if fresh[0] != "Groceries" {
		t.Error("mutating a snapshot must not affect the registry")
	}
}
