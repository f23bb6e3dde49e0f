package condition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newSeededMemoryRepository() *MemoryRepository {
	repo := NewMemoryRepository()
	repo.Seed(DemoRecords()...)
	return repo
}

func TestMemoryRepository_GetByID(t *testing.T) {
	repo := newSeededMemoryRepository()
	c, err := repo.GetByID(context.Background(), seededID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != seededID {
		t.Errorf("expected %s, got %s", seededID, c.ID)
	}
	if c.ClinicalStatus != StatusUnknown {
		t.Errorf("expected UNKNOWN, got %s", c.ClinicalStatus)
	}

	if _, err := repo.GetByID(context.Background(), "950d965d-a935-429f-945f-75a502a90188"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_CopiesRecords(t *testing.T) {
	repo := NewMemoryRepository()
	in := &Condition{SubjectID: "p1", Codes: []Coding{{Code: "a"}}}
	if err := repo.Create(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	in.Codes[0].Code = "mutated"
	in.SubjectID = "p2"

	got, err := repo.GetByID(context.Background(), in.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SubjectID != "p1" || got.Codes[0].Code != "a" {
		t.Errorf("store shares state with caller: %+v", got)
	}

	got.Codes[0].Code = "changed"
	again, _ := repo.GetByID(context.Background(), in.ID)
	if again.Codes[0].Code != "a" {
		t.Error("store shares state with reader")
	}
}

func TestMemoryRepository_CreateAssignsIDAndTimestamps(t *testing.T) {
	repo := NewMemoryRepository()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	c := &Condition{SubjectID: "p1"}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if c.ID == "" {
		t.Error("expected id to be assigned")
	}
	if !c.CreatedAt.Equal(fixed) || !c.UpdatedAt.Equal(fixed) {
		t.Errorf("unexpected timestamps %v %v", c.CreatedAt, c.UpdatedAt)
	}
}

func TestMemoryRepository_CreateKeepsClientID(t *testing.T) {
	repo := newSeededMemoryRepository()
	c := &Condition{ID: "client-chosen", SubjectID: "p1"}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if c.ID != "client-chosen" {
		t.Errorf("expected client id to be kept, got %s", c.ID)
	}

	dup := &Condition{ID: seededID, SubjectID: "p1"}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestMemoryRepository_ConcurrentCreatesGetUniqueIDs(t *testing.T) {
	repo := NewMemoryRepository()
	const n = 200

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &Condition{SubjectID: "p1"}
			if err := repo.Create(context.Background(), c); err != nil {
				t.Error(err)
				return
			}
			ids <- c.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	_, total, err := repo.Search(context.Background(), SearchParams{}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != n || len(seen) != n {
		t.Errorf("expected %d records, got total=%d unique=%d", n, total, len(seen))
	}
}

func TestMemoryRepository_SearchOrderingAndPaging(t *testing.T) {
	repo := newSeededMemoryRepository()
	ctx := context.Background()

	items, total, err := repo.Search(ctx, SearchParams{SubjectID: seededSubjectID}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(items))
	}
	if items[0].ID != "2cc6880e-2c46-11e4-9138-a6c5e4d20fb7" || items[1].ID != seededID {
		t.Errorf("expected newest first, got %s, %s", items[0].ID, items[1].ID)
	}

	page, total, _ := repo.Search(ctx, SearchParams{}, 1, 1)
	if total != 3 || len(page) != 1 {
		t.Fatalf("expected 1 of 3, got %d of %d", len(page), total)
	}
	if page[0].ID != "2cc6880e-2c46-11e4-9138-a6c5e4d20fb7" {
		t.Errorf("unexpected second item %s", page[0].ID)
	}

	past, total, _ := repo.Search(ctx, SearchParams{}, 10, 50)
	if total != 3 || len(past) != 0 {
		t.Errorf("expected empty page past the end, got %d of %d", len(past), total)
	}
}

func TestMemoryRepository_SearchTieBreaksOnID(t *testing.T) {
	repo := NewMemoryRepository()
	same := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.Seed(
		&Condition{ID: "b", SubjectID: "p", CreatedAt: same},
		&Condition{ID: "a", SubjectID: "p", CreatedAt: same},
		&Condition{ID: "c", SubjectID: "p", CreatedAt: same},
	)
	items, _, _ := repo.Search(context.Background(), SearchParams{}, 0, 0)
	if len(items) != 3 || items[0].ID != "a" || items[1].ID != "b" || items[2].ID != "c" {
		t.Errorf("expected a, b, c ordering, got %v", []string{items[0].ID, items[1].ID, items[2].ID})
	}
}

func TestMemoryRepository_SearchFilters(t *testing.T) {
	repo := newSeededMemoryRepository()
	ctx := context.Background()

	tests := []struct {
		name   string
		params SearchParams
		want   int
	}{
		{"by id", SearchParams{ID: seededID}, 1},
		{"by status", SearchParams{ClinicalStatus: StatusResolved}, 1},
		{"by code", SearchParams{Code: malariaCode}, 1},
		{"by system and code", SearchParams{Code: "https://cielterminology.org|" + malariaCode}, 1},
		{"by system only", SearchParams{Code: "http://snomed.info/sct|"}, 1},
		{"code requiring no system", SearchParams{Code: "|" + malariaCode}, 0},
		{"wrong system", SearchParams{Code: "http://snomed.info/sct|" + malariaCode}, 0},
		{"combined", SearchParams{SubjectID: seededSubjectID, ClinicalStatus: StatusActive}, 1},
		{"no match", SearchParams{SubjectID: "nobody"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := repo.Search(ctx, tt.params, 20, 0)
			if err != nil {
				t.Fatal(err)
			}
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := newSeededMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.GetByID(ctx, seededID); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := repo.Create(ctx, &Condition{SubjectID: "p"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
