package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/hpungsan/codyarch/internal/budget"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/result"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestRecord creates a record with default values for testing.
func newTestRecord(id, workspace string, kind result.Kind, path string) *Record {
	now := time.Now().Unix()
	return &Record{
		ID:         id,
		Workspace:  workspace,
		Kind:       kind,
		Query:      "golang generics",
		Name:       "golang generics",
		Path:       path,
		Chars:      120,
		Metric:     budget.MetricTokens,
		Size:       30,
		Limit:      28000,
		Iterations: 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestUpsertAndGetByID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRecord("01ABC123", "/w", result.KindWeb, "/w/.codyarchitect/webresults/golang generics.md")
	if err := Upsert(ctx, db, r); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := GetByID(ctx, db, "01ABC123")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if *got != *r {
		t.Errorf("GetByID = %+v, want %+v", *got, *r)
	}
}

func TestUpsert_SamePathKeepsID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	path := "/w/.codyarchitect/pdfresults/paper.pdf.md"

	first := newTestRecord("01FIRST", "/w", result.KindPDF, path)
	first.CreatedAt = 100
	first.UpdatedAt = 100
	if err := Upsert(ctx, db, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second := newTestRecord("01SECOND", "/w", result.KindPDF, path)
	second.Size = 99
	second.Iterations = 3
	second.CreatedAt = 200
	second.UpdatedAt = 200
	if err := Upsert(ctx, db, second); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	if second.ID != "01FIRST" {
		t.Errorf("ID after re-upsert = %q, want 01FIRST", second.ID)
	}
	if second.CreatedAt != 100 {
		t.Errorf("CreatedAt after re-upsert = %d, want 100", second.CreatedAt)
	}

	got, err := GetByPath(ctx, db, path)
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if got.Size != 99 || got.Iterations != 3 || got.UpdatedAt != 200 {
		t.Errorf("row not updated: %+v", *got)
	}

	_, total, err := List(ctx, db, ListFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetByID(context.Background(), db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID error = %v, want NOT_FOUND", err)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		kind := result.KindWeb
		if i%2 == 1 {
			kind = result.KindPDF
		}
		ws := "/a"
		if i == 4 {
			ws = "/b"
		}
		r := newTestRecord(fmt.Sprintf("01ID%d", i), ws, kind, fmt.Sprintf("%s/doc%d.md", ws, i))
		r.UpdatedAt = int64(1000 + i)
		if err := Upsert(ctx, db, r); err != nil {
			t.Fatalf("Upsert %d failed: %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    ListFilter
		limit     int
		offset    int
		wantIDs   []string
		wantTotal int
	}{
		{"all", ListFilter{}, 10, 0, []string{"01ID4", "01ID3", "01ID2", "01ID1", "01ID0"}, 5},
		{"workspace", ListFilter{Workspace: "/a"}, 10, 0, []string{"01ID3", "01ID2", "01ID1", "01ID0"}, 4},
		{"kind", ListFilter{Kind: result.KindPDF}, 10, 0, []string{"01ID3", "01ID1"}, 2},
		{"both", ListFilter{Workspace: "/a", Kind: result.KindWeb}, 10, 0, []string{"01ID2", "01ID0"}, 2},
		{"paged", ListFilter{}, 2, 2, []string{"01ID2", "01ID1"}, 5},
		{"past end", ListFilter{}, 2, 10, nil, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, total, err := List(ctx, db, tc.filter, tc.limit, tc.offset)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if total != tc.wantTotal {
				t.Errorf("total = %d, want %d", total, tc.wantTotal)
			}
			if len(records) != len(tc.wantIDs) {
				t.Fatalf("len = %d, want %d", len(records), len(tc.wantIDs))
			}
			for i, r := range records {
				if r.ID != tc.wantIDs[i] {
					t.Errorf("records[%d].ID = %q, want %q", i, r.ID, tc.wantIDs[i])
				}
			}
		})
	}
}

func TestDeleteByID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := newTestRecord("01DEL", "/w", result.KindWeb, "/w/x.md")
	if err := Upsert(ctx, db, r); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := DeleteByID(ctx, db, "01DEL"); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if _, err := GetByID(ctx, db, "01DEL"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want NOT_FOUND", err)
	}

	if err := DeleteByID(ctx, db, "01DEL"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteByID error = %v, want NOT_FOUND", err)
	}
}
