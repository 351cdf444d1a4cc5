package memory //nolint:testpackage // white-box tests for internal helpers (pruneStale, formatAge, etc.)

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// setupTestStore creates an in-memory SQLite database with the memory schema.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	return store
}

func TestStore_InsertAndSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, InsertParams{
		Content: "Answered call from Mama, she needs groceries picked up", Type: "call_summary",
		Caller: "Mama", Importance: 0.9,
	})
	if err != nil {
		t.Fatalf("insert 1: %v", err)
	}

	_, err = store.Insert(ctx, InsertParams{
		Content: "Declined call from unknown number, likely spam", Type: "call_declined",
		Caller: "+15550001", Importance: 0.3,
	})
	if err != nil {
		t.Fatalf("insert 2: %v", err)
	}

	_, err = store.Insert(ctx, InsertParams{
		Content: "Sent WhatsApp message confirming the meeting", Type: "action_result",
		Importance: 0.5,
	})
	if err != nil {
		t.Fatalf("insert 3: %v", err)
	}

	// Search for "groceries" should find the Mama summary.
	results, err := store.Search(ctx, "groceries", SearchOpts{Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if !strings.Contains(results[0].Content, "groceries") {
		t.Errorf("expected first result to contain 'groceries', got: %s", results[0].Content)
	}
	if results[0].Score <= 0 {
		t.Errorf("expected positive score, got: %f", results[0].Score)
	}

	// Search for "spam" should find the declined call.
	results, err = store.Search(ctx, "spam", SearchOpts{Limit: 5})
	if err != nil {
		t.Fatalf("search spam: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result for spam")
	}
	if results[0].Caller != "+15550001" {
		t.Errorf("expected caller +15550001, got: %s", results[0].Caller)
	}
}

func TestStore_InsertDefaultImportance(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, InsertParams{Content: "note without importance", Type: "note"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	list, err := store.List(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 record, got %d", len(list))
	}
	if list[0].ID != id {
		t.Errorf("expected id %d, got %d", id, list[0].ID)
	}
	if list[0].Importance != 0.5 {
		t.Errorf("expected default importance 0.5, got %f", list[0].Importance)
	}
}

func TestStore_RecallOrdersByRecency(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Older record first: created_at manipulated directly.
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO memories (content, type, caller, importance, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		"Boss called about the urgent report last week", "call_summary", "Boss", 0.9,
		time.Now().AddDate(0, 0, -7).Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		t.Fatalf("insert old: %v", err)
	}

	_, err = store.Insert(ctx, InsertParams{
		Content: "Boss said the urgent deadline moved to Friday", Type: "call_summary",
		Caller: "Boss", Importance: 0.4,
	})
	if err != nil {
		t.Fatalf("insert new: %v", err)
	}

	got, err := store.Recall(ctx, "urgent", 5)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	// Newest first regardless of importance.
	if !strings.Contains(got[0].Content, "Friday") {
		t.Errorf("expected newest record first, got: %s", got[0].Content)
	}
}

func TestStore_RecallEmptyQuery(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.Recall(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for blank query, got %d records", len(got))
	}
}

func TestStore_RecallOnlyMatches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seed := []InsertParams{
		{Content: "Mama needs help with the phone", Type: "call_summary", Caller: "Mama"},
		{Content: "Calendar reminder for dentist", Type: "note"},
	}
	for i, p := range seed {
		if _, err := store.Insert(ctx, p); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	got, err := store.Recall(ctx, "Mama", 5)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Caller != "Mama" {
		t.Errorf("expected caller Mama, got: %s", got[0].Caller)
	}
}

func TestStore_SearchWithTimeDecay(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO memories (content, type, caller, importance, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		"old transcript about project deadlines", "call_transcript", "Boss", 0.8,
		time.Now().AddDate(0, -3, 0).Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		t.Fatalf("insert old: %v", err)
	}

	_, err = store.Insert(ctx, InsertParams{
		Content: "new transcript about project deadlines", Type: "call_transcript",
		Caller: "Boss", Importance: 0.8,
	})
	if err != nil {
		t.Fatalf("insert new: %v", err)
	}

	results, err := store.Search(ctx, "project deadlines", SearchOpts{Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}
	if !strings.HasPrefix(results[0].Content, "new") {
		t.Errorf("expected recent memory ranked first, got: %s", results[0].Content)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("expected decay to rank new above old: %f vs %f", results[0].Score, results[1].Score)
	}
}

func TestStore_SearchTypeFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seed := []InsertParams{
		{Content: "call summary about the meeting", Type: "call_summary", Caller: "Boss"},
		{Content: "transcript line about the meeting", Type: "call_transcript", Caller: "Boss"},
	}
	for i, p := range seed {
		if _, err := store.Insert(ctx, p); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	results, err := store.Search(ctx, "meeting", SearchOpts{Limit: 5, Type: "call_summary"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Type != "call_summary" {
		t.Errorf("expected type call_summary, got: %s", results[0].Type)
	}
}

func TestStore_ListFiltersAndPagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		typ := "note"
		if i%2 == 0 {
			typ = "call_summary"
		}
		if _, err := store.Insert(ctx, InsertParams{Content: "entry", Type: typ, Caller: "Mama"}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	byType, err := store.List(ctx, ListOpts{Type: "call_summary"})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(byType) != 3 {
		t.Errorf("expected 3 call_summary records, got %d", len(byType))
	}

	page, err := store.List(ctx, ListOpts{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("expected page of 2, got %d", len(page))
	}
}

func TestStore_DeleteAndCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, InsertParams{Content: "temporary", Type: "note"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	n, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("count after delete: %v", err)
	}
	if n != 0 {
		t.Errorf("expected count 0, got %d", n)
	}

	// FTS index should no longer match the deleted row.
	got, err := store.Recall(ctx, "temporary", 5)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no recall hits after delete, got %d", len(got))
	}
}

func TestStore_CountByCaller(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Insert(ctx, InsertParams{Content: "chatted about plans", Type: "call_transcript", Caller: "Bob"}); err != nil {
			t.Fatalf("insert bob %d: %v", i, err)
		}
	}
	if _, err := store.Insert(ctx, InsertParams{Content: "one-off call", Type: "call_summary", Caller: "Carol"}); err != nil {
		t.Fatalf("insert carol: %v", err)
	}

	n, err := store.CountByCaller(ctx, "Bob")
	if err != nil {
		t.Fatalf("count by caller: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 memories for Bob, got %d", n)
	}

	n, err = store.CountByCaller(ctx, "nobody")
	if err != nil {
		t.Fatalf("count by caller nobody: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 memories for unknown caller, got %d", n)
	}
}

func TestStore_UpdateImportance(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, InsertParams{Content: "recurring caller", Type: "call_summary", Importance: 0.4})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := store.UpdateImportance(ctx, id, 0.95); err != nil {
		t.Fatalf("update importance: %v", err)
	}

	list, err := store.List(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Importance != 0.95 {
		t.Errorf("expected importance 0.95, got %+v", list)
	}
}

func TestForPrompt(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, InsertParams{
		Content: "Mama prefers calls answered before noon", Type: "note",
		Caller: "Mama", Importance: 0.9,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	out, err := ForPrompt(ctx, store, "Mama calls", 200)
	if err != nil {
		t.Fatalf("for prompt: %v", err)
	}
	if !strings.Contains(out, "## Relevant Memories") {
		t.Errorf("expected markdown header, got: %s", out)
	}
	if !strings.Contains(out, "Mama") {
		t.Errorf("expected memory content, got: %s", out)
	}

	empty, err := ForPrompt(ctx, store, "", 200)
	if err != nil {
		t.Fatalf("for prompt empty: %v", err)
	}
	if empty != "" {
		t.Errorf("expected empty output for empty query, got: %s", empty)
	}
}

func TestConsolidate_PrunesLowScores(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Fresh but near-zero importance: decayed score below the 0.1 floor.
	_, err := store.Insert(ctx, InsertParams{Content: "noise entry", Type: "note", Importance: 0.05})
	if err != nil {
		t.Fatalf("insert noise: %v", err)
	}

	_, err = store.Insert(ctx, InsertParams{Content: "important summary", Type: "call_summary", Importance: 0.9})
	if err != nil {
		t.Fatalf("insert keeper: %v", err)
	}

	merged, pruned, err := Consolidate(ctx, store, ConsolidateOpts{DryRun: true})
	if err != nil {
		t.Fatalf("consolidate dry run: %v", err)
	}
	if pruned != 1 {
		t.Errorf("dry run: expected 1 pruned, got %d (merged %d)", pruned, merged)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("dry run must not delete: expected 2, got %d", n)
	}

	_, pruned, err = Consolidate(ctx, store, ConsolidateOpts{})
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned, got %d", pruned)
	}

	remaining, err := store.List(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Type != "call_summary" {
		t.Errorf("expected only the call_summary to remain, got %+v", remaining)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-08-20 10:30:00", "2026-08-20"},
		{"2026-08-20", "2026-08-20"},
		{"bad", "bad"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.in); got != tt.want {
			t.Errorf("formatAge(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
