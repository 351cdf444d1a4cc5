// Package memory provides the assistant's long-lived memory: call summaries,
// transcripts, executed actions, and operator notes. It handles storage,
// recency-ordered recall, BM25-ranked search, prompt injection, and
// consolidation across sessions.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"otto/pkg/protocol"
)

// Store manages the memories table in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by the given SQLite database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the memories tables and FTS index if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, protocol.MemorySchemaDDL); err != nil {
		return fmt.Errorf("memory schema: %w", err)
	}
	return nil
}

// Record is one stored memory row.
type Record struct {
	ID         int64
	Content    string
	Type       string // call_answered | call_transcript | call_summary | call_missed | call_declined | action_result | note
	Caller     string
	Importance float64
	CreatedAt  string
}

// InsertParams holds parameters for inserting a new memory.
type InsertParams struct {
	Content    string
	Type       string
	Caller     string
	Importance float64
}

// SearchOpts configures a ranked FTS5 search query.
type SearchOpts struct {
	Limit    int    // default 10
	Type     string // optional filter
	Caller   string // optional filter
	MinScore float64
}

// ScoredRecord is a Record with an associated relevance score.
type ScoredRecord struct {
	Record
	Score float64
}

// ListOpts configures a list query.
type ListOpts struct {
	Type   string
	Caller string
	Limit  int
	Offset int
}

// Insert adds a new memory. A zero importance defaults to 0.5.
// Returns the inserted ID.
func (s *Store) Insert(ctx context.Context, m InsertParams) (int64, error) {
	importance := m.Importance
	if importance == 0 {
		importance = 0.5
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (content, type, caller, importance)
		 VALUES (?, ?, ?, ?)`,
		m.Content, m.Type, m.Caller, importance,
	)
	if err != nil {
		return 0, fmt.Errorf("memory insert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("memory last insert id: %w", err)
	}
	return id, nil
}

// Recall returns memories matching query ordered by recency, newest first.
// This is the recall surface the decision paths use: deterministic order,
// no relevance weighting. An empty query recalls nothing.
func (s *Store) Recall(ctx context.Context, query string, limit int) ([]Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.content, m.type, COALESCE(m.caller, '') AS caller,
		       m.importance, m.created_at
		FROM memories_fts
		JOIN memories m ON memories_fts.rowid = m.id
		WHERE memories_fts MATCH ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, protocol.SanitizeFTS5Query(query), limit)
	if err != nil {
		return nil, fmt.Errorf("memory recall: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Search performs FTS5 BM25-ranked search with optional filters.
// Results are scored by: BM25 relevance * importance * time decay.
// Time decay halves the score every 30 days of age.
func (s *Store) Search(ctx context.Context, query string, opts SearchOpts) ([]ScoredRecord, error) {
	if query == "" {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	conditions := []string{"memories_fts MATCH ?"}
	args := []interface{}{protocol.SanitizeFTS5Query(query)}

	if opts.Type != "" {
		conditions = append(conditions, "m.type = ?")
		args = append(args, opts.Type)
	}
	if opts.Caller != "" {
		conditions = append(conditions, "m.caller = ?")
		args = append(args, opts.Caller)
	}

	q := fmt.Sprintf(`
		SELECT m.id, m.content, m.type, COALESCE(m.caller, '') AS caller,
		       m.importance, m.created_at,
		       (-bm25(memories_fts)) * m.importance *
		       POWER(0.5, (julianday('now') - julianday(m.created_at)) / 30.0) AS score
		FROM memories_fts
		JOIN memories m ON memories_fts.rowid = m.id
		WHERE %s
		ORDER BY score DESC
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	defer rows.Close()

	var results []ScoredRecord
	for rows.Next() {
		var sr ScoredRecord
		if err := rows.Scan(
			&sr.ID, &sr.Content, &sr.Type, &sr.Caller,
			&sr.Importance, &sr.CreatedAt, &sr.Score,
		); err != nil {
			return nil, fmt.Errorf("memory search scan: %w", err)
		}

		if opts.MinScore > 0 && sr.Score < opts.MinScore {
			continue
		}

		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory search rows: %w", err)
	}

	return results, nil
}

// List returns memories matching optional filters, ordered by created_at desc.
func (s *Store) List(ctx context.Context, opts ListOpts) ([]Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var conditions []string
	var args []interface{}

	if opts.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.Type)
	}
	if opts.Caller != "" {
		conditions = append(conditions, "caller = ?")
		args = append(args, opts.Caller)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	q := fmt.Sprintf(`
		SELECT id, content, type, COALESCE(caller, '') AS caller,
		       importance, created_at
		FROM memories
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, whereClause)

	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("memory list: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords scans all rows into a slice of Records.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	var results []Record
	for rows.Next() {
		var m Record
		if err := rows.Scan(&m.ID, &m.Content, &m.Type, &m.Caller, &m.Importance, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory scan: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory rows: %w", err)
	}
	return results, nil
}

// Delete removes a memory by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("memory delete: %w", err)
	}
	return nil
}

// UpdateImportance updates the importance score for a memory.
func (s *Store) UpdateImportance(ctx context.Context, id int64, importance float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET importance = ? WHERE id = ?`,
		importance, id,
	)
	if err != nil {
		return fmt.Errorf("memory update importance: %w", err)
	}
	return nil
}

// Count returns the number of stored memories.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("memory count: %w", err)
	}
	return n, nil
}

// CountByCaller returns the number of memories attributed to a caller.
func (s *Store) CountByCaller(ctx context.Context, caller string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE caller = ?`, caller).Scan(&n); err != nil {
		return 0, fmt.Errorf("memory count by caller: %w", err)
	}
	return n, nil
}

// ForPrompt retrieves the most relevant memories for a query and formats
// them as a markdown section suitable for injection into an LLM prompt.
// Cap: maxTokens (approximate, using word count / 0.75 as token estimate).
func ForPrompt(ctx context.Context, store *Store, query string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 200
	}

	if query == "" {
		return "", nil
	}

	results, err := store.Search(ctx, query, SearchOpts{Limit: 10})
	if err != nil {
		return "", fmt.Errorf("for prompt search: %w", err)
	}

	if len(results) == 0 {
		return "", nil
	}

	top := results
	if len(top) > 3 {
		top = top[:3]
	}

	lines := []string{"## Relevant Memories"}
	for _, m := range top {
		line := fmt.Sprintf("- [%s] %s (%s, importance: %.2f)",
			m.Type, m.Content, formatAge(m.CreatedAt), m.Importance)
		lines = append(lines, line)
	}

	output := strings.Join(lines, "\n")

	// Truncate if exceeds maxTokens (estimate: words / 0.75)
	words := strings.Fields(output)
	estimatedTokens := int(float64(len(words)) / 0.75)
	if estimatedTokens > maxTokens {
		targetWords := int(float64(maxTokens) * 0.75)
		if targetWords < len(words) {
			output = strings.Join(words[:targetWords], " ") + "..."
		}
	}

	return output, nil
}

// formatAge returns a human-readable age string from a datetime string.
// created_at is in "YYYY-MM-DD HH:MM:SS" format from SQLite datetime('now').
func formatAge(createdAt string) string {
	if len(createdAt) >= 10 {
		return createdAt[:10]
	}
	return createdAt
}

// ConsolidateOpts configures the consolidation process.
type ConsolidateOpts struct {
	SimilarityThreshold float64 // score threshold for "similar" (default 0.8)
	MinDecayedScore     float64 // minimum decayed score to keep (default 0.1)
	DryRun              bool    // if true, don't actually modify, just count
}

// Consolidate deduplicates and prunes the memory store.
//   - Prunes memories whose decayed score fell below MinDecayedScore.
//   - Merges near-duplicate pairs, keeping the higher importance.
//
// Returns counts of merged and pruned memories.
func Consolidate(ctx context.Context, store *Store, opts ConsolidateOpts) (merged int, pruned int, err error) {
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.8
	}
	if opts.MinDecayedScore <= 0 {
		opts.MinDecayedScore = 0.1
	}

	pruned, err = pruneStale(ctx, store, opts.MinDecayedScore, opts.DryRun)
	if err != nil {
		return 0, 0, fmt.Errorf("consolidate prune: %w", err)
	}

	merged, err = mergeDuplicates(ctx, store, opts.SimilarityThreshold, opts.DryRun)
	if err != nil {
		return merged, pruned, fmt.Errorf("consolidate merge: %w", err)
	}

	return merged, pruned, nil
}

// pruneStale removes memories whose decayed score is below minScore.
func pruneStale(ctx context.Context, store *Store, minScore float64, dryRun bool) (int, error) {
	q := `
		SELECT id FROM memories
		WHERE importance * POWER(0.5, (julianday('now') - julianday(created_at)) / 30.0) < ?
	`
	rows, err := store.db.QueryContext(ctx, q, minScore)
	if err != nil {
		return 0, fmt.Errorf("prune stale query: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("prune stale scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("prune stale rows: %w", err)
	}

	if dryRun {
		return len(ids), nil
	}

	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("prune stale delete: %w", err)
		}
	}

	return len(ids), nil
}

// mergeDuplicates finds pairs of similar memories and merges them.
func mergeDuplicates(ctx context.Context, store *Store, threshold float64, dryRun bool) (int, error) {
	all, err := store.List(ctx, ListOpts{Limit: 1000})
	if err != nil {
		return 0, fmt.Errorf("merge duplicates list: %w", err)
	}

	merged := 0
	deleted := make(map[int64]bool)

	for i := 0; i < len(all); i++ {
		if deleted[all[i].ID] {
			continue
		}

		similar, err := store.Search(ctx, all[i].Content, SearchOpts{Limit: 5})
		if err != nil {
			// FTS match might fail for some content; skip
			continue
		}

		for _, s := range similar {
			if s.ID == all[i].ID || deleted[s.ID] {
				continue
			}

			if s.Score < threshold {
				continue
			}

			if dryRun {
				merged++
				deleted[s.ID] = true
				continue
			}

			// Keep the one with higher importance, drop the other.
			keepID := all[i].ID
			removeID := s.ID
			keepImp := all[i].Importance

			if s.Importance > keepImp {
				keepID, removeID = removeID, keepID
				keepImp = s.Importance
			}

			newImp := math.Max(keepImp, s.Importance)
			if err := store.UpdateImportance(ctx, keepID, newImp); err != nil {
				return merged, fmt.Errorf("merge update importance: %w", err)
			}

			if err := store.Delete(ctx, removeID); err != nil {
				return merged, fmt.Errorf("merge delete duplicate: %w", err)
			}

			merged++
			deleted[removeID] = true
		}
	}

	return merged, nil
}
