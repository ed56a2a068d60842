package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a precedent is not in the index.
var ErrNotFound = errors.New("store: precedent not found")

// maxKeywordTerms bounds the LIKE clauses generated for one query.
const maxKeywordTerms = 8

// Store provides persistence for indexed precedents, chunks, and embeddings.
type Store interface {
	// GetPrecedentHash returns the stored hash for a document id, or "" if
	// not indexed.
	GetPrecedentHash(docID string) (string, error)
	// UpsertPrecedent inserts or updates a precedent and returns its row ID.
	// It also deletes any existing chunks and embeddings for it.
	UpsertPrecedent(p PrecedentRecord) (int64, error)
	// InsertChunks inserts chunks for a precedent and returns their IDs.
	InsertChunks(precedentID int64, chunks []Chunk) ([]int64, error)
	// InsertEmbeddings stores embeddings keyed by chunk ID.
	InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error
	// Search finds the top-k chunks closest to the query embedding.
	Search(queryEmbedding []float32, k int) ([]SearchResult, error)
	// KeywordSearch finds up to k chunks containing the query terms, most
	// matched terms first.
	KeywordSearch(query string, k int) ([]SearchResult, error)
	// GetPrecedent looks a precedent up by document id or source id.
	GetPrecedent(id string) (PrecedentRecord, error)
	// ListPrecedents returns indexed precedents, newest decision first.
	ListPrecedents(f ListFilter) ([]PrecedentSummary, error)
	// SetPrecedentSummary stores an LLM-generated summary.
	SetPrecedentSummary(docID, summary string) error
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// DeleteAllChunks removes all precedents, chunks, and embeddings.
	DeleteAllChunks() error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetPrecedentHash(docID string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM precedents WHERE doc_id = ?", docID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) UpsertPrecedent(p PrecedentRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow("SELECT id FROM precedents WHERE doc_id = ?", p.DocID).Scan(&existingID)
	if err == nil {
		if _, err := tx.Exec(
			"DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM chunks WHERE precedent_id = ?)",
			existingID,
		); err != nil {
			return 0, err
		}
		if _, err := tx.Exec("DELETE FROM chunks WHERE precedent_id = ?", existingID); err != nil {
			return 0, err
		}
		_, err = tx.Exec(`
			UPDATE precedents SET prec_id = ?, case_no = ?, case_name = ?, court = ?,
			       decision_date = ?, decision_date_iso = ?, source = ?, body = ?, hash = ?,
			       summary = ?, indexed_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			p.PrecID, p.CaseNo, p.CaseName, p.Court, p.DecisionDate, p.DecisionDateISO,
			p.Source, p.Body, p.Hash, p.Summary, existingID,
		)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := tx.Exec(`
		INSERT INTO precedents (doc_id, prec_id, case_no, case_name, court, decision_date,
		                        decision_date_iso, source, body, hash, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.DocID, p.PrecID, p.CaseNo, p.CaseName, p.Court, p.DecisionDate,
		p.DecisionDateISO, p.Source, p.Body, p.Hash, p.Summary,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) InsertChunks(precedentID int64, chunks []Chunk) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO chunks (uuid, precedent_id, chunk_index, content, metadata) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		meta := c.Metadata
		if meta == "" {
			meta = "{}"
		}
		res, err := stmt.Exec(c.UUID, precedentID, c.Index, c.Content, meta)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", c.UUID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) InsertEmbeddings(chunkIDs []int64, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("mismatched chunk IDs (%d) and embeddings (%d)", len(chunkIDs), len(embeddings))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, cid := range chunkIDs {
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", cid, err)
		}
		if _, err := stmt.Exec(cid, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", cid, err)
		}
	}
	return tx.Commit()
}

const resultColumns = `
	c.id, c.uuid, c.precedent_id, c.chunk_index, c.content, c.metadata,
	p.doc_id, p.prec_id, p.case_no, p.case_name, p.court, p.decision_date_iso, p.summary`

func scanResult(rows *sql.Rows, extra ...any) (SearchResult, error) {
	var r SearchResult
	dest := []any{
		&r.Chunk.ID, &r.Chunk.UUID, &r.Chunk.PrecedentID, &r.Chunk.Index, &r.Chunk.Content, &r.Chunk.Metadata,
		&r.Precedent.DocID, &r.Precedent.PrecID, &r.Precedent.CaseNo, &r.Precedent.CaseName,
		&r.Precedent.Court, &r.Precedent.DecisionDateISO, &r.Precedent.Summary,
	}
	err := rows.Scan(append(dest, extra...)...)
	return r, err
}

func (s *SQLiteStore) Search(queryEmbedding []float32, k int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT`+resultColumns+`, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN precedents p ON p.id = c.precedent_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var dist float64
		r, err := scanResult(rows, &dist)
		if err != nil {
			return nil, err
		}
		r.Distance = dist
		results = append(results, r)
	}
	return results, rows.Err()
}

// keywordTerms splits a query into LIKE terms of at least two characters.
func keywordTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, t := range strings.Fields(query) {
		t = strings.Trim(t, ".,?!\"'()[]「」")
		if utf8.RuneCountInString(t) < 2 || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
		if len(terms) == maxKeywordTerms {
			break
		}
	}
	return terms
}

func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func (s *SQLiteStore) KeywordSearch(query string, k int) ([]SearchResult, error) {
	terms := keywordTerms(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}
	score := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, t := range terms {
		score[i] = `(CASE WHEN c.content LIKE ? ESCAPE '\' THEN 1 ELSE 0 END)`
		args = append(args, likePattern(t))
	}
	args = append(args, k)

	rows, err := s.db.Query(`
		SELECT * FROM (
			SELECT`+resultColumns+`, (`+strings.Join(score, " + ")+`) AS hits
			FROM chunks c
			JOIN precedents p ON p.id = c.precedent_id
		)
		WHERE hits > 0
		ORDER BY hits DESC, decision_date_iso DESC, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var hits int
		r, err := scanResult(rows, &hits)
		if err != nil {
			return nil, err
		}
		r.Keyword = true
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) GetPrecedent(id string) (PrecedentRecord, error) {
	var p PrecedentRecord
	err := s.db.QueryRow(`
		SELECT id, doc_id, prec_id, case_no, case_name, court, decision_date, decision_date_iso,
		       source, body, hash, summary, indexed_at
		FROM precedents WHERE doc_id = ? OR prec_id = ?
		ORDER BY id LIMIT 1`, id, id,
	).Scan(
		&p.ID, &p.DocID, &p.PrecID, &p.CaseNo, &p.CaseName, &p.Court, &p.DecisionDate,
		&p.DecisionDateISO, &p.Source, &p.Body, &p.Hash, &p.Summary, &p.IndexedAt,
	)
	if err == sql.ErrNoRows {
		return PrecedentRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, err
}

func (s *SQLiteStore) ListPrecedents(f ListFilter) ([]PrecedentSummary, error) {
	query := `
		SELECT p.doc_id, p.prec_id, p.case_no, p.case_name, p.court, p.decision_date_iso,
		       COUNT(c.id), p.summary
		FROM precedents p
		LEFT JOIN chunks c ON c.precedent_id = p.id
		WHERE 1 = 1`
	var args []any
	if f.Court != "" {
		query += ` AND p.court LIKE ? ESCAPE '\'`
		args = append(args, likePattern(f.Court))
	}
	if f.Since != "" {
		query += " AND p.decision_date_iso >= ?"
		args = append(args, f.Since)
	}
	query += " GROUP BY p.id ORDER BY p.decision_date_iso DESC, p.id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PrecedentSummary
	for rows.Next() {
		var p PrecedentSummary
		if err := rows.Scan(&p.DocID, &p.PrecID, &p.CaseNo, &p.CaseName, &p.Court, &p.DecisionDateISO, &p.Chunks, &p.Summary); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetPrecedentSummary(docID, summary string) error {
	res, err := s.db.Exec("UPDATE precedents SET summary = ? WHERE doc_id = ?", summary, docID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return nil
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) DeleteAllChunks() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM vec_chunks"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM precedents"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
