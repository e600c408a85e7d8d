package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"inquest/internal/search"
)

// Document is one corpus entry.
type Document struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DocStore serves ranked full-text lookups over the corpus. It implements
// search.Searcher.
type DocStore struct {
	db     *sql.DB
	driver string
}

func NewDocStore(db *sql.DB, driver string) *DocStore {
	return &DocStore{db: db, driver: strings.ToLower(driver)}
}

// Search returns ranked matches, highest rank first. Matched terms in the
// excerpt are highlighted with ** markers. Backend failures come back as
// *search.RetrievalError.
func (s *DocStore) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if limit <= 0 {
		limit = 5
	}

	var (
		rows *sql.Rows
		err  error
	)
	switch s.driver {
	case "mysql":
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, title, SUBSTRING(content, 1, 400),
				MATCH(title, content) AGAINST (? IN NATURAL LANGUAGE MODE) AS score
			 FROM documents
			 WHERE MATCH(title, content) AGAINST (? IN NATURAL LANGUAGE MODE)
			 ORDER BY score DESC
			 LIMIT ?`,
			query, query, limit,
		)
	default:
		match := ftsMatchExpr(query)
		if match == "" {
			return []search.Result{}, nil
		}
		// bm25 returns lower-is-better; negate so rank descends.
		rows, err = s.db.QueryContext(ctx,
			`SELECT d.id, d.title,
				snippet(documents_fts, 1, '**', '**', '...', 48),
				-bm25(documents_fts) AS score
			 FROM documents_fts
			 JOIN documents d ON d.id = documents_fts.rowid
			 WHERE documents_fts MATCH ?
			 ORDER BY bm25(documents_fts)
			 LIMIT ?`,
			match, limit,
		)
	}
	if err != nil {
		return nil, &search.RetrievalError{Err: fmt.Errorf("query corpus: %w", err)}
	}
	defer rows.Close()

	results := make([]search.Result, 0, limit)
	for rows.Next() {
		var (
			id      int64
			title   string
			excerpt string
			rank    float64
		)
		if err := rows.Scan(&id, &title, &excerpt, &rank); err != nil {
			return nil, &search.RetrievalError{Err: fmt.Errorf("scan result: %w", err)}
		}
		results = append(results, search.Result{
			DocID:   strconv.FormatInt(id, 10),
			Title:   title,
			Excerpt: excerpt,
			Rank:    rank,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &search.RetrievalError{Err: err}
	}
	return results, nil
}

// ftsMatchExpr quotes every query term so FTS5 operator characters in user
// input cannot break the match expression. Terms are OR-joined to favor
// recall over precision.
func ftsMatchExpr(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

// Insert stores a new corpus document and returns its id.
func (s *DocStore) Insert(ctx context.Context, title, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (title, content, created_at) VALUES (?, ?, ?)`,
		title, content, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return res.LastInsertId()
}

// Get returns one document by id.
func (s *DocStore) Get(ctx context.Context, id int64) (*Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, created_at FROM documents WHERE id = ?`,
		id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// List returns recent documents without their bodies.
func (s *DocStore) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, '', created_at FROM documents ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Count returns the corpus size.
func (s *DocStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
