package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hirepath/hirepath/internal/assessment"
	"github.com/hirepath/hirepath/internal/intake"
	"github.com/hirepath/hirepath/internal/interview"
)

// ErrNotFound is returned by Load for an unknown session id.
var ErrNotFound = errors.New("session not cached")

// Store provides SQLite-backed caching of session stage outputs.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		cv_summary TEXT,
		interview TEXT,
		assessment TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		question_number INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// interviewRow is the interview outcome without its answers, which live
// in the answers table.
type interviewRow struct {
	Reason string `json:"reason"`
	Forced bool   `json:"forced"`
}

// Save writes sess and its answers, replacing any earlier copy.
func (s *Store) Save(sess *Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	cv, err := marshalNullable(sess.CV)
	if err != nil {
		return fmt.Errorf("marshal cv summary: %w", err)
	}
	var iv sql.NullString
	if sess.Interview != nil {
		iv, err = marshalNullable(&interviewRow{Reason: sess.Interview.Reason, Forced: sess.Interview.Forced})
		if err != nil {
			return fmt.Errorf("marshal interview: %w", err)
		}
	}
	as, err := marshalNullable(sess.Assessment)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, stage, cv_summary, interview, assessment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   stage = excluded.stage,
		   cv_summary = excluded.cv_summary,
		   interview = excluded.interview,
		   assessment = excluded.assessment,
		   updated_at = excluded.updated_at`,
		sess.ID, string(sess.Stage), cv, iv, as, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM answers WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	if sess.Interview != nil {
		for _, a := range sess.Interview.Answers {
			_, err := tx.Exec(
				`INSERT INTO answers (session_id, question_number, question, answer, timestamp)
				 VALUES (?, ?, ?, ?, ?)`,
				sess.ID, a.QuestionNumber, a.Question, a.Text, a.CapturedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Load retrieves a session by ID. It returns ErrNotFound when the id has
// never been saved.
func (s *Store) Load(id string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, stage, cv_summary, interview, assessment, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	var (
		sess       Session
		stage      string
		cv, iv, as sql.NullString
	)
	err := row.Scan(&sess.ID, &stage, &cv, &iv, &as, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if sess.Stage, err = ParseStage(stage); err != nil {
		return nil, err
	}
	if cv.Valid {
		var sum intake.CVSummary
		if err := json.Unmarshal([]byte(cv.String), &sum); err != nil {
			return nil, fmt.Errorf("parse cv summary: %w", err)
		}
		sess.CV = &sum
	}
	if iv.Valid {
		var r interviewRow
		if err := json.Unmarshal([]byte(iv.String), &r); err != nil {
			return nil, fmt.Errorf("parse interview: %w", err)
		}
		answers, err := s.answers(id)
		if err != nil {
			return nil, err
		}
		sess.Interview = &interview.Outcome{Answers: answers, Reason: r.Reason, Forced: r.Forced}
	}
	if as.Valid {
		var out assessment.Outcome
		if err := json.Unmarshal([]byte(as.String), &out); err != nil {
			return nil, fmt.Errorf("parse assessment: %w", err)
		}
		sess.Assessment = &out
	}

	return &sess, nil
}

func (s *Store) answers(sessionID string) ([]interview.Answer, error) {
	rows, err := s.db.Query(
		`SELECT question_number, question, answer, timestamp
		 FROM answers
		 WHERE session_id = ?
		 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	answers := []interview.Answer{}
	for rows.Next() {
		var a interview.Answer
		if err := rows.Scan(&a.QuestionNumber, &a.Question, &a.Text, &a.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return answers, nil
}

// List returns summaries of the most recently updated sessions.
func (s *Store) List(limit int) ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.stage, s.updated_at, COALESCE(COUNT(a.id), 0) as answers
		 FROM sessions s
		 LEFT JOIN answers a ON s.id = a.session_id
		 GROUP BY s.id
		 ORDER BY s.updated_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var (
			sum   Summary
			stage string
		)
		if err := rows.Scan(&sum.ID, &stage, &sum.UpdatedAt, &sum.Answers); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.Stage = Stage(stage)
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return summaries, nil
}

// Delete removes a session and its answers. Deleting a missing session
// returns ErrNotFound.
func (s *Store) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM answers WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func marshalNullable[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
