// Package refstore persists scrape runs to sqlite. Each run is a complete
// snapshot of what a harvest saw, earlier runs are never mutated.
package refstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"refassist-backend/lib/editorial"
	"refassist-backend/lib/refstore/db"

	"github.com/google/uuid"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens (and initializes) a snapshot database. Accepts a local
// sqlite path (":memory:" works too) or a libsql:// url for a hosted
// replica.
func Open(path string) (Store, error) {
	driver := "sqlite"
	if strings.HasPrefix(path, "libsql://") || strings.HasPrefix(path, "wss://") {
		driver = "libsql"
	}
	database, err := sql.Open(driver, path)
	if err != nil {
		return Store{}, err
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		return Store{}, err
	}
	return NewStore(database), nil
}

type Run struct {
	ID          string                 `json:"id"`
	Journal     string                 `json:"journal"`
	Time        time.Time              `json:"time"`
	Manuscripts []editorial.Manuscript `json:"manuscripts"`
}

// Push stores a snapshot of a harvest run and returns its run id.
func (s Store) Push(ctx context.Context, journal string, at time.Time, manuscripts []editorial.Manuscript) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	runId := uuid.NewString()
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO run (id, journal, time) VALUES (?, ?, ?)`,
		runId, journal, at.Unix(),
	)
	if err != nil {
		return "", err
	}

	for _, m := range manuscripts {
		authors, err := json.Marshal(m.Authors)
		if err != nil {
			return "", err
		}
		editors, err := json.Marshal(m.Editors)
		if err != nil {
			return "", err
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO manuscript (run_id, manuscript_id, title, status, submission_date, authors, editors)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runId, m.ID, m.Title, m.Status, m.SubmissionDate, string(authors), string(editors),
		)
		if err != nil {
			return "", err
		}
		manuscriptRow, err := res.LastInsertId()
		if err != nil {
			return "", err
		}

		for _, r := range m.Referees {
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO referee (manuscript_row, name, email, status, raw_status, invited_date, due_date, response_date)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				manuscriptRow, r.Name, r.Email, string(r.Status), r.RawStatus, r.InvitedDate, r.DueDate, r.ResponseDate,
			)
			if err != nil {
				return "", err
			}
		}
		for _, d := range m.Documents {
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO document (manuscript_row, name, kind, url, pages)
				 VALUES (?, ?, ?, ?, ?)`,
				manuscriptRow, d.Name, string(d.Kind), d.URL, d.Pages,
			)
			if err != nil {
				return "", err
			}
		}
	}

	return runId, tx.Commit()
}

// ListRuns returns run metadata for a journal, most recent first,
// without manuscript payloads.
func (s Store) ListRuns(ctx context.Context, journal string) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, journal, time FROM run WHERE journal = ? ORDER BY time DESC`,
		journal,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var unix int64
		if err := rows.Scan(&r.ID, &r.Journal, &unix); err != nil {
			return nil, err
		}
		r.Time = time.Unix(unix, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Pull loads one run with its full manuscript tree.
func (s Store) Pull(ctx context.Context, runId string) (Run, error) {
	var run Run
	var unix int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, journal, time FROM run WHERE id = ?`,
		runId,
	).Scan(&run.ID, &run.Journal, &unix)
	if err != nil {
		return Run{}, err
	}
	run.Time = time.Unix(unix, 0)

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, manuscript_id, title, status, submission_date, authors, editors
		 FROM manuscript WHERE run_id = ? ORDER BY id`,
		runId,
	)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	type manuscriptRow struct {
		rowId int64
		m     editorial.Manuscript
	}
	var manuscripts []manuscriptRow
	for rows.Next() {
		var mr manuscriptRow
		var authors, editors string
		err = rows.Scan(&mr.rowId, &mr.m.ID, &mr.m.Title, &mr.m.Status, &mr.m.SubmissionDate, &authors, &editors)
		if err != nil {
			return Run{}, err
		}
		if err := json.Unmarshal([]byte(authors), &mr.m.Authors); err != nil {
			return Run{}, err
		}
		if err := json.Unmarshal([]byte(editors), &mr.m.Editors); err != nil {
			return Run{}, err
		}
		manuscripts = append(manuscripts, mr)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}

	for i := range manuscripts {
		mr := &manuscripts[i]

		refRows, err := s.db.QueryContext(
			ctx,
			`SELECT name, email, status, raw_status, invited_date, due_date, response_date
			 FROM referee WHERE manuscript_row = ? ORDER BY id`,
			mr.rowId,
		)
		if err != nil {
			return Run{}, err
		}
		for refRows.Next() {
			var r editorial.Referee
			var status string
			err = refRows.Scan(&r.Name, &r.Email, &status, &r.RawStatus, &r.InvitedDate, &r.DueDate, &r.ResponseDate)
			if err != nil {
				refRows.Close()
				return Run{}, err
			}
			r.Status = editorial.RefereeStatus(status)
			mr.m.Referees = append(mr.m.Referees, r)
		}
		if err := refRows.Err(); err != nil {
			refRows.Close()
			return Run{}, err
		}
		refRows.Close()

		docRows, err := s.db.QueryContext(
			ctx,
			`SELECT name, kind, url, pages FROM document WHERE manuscript_row = ? ORDER BY id`,
			mr.rowId,
		)
		if err != nil {
			return Run{}, err
		}
		for docRows.Next() {
			var d editorial.Document
			var kind string
			err = docRows.Scan(&d.Name, &kind, &d.URL, &d.Pages)
			if err != nil {
				docRows.Close()
				return Run{}, err
			}
			d.Kind = editorial.DocumentKind(kind)
			mr.m.Documents = append(mr.m.Documents, d)
		}
		if err := docRows.Err(); err != nil {
			docRows.Close()
			return Run{}, err
		}
		docRows.Close()

		run.Manuscripts = append(run.Manuscripts, mr.m)
	}

	return run, nil
}

// ExportJson renders a run in the JSON shape downstream analytics read.
func (s Store) ExportJson(ctx context.Context, runId string) ([]byte, error) {
	run, err := s.Pull(ctx, runId)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(run, "", "  ")
}
