// Package snapshot persists build sessions in SQLite. Surfaces are stored as
// JSON parameters and cells as boundary text, which is re-parsed on load.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/chazu/lamina/pkg/cell"
	"github.com/chazu/lamina/pkg/config"
	"github.com/chazu/lamina/pkg/model"
	"github.com/chazu/lamina/pkg/surface"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned by Load for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	saved_at      TEXT NOT NULL,
	config_json   TEXT NOT NULL,
	surface_next  INTEGER NOT NULL,
	cell_next     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS surfaces (
	session_id    TEXT NOT NULL,
	number        INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	params_json   TEXT NOT NULL,
	PRIMARY KEY (session_id, number),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cells (
	session_id    TEXT NOT NULL,
	cell_id       INTEGER NOT NULL,
	material      INTEGER NOT NULL,
	density       REAL NOT NULL,
	boundary      TEXT NOT NULL,
	PRIMARY KEY (session_id, cell_id),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);
`

// Store manages saved sessions in SQLite.
type Store struct {
	db *sql.DB
}

// Info summarizes one saved session.
type Info struct {
	ID       uuid.UUID
	SavedAt  time.Time
	Surfaces int
	Cells    int
}

// Open opens a SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes m, replacing any earlier save of the same session.
func (s *Store) Save(ctx context.Context, m *model.Model) error {
	cfgJSON, err := json.Marshal(m.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	sid := m.ID.String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// foreign_keys is a per-connection pragma, so children are cleared
	// explicitly rather than through the cascade.
	for _, table := range []string{"cells", "surfaces", "sessions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = ?`, sid); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, saved_at, config_json, surface_next, cell_next)
		 VALUES (?, ?, ?, ?, ?)`,
		sid, time.Now().UTC().Format(time.RFC3339Nano), string(cfgJSON),
		int(m.Surfaces.Next()), int(m.Cells.Next()),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, n := range m.Surfaces.Numbers() {
		srf, err := m.Surfaces.Resolve(n)
		if err != nil {
			return err
		}
		params, err := json.Marshal(srf)
		if err != nil {
			return fmt.Errorf("marshal surface %d: %w", n, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO surfaces (session_id, number, kind, params_json) VALUES (?, ?, ?, ?)`,
			sid, int(n), srf.Kind().String(), string(params),
		)
		if err != nil {
			return fmt.Errorf("insert surface %d: %w", n, err)
		}
	}

	for _, c := range m.Cells.Cells() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cells (session_id, cell_id, material, density, boundary) VALUES (?, ?, ?, ?, ?)`,
			sid, int(c.ID), int(c.Material), c.Density, c.Boundary.String(),
		)
		if err != nil {
			return fmt.Errorf("insert cell %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	m.Logger().Info("session saved", "surfaces", m.Surfaces.Len(), "cells", m.Cells.Len())
	return nil
}

// Load rebuilds a saved session. Numbering resumes where the saved session
// left off, so numbers are never reissued.
func (s *Store) Load(ctx context.Context, id uuid.UUID, opts ...model.Option) (*model.Model, error) {
	sid := id.String()

	var cfgJSON string
	var surfaceNext, cellNext int
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json, surface_next, cell_next FROM sessions WHERE session_id = ?`, sid,
	).Scan(&cfgJSON, &surfaceNext, &cellNext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", sid, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	cfg := config.Empty()
	if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.SurfaceStart = &surfaceNext
	cfg.CellStart = &cellNext

	m := model.New(cfg, append(opts, model.WithID(id))...)
	if err := s.loadSurfaces(ctx, sid, m); err != nil {
		return nil, err
	}
	if err := s.loadCells(ctx, sid, m); err != nil {
		return nil, err
	}
	m.Logger().Info("session loaded", "surfaces", m.Surfaces.Len(), "cells", m.Cells.Len())
	return m, nil
}

func (s *Store) loadSurfaces(ctx context.Context, sid string, m *model.Model) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, kind, params_json FROM surfaces WHERE session_id = ? ORDER BY number`, sid)
	if err != nil {
		return fmt.Errorf("query surfaces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n int
		var kind, params string
		if err := rows.Scan(&n, &kind, &params); err != nil {
			return fmt.Errorf("scan surface: %w", err)
		}
		srf, err := decodeSurface(kind, []byte(params))
		if err != nil {
			return fmt.Errorf("surface %d: %w", n, err)
		}
		if err := m.Surfaces.Restore(surface.Number(n), srf); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) loadCells(ctx context.Context, sid string, m *model.Model) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cell_id, material, density, boundary FROM cells WHERE session_id = ? ORDER BY cell_id`, sid)
	if err != nil {
		return fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, mat int
		var density float64
		var text string
		if err := rows.Scan(&id, &mat, &density, &text); err != nil {
			return fmt.Errorf("scan cell: %w", err)
		}
		b, err := boundary.Parse(text)
		if err != nil {
			return fmt.Errorf("cell %d: %w", id, err)
		}
		if _, err := b.Render(m.Surfaces); err != nil {
			return fmt.Errorf("cell %d: %w", id, err)
		}
		c := cell.Cell{ID: cell.ID(id), Material: cell.MaterialID(mat), Density: density, Boundary: b}
		if err := m.Cells.Restore(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// List returns every saved session, most recent first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.saved_at,
		       (SELECT COUNT(*) FROM surfaces f WHERE f.session_id = s.session_id),
		       (SELECT COUNT(*) FROM cells c WHERE c.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var sid, savedAt string
		var info Info
		if err := rows.Scan(&sid, &savedAt, &info.Surfaces, &info.Cells); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if info.ID, err = uuid.Parse(sid); err != nil {
			return nil, fmt.Errorf("session id %q: %w", sid, err)
		}
		if info.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("session %s saved_at: %w", sid, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func decodeSurface(kind string, params []byte) (surface.Surface, error) {
	switch kind {
	case surface.KindPlane.String():
		var p surface.Plane
		err := json.Unmarshal(params, &p)
		return p, err
	case surface.KindCylinder.String():
		var c surface.Cylinder
		err := json.Unmarshal(params, &c)
		return c, err
	case surface.KindCone.String():
		var c surface.Cone
		err := json.Unmarshal(params, &c)
		return c, err
	}
	return nil, fmt.Errorf("unknown surface kind %q", kind)
}
