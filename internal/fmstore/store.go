// Package fmstore keeps a SQLite catalogue of recorded .fm containers:
// which files exist, which scans they hold, and per-scan frame statistics.
package fmstore

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scanforge/fmkit/internal/fm"
)

// Store is the catalogue handle. One Store owns one *sql.DB.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalogue at path and applies any
// pending schema migrations. Use ":memory:" for an ephemeral catalogue.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalogue %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the catalogue connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for tests and ad hoc queries.
func (s *Store) DB() *sql.DB { return s.db }

// FileRecord is one catalogued container.
type FileRecord struct {
	ID            int64
	Path          string
	FormatVersion int
	Compression   string
	IndexedAt     time.Time
}

// ScanRecord is one scan header within a catalogued container.
type ScanRecord struct {
	ID              int64
	FileID          int64
	Name            string
	ImageWidth      int
	ImageHeight     int
	DepthWidth      int
	DepthHeight     int
	AngleOfView     float64
	LandscapeAngle  float64
	ViewElevation   float64
	AngularVelocity float64
	FrameCount      int
	FirstTime       int64
	LastTime        int64
}

type scanStats struct {
	scan       *fm.Scan
	frameCount int
	firstTime  int64
	lastTime   int64
}

// IndexFile reads the container at path and upserts it into the
// catalogue, replacing any previous index entry for the same path.
func (s *Store) IndexFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scans, frames, err := fm.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Re-open the header for version/compression metadata; ReadAll drained
	// the stream.
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewinding %s: %w", path, err)
	}
	reader, err := fm.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	stats := make(map[string]*scanStats, len(scans))
	for name, scan := range scans {
		stats[name] = &scanStats{scan: scan}
	}
	for _, frame := range frames {
		st := stats[frame.Scan]
		if st.frameCount == 0 || frame.Time < st.firstTime {
			st.firstTime = frame.Time
		}
		if st.frameCount == 0 || frame.Time > st.lastTime {
			st.lastTime = frame.Time
		}
		st.frameCount++
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM fm_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("clearing previous index of %s: %w", path, err)
	}
	res, err := tx.Exec(
		`INSERT INTO fm_files (path, format_version, compression) VALUES (?, ?, ?)`,
		path, int(reader.Version()), reader.Compression().String(),
	)
	if err != nil {
		return fmt.Errorf("inserting file %s: %w", path, err)
	}
	fileID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("resolving file id for %s: %w", path, err)
	}

	for name, st := range stats {
		_, err := tx.Exec(`
			INSERT INTO fm_scans (
				file_id, name, image_width, image_height, depth_width, depth_height,
				angle_of_view, landscape_angle, view_elevation, angular_velocity,
				frame_count, first_time, last_time
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID, name,
			st.scan.ImageWidth, st.scan.ImageHeight, st.scan.DepthWidth, st.scan.DepthHeight,
			st.scan.AngleOfView, st.scan.LandscapeAngle, st.scan.ViewElevation, st.scan.AngularVelocity,
			st.frameCount, st.firstTime, st.lastTime,
		)
		if err != nil {
			return fmt.Errorf("inserting scan %q of %s: %w", name, path, err)
		}
	}

	return tx.Commit()
}

// Files lists catalogued containers in path order.
func (s *Store) Files() ([]FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, path, format_version, compression, indexed_at
		FROM fm_files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.ID, &f.Path, &f.FormatVersion, &f.Compression, &f.IndexedAt); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ScansForFile lists the scan headers recorded for one catalogued file.
func (s *Store) ScansForFile(fileID int64) ([]ScanRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, file_id, name, image_width, image_height, depth_width, depth_height,
		       angle_of_view, landscape_angle, view_elevation, angular_velocity,
		       frame_count, COALESCE(first_time, 0), COALESCE(last_time, 0)
		FROM fm_scans WHERE file_id = ? ORDER BY name`, fileID)
	if err != nil {
		return nil, fmt.Errorf("listing scans for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		var sc ScanRecord
		if err := rows.Scan(
			&sc.ID, &sc.FileID, &sc.Name,
			&sc.ImageWidth, &sc.ImageHeight, &sc.DepthWidth, &sc.DepthHeight,
			&sc.AngleOfView, &sc.LandscapeAngle, &sc.ViewElevation, &sc.AngularVelocity,
			&sc.FrameCount, &sc.FirstTime, &sc.LastTime,
		); err != nil {
			return nil, fmt.Errorf("scanning scan row: %w", err)
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}
