package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l5survey"
	"github.com/banshee-data/bathymetry.report/internal/sonar/pipeline"
)

// ErrNotFound is returned when a survey or snapshot does not exist.
var ErrNotFound = errors.New("not found")

var (
	_ pipeline.SnapshotStore  = (*Store)(nil)
	_ pipeline.SnapshotLoader = (*Store)(nil)
	_ pipeline.SnapshotPruner = (*Store)(nil)
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store is a SQLite-backed pipeline.SnapshotStore and
// pipeline.SnapshotLoader.
type Store struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at path, applies the
// connection PRAGMAs and migrates the schema to the latest version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	s := &Store{DB: db, path: path}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Survey is one row of the surveys table.
type Survey struct {
	SurveyID       string    `json:"survey_id"`
	Name           string    `json:"name"`
	GridSize       int       `json:"grid_size"`
	CellSizeMeters float64   `json:"cell_size_meters"`
	Created        time.Time `json:"created"`
}

// CreateSurvey registers a new survey under a random UUID.
func (s *Store) CreateSurvey(name string, gridSize int, cellSizeMeters float64) (*Survey, error) {
	sv := &Survey{
		SurveyID:       uuid.NewString(),
		Name:           name,
		GridSize:       gridSize,
		CellSizeMeters: cellSizeMeters,
		Created:        time.Now().UTC(),
	}
	_, err := s.Exec(`INSERT INTO surveys (survey_id, name, grid_size, cell_size_meters, created_unix_nanos)
		VALUES (?, ?, ?, ?, ?)`, sv.SurveyID, sv.Name, sv.GridSize, sv.CellSizeMeters, sv.Created.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert survey: %w", err)
	}
	return sv, nil
}

// GetSurvey returns the survey with the given ID.
func (s *Store) GetSurvey(id string) (*Survey, error) {
	var sv Survey
	var created int64
	err := s.QueryRow(`SELECT survey_id, name, grid_size, cell_size_meters, created_unix_nanos
		FROM surveys WHERE survey_id = ?`, id).Scan(&sv.SurveyID, &sv.Name, &sv.GridSize, &sv.CellSizeMeters, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("survey %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query survey: %w", err)
	}
	sv.Created = time.Unix(0, created).UTC()
	return &sv, nil
}

// ListSurveys returns all surveys, newest first.
func (s *Store) ListSurveys() ([]Survey, error) {
	rows, err := s.Query(`SELECT survey_id, name, grid_size, cell_size_meters, created_unix_nanos
		FROM surveys ORDER BY created_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("query surveys: %w", err)
	}
	defer rows.Close()

	var out []Survey
	for rows.Next() {
		var sv Survey
		var created int64
		if err := rows.Scan(&sv.SurveyID, &sv.Name, &sv.GridSize, &sv.CellSizeMeters, &created); err != nil {
			return nil, fmt.Errorf("scan survey: %w", err)
		}
		sv.Created = time.Unix(0, created).UTC()
		out = append(out, sv)
	}
	return out, rows.Err()
}

// InsertSnapshot persists rec and its track in one transaction and returns
// the new snapshot_id. rec.SnapshotID is set on success.
func (s *Store) InsertSnapshot(rec *pipeline.SnapshotRecord) (int64, error) {
	if rec == nil {
		return 0, nil
	}
	tx, err := s.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO grid_snapshots (survey_id, taken_unix_nanos, grid_size, cell_size_meters,
			valid_cells, changed_cells, grid_blob, snapshot_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SurveyID, rec.TakenUnixNanos, rec.GridSize, rec.CellSizeMeters,
		rec.ValidCells, rec.ChangedCells, rec.GridBlob, rec.Reason)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}

	if len(rec.Track) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO track_points (snapshot_id, seq, x, y, timestamp_unix_nanos)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("prepare track insert: %w", err)
		}
		defer stmt.Close()
		for i, p := range rec.Track {
			if _, err := stmt.Exec(id, i, p.X, p.Y, p.Timestamp.UnixNano()); err != nil {
				return 0, fmt.Errorf("insert track point %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	rec.SnapshotID = &id
	return id, nil
}

const snapshotColumns = `snapshot_id, survey_id, taken_unix_nanos, grid_size, cell_size_meters,
	valid_cells, changed_cells, grid_blob, snapshot_reason`

// LatestSnapshot returns the most recent snapshot of a survey, track
// included.
func (s *Store) LatestSnapshot(surveyID string) (*pipeline.SnapshotRecord, error) {
	row := s.QueryRow(`SELECT `+snapshotColumns+` FROM grid_snapshots
		WHERE survey_id = ? ORDER BY taken_unix_nanos DESC, snapshot_id DESC LIMIT 1`, surveyID)
	rec, err := s.scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no snapshot for survey %q: %w", surveyID, ErrNotFound)
	}
	return rec, err
}

// SnapshotByID returns one snapshot, track included.
func (s *Store) SnapshotByID(id int64) (*pipeline.SnapshotRecord, error) {
	row := s.QueryRow(`SELECT `+snapshotColumns+` FROM grid_snapshots WHERE snapshot_id = ?`, id)
	rec, err := s.scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
	}
	return rec, err
}

func (s *Store) scanSnapshot(row *sql.Row) (*pipeline.SnapshotRecord, error) {
	var rec pipeline.SnapshotRecord
	var id int64
	if err := row.Scan(&id, &rec.SurveyID, &rec.TakenUnixNanos, &rec.GridSize, &rec.CellSizeMeters,
		&rec.ValidCells, &rec.ChangedCells, &rec.GridBlob, &rec.Reason); err != nil {
		return nil, err
	}
	rec.SnapshotID = &id
	track, err := s.trackPoints(id)
	if err != nil {
		return nil, err
	}
	rec.Track = track
	return &rec, nil
}

func (s *Store) trackPoints(snapshotID int64) ([]l5survey.TrackPoint, error) {
	rows, err := s.Query(`SELECT x, y, timestamp_unix_nanos FROM track_points
		WHERE snapshot_id = ? ORDER BY seq`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query track points: %w", err)
	}
	defer rows.Close()

	var out []l5survey.TrackPoint
	for rows.Next() {
		var p l5survey.TrackPoint
		var ts int64
		if err := rows.Scan(&p.X, &p.Y, &ts); err != nil {
			return nil, fmt.Errorf("scan track point: %w", err)
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// SnapshotSummary describes a stored snapshot without its blob or track.
type SnapshotSummary struct {
	SnapshotID     int64     `json:"snapshot_id"`
	SurveyID       string    `json:"survey_id"`
	Taken          time.Time `json:"taken"`
	GridSize       int       `json:"grid_size"`
	CellSizeMeters float64   `json:"cell_size_meters"`
	ValidCells     int       `json:"valid_cells"`
	ChangedCells   int       `json:"changed_cells"`
	BlobBytes      int       `json:"blob_bytes"`
	TrackPoints    int       `json:"track_points"`
	Reason         string    `json:"reason"`
}

// ListSnapshots returns up to limit snapshots of a survey, newest first.
// limit <= 0 returns all of them.
func (s *Store) ListSnapshots(surveyID string, limit int) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.Query(`SELECT g.snapshot_id, g.survey_id, g.taken_unix_nanos, g.grid_size, g.cell_size_meters,
			g.valid_cells, g.changed_cells, length(g.grid_blob), g.snapshot_reason,
			(SELECT COUNT(*) FROM track_points t WHERE t.snapshot_id = g.snapshot_id)
		FROM grid_snapshots g
		WHERE g.survey_id = ?
		ORDER BY g.taken_unix_nanos DESC, g.snapshot_id DESC
		LIMIT ?`, surveyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotSummary
	for rows.Next() {
		var ss SnapshotSummary
		var taken int64
		if err := rows.Scan(&ss.SnapshotID, &ss.SurveyID, &taken, &ss.GridSize, &ss.CellSizeMeters,
			&ss.ValidCells, &ss.ChangedCells, &ss.BlobBytes, &ss.Reason, &ss.TrackPoints); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		ss.Taken = time.Unix(0, taken).UTC()
		out = append(out, ss)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots of a survey and
// returns the number removed. Track points go with their snapshot.
func (s *Store) PruneSnapshots(surveyID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.Exec(`DELETE FROM grid_snapshots
		WHERE survey_id = ? AND snapshot_id NOT IN (
			SELECT snapshot_id FROM grid_snapshots WHERE survey_id = ?
			ORDER BY taken_unix_nanos DESC, snapshot_id DESC LIMIT ?)`, surveyID, surveyID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
