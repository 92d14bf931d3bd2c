// Package catalog records encode runs whose device conversion was
// deferred, so the converter can be run later from the kept work
// directory.
//
// The catalog is a SQLite database (catalog.db) in the output directory
// with three tables: runs, images (one row per dictionary key) and batches
// (one row per converter invocation).
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/core/sqlite"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
)

// File is the catalog name inside an output directory.
const File = "catalog.db"

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created TEXT NOT NULL,
		base_name TEXT NOT NULL,
		work_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		converted INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS images (
		run_id TEXT NOT NULL,
		key INTEGER NOT NULL,
		digest TEXT NOT NULL,
		flag TEXT NOT NULL,
		file TEXT NOT NULL,
		uses INTEGER NOT NULL,
		PRIMARY KEY (run_id, key),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE TABLE IF NOT EXISTS batches (
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		file TEXT NOT NULL,
		start_key INTEGER NOT NULL,
		end_key INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
`

// Run is one encode whose conversion was deferred.
type Run struct {
	ID        uuid.UUID
	Created   time.Time
	BaseName  string // "font" or "slides"
	WorkDir   string // holds the %08d.bmp files
	OutputDir string // receives the converter output
	Converted bool
}

// Image is one dictionary entry of a run.
type Image struct {
	Key    int
	Digest string
	Flag   string // converter depth flag, e.g. "/2"
	File   string // %08d.bmp
	Uses   int
}

// Batch is one converter invocation of a run.
type Batch struct {
	Index int
	File  string // e.g. font1.mbm
	Start int    // first key, inclusive
	End   int    // last key, exclusive
}

// Catalog is an open catalog database.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog in dir.
func Open(dir string) (*Catalog, error) {
	path := filepath.Join(dir, File)
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to create schema in %s", path)
	}
	info := sqlite.GetInfo()
	logging.Debug("opened catalog", "path", path, "driver", info.DriverName, "cgo", info.IsCGO)
	return &Catalog{db: db, path: path}, nil
}

// Path returns the database file.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// NewRun returns a run with a fresh ID.
func NewRun(baseName, workDir, outputDir string) *Run {
	return &Run{
		ID:        uuid.New(),
		Created:   time.Now().UTC().Truncate(time.Second),
		BaseName:  baseName,
		WorkDir:   workDir,
		OutputDir: outputDir,
	}
}

// Record stores run with its images and batches in one transaction.
func (c *Catalog) Record(ctx context.Context, run *Run, images []Image, batches []Batch) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin catalog transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	id := run.ID.String()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created, base_name, work_dir, output_dir, converted) VALUES (?, ?, ?, ?, ?, ?)`,
		id, run.Created.Format(time.RFC3339), run.BaseName, run.WorkDir, run.OutputDir, run.Converted); err != nil {
		return errors.Wrapf(err, "failed to record run %s", id)
	}
	for _, im := range images {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO images (run_id, key, digest, flag, file, uses) VALUES (?, ?, ?, ?, ?, ?)`,
			id, im.Key, im.Digest, im.Flag, im.File, im.Uses); err != nil {
			return errors.Wrapf(err, "failed to record image %d", im.Key)
		}
	}
	for _, b := range batches {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO batches (run_id, idx, file, start_key, end_key) VALUES (?, ?, ?, ?, ?)`,
			id, b.Index, b.File, b.Start, b.End); err != nil {
			return errors.Wrapf(err, "failed to record batch %d", b.Index)
		}
	}
	return tx.Commit()
}

const runColumns = `id, created, base_name, work_dir, output_dir, converted`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r       Run
		id      string
		created string
	)
	if err := row.Scan(&id, &created, &r.BaseName, &r.WorkDir, &r.OutputDir, &r.Converted); err != nil {
		return nil, err
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, errors.NewFormat(File, -1, fmt.Sprintf("bad run id %q", id))
	}
	if r.Created, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, errors.NewFormat(File, -1, fmt.Sprintf("bad timestamp %q for run %s", created, id))
	}
	return &r, nil
}

// Runs lists runs oldest first. With pendingOnly, converted runs are left
// out.
func (c *Catalog) Runs(ctx context.Context, pendingOnly bool) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	if pendingOnly {
		query += ` WHERE converted = 0`
	}
	rows, err := c.db.QueryContext(ctx, query+` ORDER BY created, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns the run with id.
func (c *Catalog) Run(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String())
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrLookup, "run %s", id)
	}
	return r, err
}

// Images returns the images of run id in key order.
func (c *Catalog) Images(ctx context.Context, id uuid.UUID) ([]Image, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key, digest, flag, file, uses FROM images WHERE run_id = ? ORDER BY key`, id.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list images")
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var im Image
		if err := rows.Scan(&im.Key, &im.Digest, &im.Flag, &im.File, &im.Uses); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

// Batches returns the batches of run id in order.
func (c *Catalog) Batches(ctx context.Context, id uuid.UUID) ([]Batch, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT idx, file, start_key, end_key FROM batches WHERE run_id = ? ORDER BY idx`, id.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list batches")
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.Index, &b.File, &b.Start, &b.End); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ConverterArgs returns the "<flag><file>" arguments of batch b.
func ConverterArgs(images []Image, b Batch) []string {
	var args []string
	for _, im := range images {
		if im.Key >= b.Start && im.Key < b.End {
			args = append(args, im.Flag+im.File)
		}
	}
	return args
}

// MarkConverted records that run id has been converted.
func (c *Catalog) MarkConverted(ctx context.Context, id uuid.UUID) error {
	res, err := c.db.ExecContext(ctx, `UPDATE runs SET converted = 1 WHERE id = ?`, id.String())
	if err != nil {
		return errors.Wrapf(err, "failed to update run %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(errors.ErrLookup, "run %s", id)
	}
	return nil
}
