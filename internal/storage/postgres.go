package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/models"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(host, port, user, password, dbName, sslMode string) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	storage := &PostgresStorage{db: db}
	if err := storage.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize db schema: %w", err)
	}

	return storage, nil
}

// Init creates necessary tables
func (s *PostgresStorage) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS topics (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS datasets (
		id BIGSERIAL PRIMARY KEY,
		uuid VARCHAR(36) NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		topic_id BIGINT REFERENCES topics(id),
		licence_code VARCHAR(50) NOT NULL DEFAULT '',
		location1 TEXT NOT NULL DEFAULT '',
		location2 TEXT NOT NULL DEFAULT '',
		location3 TEXT NOT NULL DEFAULT '',
		frequency VARCHAR(50),
		status VARCHAR(50) NOT NULL,
		organisation_id BIGINT NOT NULL,
		creator_id BIGINT NOT NULL,
		catalog_id TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS links (
		id BIGSERIAL PRIMARY KEY,
		dataset_id BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		position INT NOT NULL,
		kind VARCHAR(10) NOT NULL,
		url TEXT NOT NULL,
		name TEXT NOT NULL,
		format VARCHAR(50) NOT NULL DEFAULT '',
		day INT,
		month INT,
		quarter INT,
		year INT,
		end_date DATE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_links_dataset_id ON links(dataset_id);
	CREATE INDEX IF NOT EXISTS idx_datasets_status ON datasets(status);`

	_, err := s.db.Exec(query)
	return err
}

// Create inserts a new dataset and assigns its id
func (s *PostgresStorage) Create(ctx context.Context, ds *models.Dataset) error {
	query := `
	INSERT INTO datasets (uuid, status, organisation_id, creator_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		ds.UUID, ds.Status, ds.OrganisationID, ds.CreatorID, ds.CreatedAt, ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		log.Error().Err(err).Str("uuid", ds.UUID).Msg("Failed to create dataset in postgres")
		return err
	}
	return nil
}

// Save writes the whole aggregate, replacing its links
func (s *PostgresStorage) Save(ctx context.Context, ds *models.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	UPDATE datasets SET
		name = $2, title = $3, summary = $4, description = $5,
		topic_id = $6, licence_code = $7,
		location1 = $8, location2 = $9, location3 = $10,
		frequency = $11, status = $12, catalog_id = $13,
		published_at = $14, updated_at = $15
	WHERE id = $1`

	res, err := tx.ExecContext(ctx, query,
		ds.ID, ds.Name, ds.Title, ds.Summary, ds.Description,
		nullInt64(ds.TopicID), ds.LicenceCode,
		ds.Location1, ds.Location2, ds.Location3,
		nullFrequency(ds.Frequency), ds.Status, ds.CatalogID,
		nullTime(ds.PublishedAt), ds.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).Int64("dataset_id", ds.ID).Msg("Failed to save dataset to postgres")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE dataset_id = $1`, ds.ID); err != nil {
		return fmt.Errorf("failed to clear links: %w", err)
	}

	insert := `
	INSERT INTO links (
		dataset_id, position, kind, url, name, format,
		day, month, quarter, year, end_date, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	all := append(append([]models.Link{}, ds.Links...), ds.Docs...)
	for i, l := range all {
		_, err := tx.ExecContext(ctx, insert,
			ds.ID, i, l.Kind, l.URL, l.Name, l.Format,
			nullInt(l.Day), nullInt(l.Month), nullInt(l.Quarter), nullInt(l.Year),
			nullTime(l.EndDate), l.CreatedAt,
		)
		if err != nil {
			log.Error().Err(err).Int64("dataset_id", ds.ID).Str("url", l.URL).Msg("Failed to save link")
			return err
		}
	}

	return tx.Commit()
}

const datasetColumns = `
	id, uuid, name, title, summary, description, topic_id, licence_code,
	location1, location2, location3, frequency, status,
	organisation_id, creator_id, catalog_id, published_at, created_at, updated_at`

// Get retrieves a dataset with its links by ID
func (s *PostgresStorage) Get(ctx context.Context, id int64) (*models.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
	return s.scanWithLinks(ctx, row)
}

// GetByUUID retrieves a dataset with its links by external id
func (s *PostgresStorage) GetByUUID(ctx context.Context, uuid string) (*models.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE uuid = $1`, uuid)
	return s.scanWithLinks(ctx, row)
}

func (s *PostgresStorage) scanWithLinks(ctx context.Context, row *sql.Row) (*models.Dataset, error) {
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to get dataset from postgres")
		return nil, err
	}
	if err := s.loadLinks(ctx, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (*models.Dataset, error) {
	ds := &models.Dataset{}
	var topicID sql.NullInt64
	var frequency sql.NullString
	var publishedAt sql.NullTime

	err := row.Scan(
		&ds.ID, &ds.UUID, &ds.Name, &ds.Title, &ds.Summary, &ds.Description,
		&topicID, &ds.LicenceCode,
		&ds.Location1, &ds.Location2, &ds.Location3,
		&frequency, &ds.Status,
		&ds.OrganisationID, &ds.CreatorID, &ds.CatalogID,
		&publishedAt, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if topicID.Valid {
		v := topicID.Int64
		ds.TopicID = &v
	}
	if frequency.Valid {
		f := models.Frequency(frequency.String)
		ds.Frequency = &f
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		ds.PublishedAt = &t
	}
	return ds, nil
}

func (s *PostgresStorage) loadLinks(ctx context.Context, ds *models.Dataset) error {
	query := `
	SELECT kind, url, name, format, day, month, quarter, year, end_date, created_at
	FROM links WHERE dataset_id = $1
	ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, ds.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var l models.Link
		var day, month, quarter, year sql.NullInt32
		var endDate sql.NullTime

		err := rows.Scan(
			&l.Kind, &l.URL, &l.Name, &l.Format,
			&day, &month, &quarter, &year, &endDate, &l.CreatedAt,
		)
		if err != nil {
			return err
		}
		l.Day, l.Month, l.Quarter, l.Year = intPtr(day), intPtr(month), intPtr(quarter), intPtr(year)
		if endDate.Valid {
			t := time.Date(endDate.Time.Year(), endDate.Time.Month(), endDate.Time.Day(), 0, 0, 0, 0, time.UTC)
			l.EndDate = &t
		}

		switch l.Kind {
		case models.LinkKindDoc:
			ds.Docs = append(ds.Docs, l)
		default:
			ds.Links = append(ds.Links, l)
		}
	}
	return rows.Err()
}

// AddTopic registers a topic, keeping the existing title if the id is taken
func (s *PostgresStorage) AddTopic(ctx context.Context, id int64, title string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO topics (id, title) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, title)
	return err
}

// TopicExists reports whether a topic with the id exists
func (s *PostgresStorage) TopicExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM topics WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// Stats computes the dashboard counts
func (s *PostgresStorage) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	query := `
	SELECT
		COUNT(*),
		COUNT(DISTINCT organisation_id),
		COUNT(*) FILTER (WHERE status = 'published'),
		COUNT(*) FILTER (WHERE status = 'draft'),
		COUNT(*) FILTER (WHERE NOT EXISTS (
			SELECT 1 FROM links l WHERE l.dataset_id = datasets.id AND l.kind = 'data'
		))
	FROM datasets`

	err := s.db.QueryRowContext(ctx, query).Scan(
		&st.Datasets, &st.Publishers, &st.Published, &st.Drafts, &st.WithNoDatafiles,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count datasets: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
	SELECT
		COUNT(*) FILTER (WHERE kind = 'data'),
		COUNT(*) FILTER (WHERE kind = 'doc')
	FROM links`).Scan(&st.Datafiles, &st.Docs)
	if err != nil {
		return nil, fmt.Errorf("failed to count links: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT format, COUNT(*) FROM links WHERE kind = 'data' GROUP BY format`)
	if err != nil {
		return nil, fmt.Errorf("failed to count formats: %w", err)
	}
	defer rows.Close()

	formats := make(map[string]int)
	for rows.Next() {
		var format string
		var n int
		if err := rows.Scan(&format, &n); err != nil {
			return nil, err
		}
		formats[format] = n
	}
	st.DatafilesByFormat = sortFormats(formats)

	return st, rows.Err()
}

// Close closes the database pool
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt32 {
	if p == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*p), Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func nullFrequency(p *models.Frequency) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func intPtr(n sql.NullInt32) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}
