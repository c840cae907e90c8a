package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"project-tracker-api/internal/models"
)

const projectColumns = `id, project_name, project_type, category, hours_worked, date_received, date_delivered,
		contact_person, end_client_name, status, notes, created_by, created_at, updated_at`

// Postgres stores projects and users in PostgreSQL through database/sql.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with the pgx driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Postgres) DB() *sql.DB { return s.db }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (models.Project, error) {
	var (
		p             models.Project
		category      sql.NullString
		hours         sql.NullFloat64
		dateDelivered sql.NullTime
		notes         sql.NullString
		projectType   string
		status        string
	)
	err := row.Scan(&p.ID, &p.ProjectName, &projectType, &category, &hours, &p.DateReceived, &dateDelivered,
		&p.ContactPerson, &p.EndClientName, &status, &notes, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.ProjectType = models.ProjectType(projectType)
	p.Status = models.Status(status)
	if category.Valid {
		c := models.Category(category.String)
		p.Category = &c
	}
	if hours.Valid {
		h := hours.Float64
		p.HoursWorked = &h
	}
	if dateDelivered.Valid {
		d := models.NewDate(dateDelivered.Time)
		p.DateDelivered = &d
	}
	if notes.Valid {
		n := notes.String
		p.Notes = &n
	}
	return p, nil
}

func (s *Postgres) Create(ctx context.Context, p *models.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.ProjectName, string(p.ProjectType), nullCategory(p.Category), nullFloat(p.HoursWorked),
		p.DateReceived.Time, nullDate(p.DateDelivered), p.ContactPerson, p.EndClientName,
		string(p.Status), nullString(p.Notes), p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) Find(ctx context.Context, q models.ProjectQuery) ([]models.Project, error) {
	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if q.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", arg))
		args = append(args, string(q.Status))
		arg++
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		clauses = append(clauses, fmt.Sprintf(
			"(project_name ILIKE $%d OR end_client_name ILIKE $%d OR contact_person ILIKE $%d)", arg, arg, arg))
		args = append(args, "%"+escapeLike(term)+"%")
		arg++
	}

	sqlStr := `SELECT ` + projectColumns + ` FROM projects`
	if len(clauses) > 0 {
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}
	sqlStr += orderBy(effectiveSort(q))
	if q.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		sqlStr += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *Postgres) Update(ctx context.Context, p *models.Project) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET
			project_name = $2, project_type = $3, category = $4, hours_worked = $5,
			date_received = $6, date_delivered = $7, contact_person = $8, end_client_name = $9,
			status = $10, notes = $11, updated_at = $12
		WHERE id = $1`,
		p.ID, p.ProjectName, string(p.ProjectType), nullCategory(p.Category), nullFloat(p.HoursWorked),
		p.DateReceived.Time, nullDate(p.DateDelivered), p.ContactPerson, p.EndClientName,
		string(p.Status), nullString(p.Notes), p.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Postgres) StatusesOf(ctx context.Context, ids []string) (map[string]models.Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status FROM projects WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]models.Status, len(ids))
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		out[id] = models.Status(status)
	}
	return out, rows.Err()
}

func (s *Postgres) UpdateStatus(ctx context.Context, c StatusChange) (StatusResult, error) {
	sqlStr := `
		UPDATE projects SET status = $1, updated_at = $2
		WHERE id = ANY($3) AND status <> $1`
	args := []interface{}{string(c.To), c.At, pq.Array(dedupe(c.IDs))}
	if c.From != nil {
		from := make([]string, len(c.From))
		for i, st := range c.From {
			from[i] = string(st)
		}
		sqlStr += ` AND status = ANY($4)`
		args = append(args, pq.Array(from))
	}
	sqlStr += ` RETURNING id`

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return StatusResult{}, err
	}
	defer rows.Close()

	modified := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return StatusResult{}, err
		}
		modified = append(modified, id)
	}
	if err := rows.Err(); err != nil {
		return StatusResult{}, err
	}
	return idResult(modified), nil
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (s *Postgres) SumHours(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(hours_worked), 0) FROM projects WHERE hours_worked IS NOT NULL`).Scan(&total)
	return total, err
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Postgres) Close(context.Context) error {
	return s.db.Close()
}

func (s *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.queryUser(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE lower(email) = lower($1)`, email)
}

func (s *Postgres) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.queryUser(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1`, id)
}

func (s *Postgres) queryUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// orderBy renders a whitelisted ORDER BY clause with id as the tiebreaker.
func orderBy(fields []models.SortField) string {
	clauses := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		col := sortColumns[f.Field]
		if f.Desc {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	clauses = append(clauses, "id ASC")
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullCategory(c *models.Category) sql.NullString {
	if c == nil || *c == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullDate(d *models.Date) sql.NullTime {
	if d == nil || d.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}
