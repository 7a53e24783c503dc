// Package projects persists users, projects, and their saved filters in
// PostgreSQL. A project is a named collection of interpreted filters over
// a target area.
package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrUsernameTaken   = errors.New("username already exists")
)

type User struct {
	ID            int       `json:"id"`
	Username      string    `json:"username"`
	CreatedAt     time.Time `json:"created_at"`
	ProjectsCount int       `json:"projects_count"`
}

type SavedFilter struct {
	ID            int             `json:"id"`
	QueryText     string          `json:"query_text"`
	ParsedFilters json.RawMessage `json:"parsed_filters"`
	MatchingCount *int            `json:"matching_buildings_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Project struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	TargetArea     string        `json:"target_area,omitempty"`
	TotalBuildings *int          `json:"total_buildings"`
	CreatedAt      time.Time     `json:"created_at"`
	Username       string        `json:"username,omitempty"`
	Filters        []SavedFilter `json:"filters"`
}

// FilterInput is one filter attached to a project at save time.
type FilterInput struct {
	QueryText     string          `json:"query_text"`
	ParsedFilters json.RawMessage `json:"parsed_filters"`
	MatchingCount *int            `json:"matching_count"`
}

// SaveProjectInput creates the user on first use and auto-names the
// project when Name is empty.
type SaveProjectInput struct {
	Username       string        `json:"username"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	TargetArea     string        `json:"target_area"`
	TotalBuildings *int          `json:"total_buildings"`
	Filters        []FilterInput `json:"filters"`
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, logger: logger.With("component", "project_store")}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			description TEXT,
			target_area VARCHAR(50),
			total_buildings INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS saved_filters (
			id SERIAL PRIMARY KEY,
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			query_text TEXT NOT NULL,
			parsed_filters JSONB NOT NULL,
			matching_buildings_count INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// CreateUser registers a new username.
func (s *Store) CreateUser(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username) VALUES ($1)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING id, username, created_at`,
		username,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%q: %w", username, ErrUsernameTaken)
	}
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Users lists all users with their project counts.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.created_at, COUNT(p.id)
		 FROM users u
		 LEFT JOIN projects p ON p.user_id = u.id
		 GROUP BY u.id
		 ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt, &u.ProjectsCount); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// SaveProject stores a project with its filters in one transaction.
func (s *Store) SaveProject(ctx context.Context, in SaveProjectInput) (Project, error) {
	name := in.Name
	if name == "" {
		name = "Project " + time.Now().Format("2006-01-02 15:04")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	userID, err := getOrCreateUser(ctx, tx, in.Username)
	if err != nil {
		return Project{}, err
	}

	var project Project
	project.Name = name
	project.Description = in.Description
	project.TargetArea = in.TargetArea
	project.TotalBuildings = in.TotalBuildings
	project.Username = in.Username

	err = tx.QueryRowContext(ctx,
		`INSERT INTO projects (user_id, name, description, target_area, total_buildings)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		userID, name, nullIfEmpty(in.Description), nullIfEmpty(in.TargetArea), in.TotalBuildings,
	).Scan(&project.ID, &project.CreatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("inserting project: %w", err)
	}

	project.Filters = make([]SavedFilter, 0, len(in.Filters))
	for _, f := range in.Filters {
		parsed := f.ParsedFilters
		if len(parsed) == 0 {
			parsed = json.RawMessage(`{}`)
		}
		var saved SavedFilter
		saved.QueryText = f.QueryText
		saved.ParsedFilters = parsed
		saved.MatchingCount = f.MatchingCount
		err = tx.QueryRowContext(ctx,
			`INSERT INTO saved_filters (project_id, query_text, parsed_filters, matching_buildings_count)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			project.ID, f.QueryText, []byte(parsed), f.MatchingCount,
		).Scan(&saved.ID, &saved.CreatedAt)
		if err != nil {
			return Project{}, fmt.Errorf("inserting filter: %w", err)
		}
		project.Filters = append(project.Filters, saved)
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("committing project: %w", err)
	}

	s.logger.Info("project saved",
		"project_id", project.ID,
		"username", in.Username,
		"filters", len(project.Filters),
	)
	return project, nil
}

// UserProjects returns all of a user's projects with their filters.
func (s *Store) UserProjects(ctx context.Context, username string) ([]Project, error) {
	var userID int
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = $1`, username).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", username, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(description, ''), COALESCE(target_area, ''), total_buildings, created_at
		 FROM projects WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.TargetArea, &p.TotalBuildings, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.Username = username
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}

	for i := range projects {
		filters, err := s.projectFilters(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].Filters = filters
	}
	return projects, nil
}

// GetProject fetches one project by id with its owner and filters.
func (s *Store) GetProject(ctx context.Context, id int) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.name, COALESCE(p.description, ''), COALESCE(p.target_area, ''),
		        p.total_buildings, p.created_at, u.username
		 FROM projects p JOIN users u ON u.id = p.user_id
		 WHERE p.id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.TargetArea, &p.TotalBuildings, &p.CreatedAt, &p.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("project %d: %w", id, ErrProjectNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("querying project: %w", err)
	}

	filters, err := s.projectFilters(ctx, p.ID)
	if err != nil {
		return Project{}, err
	}
	p.Filters = filters
	return p, nil
}

// DeleteProject removes a project if the named user owns it; saved
// filters cascade.
func (s *Store) DeleteProject(ctx context.Context, id int, username string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM projects p
		 USING users u
		 WHERE p.id = $1 AND p.user_id = u.id AND u.username = $2`, id, username)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project %d for %q: %w", id, username, ErrProjectNotFound)
	}
	return nil
}

func (s *Store) projectFilters(ctx context.Context, projectID int) ([]SavedFilter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query_text, parsed_filters, matching_buildings_count, created_at
		 FROM saved_filters WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying filters: %w", err)
	}
	defer rows.Close()

	filters := make([]SavedFilter, 0)
	for rows.Next() {
		var f SavedFilter
		var parsed []byte
		if err := rows.Scan(&f.ID, &f.QueryText, &parsed, &f.MatchingCount, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning filter: %w", err)
		}
		f.ParsedFilters = json.RawMessage(parsed)
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating filters: %w", err)
	}
	return filters, nil
}

func getOrCreateUser(ctx context.Context, tx *sql.Tx, username string) (int, error) {
	var id int
	err := tx.QueryRowContext(ctx,
		`INSERT INTO users (username) VALUES ($1)
		 ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		 RETURNING id`, username).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving user: %w", err)
	}
	return id, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
