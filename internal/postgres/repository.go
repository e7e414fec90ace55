package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS floors (
			id BIGSERIAL PRIMARY KEY,
			name TEXT,
			building TEXT,
			level TEXT,
			image_path TEXT NOT NULL,
			width_px INT NOT NULL,
			height_px INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id BIGSERIAL PRIMARY KEY,
			floor_id BIGINT NOT NULL REFERENCES floors(id) ON DELETE CASCADE,
			name TEXT,
			x INT NOT NULL,
			y INT NOT NULL,
			image_path TEXT NOT NULL,
			hint TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_results (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			total_score INT NOT NULL,
			rounds_played INT NOT NULL,
			played_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_floor ON locations(floor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_game_results_score ON game_results(total_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_game_results_user ON game_results(user_id, total_score DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreateFloor inserts a floor and returns its ID
func (r *Repository) CreateFloor(ctx context.Context, floor domain.Floor) (int64, error) {
	query := `
		INSERT INTO floors (name, building, level, image_path, width_px, height_px)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		floor.Name,
		floor.Building,
		floor.Level,
		floor.ImagePath,
		floor.WidthPx,
		floor.HeightPx,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating floor: %w", err)
	}
	return id, nil
}

// GetFloor retrieves a floor by ID
func (r *Repository) GetFloor(ctx context.Context, id int64) (*domain.Floor, error) {
	query := `
		SELECT id, name, building, level, image_path, width_px, height_px
		FROM floors
		WHERE id = $1
	`
	var f domain.Floor
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&f.ID,
		&f.Name,
		&f.Building,
		&f.Level,
		&f.ImagePath,
		&f.WidthPx,
		&f.HeightPx,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFloorNotFound
		}
		return nil, fmt.Errorf("getting floor: %w", err)
	}
	return &f, nil
}

// ListFloors retrieves all floors
func (r *Repository) ListFloors(ctx context.Context) ([]domain.Floor, error) {
	query := `
		SELECT id, name, building, level, image_path, width_px, height_px
		FROM floors
		ORDER BY building, level, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing floors: %w", err)
	}
	defer rows.Close()

	floors := []domain.Floor{}
	for rows.Next() {
		var f domain.Floor
		err := rows.Scan(
			&f.ID,
			&f.Name,
			&f.Building,
			&f.Level,
			&f.ImagePath,
			&f.WidthPx,
			&f.HeightPx,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning floor: %w", err)
		}
		floors = append(floors, f)
	}
	return floors, rows.Err()
}

// CreateLocation inserts a location and returns its ID
func (r *Repository) CreateLocation(ctx context.Context, loc domain.Location) (int64, error) {
	query := `
		INSERT INTO locations (floor_id, name, x, y, image_path, hint)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		loc.FloorID,
		loc.Name,
		loc.X,
		loc.Y,
		loc.ImagePath,
		loc.Hint,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating location: %w", err)
	}
	return id, nil
}

// GetLocation retrieves a location by ID
func (r *Repository) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	query := `
		SELECT id, floor_id, name, x, y, image_path, hint
		FROM locations
		WHERE id = $1
	`
	loc, err := scanLocation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return loc, nil
}

// RandomLocation picks a random location, optionally on one floor
func (r *Repository) RandomLocation(ctx context.Context, floorID *int64) (*domain.Location, error) {
	query := `
		SELECT id, floor_id, name, x, y, image_path, hint
		FROM locations
		WHERE $1::BIGINT IS NULL OR floor_id = $1
		ORDER BY RANDOM()
		LIMIT 1
	`
	loc, err := scanLocation(r.pool.QueryRow(ctx, query, floorID))
	if err != nil {
		return nil, fmt.Errorf("getting random location: %w", err)
	}
	return loc, nil
}

func scanLocation(row pgx.Row) (*domain.Location, error) {
	var loc domain.Location
	err := row.Scan(
		&loc.ID,
		&loc.FloorID,
		&loc.Name,
		&loc.X,
		&loc.Y,
		&loc.ImagePath,
		&loc.Hint,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLocationNotFound
		}
		return nil, err
	}
	return &loc, nil
}

// EnsureUser inserts a user unless one with the same email exists, and
// returns the user's ID either way
func (r *Repository) EnsureUser(ctx context.Context, user domain.User) (int64, error) {
	query := `
		INSERT INTO users (first_name, last_name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensuring user: %w", err)
	}
	return id, nil
}

// UserDisplayName returns the leaderboard name of a user
func (r *Repository) UserDisplayName(ctx context.Context, userID int64) (string, error) {
	query := `SELECT first_name, last_name FROM users WHERE id = $1`
	var u domain.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(&u.FirstName, &u.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("getting user: %w", err)
	}
	return u.DisplayName(), nil
}

// UserDisplayNames returns leaderboard names for the given users. Unknown IDs
// are left out of the map.
func (r *Repository) UserDisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	query := `SELECT id, first_name, last_name FROM users WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("getting user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		names[u.ID] = u.DisplayName()
	}
	return names, rows.Err()
}

// BestScoreForUser returns the user's best game total, or nil before their
// first game
func (r *Repository) BestScoreForUser(ctx context.Context, userID int64) (*int, error) {
	query := `SELECT MAX(total_score) FROM game_results WHERE user_id = $1`
	var best *int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&best); err != nil {
		return nil, fmt.Errorf("getting best score: %w", err)
	}
	return best, nil
}

// InsertGameResult stores a finished game and returns its ID
func (r *Repository) InsertGameResult(ctx context.Context, userID int64, totalScore, roundsPlayed int) (int64, error) {
	query := `
		INSERT INTO game_results (user_id, total_score, rounds_played, played_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := r.pool.QueryRow(ctx, query, userID, totalScore, roundsPlayed, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting game result: %w", err)
	}
	return id, nil
}

// BestScorePerUser returns every user's best game total, best first
func (r *Repository) BestScorePerUser(ctx context.Context) ([]domain.UserBest, error) {
	query := `
		SELECT user_id, MAX(total_score) AS best
		FROM game_results
		GROUP BY user_id
		ORDER BY best DESC, user_id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("getting best scores: %w", err)
	}
	defer rows.Close()

	var bests []domain.UserBest
	for rows.Next() {
		var b domain.UserBest
		if err := rows.Scan(&b.UserID, &b.Score); err != nil {
			return nil, fmt.Errorf("scanning best score: %w", err)
		}
		bests = append(bests, b)
	}
	return bests, rows.Err()
}
