// Command seed loads floors, locations and users from a YAML fixture and
// ensures the default admin account exists.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/postgres"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	defaultAdminEmail    = "admin@admin.com"
	defaultAdminPassword = "admin"
)

// Fixture is the seed file layout
type Fixture struct {
	Floors []FloorFixture `yaml:"floors"`
	Users  []UserFixture  `yaml:"users"`
}

// FloorFixture is a floor and the locations photographed on it
type FloorFixture struct {
	Name      string            `yaml:"name"`
	Building  string            `yaml:"building"`
	Level     string            `yaml:"level"`
	ImagePath string            `yaml:"image_path"`
	WidthPx   int               `yaml:"width_px"`
	HeightPx  int               `yaml:"height_px"`
	Locations []LocationFixture `yaml:"locations"`
}

// LocationFixture is a photographed spot in floor pixels
type LocationFixture struct {
	Name      string `yaml:"name"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
	ImagePath string `yaml:"image_path"`
	Hint      string `yaml:"hint"`
}

// UserFixture is a user with a plain-text password, hashed before storing
type UserFixture struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
}

// ParseFixture decodes and validates a fixture
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	for i, floor := range f.Floors {
		if floor.ImagePath == "" || floor.WidthPx <= 0 || floor.HeightPx <= 0 {
			return nil, fmt.Errorf("%w: floor %d needs an image and positive dimensions", domain.ErrInvalidInput, i)
		}
		for j, loc := range floor.Locations {
			if loc.ImagePath == "" {
				return nil, fmt.Errorf("%w: location %d on floor %d has no image", domain.ErrInvalidInput, j, i)
			}
			if loc.X < 0 || loc.Y < 0 || loc.X > floor.WidthPx || loc.Y > floor.HeightPx {
				return nil, fmt.Errorf("%w: location %d on floor %d lies outside the floor", domain.ErrInvalidInput, j, i)
			}
		}
	}
	for i, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("%w: user %d needs an email and a password", domain.ErrInvalidInput, i)
		}
	}
	return &f, nil
}

// withDefaultAdmin appends the admin account unless the fixture defines it
func withDefaultAdmin(users []UserFixture) []UserFixture {
	for _, u := range users {
		if u.Email == defaultAdminEmail {
			return users
		}
	}
	return append(users, UserFixture{
		FirstName: "Admin",
		LastName:  "User",
		Email:     defaultAdminEmail,
		Password:  defaultAdminPassword,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func seed(ctx context.Context, repo *postgres.Repository, f *Fixture, logger *slog.Logger) error {
	for _, ff := range f.Floors {
		floorID, err := repo.CreateFloor(ctx, domain.Floor{
			Name:      optional(ff.Name),
			Building:  optional(ff.Building),
			Level:     optional(ff.Level),
			ImagePath: ff.ImagePath,
			WidthPx:   ff.WidthPx,
			HeightPx:  ff.HeightPx,
		})
		if err != nil {
			return err
		}

		for _, lf := range ff.Locations {
			if _, err := repo.CreateLocation(ctx, domain.Location{
				FloorID:   floorID,
				Name:      optional(lf.Name),
				X:         lf.X,
				Y:         lf.Y,
				ImagePath: lf.ImagePath,
				Hint:      optional(lf.Hint),
			}); err != nil {
				return err
			}
		}
		logger.Info("floor seeded", "floor_id", floorID, "locations", len(ff.Locations))
	}

	for _, uf := range withDefaultAdmin(f.Users) {
		hashed, err := bcrypt.GenerateFromPassword([]byte(uf.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", uf.Email, err)
		}

		userID, err := repo.EnsureUser(ctx, domain.User{
			FirstName:    uf.FirstName,
			LastName:     uf.LastName,
			Email:        uf.Email,
			PasswordHash: string(hashed),
		})
		if err != nil {
			return err
		}
		logger.Info("user ensured", "user_id", userID, "email", uf.Email)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	fixturePath := flag.String("fixture", "", "Path to a YAML fixture of floors, locations and users")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	fixture := &Fixture{}
	if *fixturePath != "" {
		data, err := os.ReadFile(*fixturePath)
		if err != nil {
			logger.Error("failed to read fixture", "error", err)
			os.Exit(1)
		}
		if fixture, err = ParseFixture(data); err != nil {
			logger.Error("invalid fixture", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := seed(ctx, repo, fixture, logger); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	logger.Info("seeding completed")
}
