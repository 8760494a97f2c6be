package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"convoydesk/internal/database"
	"convoydesk/internal/domain/booking"
	"convoydesk/internal/domain/closure"
	"convoydesk/internal/domain/conflict"
	"convoydesk/internal/domain/guildconfig"
	jwtsvc "convoydesk/internal/pkg/jwt"
	"convoydesk/internal/repository"
)

// seedFile is the layout of a seed document. Guild configs, closures and
// bookings use the same field names as the HTTP API.
type seedFile struct {
	Guilds []seedGuild `yaml:"guilds"`
	Tokens []seedToken `yaml:"tokens"`
}

type seedGuild struct {
	ID       string                   `yaml:"id"`
	Config   map[string]interface{}   `yaml:"config"`
	Closures []map[string]interface{} `yaml:"closures"`
	Bookings []map[string]interface{} `yaml:"bookings"`
}

type seedToken struct {
	UserID   string   `yaml:"user_id"`
	Username string   `yaml:"username"`
	Role     string   `yaml:"role"`
	GuildIDs []string `yaml:"guild_ids"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		filePath string
		dsn      string
		secret   string
		tokenTTL time.Duration
		reset    bool
	)

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "seed.yaml", "seed document")
	flagSet.StringVar(&dsn, "db", envOr("DATABASE_URL", "convoydesk.db"), "database URL or SQLite file")
	flagSet.StringVar(&secret, "jwt-secret", os.Getenv("JWT_SECRET"), "secret used to sign tokens listed in the seed")
	flagSet.DurationVar(&tokenTTL, "token-ttl", 30*24*time.Hour, "lifetime of issued tokens")
	flagSet.BoolVar(&reset, "reset", false, "delete existing rows of the seeded guilds first")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	seed, err := parseSeed(data)
	if err != nil {
		return err
	}

	db, err := database.Connect(dsn)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		return err
	}

	if reset {
		if err := resetGuilds(db, seed.Guilds); err != nil {
			return err
		}
	}

	ctx := context.Background()
	bookingRepo := repository.NewBookingRepository(db)
	closureRepo := repository.NewClosureRepository(db)
	configs := guildconfig.NewService(repository.NewGuildConfigRepository(db), guildconfig.Defaults{
		DurationMinutes: 90,
		BufferMinutes:   15,
		CategoryPrefix:  "Convoys",
		ReminderOffsets: []int{1440, 120, 30},
	})
	bookings := booking.NewService(bookingRepo, configs, conflict.NewDetector(repository.NewConflictCandidates(bookingRepo, closureRepo)))
	closures := closure.NewService(closureRepo)

	for _, g := range seed.Guilds {
		if err := seedGuildData(ctx, g, configs, closures, bookings); err != nil {
			return fmt.Errorf("guild %s: %w", g.ID, err)
		}
	}

	if len(seed.Tokens) > 0 {
		if secret == "" {
			return fmt.Errorf("--jwt-secret or JWT_SECRET is required to issue tokens")
		}
		j := jwtsvc.New(secret, tokenTTL)
		for _, t := range seed.Tokens {
			tok, err := j.GenerateToken(jwtsvc.Identity{UserID: t.UserID, Username: t.Username, Role: t.Role, GuildIDs: t.GuildIDs})
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s): %s\n", t.Username, t.Role, tok)
		}
	}

	log.Println("Seed completed")
	return nil
}

func parseSeed(data []byte) (*seedFile, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, g := range seed.Guilds {
		if g.ID == "" {
			return nil, fmt.Errorf("guilds[%d]: id is required", i)
		}
	}
	for i, t := range seed.Tokens {
		if t.UserID == "" {
			return nil, fmt.Errorf("tokens[%d]: user_id is required", i)
		}
	}
	return &seed, nil
}

func seedGuildData(ctx context.Context, g seedGuild, configs *guildconfig.Service, closures *closure.Service, bookings *booking.Service) error {
	if len(g.Config) > 0 {
		var in guildconfig.UpdateInput
		if err := viaJSON(g.Config, &in); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if _, err := configs.Update(ctx, g.ID, in); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	} else if _, err := configs.Get(ctx, g.ID); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i, raw := range g.Closures {
		var in closure.CreateInput
		if err := viaJSON(raw, &in); err != nil {
			return fmt.Errorf("closures[%d]: %w", i, err)
		}
		c, err := closures.Create(ctx, g.ID, "seed", in)
		if err != nil {
			return fmt.Errorf("closures[%d]: %w", i, err)
		}
		log.Printf("closure created guild=%s id=%d", g.ID, c.ID)
	}

	for i, raw := range g.Bookings {
		var in booking.CreateInput
		if err := viaJSON(raw, &in); err != nil {
			return fmt.Errorf("bookings[%d]: %w", i, err)
		}
		in.GuildID = g.ID
		b, err := bookings.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("bookings[%d]: %w", i, err)
		}
		log.Printf("booking created guild=%s id=%d status=%s", g.ID, b.ID, b.Status)
	}
	return nil
}

// viaJSON maps a YAML mapping onto a struct that carries JSON tags.
func viaJSON(in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// resetGuilds clears every table for the seeded guilds, children first.
func resetGuilds(db *gorm.DB, guilds []seedGuild) error {
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}
	log.Println("Cleaning old data...")
	for _, table := range []string{"reminder_logs", "intake_drafts", "bookings", "guild_counters", "closures", "guild_configs"} {
		if err := db.Exec("DELETE FROM "+table+" WHERE guild_id IN ?", ids).Error; err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
