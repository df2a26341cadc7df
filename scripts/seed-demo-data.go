package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reactivities/reactivities/internal/auth"
	"github.com/reactivities/reactivities/internal/model"
	"github.com/reactivities/reactivities/internal/repository"
)

type output struct {
	Users      []string `json:"users"`
	Activities []string `json:"activities"`
	Password   string   `json:"password"`
}

type demoUser struct {
	username    string
	displayName string
}

var demoUsers = []demoUser{
	{"bob", "Bob"},
	{"tom", "Tom"},
	{"jane", "Jane"},
}

type demoActivity struct {
	title    string
	category string
	city     string
	venue    string
	offset   time.Duration
	host     string
	guests   []string
}

var demoActivities = []demoActivity{
	{"Past Activity 1", model.CategoryDrinks, "London", "Pub", -60 * 24 * time.Hour, "bob", nil},
	{"Future Activity 1", model.CategoryCulture, "London", "Natural History Museum", 30 * 24 * time.Hour, "jane", []string{"bob"}},
	{"Future Activity 2", model.CategoryMusic, "London", "O2 Arena", 60 * 24 * time.Hour, "tom", []string{"jane"}},
	{"Future Activity 3", model.CategoryDrinks, "London", "Another pub", 90 * 24 * time.Hour, "bob", []string{"tom", "jane"}},
	{"Future Activity 4", model.CategoryFilm, "London", "Cinema", 120 * 24 * time.Hour, "tom", nil},
	{"Future Activity 5", model.CategoryTravel, "Paris", "Louvre", 150 * 24 * time.Hour, "jane", []string{"tom"}},
	{"Future Activity 6", model.CategoryFood, "London", "Borough Market", 180 * 24 * time.Hour, "bob", nil},
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		password    = flag.String("password", "Pa$$w0rd", "Password for every demo user")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if _, err := repo.Migrate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	out := output{Password: *password}

	for _, u := range demoUsers {
		created, err := ensureUser(ctx, repo, u, *password)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		if created {
			out.Users = append(out.Users, u.username)
		}
	}

	// Seeding activities twice would duplicate them; only seed an empty table.
	existing, _, err := repo.ListActivities(ctx, repository.ActivityFilter{}, "", 1)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list activities:", err)
		os.Exit(1)
	}
	if len(existing) == 0 {
		now := time.Now().UTC().Truncate(time.Minute)
		for _, a := range demoActivities {
			id, err := seedActivity(ctx, repo, a, now)
			if err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(1)
			}
			out.Activities = append(out.Activities, id)
		}
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("users created: %d, activities created: %d\n", len(out.Users), len(out.Activities))
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func ensureUser(ctx context.Context, repo *repository.Repository, u demoUser, password string) (bool, error) {
	email := u.username + "@test.com"
	_, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return false, fmt.Errorf("lookup %s: %w", email, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     u.username,
		DisplayName:  u.displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("create user %s: %w", u.username, err)
	}
	return true, nil
}

func seedActivity(ctx context.Context, repo *repository.Repository, a demoActivity, now time.Time) (string, error) {
	activity := &model.Activity{
		ID:          uuid.NewString(),
		Title:       a.title,
		Description: "Activity " + strings.ToLower(strings.TrimPrefix(a.title, "Future ")),
		Category:    a.category,
		Date:        now.Add(a.offset),
		City:        a.city,
		Venue:       a.venue,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateActivity(ctx, activity, a.host); err != nil {
		return "", fmt.Errorf("create activity %q: %w", a.title, err)
	}
	for _, guest := range a.guests {
		if err := repo.AddAttendee(ctx, activity.ID, guest, now); err != nil {
			return "", fmt.Errorf("add %s to %q: %w", guest, a.title, err)
		}
	}
	return activity.ID, nil
}
