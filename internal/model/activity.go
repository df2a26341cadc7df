// Package model defines domain entities for the application.
package model

import (
	"slices"
	"strings"
	"time"
)

// Activity categories offered by the client's category picker.
const (
	CategoryCulture = "culture"
	CategoryDrinks  = "drinks"
	CategoryFilm    = "film"
	CategoryFood    = "food"
	CategoryMusic   = "music"
	CategoryTravel  = "travel"
)

// Categories contains all valid activity categories.
var Categories = []string{
	CategoryCulture,
	CategoryDrinks,
	CategoryFilm,
	CategoryFood,
	CategoryMusic,
	CategoryTravel,
}

// IsValidCategory reports whether category is one of Categories (case-insensitive).
func IsValidCategory(category string) bool {
	return slices.Contains(Categories, strings.ToLower(category))
}

// Activity is a social event that users can host and attend.
type Activity struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Date         time.Time  `json:"date"`
	City         string     `json:"city"`
	Venue        string     `json:"venue"`
	IsCancelled  bool       `json:"is_cancelled"`
	HostUsername string     `json:"host_username"`
	Attendees    []Attendee `json:"attendees"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Attendee is a user attending an activity.
type Attendee struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	Image       string    `json:"image,omitempty"`
	IsHost      bool      `json:"is_host"`
	JoinedAt    time.Time `json:"joined_at"`
}

// IsHost reports whether username hosts the activity.
func (a *Activity) IsHost(username string) bool {
	return username != "" && a.HostUsername == username
}

// IsAttending reports whether username is in the attendee list.
func (a *Activity) IsAttending(username string) bool {
	return slices.ContainsFunc(a.Attendees, func(at Attendee) bool {
		return at.Username == username
	})
}

// ApplyEdit copies the user-editable fields from src.
func (a *Activity) ApplyEdit(src *Activity) {
	a.Title = src.Title
	a.Description = src.Description
	a.Category = strings.ToLower(src.Category)
	a.Date = src.Date
	a.City = src.City
	a.Venue = src.Venue
}
