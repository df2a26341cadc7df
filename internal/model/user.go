// Package model defines domain entities for the application.
package model

import "time"

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Bio          string    `json:"bio,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public view of a user.
type Profile struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Bio         string   `json:"bio,omitempty"`
	Image       string   `json:"image,omitempty"`
	Photos      []*Photo `json:"photos"`
}

// MainPhoto returns the profile's main photo, or nil.
func (p *Profile) MainPhoto() *Photo {
	for _, photo := range p.Photos {
		if photo.IsMain {
			return photo
		}
	}
	return nil
}
