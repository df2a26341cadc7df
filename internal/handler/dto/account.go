package dto

import "github.com/reactivities/reactivities/internal/model"

// RegisterRequest is the body of POST /api/v1/account/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// LoginRequest is the body of POST /api/v1/account/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PhotoResponse represents a stored photo.
type PhotoResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	IsMain bool   `json:"is_main"`
}

// ProfileResponse is a user's public profile.
type ProfileResponse struct {
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	Bio         string          `json:"bio,omitempty"`
	Image       string          `json:"image,omitempty"`
	Photos      []PhotoResponse `json:"photos"`
}

// ToPhotoResponse converts a Photo model.
func ToPhotoResponse(p *model.Photo) PhotoResponse {
	return PhotoResponse{ID: p.ID, URL: p.URL, IsMain: p.IsMain}
}

// ToProfileResponse converts a Profile model.
func ToProfileResponse(p *model.Profile) *ProfileResponse {
	photos := make([]PhotoResponse, 0, len(p.Photos))
	for _, photo := range p.Photos {
		photos = append(photos, ToPhotoResponse(photo))
	}
	return &ProfileResponse{
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		Image:       p.Image,
		Photos:      photos,
	}
}
