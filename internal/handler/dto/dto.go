// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/reactivities/reactivities/internal/model"
)

// ErrorResponse represents an API error. Details maps field names to
// validation messages.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// ActivityRequest is the activity form. ID is optional on create.
type ActivityRequest struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	City        string    `json:"city"`
	Venue       string    `json:"venue"`
}

// ToModel converts the form to an Activity.
func (r *ActivityRequest) ToModel() model.Activity {
	return model.Activity{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Date:        r.Date,
		City:        r.City,
		Venue:       r.Venue,
	}
}

// AttendeeResponse is one attendee of an activity.
type AttendeeResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	Image       string `json:"image,omitempty"`
	IsHost      bool   `json:"is_host"`
}

// ActivityResponse represents an activity in API responses.
type ActivityResponse struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Category     string             `json:"category"`
	Date         time.Time          `json:"date"`
	City         string             `json:"city"`
	Venue        string             `json:"venue"`
	IsCancelled  bool               `json:"is_cancelled"`
	HostUsername string             `json:"host_username"`
	Attendees    []AttendeeResponse `json:"attendees"`
}

// ActivityListResponse is a page of activities.
type ActivityListResponse struct {
	Data       []ActivityResponse `json:"data"`
	Pagination *Pagination        `json:"pagination"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// ToActivityResponse converts an Activity model to its DTO.
func ToActivityResponse(a *model.Activity) ActivityResponse {
	attendees := make([]AttendeeResponse, 0, len(a.Attendees))
	for _, at := range a.Attendees {
		attendees = append(attendees, AttendeeResponse{
			Username:    at.Username,
			DisplayName: at.DisplayName,
			Bio:         at.Bio,
			Image:       at.Image,
			IsHost:      at.IsHost,
		})
	}
	return ActivityResponse{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		Category:     a.Category,
		Date:         a.Date,
		City:         a.City,
		Venue:        a.Venue,
		IsCancelled:  a.IsCancelled,
		HostUsername: a.HostUsername,
		Attendees:    attendees,
	}
}

// ToActivityListResponse converts a page of activities.
func ToActivityListResponse(activities []*model.Activity, nextCursor string) *ActivityListResponse {
	data := make([]ActivityResponse, 0, len(activities))
	for _, a := range activities {
		data = append(data, ToActivityResponse(a))
	}
	return &ActivityListResponse{
		Data: data,
		Pagination: &Pagination{
			NextCursor: nextCursor,
			HasMore:    nextCursor != "",
		},
	}
}

// EventResponse is one entry in an activity's change feed.
type EventResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ActivityID string    `json:"activity_id"`
	Actor      string    `json:"actor"`
	Title      string    `json:"title,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventListResponse wraps a feed.
type EventListResponse struct {
	Data []EventResponse `json:"data"`
}

// ToEventListResponse converts persisted events.
func ToEventListResponse(events []*model.ActivityEvent) *EventListResponse {
	data := make([]EventResponse, 0, len(events))
	for _, e := range events {
		data = append(data, EventResponse{
			ID:         e.ID,
			Type:       string(e.Type),
			ActivityID: e.ActivityID,
			Actor:      e.Actor,
			Title:      e.Title,
			OccurredAt: e.OccurredAt,
		})
	}
	return &EventListResponse{Data: data}
}
