package activities

import (
	"strings"

	"github.com/google/uuid"

	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/model"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 2000
)

// validateActivity checks the form fields. Every field is required.
func validateActivity(a *model.Activity) error {
	v := mediator.NewValidationError()

	v.Required("activity", "title", a.Title)
	v.Required("activity", "description", a.Description)
	v.Required("activity", "category", a.Category)
	if a.Date.IsZero() {
		v.Add("date", "The activity date is required")
	}
	v.Required("activity", "city", a.City)
	v.Required("activity", "venue", a.Venue)

	if len(a.Title) > maxTitleLength {
		v.Add("title", "The activity title must be at most 100 characters")
	}
	if len(a.Description) > maxDescriptionLength {
		v.Add("description", "The activity description must be at most 2000 characters")
	}
	if strings.TrimSpace(a.Category) != "" && !model.IsValidCategory(a.Category) {
		v.Add("category", "The activity category must be one of "+strings.Join(model.Categories, ", "))
	}
	if a.ID != "" {
		if _, err := uuid.Parse(a.ID); err != nil {
			v.Add("id", "The activity id must be a UUID")
		}
	}

	return v.Err()
}
