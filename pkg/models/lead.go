package models

import "time"

// Lead is the read-model of the CRM contact that flows act upon. The engine
// reads fields, tags and stage for condition evaluation; writes go through
// action handlers only.
type Lead struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Name           string            `json:"name"`
	Phone          string            `json:"phone,omitempty"`
	StageID        string            `json:"stage_id,omitempty"`
	TagIDs         []string          `json:"tag_ids,omitempty"`
	Fields         map[string]string `json:"fields,omitempty"`
	Notes          []LeadNote        `json:"notes,omitempty"`
	Reminders      []Reminder        `json:"reminders,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Field returns the named field value. Core attributes (name, phone, stage)
// are addressable by their well-known field names alongside custom fields.
func (l *Lead) Field(name string) (string, bool) {
	switch name {
	case "name":
		return l.Name, l.Name != ""
	case "phone":
		return l.Phone, l.Phone != ""
	case "stage_id":
		return l.StageID, l.StageID != ""
	}

	value, ok := l.Fields[name]

	return value, ok
}

// HasTag reports whether the tag is attached to the lead.
func (l *Lead) HasTag(tagID string) bool {
	for _, id := range l.TagIDs {
		if id == tagID {
			return true
		}
	}

	return false
}

// LeadNote is a free-form annotation written by an action handler.
type LeadNote struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reminder is a follow-up created by the create_reminder action.
type Reminder struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueAt       time.Time `json:"due_at"`
	CreatedAt   time.Time `json:"created_at"`
}
