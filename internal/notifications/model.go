// Package notifications stores in-app inbox records for users.
package notifications

import "time"

// Type classifies a notification for display.
type Type string

const (
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
)

// IsValid reports whether t is one of the known types.
func (t Type) IsValid() bool {
	switch t {
	case TypeSuccess, TypeWarning, TypeError, TypeInfo:
		return true
	}
	return false
}

// Listing limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// RelatedEntity is a weak reference to the record a notification is about.
type RelatedEntity struct {
	Type     string `json:"type" bson:"type"`
	EntityID string `json:"entityId" bson:"entityId"`
}

// Notification is one inbox entry.
type Notification struct {
	ID            string            `json:"id" bson:"_id"`
	UserID        string            `json:"userId" bson:"userId"`
	Title         string            `json:"title" bson:"title"`
	Message       string            `json:"message" bson:"message"`
	Type          Type              `json:"type" bson:"type"`
	Read          bool              `json:"read" bson:"read"`
	ReadAt        *time.Time        `json:"readAt,omitempty" bson:"readAt,omitempty"`
	RelatedEntity *RelatedEntity    `json:"relatedEntity,omitempty" bson:"relatedEntity,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt" bson:"createdAt"`
}

// CreateInput describes a new notification.
type CreateInput struct {
	UserID        string            `validate:"required"`
	Title         string            `validate:"required,max=200"`
	Message       string            `validate:"required,max=2000"`
	Type          Type              `validate:"omitempty"`
	RelatedEntity *RelatedEntity    `validate:"omitempty"`
	Metadata      map[string]string `validate:"omitempty"`
}
