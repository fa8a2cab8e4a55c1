package models

import "time"

type Reward struct {
	ID             string    `bson:"_id" json:"id" yaml:"id"`
	Name           string    `bson:"name" json:"name" yaml:"name"`
	Description    string    `bson:"description" json:"description" yaml:"description"`
	RequiredStamps int       `bson:"requiredStamps" json:"requiredStamps" yaml:"requiredStamps"`
	Type           string    `bson:"type" json:"type" yaml:"type"`
	Active         bool      `bson:"active" json:"active" yaml:"active"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt" yaml:"-"`
}

// AdminConfig is the config/admin record written by the setpin command.
type AdminConfig struct {
	PinHmac   string    `bson:"pinHmac" json:"-"`
	PinLength int       `bson:"pinLength,omitempty" json:"pinLength,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
