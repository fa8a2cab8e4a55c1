package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	PhoneDigits           = 10
	CustomerSchemaVersion = 1
)

// Customer represents the customers collection.
type Customer struct {
	ID              string    `bson:"_id" json:"id"`
	Name            string    `bson:"name,omitempty" json:"name,omitempty"`
	Phone           string    `bson:"phone" json:"phone"`
	ConsentWhatsApp bool      `bson:"consentWhatsApp" json:"consentWhatsApp"`
	Active          bool      `bson:"active" json:"active"`
	TotalVisits     int       `bson:"totalVisits" json:"totalVisits"`
	TotalStamps     int       `bson:"totalStamps" json:"totalStamps"`
	Notes           string    `bson:"notes" json:"notes"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	LastVisitAt     time.Time `bson:"lastVisitAt" json:"lastVisitAt"`
	SchemaVersion   int       `bson:"schemaVersion" json:"schemaVersion"`
}

// NormalizePhone strips everything but digits and requires exactly ten of them.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if len(phone) != PhoneDigits {
		return "", fmt.Errorf("phone must have %d digits: %w", PhoneDigits, ErrInvalidInput)
	}
	return phone, nil
}
