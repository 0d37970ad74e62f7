package models

import (
	"time"

	"github.com/google/uuid"
)

// Shop is the tenant record. AccessToken is nil when the shop has no valid
// upstream session; sweeps still deactivate local rules for such shops but
// skip the annotation cleanup.
type Shop struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Domain      string    `gorm:"column:domain;not null;uniqueIndex"`
	AccessToken *string   `gorm:"column:access_token"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true"`
	Initialized bool      `gorm:"column:initialized;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasSession reports whether the shop has a usable upstream credential.
func (s Shop) HasSession() bool {
	return s.AccessToken != nil && *s.AccessToken != ""
}
