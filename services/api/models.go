package api

import (
	"time"

	"github.com/google/uuid"
)

type platformModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (platformModel) TableName() string { return "platforms" }

func (p platformModel) toAPI() PlatformRecord {
	return PlatformRecord{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type versionModel struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	PlatformID uuid.UUID     `gorm:"type:uuid;not null"`
	Number     string        `gorm:"type:text;not null"`
	CreatedAt  time.Time     `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Platform   platformModel `gorm:"foreignKey:PlatformID;references:ID"`
}

func (versionModel) TableName() string { return "versions" }

func (v versionModel) toAPI() VersionRecord {
	return VersionRecord{
		ID:        v.ID,
		Platform:  v.Platform.Name,
		Number:    v.Number,
		CreatedAt: v.CreatedAt,
	}
}
