package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type PlatformRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (PlatformRecord) TableName() string { return "platforms" }

type VersionRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	PlatformID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_platform_number"`
	Number     string         `gorm:"type:text;not null;uniqueIndex:idx_platform_number"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Platform   PlatformRecord `gorm:"foreignKey:PlatformID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (VersionRecord) TableName() string { return "versions" }

type FetchEvent struct {
	ID        int64             `gorm:"type:bigserial;primaryKey"`
	Platform  string            `gorm:"type:text;not null"`
	Version   string            `gorm:"type:text;not null"`
	Build     string            `gorm:"type:text"`
	Key       string            `gorm:"type:text;not null;index"`
	Details   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (FetchEvent) TableName() string { return "fetch_events" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&PlatformRecord{},
		&VersionRecord{},
		&FetchEvent{},
	); err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().CreateConstraint(&VersionRecord{}, "Platform")
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&FetchEvent{},
		&VersionRecord{},
		&PlatformRecord{},
	)
}
