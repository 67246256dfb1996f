// Package refresher keeps the local versions table in sync with the
// vanilla release manifest.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"jarvault/pkg/bus"
	"jarvault/services/jarcache"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = time.Hour

// VersionSource lists published versions for a platform. *jarcache.Catalog
// satisfies it.
type VersionSource interface {
	Versions(ctx context.Context, platform jarcache.Platform) ([]string, error)
}

// Publisher announces completed refreshes. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Config assembles the runner dependencies.
type Config struct {
	Source   VersionSource
	DB       *gorm.DB
	Interval time.Duration

	// Bus is optional; when set, each completed sync is announced.
	Bus Publisher

	Logger *log.Logger
}

// Runner periodically syncs vanilla release versions into the database.
type Runner struct {
	source   VersionSource
	db       *gorm.DB
	bus      Publisher
	interval time.Duration
	logger   *log.Logger
}

// RefreshedEvent is the payload published after each sync.
type RefreshedEvent struct {
	Platform string    `json:"platform"`
	Total    int       `json:"total"`
	Added    int       `json:"added"`
	At       time.Time `json:"at"`
}

type platformRow struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"type:text;uniqueIndex;not null"`
}

func (platformRow) TableName() string { return "platforms" }

type versionRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlatformID uuid.UUID `gorm:"type:uuid;not null"`
	Number     string    `gorm:"type:text;not null"`
}

func (versionRow) TableName() string { return "versions" }

// New validates the configuration and builds a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Source == nil {
		return nil, errors.New("version source is required")
	}
	if cfg.DB == nil {
		return nil, errors.New("database is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Runner{
		source:   cfg.Source,
		db:       cfg.DB,
		bus:      cfg.Bus,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}, nil
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
// Individual refresh failures are logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil {
		return errors.New("nil runner")
	}

	if err := r.RefreshOnce(ctx); err != nil {
		r.logger.Printf("ERROR initial refresh failed: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.Printf("ERROR refresh failed: %v", err)
			}
		}
	}
}

// RefreshOnce fetches the current vanilla release list and upserts any
// versions the database does not yet know about.
func (r *Runner) RefreshOnce(ctx context.Context) error {
	versions, err := r.source.Versions(ctx, jarcache.PlatformVanilla)
	if err != nil {
		return fmt.Errorf("list vanilla versions: %w", err)
	}

	added, err := r.store(ctx, jarcache.PlatformVanilla, versions)
	if err != nil {
		return fmt.Errorf("store vanilla versions: %w", err)
	}

	r.logger.Printf("INFO refreshed vanilla versions total=%d added=%d", len(versions), added)

	if r.bus != nil && added > 0 {
		event := RefreshedEvent{
			Platform: string(jarcache.PlatformVanilla),
			Total:    len(versions),
			Added:    added,
			At:       time.Now().UTC(),
		}
		if err := r.bus.Publish(ctx, bus.SubjectVersionsRefreshed, event); err != nil {
			r.logger.Printf("ERROR publish refresh event: %v", err)
		}
	}

	return nil
}

func (r *Runner) store(ctx context.Context, platform jarcache.Platform, versions []string) (int, error) {
	added := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := platformRow{ID: uuid.New(), Name: string(platform)}
		if err := tx.Where(platformRow{Name: string(platform)}).FirstOrCreate(&row).Error; err != nil {
			return err
		}

		var known []versionRow
		if err := tx.Where(versionRow{PlatformID: row.ID}).Find(&known).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(known))
		for _, v := range known {
			seen[v.Number] = struct{}{}
		}

		for _, number := range versions {
			if _, ok := seen[number]; ok {
				continue
			}
			v := versionRow{ID: uuid.New(), PlatformID: row.ID, Number: number}
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
