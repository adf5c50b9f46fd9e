package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// kvEntry is one row of kv_entries. Values are JSON documents.
type kvEntry struct {
	Key       string         `gorm:"primaryKey;size:255"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	ExpiresAt *time.Time     `gorm:"index"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (kvEntry) TableName() string { return "kv_entries" }

const liveClause = "(expires_at IS NULL OR expires_at > ?)"

// MigratePostgres applies the embedded schema migrations to databaseURL.
func MigratePostgres(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("store: DATABASE_URL is not set")
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("store: migration setup: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Postgres is a Store backed by the kv_entries table.
type Postgres struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenPostgres connects with gorm. The schema must already be migrated.
func OpenPostgres(databaseURL string) (*Postgres, error) {
	conn, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	return NewPostgres(conn), nil
}

// NewPostgres wraps an existing gorm connection.
func NewPostgres(conn *gorm.DB) *Postgres {
	return &Postgres{db: conn, now: time.Now}
}

func (p *Postgres) expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	at := p.now().Add(ttl)
	return &at
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var e kvEntry
	err := p.db.WithContext(ctx).Where("key = ? AND "+liveClause, key, p.now()).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(e.Value), nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := kvEntry{Key: key, Value: datatypes.JSON(value), ExpiresAt: p.expiry(ttl), UpdatedAt: p.now()}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&e).Error
}

func (p *Postgres) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var created bool
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := p.now()
		if err := tx.Where("key = ? AND expires_at IS NOT NULL AND expires_at <= ?", key, now).
			Delete(&kvEntry{}).Error; err != nil {
			return err
		}
		e := kvEntry{Key: key, Value: datatypes.JSON(value), ExpiresAt: p.expiry(ttl), UpdatedAt: now}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&e)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return nil
	})
	return created, err
}

func (p *Postgres) CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) (bool, error) {
	now := p.now()
	res := p.db.WithContext(ctx).Model(&kvEntry{}).
		Where("key = ? AND value = ?::jsonb AND "+liveClause, key, string(prev), now).
		Updates(map[string]any{
			"value":      datatypes.JSON(next),
			"expires_at": p.expiry(ttl),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (p *Postgres) Take(ctx context.Context, key string) ([]byte, error) {
	var rows []kvEntry
	res := p.db.WithContext(ctx).Clauses(clause.Returning{}).Where("key = ?", key).Delete(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	e := rows[0]
	if e.ExpiresAt != nil && !e.ExpiresAt.After(p.now()) {
		return nil, ErrNotFound
	}
	return []byte(e.Value), nil
}

// Incr locks the counter row for the duration of the increment.
func (p *Postgres) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := p.now()
		seed := kvEntry{Key: key, Value: datatypes.JSON("0"), UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		var e kvEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("key = ?", key).Take(&e).Error; err != nil {
			return err
		}
		current := int64(0)
		if e.ExpiresAt == nil || e.ExpiresAt.After(now) {
			parsed, err := strconv.ParseInt(strings.TrimSpace(string(e.Value)), 10, 64)
			if err != nil {
				return fmt.Errorf("store: %s is not a counter: %w", key, err)
			}
			current = parsed
		}
		n = current + 1
		return tx.Model(&kvEntry{}).Where("key = ?", key).Updates(map[string]any{
			"value":      datatypes.JSON(strconv.FormatInt(n, 10)),
			"updated_at": now,
		}).Error
	})
	return n, err
}

func (p *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).Where("key IN ?", keys).Delete(&kvEntry{}).Error
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := p.db.WithContext(ctx).Model(&kvEntry{}).
		Where("key LIKE ? ESCAPE '\\' AND "+liveClause, likeEscape(prefix)+"%", p.now()).
		Pluck("key", &keys).Error
	return keys, err
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (p *Postgres) PurgeExpired(ctx context.Context) (int64, error) {
	res := p.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", p.now()).Delete(&kvEntry{})
	return res.RowsAffected, res.Error
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
