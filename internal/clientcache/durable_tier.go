package clientcache

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"collabhub.app/pkg/errors"
)

// durableEntry is the sqlite row shape for the durable tier.
type durableEntry struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     []byte
	Category  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (durableEntry) TableName() string {
	return "cache_entries"
}

// durableTier persists entries in an embedded sqlite database so they
// survive across sessions.
type durableTier struct {
	db *gorm.DB
}

func newDurableTier(path string) (*durableTier, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.NewDatabaseError("failed to open durable cache database", err)
	}

	if err := db.AutoMigrate(&durableEntry{}); err != nil {
		return nil, errors.NewDatabaseError("failed to migrate durable cache schema", err)
	}

	return &durableTier{db: db}, nil
}

func (d *durableTier) name() Tier {
	return TierDurable
}

func (d *durableTier) set(entry Entry) error {
	row := durableEntry{
		Key:       entry.Key,
		Value:     entry.Value,
		Category:  string(entry.Category),
		ExpiresAt: entry.ExpiresAt,
		CreatedAt: entry.CreatedAt,
	}

	if err := d.db.Save(&row).Error; err != nil {
		return errors.NewDatabaseError("failed to write durable cache entry", err)
	}
	return nil
}

func (d *durableTier) get(key string) (Entry, bool) {
	var row durableEntry
	if err := d.db.First(&row, "key = ?", key).Error; err != nil {
		return Entry{}, false
	}

	return Entry{
		Key:       row.Key,
		Value:     row.Value,
		Category:  Category(row.Category),
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
	}, true
}

func (d *durableTier) remove(key string) {
	d.db.Delete(&durableEntry{}, "key = ?", key)
}

func (d *durableTier) entries() []Entry {
	var rows []durableEntry
	if err := d.db.Find(&rows).Error; err != nil {
		return nil
	}

	collected := make([]Entry, 0, len(rows))
	for _, row := range rows {
		collected = append(collected, Entry{
			Key:       row.Key,
			Value:     row.Value,
			Category:  Category(row.Category),
			ExpiresAt: row.ExpiresAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return collected
}

func (d *durableTier) clear() {
	d.db.Where("1 = 1").Delete(&durableEntry{})
}

func (d *durableTier) close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
