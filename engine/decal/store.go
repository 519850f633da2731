package decal

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// EntryModel is the database row of one saved decal list entry.
type EntryModel struct {
	ID          uint   `gorm:"primaryKey"`
	Level       string `gorm:"index:idx_level_seq"`
	Seq         int    `gorm:"index:idx_level_seq"`
	Name        string
	EntityIndex int
	Depth       int
	Flags       int
	Scale       float32
	X, Y, Z     float32
}

// Store persists decal list snapshots per level in a SQLite database.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the SQLite database at path and migrates the schema.
//
// Parameters:
//   - path: the database file; ":memory:" for an in-memory store
//
// Returns:
//   - *Store: the opened store
//   - error: error if the database cannot be opened or migrated
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("decal store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&EntryModel{}); err != nil {
		return nil, fmt.Errorf("decal store: migrate: %w", err)
	}
	logger.Infof("decal store opened: %s", path)
	return &Store{db: db}, nil
}

// Save replaces the saved list of level with list.
//
// Parameters:
//   - level: the level name
//   - list: the snapshot from Pool.CreateList
//
// Returns:
//   - error: error if the write fails; the previous list is kept in that case
func (s *Store) Save(level string, list []Entry) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("level = ?", level).Delete(&EntryModel{}).Error; err != nil {
			return fmt.Errorf("decal store: clear %s: %w", level, err)
		}
		if len(list) == 0 {
			return nil
		}
		rows := make([]EntryModel, len(list))
		for i, e := range list {
			rows[i] = EntryModel{
				Level:       level,
				Seq:         i,
				Name:        e.Name,
				EntityIndex: e.EntityIndex,
				Depth:       e.Depth,
				Flags:       int(e.Flags),
				Scale:       e.Scale,
				X:           e.Position[0],
				Y:           e.Position[1],
				Z:           e.Position[2],
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("decal store: save %s: %w", level, err)
		}
		return nil
	})
}

// Load returns the saved list of level in its original order. A level with nothing saved
// yields an empty list.
func (s *Store) Load(level string) ([]Entry, error) {
	var rows []EntryModel
	if err := s.db.Where("level = ?", level).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("decal store: load %s: %w", level, err)
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{
			Position:    mgl32.Vec3{r.X, r.Y, r.Z},
			Name:        r.Name,
			EntityIndex: r.EntityIndex,
			Depth:       r.Depth,
			Flags:       Flags(r.Flags),
			Scale:       r.Scale,
		}
	}
	return out, nil
}

// Delete drops the saved list of level.
func (s *Store) Delete(level string) error {
	if err := s.db.Where("level = ?", level).Delete(&EntryModel{}).Error; err != nil {
		return fmt.Errorf("decal store: delete %s: %w", level, err)
	}
	return nil
}

// Levels returns the names of all levels with a saved list.
func (s *Store) Levels() ([]string, error) {
	var levels []string
	if err := s.db.Model(&EntryModel{}).Distinct("level").Order("level").Pluck("level", &levels).Error; err != nil {
		return nil, fmt.Errorf("decal store: levels: %w", err)
	}
	return levels, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
