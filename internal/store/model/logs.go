package model

import "gorm.io/datatypes"

// SeedLoadModel maps to 'seed_load_log' table.
type SeedLoadModel struct {
	ID        int64          `gorm:"column:id;primaryKey"`
	Path      string         `gorm:"column:path;index:idx_seed_load_path"`
	Checksum  string         `gorm:"column:checksum"`
	Upserted  int            `gorm:"column:upserted"`
	Removed   int64          `gorm:"column:removed"`
	Details   datatypes.JSON `gorm:"column:details"`
	Timestamp int64          `gorm:"column:timestamp"`
}

func (SeedLoadModel) TableName() string { return "seed_load_log" }
