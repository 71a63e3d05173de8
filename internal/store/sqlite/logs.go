package sqlite

import (
	"context"
	"errors"
	"strings"

	"orderflow/internal/store/model"

	"gorm.io/gorm"
)

// seedLogRepo 读写 seed_load_log，按种子文件路径区分。
type seedLogRepo struct {
	db *gorm.DB
}

func newSeedLogRepo(db *gorm.DB) *seedLogRepo {
	return &seedLogRepo{db: db}
}

// ListSeedLoads 按时间倒序返回加载记录；path 为空时不过滤。
func (r *seedLogRepo) ListSeedLoads(ctx context.Context, path string, limit int) ([]model.SeedLoadModel, error) {
	q := r.db.WithContext(ctx).Model(&model.SeedLoadModel{})
	if p := strings.TrimSpace(path); p != "" {
		q = q.Where("path = ?", p)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.SeedLoadModel
	if err := q.Order("timestamp DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LastSeedLoad 返回某个种子文件最近一次成功加载，没有记录时 ok=false。
func (r *seedLogRepo) LastSeedLoad(ctx context.Context, path string) (model.SeedLoadModel, bool, error) {
	var row model.SeedLoadModel
	err := r.db.WithContext(ctx).
		Where("path = ?", strings.TrimSpace(path)).
		Order("timestamp DESC").Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SeedLoadModel{}, false, nil
	}
	if err != nil {
		return model.SeedLoadModel{}, false, err
	}
	return row, true, nil
}

func (r *seedLogRepo) InsertSeedLoad(ctx context.Context, entry *model.SeedLoadModel) error {
	if entry == nil {
		return errors.New("nil seed load entry")
	}
	if strings.TrimSpace(entry.Path) == "" || entry.Checksum == "" {
		return errors.New("seed load entry requires path and checksum")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}
