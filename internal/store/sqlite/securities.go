package sqlite

import (
	"context"
	"errors"

	"orderflow/internal/store/model"
	"orderflow/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// securityRepository implements the SecurityRepository interface.
type securityRepository struct {
	db *gorm.DB
}

func NewSecurityRepo(db *gorm.DB) *securityRepository {
	return &securityRepository{db: db}
}

// Query 把全部 key 组合成 (symbol=? AND venue=?) OR ... 的单条查询。
func (r *securityRepository) Query(ctx context.Context, keys []types.Key) ([]types.SecurityDefinition, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cond := r.db.Session(&gorm.Session{NewDB: true})
	for i, k := range keys {
		k = types.NewKey(k.Symbol, k.Venue)
		if i == 0 {
			cond = cond.Where("symbol = ? AND venue = ?", k.Symbol, k.Venue)
			continue
		}
		cond = cond.Or("symbol = ? AND venue = ?", k.Symbol, k.Venue)
	}
	var rows []model.SecurityModel
	if err := r.db.WithContext(ctx).Where(cond).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.SecurityDefinition, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Definition())
	}
	return out, nil
}

// Upsert saves rows keyed by (symbol, venue).
func (r *securityRepository) Upsert(ctx context.Context, rows []model.SecurityModel) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].Normalize()
		if rows[i].Symbol == "" || rows[i].Venue == "" {
			return errors.New("security requires symbol and venue")
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "venue"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trading_enabled", "risk_factor", "max_position",
			"instrument", "currency", "attributes", "updated_at",
		}),
	}).Create(&rows).Error
}

// List lists securities of a venue, or all when venue is empty.
func (r *securityRepository) List(ctx context.Context, venue string) ([]model.SecurityModel, error) {
	var rows []model.SecurityModel
	q := r.db.WithContext(ctx).Order("venue ASC, symbol ASC")
	if v := types.NewKey("", venue).Venue; v != "" {
		q = q.Where("venue = ?", v)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *securityRepository) DeleteMissing(ctx context.Context, venue string, keep []types.Key) (int64, error) {
	v := types.NewKey("", venue).Venue
	if v == "" {
		return 0, errors.New("venue cannot be empty")
	}
	q := r.db.WithContext(ctx).Where("venue = ?", v)
	symbols := make([]string, 0, len(keep))
	for _, k := range keep {
		k = types.NewKey(k.Symbol, k.Venue)
		if k.Venue == v {
			symbols = append(symbols, k.Symbol)
		}
	}
	if len(symbols) > 0 {
		q = q.Where("symbol NOT IN ?", symbols)
	}
	res := q.Delete(&model.SecurityModel{})
	return res.RowsAffected, res.Error
}
