// Package seed 从 YAML 文件加载证券参考数据并同步到参考库。
package seed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"orderflow/internal/logger"
	"orderflow/internal/pkg/convert"
	"orderflow/internal/store"
	"orderflow/internal/store/model"
	"orderflow/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Entry 是种子文件中的一条证券。数值字段接受数字或十进制字符串。
type Entry struct {
	Symbol         string         `yaml:"symbol"`
	Venue          string         `yaml:"venue"`
	TradingEnabled *bool          `yaml:"trading_enabled"`
	RiskFactor     any            `yaml:"risk_factor"`
	MaxPosition    any            `yaml:"max_position"`
	Instrument     string         `yaml:"instrument"`
	Currency       string         `yaml:"currency"`
	Attributes     map[string]any `yaml:"attributes"`
}

// File 映射 securities 种子文件。Prune=true 时删除文件中未出现的同场所行。
type File struct {
	Prune      bool    `yaml:"prune"`
	Securities []Entry `yaml:"securities"`
}

// Result 描述一次加载。
type Result struct {
	Checksum string
	Upserted int
	Removed  int64
	Skipped  bool
	LoadedAt time.Time
}

// Loader 把种子文件写入参考库，重复内容（按 sha256）跳过。
type Loader struct {
	path  string
	store store.Store

	mu   sync.Mutex
	last string
}

func NewLoader(path string, st store.Store) (*Loader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("seed loader requires path")
	}
	if st == nil {
		return nil, fmt.Errorf("seed loader requires store")
	}
	return &Loader{path: path, store: st}, nil
}

func (l *Loader) Path() string { return l.path }

// Load 在单个事务内写入全部条目，并记录一条 seed_load_log。
func (l *Loader) Load(ctx context.Context) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return Result{}, fmt.Errorf("read seed file failed: %w", err)
	}
	sum := sha256.Sum256(raw)
	checksum := hex.EncodeToString(sum[:])
	if l.last == "" {
		// 进程重启后以最近一次加载记录判断是否需要重放。
		prev, err := l.lastLoaded(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("read seed load log failed: %w", err)
		}
		l.last = prev
	}
	if checksum == l.last {
		return Result{Checksum: checksum, Skipped: true}, nil
	}
	file, err := Parse(raw)
	if err != nil {
		return Result{}, err
	}
	rows, err := file.Models()
	if err != nil {
		return Result{}, err
	}

	uow, err := l.store.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()
	if err := uow.Securities().Upsert(ctx, rows); err != nil {
		return Result{}, fmt.Errorf("upsert securities failed: %w", err)
	}
	res := Result{Checksum: checksum, Upserted: len(rows), LoadedAt: time.Now()}
	perVenue := groupByVenue(rows)
	if file.Prune {
		for venue, keys := range perVenue {
			n, err := uow.Securities().DeleteMissing(ctx, venue, keys)
			if err != nil {
				return Result{}, fmt.Errorf("prune securities failed: %w", err)
			}
			res.Removed += n
		}
	}
	details := make(map[string]int, len(perVenue))
	for venue, keys := range perVenue {
		details[venue] = len(keys)
	}
	detailJSON, _ := json.Marshal(map[string]any{"venues": details, "prune": file.Prune})
	if err := uow.Logs().InsertSeedLoad(ctx, &model.SeedLoadModel{
		Path:      filepath.Base(l.path),
		Checksum:  checksum,
		Upserted:  res.Upserted,
		Removed:   res.Removed,
		Details:   detailJSON,
		Timestamp: res.LoadedAt.Unix(),
	}); err != nil {
		return Result{}, err
	}
	if err := uow.Commit(); err != nil {
		return Result{}, err
	}
	committed = true
	l.last = checksum
	logger.Infof("Securities seed loaded %d rows (removed %d) from %s", res.Upserted, res.Removed, filepath.Base(l.path))
	return res, nil
}

func (l *Loader) lastLoaded(ctx context.Context) (string, error) {
	uow, err := l.store.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = uow.Rollback() }()
	prev, ok, err := uow.Logs().LastSeedLoad(ctx, filepath.Base(l.path))
	if err != nil || !ok {
		return "", err
	}
	return prev.Checksum, nil
}

// Watch 监听种子文件变化并重新加载，直到 ctx 结束。
func (l *Loader) Watch(ctx context.Context) error {
	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read seed file failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if _, err := l.Load(ctx); err != nil {
			logger.Errorf("securities seed reload failed: %v", err)
		}
	})
	v.WatchConfig()
	<-ctx.Done()
	return nil
}

// Parse 严格解析种子文件，未知字段报错。
func Parse(raw []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parse seed file failed: %w", err)
	}
	return f, nil
}

// Models 把条目转换为表模型；缺省 trading_enabled 为 true。
func (f File) Models() ([]model.SecurityModel, error) {
	out := make([]model.SecurityModel, 0, len(f.Securities))
	seen := make(map[types.Key]int, len(f.Securities))
	for i, e := range f.Securities {
		key := types.NewKey(e.Symbol, e.Venue)
		if key.Symbol == "" || key.Venue == "" {
			return nil, fmt.Errorf("securities[%d] requires symbol and venue", i)
		}
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("securities[%d] duplicates securities[%d] (%s)", i, prev, key)
		}
		seen[key] = i
		rf, err := convert.ToDecimal(e.RiskFactor)
		if err != nil {
			return nil, fmt.Errorf("securities[%d] %s risk_factor: %w", i, key, err)
		}
		mp, err := convert.ToDecimal(e.MaxPosition)
		if err != nil {
			return nil, fmt.Errorf("securities[%d] %s max_position: %w", i, key, err)
		}
		if rf.IsNegative() || mp.IsNegative() {
			return nil, fmt.Errorf("securities[%d] %s limits must be >= 0", i, key)
		}
		enabled := true
		if e.TradingEnabled != nil {
			enabled = *e.TradingEnabled
		}
		m := model.SecurityModel{
			Symbol:         key.Symbol,
			Venue:          key.Venue,
			TradingEnabled: enabled,
			RiskFactor:     rf,
			MaxPosition:    mp,
			Instrument:     e.Instrument,
			Currency:       e.Currency,
		}
		if len(e.Attributes) > 0 {
			attrs, err := json.Marshal(e.Attributes)
			if err != nil {
				return nil, fmt.Errorf("securities[%d] %s attributes: %w", i, key, err)
			}
			m.Attributes = attrs
		}
		out = append(out, m)
	}
	return out, nil
}

func groupByVenue(rows []model.SecurityModel) map[string][]types.Key {
	out := make(map[string][]types.Key)
	for _, r := range rows {
		out[r.Venue] = append(out[r.Venue], types.NewKey(r.Symbol, r.Venue))
	}
	return out
}
