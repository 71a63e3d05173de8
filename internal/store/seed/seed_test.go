package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"orderflow/internal/store/sqlite"
	"orderflow/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
prune: true
securities:
  - symbol: VX
    venue: IG
    risk_factor: 0.1
    max_position: "1000"
    instrument: IX.D.VIX.DAILY.IP
    currency: gbp
    attributes:
      expiry: DFB
  - symbol: ES
    venue: ig
    trading_enabled: false
    risk_factor: "0.25"
    max_position: 50
`

func setup(t *testing.T, body string) (*Loader, *sqlite.SqliteStore, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := sqlite.NewSqliteStore(filepath.Join(dir, "ref.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	path := filepath.Join(dir, "securities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	l, err := NewLoader(path, st)
	require.NoError(t, err)
	return l, st, path
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("securities:\n  - symbol: VX\n    venue: IG\n    leverage: 5\n"))
	assert.Error(t, err)
}

func TestModelsValidation(t *testing.T) {
	cases := map[string]string{
		"missing venue":  "securities:\n  - symbol: VX\n    risk_factor: 1\n    max_position: 1\n",
		"bad decimal":    "securities:\n  - symbol: VX\n    venue: IG\n    risk_factor: lots\n    max_position: 1\n",
		"negative limit": "securities:\n  - symbol: VX\n    venue: IG\n    risk_factor: 0.1\n    max_position: -1\n",
		"duplicate key":  "securities:\n  - {symbol: VX, venue: IG, risk_factor: 1, max_position: 1}\n  - {symbol: vx, venue: ig, risk_factor: 1, max_position: 1}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(body))
			require.NoError(t, err)
			_, err = f.Models()
			assert.Error(t, err)
		})
	}
}

func TestLoadWritesSecurities(t *testing.T) {
	ctx := context.Background()
	l, st, _ := setup(t, sampleSeed)

	res, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.False(t, res.Skipped)

	rows, err := st.Query(ctx, []types.Key{types.NewKey("VX", "IG"), types.NewKey("ES", "IG")})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byKey := map[types.Key]types.SecurityDefinition{}
	for _, r := range rows {
		byKey[r.Key()] = r
	}
	vx := byKey[types.NewKey("VX", "IG")]
	assert.True(t, vx.TradingEnabled)
	assert.True(t, vx.RiskFactor.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, "IX.D.VIX.DAILY.IP", vx.Instrument)
	assert.Equal(t, "GBP", vx.Currency)
	assert.False(t, byKey[types.NewKey("ES", "IG")].TradingEnabled)

	again, err := l.Load(ctx)
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	logs, err := st.Logs().ListSeedLoads(ctx, "securities.yaml", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestLoadPrunesRemovedRows(t *testing.T) {
	ctx := context.Background()
	l, st, path := setup(t, sampleSeed)
	_, err := l.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("prune: true\nsecurities:\n  - {symbol: VX, venue: IG, risk_factor: 0.2, max_position: 10}\n"), 0o644))
	res, err := l.Load(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Removed)

	rows, err := st.Securities().List(ctx, "IG")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "VX", rows[0].Symbol)
	assert.True(t, rows[0].RiskFactor.Equal(decimal.RequireFromString("0.2")))
}

func TestLoadInvalidFileLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	l, st, path := setup(t, sampleSeed)
	_, err := l.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("securities:\n  - {symbol: VX, venue: IG, risk_factor: nope, max_position: 1}\n"), 0o644))
	_, err = l.Load(ctx)
	require.Error(t, err)

	rows, err := st.Securities().List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestNewLoaderRequiresArgs(t *testing.T) {
	_, err := NewLoader("", nil)
	assert.Error(t, err)
	_, err = NewLoader("x.yaml", nil)
	assert.Error(t, err)
}

func TestLoadSkipsUnchangedFileAfterRestart(t *testing.T) {
	ctx := context.Background()
	l, st, path := setup(t, sampleSeed)
	_, err := l.Load(ctx)
	require.NoError(t, err)

	restarted, err := NewLoader(path, st)
	require.NoError(t, err)
	res, err := restarted.Load(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	require.NoError(t, os.WriteFile(path, []byte("securities:\n  - {symbol: VX, venue: IG, risk_factor: 0.3, max_position: 10}\n"), 0o644))
	res, err = restarted.Load(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	logs, err := st.Logs().ListSeedLoads(ctx, "securities.yaml", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
