package venue

import (
	"context"
	"strings"
	"testing"
	"time"

	"orderflow/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperFillsOrders(t *testing.T) {
	p := NewPaper(PaperConfig{Balance: decimal.RequireFromString("2500")})
	sess, err := p.Open(context.Background())
	require.NoError(t, err)

	bal, err := sess.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GBP", bal.Currency)
	assert.True(t, bal.Amount.Equal(decimal.RequireFromString("2500")))

	receipt, err := sess.Dispatch(context.Background(), igOrder("3"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receipt.Reference, "PAPER-"))
	require.Len(t, p.Fills(), 1)
	assert.Equal(t, "IN.D.VIX.MONTH2.IP", p.Fills()[0].Epic)
	assert.NoError(t, sess.Close(context.Background()))
}

func TestPaperLatencyRespectsDeadline(t *testing.T) {
	p := NewPaper(PaperConfig{Balance: decimal.NewFromInt(1), Latency: time.Second})
	sess, err := p.Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sess.Dispatch(ctx, igOrder("1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, p.Fills())
}

func TestPaperRejectsBadSize(t *testing.T) {
	sess, err := NewPaper(PaperConfig{}).Open(context.Background())
	require.NoError(t, err)
	_, err = sess.Dispatch(context.Background(), types.ValidatedOrder{OrderRecord: types.OrderRecord{OrderID: "x", Size: "abc"}})
	var de *types.DispatchError
	assert.ErrorAs(t, err, &de)
}
