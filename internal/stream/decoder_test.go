package stream

import (
	"errors"
	"testing"
	"time"

	"orderflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvent = `{
  "Records": [
    {
      "eventID": "1",
      "eventName": "INSERT",
      "dynamodb": {
        "Keys": {"OrderId": {"S": "ord-1"}, "TransactionTime": {"S": "2018-01-12T08:44:15"}},
        "NewImage": {
          "OrderId": {"S": "ord-1"},
          "Symbol": {"S": "VX"},
          "Venue": {"S": "IG"},
          "Side": {"S": "buy"},
          "Size": {"N": "500"},
          "TransactionTime": {"S": "2018-01-12T08:44:15"}
        }
      }
    },
    {
      "eventID": "2",
      "eventName": "MODIFY",
      "dynamodb": {"NewImage": {"OrderId": {"S": "ord-1"}}}
    },
    {
      "eventID": "3",
      "eventName": "INSERT",
      "dynamodb": {
        "Keys": {"OrderId": {"S": "ord-2"}},
        "NewImage": {"Symbol": {"S": "ES"}, "Venue": {"S": "IG"}, "Side": {"S": "SELL"}, "Size": {"S": "abc"}}
      }
    },
    {
      "eventID": "4",
      "eventName": "REMOVE",
      "dynamodb": {"Keys": {"OrderId": {"S": "ord-0"}}}
    }
  ]
}`

func TestDecodeKeepsInsertRecords(t *testing.T) {
	batch, err := Decode([]byte(sampleEvent))
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, 2, batch.Ignored)

	first := batch.Records[0]
	assert.Equal(t, "ord-1", first.OrderID)
	assert.Equal(t, types.SideBuy, first.Side)
	assert.Equal(t, "500", first.Size)
	assert.Equal(t, types.NewKey("VX", "IG"), first.Key())
	assert.Equal(t, time.Date(2018, 1, 12, 8, 44, 15, 0, time.UTC), first.TransactionTime)

	// OrderId 从 Keys 回填；Size 原样保留，由风控归类。
	second := batch.Records[1]
	assert.Equal(t, "ord-2", second.OrderID)
	assert.Equal(t, types.SideSell, second.Side)
	assert.Equal(t, "abc", second.Size)
}

func TestDecodeSkipsMalformedRecords(t *testing.T) {
	raw := `{"Records":[
	  {"eventName":"INSERT","dynamodb":{"NewImage":{"Symbol":{"S":"VX"},"Venue":{"S":"IG"},"Side":{"S":"BUY"}}}},
	  {"eventName":"INSERT","dynamodb":{"NewImage":{"OrderId":{"S":"x"},"Symbol":{"S":"VX"},"Venue":{"S":"IG"},"Side":{"S":"HOLD"}}}},
	  {"eventName":"INSERT","dynamodb":{"NewImage":{"OrderId":{"S":"y"},"Venue":{"S":"IG"},"Side":{"S":"BUY"}}}}
	]}`
	batch, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.Equal(t, 3, batch.Ignored)
}

func TestDecodeEmptyRecords(t *testing.T) {
	batch, err := Decode([]byte(`{"Records": []}`))
	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.Zero(t, batch.Ignored)
}

func TestDecodeAcceptsPlainAttributes(t *testing.T) {
	raw := `{"Records":[{"eventName":"INSERT","dynamodb":{"NewImage":{"OrderId":"p1","Symbol":"VX","Venue":"IG","Side":"SELL","Size":12.5}}}]}`
	batch, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "12.5", batch.Records[0].Size)
}

func TestDecodeRejectsBadEnvelope(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"Records": [`,
		"missing records":  `{"records": []}`,
		"records not list": `{"Records": {}}`,
		"no event name":    `{"Records": [{"eventID": "1"}]}`,
		"empty":            ``,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidEnvelope))
		})
	}
}
