// Package stream 把变更流事件解码为订单批次。
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderflow/internal/logger"
	"orderflow/internal/types"

	"github.com/tidwall/gjson"
)

const EventInsert = "INSERT"

// ErrInvalidEnvelope 表示事件整体不符合变更流信封格式。
var ErrInvalidEnvelope = errors.New("invalid stream envelope")

// 记录字段名与变更流表结构一致。
const (
	attrOrderID         = "OrderId"
	attrSymbol          = "Symbol"
	attrVenue           = "Venue"
	attrSide            = "Side"
	attrSize            = "Size"
	attrTransactionTime = "TransactionTime"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05:000",
}

// Decode 校验信封并抽取 INSERT 记录；其他事件类型与字段不全的记录计入 Ignored。
func Decode(raw []byte) (types.Batch, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return types.Batch{}, fmt.Errorf("%w: not valid json", ErrInvalidEnvelope)
	}
	schema, err := compiledEnvelope()
	if err != nil {
		return types.Batch{}, fmt.Errorf("compile envelope schema failed: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return types.Batch{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := schema.Validate(doc); err != nil {
		return types.Batch{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	batch := types.Batch{ReceivedAt: time.Now()}
	gjson.GetBytes(raw, "Records").ForEach(func(idx, rec gjson.Result) bool {
		event := rec.Get("eventName").String()
		eventID := rec.Get("eventID").String()
		if !strings.EqualFold(event, EventInsert) {
			batch.Ignored++
			logger.Debugf("[stream] record %s ignored: event %s is not INSERT", eventID, event)
			return true
		}
		order, err := decodeRecord(rec.Get("dynamodb"))
		if err != nil {
			batch.Ignored++
			logger.Warnf("[stream] record %s skipped: %v", eventID, err)
			return true
		}
		batch.Records = append(batch.Records, order)
		return true
	})
	return batch, nil
}

func decodeRecord(ddb gjson.Result) (types.OrderRecord, error) {
	img := ddb.Get("NewImage")
	keys := ddb.Get("Keys")
	get := func(name string) string {
		if v := attrValue(img, name); v != "" {
			return v
		}
		return attrValue(keys, name)
	}
	rec := types.OrderRecord{
		OrderID: get(attrOrderID),
		Symbol:  get(attrSymbol),
		Venue:   get(attrVenue),
		Size:    get(attrSize),
	}
	if rec.OrderID == "" {
		return types.OrderRecord{}, fmt.Errorf("missing %s", attrOrderID)
	}
	if rec.Symbol == "" || rec.Venue == "" {
		return types.OrderRecord{}, fmt.Errorf("order %s missing %s/%s", rec.OrderID, attrSymbol, attrVenue)
	}
	side, err := types.ParseSide(get(attrSide))
	if err != nil {
		return types.OrderRecord{}, fmt.Errorf("order %s: %w", rec.OrderID, err)
	}
	rec.Side = side
	if ts := get(attrTransactionTime); ts != "" {
		rec.TransactionTime = parseTime(ts)
	}
	return rec, nil
}

// attrValue 读取 {"S": ".."} / {"N": ".."} 形式的属性，也接受裸值。
func attrValue(img gjson.Result, name string) string {
	v := img.Get(name)
	if !v.Exists() {
		return ""
	}
	if v.IsObject() {
		for _, typ := range []string{"S", "N"} {
			if tv := v.Get(typ); tv.Exists() {
				return strings.TrimSpace(tv.String())
			}
		}
		return ""
	}
	return strings.TrimSpace(v.String())
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
