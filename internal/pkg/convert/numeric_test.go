package convert

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	cases := map[string]struct {
		in   any
		want string
	}{
		"string":  {" 500.25 ", "500.25"},
		"number":  {json.Number("10000"), "10000"},
		"float":   {0.1, "0.1"},
		"int":     {42, "42"},
		"decimal": {decimal.RequireFromString("7.5"), "7.5"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ToDecimal(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestToDecimalRejectsGarbage(t *testing.T) {
	for _, in := range []any{nil, "", "abc", math.NaN(), true} {
		_, err := ToDecimal(in)
		assert.Error(t, err, "%v", in)
	}
	assert.True(t, ToDecimalOr("x", decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3)))
}
