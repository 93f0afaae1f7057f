package record

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("x")
	var _ Value = Int(1)
	var _ Value = NewNumber(decimal.RequireFromString("1.5"))
	var _ Value = Bool(true)
	var _ Value = Array{String("a")}
	var _ Value = Object{"k": String("v")}
}

func TestObjectUnmarshalNumbers(t *testing.T) {
	obj, err := ParseObject([]byte(`{"qty": 3, "price": 19.99, "big": 9007199254740993, "exp": 1e2}`))
	require.NoError(t, err)

	assert.Equal(t, Int(3), obj["qty"])
	assert.Equal(t, Int(9007199254740993), obj["big"], "large ints must not lose precision")

	price, ok := obj["price"].(Number)
	require.True(t, ok, "fractional numbers decode to Number")
	assert.Equal(t, "19.99", price.String())

	exp, ok := obj["exp"].(Number)
	require.True(t, ok)
	assert.True(t, exp.Equal(decimal.NewFromInt(100)))
}

func TestObjectUnmarshalNullAndNested(t *testing.T) {
	obj, err := ParseObject([]byte(`{"receiver_id": null, "items": [{"description": "Paint"}], "flag": true}`))
	require.NoError(t, err)

	assert.Equal(t, Null{}, obj["receiver_id"])
	assert.Equal(t, Bool(true), obj["flag"])

	items, ok := obj["items"].(Array)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "Paint", items[0].(Object).Str("description"))
}

func TestObjectMarshalRoundTrip(t *testing.T) {
	original := Object{
		"id":       String("inv-1"),
		"total":    NewNumber(decimal.RequireFromString("119.00")),
		"quantity": Int(2),
		"paid":     Bool(false),
		"note":     Null{},
		"items":    Array{Object{"description": String("Tiles")}},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := ParseObject(data)
	require.NoError(t, err)

	assert.Equal(t, "inv-1", decoded.ID())
	assert.True(t, decoded.Decimal("total").Equal(decimal.RequireFromString("119")))
	assert.Equal(t, Int(2), decoded["quantity"])
	assert.Equal(t, Null{}, decoded["note"])
}

func TestSortedKeysUTF16Order(t *testing.T) {
	obj := Object{"a": Int(1), "A": Int(2), "aa": Int(3), "AA": Int(4)}
	assert.Equal(t, []string{"A", "AA", "a", "aa"}, obj.SortedKeys())
}

func TestFromAny(t *testing.T) {
	obj, err := ObjectFromMap(map[string]any{
		"name":   "Acme",
		"count":  4,
		"ratio":  0.25,
		"whole":  float64(10),
		"tags":   []string{"a", "b"},
		"nested": map[string]any{"ok": true},
		"none":   nil,
	})
	require.NoError(t, err)

	assert.Equal(t, String("Acme"), obj["name"])
	assert.Equal(t, Int(4), obj["count"])
	assert.Equal(t, Int(10), obj["whole"])
	assert.Equal(t, "0.25", obj["ratio"].(Number).String())
	assert.Equal(t, Array{String("a"), String("b")}, obj["tags"])
	assert.Equal(t, Object{"ok": Bool(true)}, obj["nested"])
	assert.Equal(t, Null{}, obj["none"])

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestToAny(t *testing.T) {
	v := ToAny(Object{"n": Int(1), "s": String("x"), "z": Null{}})
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), m["n"])
	assert.Equal(t, "x", m["s"])
	assert.Nil(t, m["z"])
}
