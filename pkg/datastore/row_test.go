package datastore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tommyfx/storefront/pkg/datastore"
)

func TestRowAccessors(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	r := datastore.Row{
		"s":      "hello",
		"b":      []byte("bytes"),
		"i64":    int64(7),
		"f":      float64(3),
		"frac":   2.5,
		"flag":   int64(1),
		"sflag":  "true",
		"when":   ts,
		"whenS":  "2026-03-04T05:06:07Z",
		"whenDB": "2026-03-04 05:06:07",
		"null":   nil,
	}

	s, ok := r.String("s")
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
	s, _ = r.String("b")
	assert.Equal(t, "bytes", s)
	_, ok = r.String("null")
	assert.False(t, ok)

	n, ok := r.Int("i64")
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	n, ok = r.Int("f")
	assert.True(t, ok, "JSON numbers arrive as float64")
	assert.Equal(t, 3, n)
	_, ok = r.Int("frac")
	assert.False(t, ok)

	b, ok := r.Bool("flag")
	assert.True(t, ok)
	assert.True(t, b)
	b, _ = r.Bool("sflag")
	assert.True(t, b)

	for _, col := range []string{"when", "whenS", "whenDB"} {
		got, ok := r.Time(col)
		assert.True(t, ok, col)
		assert.True(t, ts.Equal(got), col)
	}
	_, ok = r.Time("s")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	assert.True(t, datastore.Equal(true, int64(1)))
	assert.True(t, datastore.Equal(false, int64(0)))
	assert.True(t, datastore.Equal("abc", []byte("abc")))
	assert.True(t, datastore.Equal(float64(4), 4))
	assert.True(t, datastore.Equal(nil, nil))
	assert.False(t, datastore.Equal(nil, "x"))
	assert.False(t, datastore.Equal(true, int64(0)))
}
