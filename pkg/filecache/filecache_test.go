package filecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/pkg/clock"
)

func TestStore_TTLBoundary(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	store := New(t.TempDir(), clk).Namespace("my-shop")
	ttl := time.Hour

	require.NoError(t, store.PutRaw("ASIN_B000.json", []byte(`{"asin":"B000"}`)))

	clk.Set(start.Add(ttl - time.Second))
	data, ok, err := store.GetRaw("ASIN_B000.json", ttl)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"asin":"B000"}`, string(data))

	clk.Set(start.Add(ttl + time.Second))
	_, ok, err = store.GetRaw("ASIN_B000.json", ttl)
	require.NoError(t, err)
	assert.False(t, ok)

	// без TTL запись не устаревает
	_, ok, err = store.GetRaw("ASIN_B000.json", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_MissingIsAbsent(t *testing.T) {
	store := New(t.TempDir(), clock.NewFake(time.Now())).Namespace("empty")

	data, ok, err := store.GetRaw("nothing.json", DefaultTTL)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	var listings map[string]interface{}
	ok, err = store.GetListings(DefaultTTL, &listings)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ListingsRoundTripAndLayout(t *testing.T) {
	root := t.TempDir()
	store := New(root, clock.NewFake(time.Now())).Namespace("Bol NL/BE")

	in := map[string][]string{"8712345678901": {"offer-1"}}
	require.NoError(t, store.PutListings(in))

	var out map[string][]string
	ok, err := store.GetListings(DefaultTTL, &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, err = os.Stat(filepath.Join(root, "Bol+NL%2FBE", ListingsKey))
	assert.NoError(t, err)
}

func TestStore_SubAndAppend(t *testing.T) {
	store := New(t.TempDir(), clock.NewFake(time.Now())).Namespace("shop")
	audit := store.Sub("SetPrice")

	require.NoError(t, audit.Append("log.json", []byte("a\n")))
	require.NoError(t, audit.Append("log.json", []byte("b\n")))

	data, ok, err := audit.GetRaw("log.json", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a\nb\n", string(data))
	assert.Equal(t, filepath.Join(store.Dir(), "SetPrice"), audit.Dir())
	assert.Equal(t, filepath.Join(audit.Dir(), "x_y.json"), audit.Path("x/y.json"))
}
