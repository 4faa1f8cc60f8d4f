package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestMirror_StoresOnce(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	store := newFakeObjectStore()
	m := NewMirror(store, Config{Bucket: "media", Prefix: "images", PublicURL: "https://cdn.example.com/"}, srv.Client(), nil)
	src := srv.URL + "/p/lamp.PNG?size=large"

	first, err := m.Store(context.Background(), "shopify-main", src)
	require.NoError(t, err)
	second, err := m.Store(context.Background(), "shopify-main", src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, hits)
	key := m.Key("shopify-main", src)
	assert.Regexp(t, `^images/shopify-main/[0-9a-f]{40}\.png$`, key)
	assert.Equal(t, "https://cdn.example.com/"+key, first)
	assert.Equal(t, first, m.URL("shopify-main", src))

	// a mirrored url is returned as is
	again, err := m.Store(context.Background(), "shopify-main", first)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, first, m.URL("shopify-main", first))
	assert.Equal(t, 1, hits)
	assert.Len(t, store.objects, 1)
	assert.Equal(t, "image/png", store.types[key])
	assert.Equal(t, []byte("png-bytes"), store.objects[key])
}

func TestMirror_DisabledReturnsSource(t *testing.T) {
	m := NewMirror(nil, Config{}, nil, nil)
	got, err := m.Store(context.Background(), "x", "https://img.example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.jpg", got)
	assert.Equal(t, got, m.URL("x", "https://img.example.com/a.jpg"))
	assert.False(t, m.Enabled())
}

func TestMirror_MissingImageIsDataError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m := NewMirror(newFakeObjectStore(), Config{Bucket: "media"}, srv.Client(), nil)
	_, err := m.Store(context.Background(), "x", srv.URL+"/gone.jpg")
	assert.Error(t, err)
}
