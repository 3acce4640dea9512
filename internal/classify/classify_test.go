package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Brownie44l1/pulmoscan-api/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var labels = []string{"Lung_Opacity", "Normal", "Viral Pneumonia"}

type fakeBackend struct {
	mu      sync.Mutex
	paths   []string
	content map[string][]byte
	result  model.Result
	err     error
	delay   time.Duration
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) PredictFile(ctx context.Context, path string) (model.Result, error) {
	data, readErr := os.ReadFile(path)
	b.mu.Lock()
	b.paths = append(b.paths, path)
	if b.content == nil {
		b.content = map[string][]byte{}
	}
	b.content[path] = data
	b.mu.Unlock()
	if readErr != nil {
		return model.Result{}, readErr
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return model.Result{}, ctx.Err()
		}
	}
	if b.err != nil {
		return model.Result{}, b.err
	}
	return b.result, nil
}

func (b *fakeBackend) Close() error { return nil }

func newClassifier(t *testing.T, backend model.Backend, timeout time.Duration) *FileClassifier {
	t.Helper()
	c, err := NewFileClassifier(backend, Config{TempDir: t.TempDir(), Timeout: timeout})
	require.NoError(t, err)
	return c
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClassifyRoundsAndCleansUp(t *testing.T) {
	backend := &fakeBackend{result: model.Result{ClassID: 1, Label: "Normal", Confidence: 0.987654, NumClasses: len(labels)}}
	c := newClassifier(t, backend, 0)

	got, err := c.Classify(context.Background(), Upload{Filename: "xray.png", Data: []byte("pixels")})
	require.NoError(t, err)
	assert.Equal(t, Prediction{PredictedClass: "Normal", ClassID: 1, Confidence: 0.9877}, got)

	require.Len(t, backend.paths, 1)
	path := backend.paths[0]
	assert.Equal(t, c.TempDir(), filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "temp_"))
	assert.Equal(t, ".png", filepath.Ext(path))
	assert.Equal(t, []byte("pixels"), backend.content[path])
	assert.NoFileExists(t, path)
	assertEmptyDir(t, c.TempDir())
}

func TestClassifyRemovesFileOnFailure(t *testing.T) {
	backend := &fakeBackend{err: model.ErrInvalidImage}
	c := newClassifier(t, backend, 0)

	_, err := c.Classify(context.Background(), Upload{Filename: "notes.txt", Data: []byte("hello")})
	assert.ErrorIs(t, err, model.ErrInvalidImage)
	assertEmptyDir(t, c.TempDir())
}

func TestClassifyRejectsUnknownClass(t *testing.T) {
	backend := &fakeBackend{result: model.Result{ClassID: 3, Label: "?", Confidence: 0.5, NumClasses: 3}}
	c := newClassifier(t, backend, 0)

	_, err := c.Classify(context.Background(), Upload{Filename: "a.jpg", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestClassifyTimeout(t *testing.T) {
	backend := &fakeBackend{delay: time.Second, result: model.Result{Label: "Normal", NumClasses: 3}}
	c := newClassifier(t, backend, 20*time.Millisecond)

	_, err := c.Classify(context.Background(), Upload{Filename: "a.jpg", Data: []byte("x")})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assertEmptyDir(t, c.TempDir())
}

func TestClassifyConcurrentUploadsDoNotCollide(t *testing.T) {
	backend := &fakeBackend{
		delay:  5 * time.Millisecond,
		result: model.Result{ClassID: 0, Label: "Lung_Opacity", Confidence: 0.5, NumClasses: 3},
	}
	c := newClassifier(t, backend, 0)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Classify(context.Background(), Upload{
				Filename: "same.jpg",
				Data:     []byte{byte(i)},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, p := range backend.paths {
		assert.False(t, seen[p], "duplicate temp name %s", p)
		seen[p] = true
		assert.Len(t, backend.content[p], 1)
	}
	assert.Len(t, seen, n)
	assertEmptyDir(t, c.TempDir())
}

func TestTempName(t *testing.T) {
	assert.Regexp(t, `^temp_[0-9a-f]{32}\.jpg$`, tempName(""))
	assert.Regexp(t, `^temp_[0-9a-f]{32}\.jpeg$`, tempName("../../X.JPEG"))
	assert.Regexp(t, `^temp_[0-9a-f]{32}\.jpg$`, tempName("weird.extension-too-long"))
	assert.Regexp(t, `^temp_[0-9a-f]{32}\.jpg$`, tempName("scan."))
	assert.Regexp(t, `^temp_[0-9a-f]{32}\.jpg$`, tempName("x.txt"))
	assert.Regexp(t, `^temp_[0-9a-f]{32}\.webp$`, tempName("chest.WebP"))
	assert.NotEqual(t, tempName("a.png"), tempName("a.png"))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, Round4(0.12346))
	assert.Equal(t, 1.0, Round4(0.99999))
	assert.Equal(t, 0.0, Round4(0))
}

func TestNewFileClassifierNilBackend(t *testing.T) {
	_, err := NewFileClassifier(nil, Config{})
	assert.Error(t, err)
}
