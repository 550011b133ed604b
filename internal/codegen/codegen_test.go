package codegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var productTemplate = Template{Prefix: "PROD-", Width: 4, Separator: "-", SuffixLen: 2}

// memorySource keeps codes in insertion order, like an auto-increment table.
type memorySource struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (m *memorySource) LastCode(_ context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	for i := len(m.codes) - 1; i >= 0; i-- {
		if strings.HasPrefix(m.codes[i], prefix) {
			return m.codes[i], nil
		}
	}
	return "", nil
}

func (m *memorySource) Exists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySource) insert(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c == code {
			return fmt.Errorf("duplicate code %s", code)
		}
	}
	m.codes = append(m.codes, code)
	return nil
}

func TestTemplate(t *testing.T) {
	sale := Template{Prefix: "4050", Width: 5}

	assert.Equal(t, "405000001", sale.Format(1))
	assert.Equal(t, "PROD-0042", productTemplate.Format(42))

	n, ok := productTemplate.Sequence("PROD-0042-X7")
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	n, ok = sale.Sequence("405000017")
	assert.True(t, ok)
	assert.Equal(t, 17, n)

	_, ok = sale.Sequence("404800017")
	assert.False(t, ok, "codes from another prefix do not count")

	_, ok = productTemplate.Sequence("PROD-abc")
	assert.False(t, ok)
}

func TestNext_Sequential(t *testing.T) {
	src := &memorySource{}
	g := New(nil)

	code, err := g.Next(context.Background(), productTemplate, src)
	require.NoError(t, err)
	assert.Equal(t, "PROD-0001", code)

	require.NoError(t, src.insert(code))
	code, err = g.Next(context.Background(), productTemplate, src)
	require.NoError(t, err)
	assert.Equal(t, "PROD-0002", code)
}

func TestNext_CollisionFallsBackToSuffix(t *testing.T) {
	// PROD-0002 was created by hand before the last generated code.
	src := &memorySource{codes: []string{"PROD-0002", "PROD-0001"}}
	g := New(nil, WithSuffixFunc(func(n int) string { return strings.Repeat("Z", n) }))

	code, err := g.Next(context.Background(), productTemplate, src)
	require.NoError(t, err)
	assert.Equal(t, "PROD-0002-ZZ", code)
}

func TestNext_Exhausted(t *testing.T) {
	src := &memorySource{codes: []string{"PROD-0002-ZZ", "PROD-0002", "PROD-0001"}}
	g := New(nil, WithMaxAttempts(3), WithSuffixFunc(func(n int) string { return "ZZ" }))

	_, err := g.Next(context.Background(), productTemplate, src)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestNext_SourceError(t *testing.T) {
	boom := errors.New("db down")
	_, err := New(nil).Next(context.Background(), productTemplate, &memorySource{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestRandomSuffix(t *testing.T) {
	s := randomSuffix(2)
	require.Len(t, s, 2)
	for _, r := range s {
		assert.Contains(t, suffixAlphabet, string(r))
	}
}

func TestDo_ConcurrentCodesAreDistinct(t *testing.T) {
	const workers = 50
	src := &memorySource{}
	g := New(NewLocalLocker())

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- g.Do(context.Background(), productTemplate.Prefix, func(ctx context.Context) error {
				code, err := g.Next(ctx, productTemplate, src)
				if err != nil {
					return err
				}
				return src.insert(code)
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	codes := append([]string(nil), src.codes...)
	sort.Strings(codes)
	require.Len(t, codes, workers)
	assert.Equal(t, "PROD-0001", codes[0])
	assert.Equal(t, fmt.Sprintf("PROD-%04d", workers), codes[workers-1])
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err, "keys are independent")
	other()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLocker(client, time.Second, zaptest.NewLogger(t))
	key := "codegen-test:" + t.Name()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock2()
}
