package astcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
)

func countingParse(calls *atomic.Int32, delay time.Duration) ParseFunc {
	return func(ctx context.Context, unit models.SourceUnit) (*parser.Result, error) {
		calls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return &parser.Result{Path: unit.Path, Source: []byte(unit.Text)}, nil
	}
}

func TestGetOrParseCachesByHash(t *testing.T) {
	cache := New(16, time.Minute)
	var calls atomic.Int32
	parse := countingParse(&calls, 0)
	unit := models.NewSourceUnit("a.sh", []byte("echo a\n"))

	res, hit, err := cache.GetOrParse(context.Background(), unit, parse)
	if err != nil {
		t.Fatalf("GetOrParse failed: %v", err)
	}
	if hit {
		t.Error("first lookup should miss")
	}
	if res == nil {
		t.Fatal("expected a result")
	}

	res2, hit, err := cache.GetOrParse(context.Background(), unit, parse)
	if err != nil {
		t.Fatalf("GetOrParse failed: %v", err)
	}
	if !hit {
		t.Error("second lookup should hit")
	}
	if res2 != res {
		t.Error("hit should return the same result")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("parser invoked %d times, want exactly 1", got)
	}

	// Same content under a different path shares the entry.
	renamed := models.NewSourceUnit("b.sh", []byte("echo a\n"))
	_, hit, _ = cache.GetOrParse(context.Background(), renamed, parse)
	if !hit {
		t.Error("identical content should hit regardless of path")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("parser invoked %d times, want exactly 1", got)
	}
}

func TestGetOrParseDistinctContent(t *testing.T) {
	cache := New(16, time.Minute)
	var calls atomic.Int32
	parse := countingParse(&calls, 0)

	cache.GetOrParse(context.Background(), models.NewSourceUnit("a.sh", []byte("echo a\n")), parse)
	cache.GetOrParse(context.Background(), models.NewSourceUnit("a.sh", []byte("echo b\n")), parse)

	if got := calls.Load(); got != 2 {
		t.Errorf("parser invoked %d times, want 2", got)
	}
	if cache.Len() != 2 {
		t.Errorf("cache holds %d entries, want 2", cache.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	cache := New(2, time.Minute)
	var calls atomic.Int32
	parse := countingParse(&calls, 0)

	first := models.NewSourceUnit("1.sh", []byte("echo 1\n"))
	second := models.NewSourceUnit("2.sh", []byte("echo 2\n"))
	third := models.NewSourceUnit("3.sh", []byte("echo 3\n"))

	cache.GetOrParse(context.Background(), first, parse)
	cache.GetOrParse(context.Background(), second, parse)

	// Touch first so second becomes the LRU victim.
	if _, hit, _ := cache.GetOrParse(context.Background(), first, parse); !hit {
		t.Fatal("expected hit on first")
	}

	cache.GetOrParse(context.Background(), third, parse)
	if cache.Len() != 2 {
		t.Fatalf("cache holds %d entries, want 2", cache.Len())
	}

	if _, hit, _ := cache.GetOrParse(context.Background(), second, parse); hit {
		t.Error("LRU entry should have been evicted")
	}
	if _, hit, _ := cache.GetOrParse(context.Background(), first, parse); !hit {
		t.Error("recently used entry should survive eviction")
	}

	stats := cache.Stats()
	if stats.Evictions == 0 {
		t.Error("expected at least one eviction")
	}
}

func TestTTLExpiry(t *testing.T) {
	cache := New(16, 20*time.Millisecond)
	var calls atomic.Int32
	parse := countingParse(&calls, 0)
	unit := models.NewSourceUnit("a.sh", []byte("echo a\n"))

	cache.GetOrParse(context.Background(), unit, parse)
	time.Sleep(30 * time.Millisecond)

	_, hit, err := cache.GetOrParse(context.Background(), unit, parse)
	if err != nil {
		t.Fatalf("GetOrParse failed: %v", err)
	}
	if hit {
		t.Error("expired entry should not hit")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("parser invoked %d times, want 2", got)
	}
}

func TestConcurrentSameHashParsesOnce(t *testing.T) {
	cache := New(16, time.Minute)
	var calls atomic.Int32
	parse := countingParse(&calls, 10*time.Millisecond)
	unit := models.NewSourceUnit("a.sh", []byte("echo a\n"))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := cache.GetOrParse(context.Background(), unit, parse); err != nil {
				t.Errorf("GetOrParse failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("parser invoked %d times under concurrency, want exactly 1", got)
	}
}

func TestDisabledCache(t *testing.T) {
	cache := New(0, time.Minute)
	var calls atomic.Int32
	parse := countingParse(&calls, 0)
	unit := models.NewSourceUnit("a.sh", []byte("echo a\n"))

	cache.GetOrParse(context.Background(), unit, parse)
	cache.GetOrParse(context.Background(), unit, parse)

	if got := calls.Load(); got != 2 {
		t.Errorf("disabled cache should parse every time, got %d calls", got)
	}
	if cache.Len() != 0 {
		t.Errorf("disabled cache should store nothing, holds %d", cache.Len())
	}
}

func TestInvalidate(t *testing.T) {
	cache := New(16, time.Minute)
	var calls atomic.Int32
	parse := countingParse(&calls, 0)
	unit := models.NewSourceUnit("a.sh", []byte("echo a\n"))

	cache.GetOrParse(context.Background(), unit, parse)
	cache.Invalidate(unit.Hash)

	if _, hit, _ := cache.GetOrParse(context.Background(), unit, parse); hit {
		t.Error("invalidated entry should not hit")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("parser invoked %d times, want 2", got)
	}
}

func TestParseErrorNotCached(t *testing.T) {
	cache := New(16, time.Minute)
	var calls atomic.Int32
	wantErr := errors.New("read failed")
	parse := func(ctx context.Context, unit models.SourceUnit) (*parser.Result, error) {
		calls.Add(1)
		return nil, wantErr
	}
	unit := models.NewSourceUnit("a.sh", []byte("echo a\n"))

	if _, _, err := cache.GetOrParse(context.Background(), unit, parse); !errors.Is(err, wantErr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if _, _, err := cache.GetOrParse(context.Background(), unit, parse); !errors.Is(err, wantErr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("failed parses must not be cached, got %d calls", got)
	}
	if cache.Len() != 0 {
		t.Errorf("cache should be empty after failures, holds %d", cache.Len())
	}
}

func TestClear(t *testing.T) {
	cache := New(16, time.Minute)
	var calls atomic.Int32
	parse := countingParse(&calls, 0)

	cache.GetOrParse(context.Background(), models.NewSourceUnit("a.sh", []byte("echo a\n")), parse)
	cache.GetOrParse(context.Background(), models.NewSourceUnit("b.sh", []byte("echo b\n")), parse)
	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("cache holds %d entries after Clear, want 0", cache.Len())
	}
}
