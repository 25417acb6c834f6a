package fileproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panbanda/mend/pkg/parser"
)

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func TestMapFiles(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		createTestFile(t, tmpDir, "one.sh", "echo one\n"),
		createTestFile(t, tmpDir, "two.sh", "echo two\n"),
		createTestFile(t, tmpDir, "three.sh", "echo three\n"),
	}

	results := MapFiles(files, func(p *parser.Parser, path string) (string, error) {
		return filepath.Base(path), nil
	})

	if len(results) != len(files) {
		t.Errorf("Expected %d results, got %d", len(files), len(results))
	}

	resultMap := make(map[string]bool)
	for _, r := range results {
		resultMap[r] = true
	}

	for _, expected := range []string{"one.sh", "two.sh", "three.sh"} {
		if !resultMap[expected] {
			t.Errorf("Missing expected result: %s", expected)
		}
	}
}

func TestMapFiles_EmptyFileList(t *testing.T) {
	results := MapFiles([]string{}, func(p *parser.Parser, path string) (string, error) {
		return path, nil
	})

	if results != nil {
		t.Errorf("Expected nil for empty file list, got %v", results)
	}
}

func TestMapFiles_ParserIsUsable(t *testing.T) {
	tmpDir := t.TempDir()
	file := createTestFile(t, tmpDir, "script.py", "x = 1\n")

	results := MapFiles([]string{file}, func(p *parser.Parser, path string) (int, error) {
		source, err := os.ReadFile(path)
		if err != nil {
			return 0, err
		}
		res, err := p.Parse(context.Background(), source, parser.DetectLanguage(path), path)
		if err != nil {
			return 0, err
		}
		return int(res.Tree.RootNode().ChildCount()), nil
	})

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0] == 0 {
		t.Error("Expected parsed tree to have children")
	}
}

func TestMapFilesN_ErrorsSkipped(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		createTestFile(t, tmpDir, "good1.sh", "echo ok\n"),
		createTestFile(t, tmpDir, "bad.sh", "echo bad\n"),
		createTestFile(t, tmpDir, "good2.sh", "echo ok\n"),
	}

	processedCount := atomic.Int32{}
	var errPaths []string
	var mu sync.Mutex

	results := MapFilesN(files, 2, func(p *parser.Parser, path string) (string, error) {
		processedCount.Add(1)
		if filepath.Base(path) == "bad.sh" {
			return "", fmt.Errorf("simulated error")
		}
		return filepath.Base(path), nil
	}, nil, func(path string, err error) {
		mu.Lock()
		errPaths = append(errPaths, path)
		mu.Unlock()
	})

	if int(processedCount.Load()) != 3 {
		t.Errorf("Expected all 3 files to be processed, got %d", processedCount.Load())
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 successful results (errors skipped), got %d", len(results))
	}
	if len(errPaths) != 1 {
		t.Fatalf("Expected 1 error callback, got %d", len(errPaths))
	}
	if filepath.Base(errPaths[0]) != "bad.sh" {
		t.Errorf("Expected error for bad.sh, got %s", errPaths[0])
	}
}

func TestMapFilesN_ProgressCallback(t *testing.T) {
	tmpDir := t.TempDir()

	var files []string
	for i := range 5 {
		files = append(files, createTestFile(t, tmpDir, fmt.Sprintf("f%d.sh", i), "echo hi\n"))
	}

	ticks := atomic.Int32{}
	MapFilesN(files, 3, func(p *parser.Parser, path string) (struct{}, error) {
		return struct{}{}, nil
	}, func() {
		ticks.Add(1)
	}, nil)

	if int(ticks.Load()) != len(files) {
		t.Errorf("Expected %d progress ticks, got %d", len(files), ticks.Load())
	}
}

func TestMapFilesN_WorkerBound(t *testing.T) {
	tmpDir := t.TempDir()

	var files []string
	for i := range 20 {
		files = append(files, createTestFile(t, tmpDir, fmt.Sprintf("f%d.sh", i), "echo hi\n"))
	}

	var active, peak atomic.Int32
	MapFilesN(files, 4, func(p *parser.Parser, path string) (struct{}, error) {
		cur := active.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return struct{}{}, nil
	}, nil, nil)

	if peak.Load() > 4 {
		t.Errorf("Expected at most 4 concurrent workers, observed %d", peak.Load())
	}
}

func TestMapFilesWithContext(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		createTestFile(t, tmpDir, "a.sh", "echo a\n"),
		createTestFile(t, tmpDir, "b.sh", "echo b\n"),
	}

	results, errs := MapFilesWithContext(context.Background(), files, func(ctx context.Context, p *parser.Parser, path string) (string, error) {
		return filepath.Base(path), nil
	})

	if errs != nil {
		t.Errorf("Unexpected errors: %v", errs)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

func TestMapFilesWithContext_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()

	var files []string
	for i := range 10 {
		files = append(files, createTestFile(t, tmpDir, fmt.Sprintf("f%d.sh", i), "echo hi\n"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, errs := MapFilesWithContext(ctx, files, func(ctx context.Context, p *parser.Parser, path string) (string, error) {
		return filepath.Base(path), nil
	})

	if errs == nil {
		t.Fatal("Expected context errors")
	}
	if len(results)+len(errs.Errors) != len(files) {
		t.Errorf("Expected every file accounted for, got %d results + %d errors", len(results), len(errs.Errors))
	}
}

func TestProcessingErrors(t *testing.T) {
	errs := &ProcessingErrors{}

	if errs.HasErrors() {
		t.Error("Expected no errors initially")
	}

	errs.Add("a.sh", fmt.Errorf("first"))
	if !errs.HasErrors() {
		t.Error("Expected HasErrors after Add")
	}
	if errs.Error() != "a.sh: first" {
		t.Errorf("Unexpected single-error message: %s", errs.Error())
	}

	errs.Add("b.sh", fmt.Errorf("second"))
	want := "2 files failed to process (first: a.sh: first)"
	if errs.Error() != want {
		t.Errorf("Expected %q, got %q", want, errs.Error())
	}
}
