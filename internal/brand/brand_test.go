package brand

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeResolver struct {
	answer string
	err    error
	calls  int
}

func (f *fakeResolver) InferBrand(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.answer, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPatternMatcherListOrder(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"FENDER STRATOCASTER", "FENDER"},
		{"fender strat", "FENDER"},
		// FENDER precedes SQUIER in the list, whatever the word order.
		{"SQUIER BY FENDER", "FENDER"},
		// MESA is listed before MESA BOOGIE.
		{"MESA BOOGIE RECTIFIER", "MESA"},
		{"D'ADDARIO EXL110 STRINGS", "D'ADDARIO"},
		{"LINE 6 POD", "LINE 6"},
	}

	for _, tt := range tests {
		got, ok := defaultMatcher.Match(tt.description)
		if !ok || got != tt.want {
			t.Errorf("Match(%q) = %q, %v; want %q", tt.description, got, ok, tt.want)
		}
	}

	if got, ok := defaultMatcher.Match("BLUEBERRY JAM"); ok {
		t.Errorf("Match matched partial word: %q", got)
	}
}

func TestPatternMatcherCustomOrder(t *testing.T) {
	m := NewPatternMatcher([]string{"MESA BOOGIE", "MESA"})
	if got, _ := m.Match("MESA BOOGIE RECTIFIER"); got != "MESA BOOGIE" {
		t.Errorf("got %q, want MESA BOOGIE", got)
	}
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"USED WIDGETCO AMP", "WIDGETCO"},
		{"vintage acme standard", "ACME"},
		{"O'NEILL-X HORN", "O'NEILL-X"},
		{"NEW $$$ FOO", "FOO"},
		{"NEW $$$ DELUXE", "$$$"},
		{"THE xx ok", Unknown},
		{"BROKEN USED", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		if got := Heuristic(tt.description); got != tt.want {
			t.Errorf("Heuristic(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}

func TestCleanRemoteAnswer(t *testing.T) {
	tests := []struct {
		answer string
		want   string
		ok     bool
	}{
		{`  "Gibson" `, "GIBSON", true},
		{"mesa boogie", "MESA BOOGIE", true},
		{"unknown", "", false},
		{"'UNKNOWN'", "", false},
		{"   ", "", false},
		{strings.Repeat("A", MaxRemoteBrandLen-1), strings.Repeat("A", MaxRemoteBrandLen-1), true},
		{strings.Repeat("A", MaxRemoteBrandLen), "", false},
	}

	for _, tt := range tests {
		got, ok := CleanRemoteAnswer(tt.answer)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CleanRemoteAnswer(%q) = %q, %v; want %q, %v", tt.answer, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractorCacheShortCircuits(t *testing.T) {
	remote := &fakeResolver{answer: "Gibson"}
	e := NewExtractor(NewMemoryStore(), remote, quietLogger())
	ctx := context.Background()

	first := e.Resolve(ctx, "gibson les paul")
	if first.Brand != "GIBSON" || first.Source != SourceRemote {
		t.Fatalf("first = %+v, want GIBSON from remote", first)
	}

	second := e.Resolve(ctx, "  GIBSON LES PAUL ")
	if second.Brand != "GIBSON" || second.Source != SourceCache {
		t.Fatalf("second = %+v, want GIBSON from cache", second)
	}
	if remote.calls != 1 {
		t.Errorf("remote called %d times, want 1", remote.calls)
	}
}

func TestExtractorCacheHitVerbatim(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put("FENDER STRAT", "custom brand"); err != nil {
		t.Fatal(err)
	}
	e := NewExtractor(store, nil, quietLogger())

	if got := e.Extract(context.Background(), "fender strat"); got != "custom brand" {
		t.Errorf("Extract = %q, want cached value verbatim", got)
	}
}

func TestExtractorRemoteFallsThrough(t *testing.T) {
	tests := []struct {
		name   string
		remote *fakeResolver
	}{
		{"sentinel", &fakeResolver{answer: "UNKNOWN"}},
		{"too long", &fakeResolver{answer: strings.Repeat("X", 80)}},
		{"error", &fakeResolver{err: errors.New("timeout")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(nil, tt.remote, quietLogger())
			got := e.Resolve(context.Background(), "FENDER STRATOCASTER")
			if got.Brand != "FENDER" || got.Source != SourcePattern {
				t.Errorf("Resolve = %+v, want FENDER from pattern", got)
			}
		})
	}
}

func TestExtractorEmptyDescription(t *testing.T) {
	remote := &fakeResolver{answer: "FENDER"}
	store := NewMemoryStore()
	e := NewExtractor(store, remote, quietLogger())

	got := e.Resolve(context.Background(), "")
	if got.Brand != Unknown {
		t.Errorf("Brand = %q, want %q", got.Brand, Unknown)
	}
	if remote.calls != 0 || store.Len() != 0 {
		t.Errorf("empty description touched remote (%d) or cache (%d)", remote.calls, store.Len())
	}
}

func TestExtractorCachesUnknown(t *testing.T) {
	store := NewMemoryStore()
	e := NewExtractor(store, nil, quietLogger())

	if got := e.Resolve(context.Background(), "xx yy"); got.Source != SourceUnknown {
		t.Fatalf("Source = %q, want unknown", got.Source)
	}
	if b, ok, _ := store.Get("XX YY"); !ok || b != Unknown {
		t.Errorf("cache entry = %q, %v; want %q", b, ok, Unknown)
	}
}

func TestJSONFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "brands.json")

	store, err := OpenJSONFileStore(path, quietLogger())
	if err != nil {
		t.Fatalf("OpenJSONFileStore: %v", err)
	}
	e := NewExtractor(store, nil, quietLogger())
	e.Extract(context.Background(), "Gibson Les Paul")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	var onDisk map[string]string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("cache file is not JSON: %v", err)
	}
	if onDisk["GIBSON LES PAUL"] != "GIBSON" {
		t.Errorf("on disk = %v", onDisk)
	}

	reopened, err := OpenJSONFileStore(path, quietLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if b, ok, _ := reopened.Get("GIBSON LES PAUL"); !ok || b != "GIBSON" {
		t.Errorf("reopened Get = %q, %v", b, ok)
	}
}

func TestJSONFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brands.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	store, err := OpenJSONFileStore(path, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("OpenJSONFileStore: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
	if !strings.Contains(logs.String(), "brand.cache.corrupt") {
		t.Errorf("corrupt cache not logged:\n%s", logs.String())
	}

	backup, err := os.ReadFile(path + CorruptSuffix)
	if err != nil {
		t.Fatalf("corrupt cache not kept aside: %v", err)
	}
	if string(backup) != "{not json" {
		t.Errorf("backup = %q", backup)
	}

	if err := store.Put("K", "V"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if backup, _ := os.ReadFile(path + CorruptSuffix); string(backup) != "{not json" {
		t.Errorf("Put overwrote the backup: %q", backup)
	}
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f failingStore) Get(string) (string, bool, error) { return "", false, f.err }

func TestExtractorCacheReadFailureStillResolves(t *testing.T) {
	var logs bytes.Buffer
	store := failingStore{MemoryStore: NewMemoryStore(), err: errors.New("disk gone")}
	e := NewExtractor(store, nil, slog.New(slog.NewTextHandler(&logs, nil)))

	got := e.Resolve(context.Background(), "Fender Stratocaster")
	if got.Brand != "FENDER" || got.Source != SourcePattern {
		t.Errorf("Resolve = %+v", got)
	}
	if !strings.Contains(logs.String(), "brand.cache.read_failed") || !strings.Contains(logs.String(), "disk gone") {
		t.Errorf("read failure not logged:\n%s", logs.String())
	}
}

func TestPebbleStoreClosedIsNotAMiss(t *testing.T) {
	store, err := OpenPebbleStore(filepath.Join(t.TempDir(), "brands.db"))
	if err != nil {
		t.Fatalf("OpenPebbleStore: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := store.Get("FENDER STRAT"); err == nil || ok {
		t.Errorf("Get on closed store: ok=%v err=%v", ok, err)
	}
	if err := store.Put("FENDER STRAT", "FENDER"); err == nil {
		t.Error("Put on closed store succeeded")
	}
}

func TestPebbleStorePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "brands.db")

	store, err := OpenPebbleStore(dir)
	if err != nil {
		t.Fatalf("OpenPebbleStore: %v", err)
	}
	if err := store.Put("FENDER STRAT", "FENDER"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = OpenPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	if b, ok, err := store.Get("FENDER STRAT"); err != nil || !ok || b != "FENDER" {
		t.Errorf("Get = %q, %v, %v", b, ok, err)
	}
	if _, ok, err := store.Get("MISSING"); ok || err != nil {
		t.Errorf("missing key: ok=%v err=%v", ok, err)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	js, err := Open(BackendJSON, filepath.Join(dir, "brands.json"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := js.(*JSONFileStore); !ok {
		t.Errorf("json backend = %T", js)
	}

	pb, err := Open(BackendPebble, filepath.Join(dir, "brands.db"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer pb.Close()
	if _, ok := pb.(*PebbleStore); !ok {
		t.Errorf("pebble backend = %T", pb)
	}

	if _, err := Open("redis", dir, quietLogger()); err == nil {
		t.Error("unknown backend accepted")
	}
}
