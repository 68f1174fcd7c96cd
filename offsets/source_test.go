package offsets_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"memsync/offsets"

	"github.com/go-test/deep"
)

const dumperJSON = `{
  "timestamp": "2025-01-01 00:00:00",
  "libclient.so": {"dwLocalPlayerController": 1234, "dwEntityList": 99},
  "libengine2.so": {"dwNetworkGameClient": 4096, "dwNetworkGameClient_deltaTick": 344}
}`

func TestParseSymbolTable(t *testing.T) {
	table, err := offsets.ParseSymbolTable([]byte(dumperJSON))
	if err != nil {
		t.Fatal(err)
	}
	want := offsets.SymbolTable{
		"libclient.so":  {"dwLocalPlayerController": 1234, "dwEntityList": 99},
		"libengine2.so": {"dwNetworkGameClient": 4096, "dwNetworkGameClient_deltaTick": 344},
	}
	if diff := deep.Equal(want, table); diff != nil {
		t.Fatal(diff)
	}

	for _, bad := range []string{"", "[]", `{"timestamp": "x"}`, "{"} {
		if _, err := offsets.ParseSymbolTable([]byte(bad)); err == nil {
			t.Errorf("%q parsed", bad)
		}
	}
}

func TestSymbolTableLookupOrder(t *testing.T) {
	table := offsets.SymbolTable{
		"engine2.dll":   {"a": 1, "b": 2},
		"libengine2.so": {"b": 3},
	}

	tests := []struct {
		modules, symbols []string
		want             uint64
	}{
		{[]string{"libengine2.so", "engine2.dll"}, []string{"a", "b"}, 3},
		{[]string{"engine2.dll", "libengine2.so"}, []string{"b", "a"}, 2},
		{[]string{"missing", "engine2.dll"}, []string{"a"}, 1},
	}
	for _, tt := range tests {
		got, err := table.Lookup(tt.modules, tt.symbols)
		if err != nil {
			t.Errorf("%v %v: %v", tt.modules, tt.symbols, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v %v: got %d, want %d", tt.modules, tt.symbols, got, tt.want)
		}
	}

	if _, err := table.Lookup([]string{"libengine2.so"}, []string{"a"}); !errors.Is(err, offsets.ErrSymbolMissing) {
		t.Errorf("got %v, want ErrSymbolMissing", err)
	}
}

type mirror struct {
	*httptest.Server
	hits atomic.Int32
}

func newMirror(t *testing.T, status int, body string) *mirror {
	m := &mirror{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(m.Close)
	return m
}

func newSource(path string, mirrors ...*mirror) *offsets.DumperSource {
	cfg := offsets.SourceConfig{CacheTTL: time.Minute, Timeout: time.Second}
	for _, m := range mirrors {
		cfg.Mirrors = append(cfg.Mirrors, m.URL)
	}
	return offsets.NewDumperSource(path, cfg)
}

func TestDumperSourceFallsThroughMirrors(t *testing.T) {
	broken := newMirror(t, http.StatusInternalServerError, "oops")
	garbage := newMirror(t, http.StatusOK, "<html>")
	good := newMirror(t, http.StatusOK, dumperJSON)
	path := filepath.Join(t.TempDir(), "cache", "offsets.json")

	src := newSource(path, broken, garbage, good)
	table, err := src.Symbols(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := table.Lookup([]string{"libclient.so"}, []string{"dwLocalPlayerController"}); v != 1234 {
		t.Fatalf("got %d, want 1234", v)
	}

	// Fetched table is written back to the local cache
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != dumperJSON {
		t.Fatalf("local cache holds %q", data)
	}

	// Second call is served from memory
	if _, err := src.Symbols(context.Background()); err != nil {
		t.Fatal(err)
	}
	if broken.hits.Load() != 1 || garbage.hits.Load() != 1 || good.hits.Load() != 1 {
		t.Fatalf("hits %d/%d/%d, want 1/1/1", broken.hits.Load(), garbage.hits.Load(), good.hits.Load())
	}
}

func TestDumperSourcePrefersLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")
	if err := os.WriteFile(path, []byte(dumperJSON), 0644); err != nil {
		t.Fatal(err)
	}
	remote := newMirror(t, http.StatusOK, `{"libclient.so": {"dwLocalPlayerController": 1}}`)

	table, err := newSource(path, remote).Symbols(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := table.Lookup([]string{"libclient.so"}, []string{"dwLocalPlayerController"}); v != 1234 {
		t.Fatalf("got %d, want local value 1234", v)
	}
	if remote.hits.Load() != 0 {
		t.Fatal("mirror consulted despite a usable local file")
	}
}

func TestDumperSourceCorruptLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	remote := newMirror(t, http.StatusOK, dumperJSON)

	if _, err := newSource(path, remote).Symbols(context.Background()); err != nil {
		t.Fatal(err)
	}
	if remote.hits.Load() != 1 {
		t.Fatalf("mirror hits %d, want 1", remote.hits.Load())
	}
}

func TestDumperSourceNothingAvailable(t *testing.T) {
	down := newMirror(t, http.StatusNotFound, "")
	src := newSource(filepath.Join(t.TempDir(), "offsets.json"), down)

	if _, err := src.Symbols(context.Background()); !errors.Is(err, offsets.ErrNoSource) {
		t.Fatalf("got %v, want ErrNoSource", err)
	}
}
