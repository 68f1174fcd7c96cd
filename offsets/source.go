package offsets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/patrickmn/go-cache"
)

var (
	ErrNoSource      = errors.New("no symbol source available")
	ErrSymbolMissing = errors.New("symbol missing from source")
)

// SymbolTable is the dumper output format: module name to symbol name to
// a module relative value.
type SymbolTable map[string]map[string]uint64

// Lookup tries each module key, and within it each symbol key, in order.
func (t SymbolTable) Lookup(modules, symbols []string) (uint64, error) {
	for _, m := range modules {
		syms, ok := t[m]
		if !ok {
			continue
		}
		for _, s := range symbols {
			if v, ok := syms[s]; ok {
				return v, nil
			}
		}
	}
	return 0, fmt.Errorf("%v in %v: %w", symbols, modules, ErrSymbolMissing)
}

// ParseSymbolTable decodes dumper JSON. Entries that are not objects of
// numbers, such as metadata keys, are ignored.
func ParseSymbolTable(data []byte) (SymbolTable, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	table := make(SymbolTable)
	for module, body := range raw {
		var syms map[string]uint64
		if err := json.Unmarshal(body, &syms); err != nil {
			continue
		}
		table[module] = syms
	}
	if len(table) == 0 {
		return nil, errors.New("no module tables")
	}
	return table, nil
}

// Source supplies symbol tables to the resolver.
type Source interface {
	Symbols(ctx context.Context) (SymbolTable, error)
}

// DumperSource reads a local file first, then the mirrors in order. A table
// fetched from a mirror is written to the local file. Parsed tables are kept
// in memory for the configured TTL so a re-attach does not refetch.
type DumperSource struct {
	LocalPath string
	Mirrors   []string
	Client    *http.Client
	Timeout   time.Duration

	cache *cache.Cache
	log   *logger.Logger
}

const symbolsKey = "symbols"

func NewDumperSource(localPath string, cfg SourceConfig) *DumperSource {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &DumperSource{
		LocalPath: localPath,
		Mirrors:   cfg.Mirrors,
		Client:    http.DefaultClient,
		Timeout:   cfg.Timeout,
		cache:     cache.New(ttl, 2*ttl),
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "symbols")),
	}
}

func (s *DumperSource) Symbols(ctx context.Context) (SymbolTable, error) {
	if v, ok := s.cache.Get(symbolsKey); ok {
		return v.(SymbolTable), nil
	}

	if table, err := s.readLocal(); err == nil {
		s.log.Infoln("Using local symbol table", s.LocalPath)
		s.cache.SetDefault(symbolsKey, table)
		return table, nil
	} else if !os.IsNotExist(err) {
		s.log.Warn("Local symbol table unusable:", err)
	}

	for _, url := range s.Mirrors {
		s.log.Infoln("Fetching symbols from", url)
		data, table, err := s.fetch(ctx, url)
		if err != nil {
			s.log.Warn("Failed to fetch symbols from", url, ":", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		s.writeLocal(data)
		s.cache.SetDefault(symbolsKey, table)
		return table, nil
	}

	return nil, ErrNoSource
}

func (s *DumperSource) readLocal() (SymbolTable, error) {
	if s.LocalPath == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(s.LocalPath)
	if err != nil {
		return nil, err
	}
	return ParseSymbolTable(data)
}

func (s *DumperSource) writeLocal(data []byte) {
	if s.LocalPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.LocalPath), 0755); err != nil {
		s.log.Warn("Failed to create symbol cache directory:", err)
		return
	}
	if err := os.WriteFile(s.LocalPath, data, 0644); err != nil {
		s.log.Warn("Failed to write symbol cache:", err)
	}
}

func (s *DumperSource) fetch(ctx context.Context, url string) ([]byte, SymbolTable, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, nil, err
	}
	table, err := ParseSymbolTable(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	return data, table, nil
}
