// Package metadata indexes the offline type and string-literal dump of the
// target's code module. Lookups return module-relative offsets.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"ilmem/process"

	"github.com/tidwall/gjson"
)

// ErrMetadataUnavailable means no usable document was found. Resolution
// continues with heuristics only.
var ErrMetadataUnavailable = errors.New("metadata unavailable")

const fileName = "metadata.json"

// TypeInfo is one entry of typeInfoPointers
type TypeInfo struct {
	DotNetType string
	Name       string
	Type       string
	RVA        uint64
}

type stringLiteral struct {
	text string
	rva  uint64
}

// Index answers name and literal lookups. The zero value is an empty index.
type Index struct {
	mu        sync.Mutex
	loaded    bool
	path      string
	types     []TypeInfo
	literals  []stringLiteral
	typeCache map[string]uint64
	strCache  map[string]uint64
}

func New() *Index {
	return &Index{}
}

// CandidatePaths lists where Load looks for the document, in order
func CandidatePaths(dir string) []string {
	return []string{
		filepath.Join(dir, fileName),
		filepath.Join(dir, "Il2cpp_result", fileName),
		filepath.Join(dir, "..", "Il2cpp_result", fileName),
	}
}

// Load reads the first well-formed document found under dir. A malformed
// candidate is skipped; its error is returned only when no later candidate
// parses. A loaded index ignores further calls.
func (ix *Index) Load(dir string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.loaded {
		return nil
	}

	var parseErr error
	for _, path := range CandidatePaths(dir) {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := ix.parse(data); err != nil {
			if parseErr == nil {
				parseErr = fmt.Errorf("%s: %w", path, err)
			}
			continue
		}
		ix.path = path
		return nil
	}
	if parseErr != nil {
		return parseErr
	}
	return fmt.Errorf("no %s under %s: %w", fileName, dir, ErrMetadataUnavailable)
}

// LoadBytes parses an in-memory document
func (ix *Index) LoadBytes(data []byte) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.loaded {
		return nil
	}
	return ix.parse(data)
}

func parseHex(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parse assumes the mutex is held
func (ix *Index) parse(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("malformed document: %w", ErrMetadataUnavailable)
	}

	doc := gjson.ParseBytes(data)
	var types []TypeInfo
	doc.Get("typeInfoPointers").ForEach(func(_, item gjson.Result) bool {
		rva, ok := parseHex(item.Get("virtualAddress").String())
		if !ok {
			return true
		}
		types = append(types, TypeInfo{
			DotNetType: item.Get("dotNetType").String(),
			Name:       item.Get("name").String(),
			Type:       item.Get("type").String(),
			RVA:        rva,
		})
		return true
	})

	var literals []stringLiteral
	doc.Get("stringLiterals").ForEach(func(_, item gjson.Result) bool {
		rva, ok := parseHex(item.Get("virtualAddress").String())
		if !ok {
			return true
		}
		literals = append(literals, stringLiteral{text: item.Get("string").String(), rva: rva})
		return true
	})

	ix.types = types
	ix.literals = literals
	ix.typeCache = make(map[string]uint64)
	ix.strCache = make(map[string]uint64)
	ix.loaded = true
	return nil
}

func (ix *Index) Loaded() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.loaded
}

// Path returns the file the index was loaded from, empty for LoadBytes
func (ix *Index) Path() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.path
}

func (ix *Index) Counts() (types, literals int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.types), len(ix.literals)
}

// TypeInfoRVAByName matches case-insensitively. An exact or "."/"/"-suffixed
// match on the .NET type name wins over a substring match on the internal
// name. It returns 0 when nothing matches.
func (ix *Index) TypeInfoRVAByName(name string) uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key := strings.ToLower(name)
	if key == "" || !ix.loaded {
		return 0
	}
	if rva, ok := ix.typeCache[key]; ok {
		return rva
	}

	var rva uint64
	for _, ti := range ix.types {
		dn := strings.ToLower(ti.DotNetType)
		if dn == key || strings.HasSuffix(dn, "."+key) || strings.HasSuffix(dn, "/"+key) {
			rva = ti.RVA
			break
		}
	}
	if rva == 0 {
		for _, ti := range ix.types {
			if strings.Contains(strings.ToLower(ti.Name), key) {
				rva = ti.RVA
				break
			}
		}
	}

	if rva != 0 {
		ix.typeCache[key] = rva
	}
	return rva
}

// TypeInfoRVABySubstrings returns the first entry whose combined
// "dotNetType name type" text contains every substring.
func (ix *Index) TypeInfoRVABySubstrings(subs ...string) uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(subs) == 0 || !ix.loaded {
		return 0
	}

	lowered := make([]string, len(subs))
	for i, s := range subs {
		lowered[i] = strings.ToLower(s)
	}
	keyParts := append([]string(nil), lowered...)
	sort.Strings(keyParts)
	key := "|" + strings.Join(keyParts, "|")
	if rva, ok := ix.typeCache[key]; ok {
		return rva
	}

	for _, ti := range ix.types {
		blob := strings.ToLower(ti.DotNetType + " " + ti.Name + " " + ti.Type)
		match := true
		for _, s := range lowered {
			if !strings.Contains(blob, s) {
				match = false
				break
			}
		}
		if match {
			ix.typeCache[key] = ti.RVA
			return ti.RVA
		}
	}
	return 0
}

// StringRVA finds a literal whose text equals needle, ignoring case
func (ix *Index) StringRVA(needle string) uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key := strings.ToLower(needle)
	if !ix.loaded || key == "" {
		return 0
	}
	if rva, ok := ix.strCache[key]; ok {
		return rva
	}
	for _, lit := range ix.literals {
		if strings.ToLower(lit.text) == key {
			ix.strCache[key] = lit.rva
			return lit.rva
		}
	}
	return 0
}

// StringVA is StringRVA relocated to the module base, or 0
func (ix *Index) StringVA(moduleBase process.ProcessMemoryAddress, needle string) process.ProcessMemoryAddress {
	rva := ix.StringRVA(needle)
	if rva == 0 {
		return 0
	}
	return moduleBase.Add(rva)
}
