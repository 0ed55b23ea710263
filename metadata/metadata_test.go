package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const document = `{
  "typeInfoPointers": [
    {"dotNetType": "System.Collections.Generic.List<NetworkedPlayerInfo>", "name": "List_1_NetworkedPlayerInfo__TypeInfo", "type": "List_1_NetworkedPlayerInfo_", "virtualAddress": "0x298ECBC"},
    {"dotNetType": "PlayerControl", "name": "PlayerControl_TypeInfo", "type": "PlayerControl", "virtualAddress": "0x29861FC"},
    {"dotNetType": "InnerNet.InnerNetClient/PlayerControlCache", "name": "PlayerControlCache_TypeInfo", "type": "", "virtualAddress": "0x1111"},
    {"dotNetType": "DestroyableSingleton<HudManager>", "name": "DestroyableSingleton_1_HudManager__TypeInfo", "type": "", "virtualAddress": "29A0000"},
    {"dotNetType": "HudManager", "name": "HudManager_TypeInfo", "type": "HudManager", "virtualAddress": "0x29A1000"},
    {"dotNetType": "Broken", "name": "Broken_TypeInfo", "virtualAddress": "zz"}
  ],
  "stringLiterals": [
    {"string": "Report", "virtualAddress": "0x2A00010"},
    {"string": "report_button", "virtualAddress": "0x2A00020"}
  ]
}`

func loaded(t *testing.T) *Index {
	t.Helper()
	ix := New()
	if err := ix.LoadBytes([]byte(document)); err != nil {
		t.Fatalf("load: %v", err)
	}
	return ix
}

func TestTypeInfoRVAByNamePrefersDotNetType(t *testing.T) {
	ix := loaded(t)

	if got := ix.TypeInfoRVAByName("playercontrol"); got != 0x29861FC {
		t.Fatalf("expected exact match 0x29861FC, got 0x%x", got)
	}
	if got := ix.TypeInfoRVAByName("PlayerControlCache"); got != 0x1111 {
		t.Fatalf("expected nested type match 0x1111, got 0x%x", got)
	}
	if got := ix.TypeInfoRVAByName("list_1_networkedplayerinfo_"); got != 0x298ECBC {
		t.Fatalf("expected substring match on name, got 0x%x", got)
	}
	if got := ix.TypeInfoRVAByName("nosuchtype"); got != 0 {
		t.Fatalf("expected 0 for unknown type, got 0x%x", got)
	}
}

func TestTypeInfoRVABySubstrings(t *testing.T) {
	ix := loaded(t)

	if got := ix.TypeInfoRVABySubstrings("destroyablesingleton", "hudmanager"); got != 0x29A0000 {
		t.Fatalf("expected 0x29A0000, got 0x%x", got)
	}
	if got := ix.TypeInfoRVABySubstrings("hudmanager", "missing"); got != 0 {
		t.Fatalf("expected 0, got 0x%x", got)
	}
}

func TestStringLookups(t *testing.T) {
	ix := loaded(t)

	if got := ix.StringRVA("report"); got != 0x2A00010 {
		t.Fatalf("expected case-insensitive exact match, got 0x%x", got)
	}
	if got := ix.StringRVA("repo"); got != 0 {
		t.Fatalf("expected no partial match, got 0x%x", got)
	}
	if got := ix.StringRVA(""); got != 0 {
		t.Fatalf("expected no match for an empty needle, got 0x%x", got)
	}
	if got := ix.StringVA(0x10000000, "REPORT"); got != 0x12A00010 {
		t.Fatalf("expected relocated address, got %s", got.ToString())
	}
}

func TestLoadSearchesCandidatePaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "Il2cpp_result")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "metadata.json"), []byte(document), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ix := New()
	if err := ix.Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ix.Path() != filepath.Join(sub, "metadata.json") {
		t.Fatalf("unexpected path %q", ix.Path())
	}
	types, literals := ix.Counts()
	if types != 5 || literals != 2 {
		t.Fatalf("expected 5 types and 2 literals, got %d and %d", types, literals)
	}

	// idempotent
	if err := ix.Load(t.TempDir()); err != nil {
		t.Fatalf("second load: %v", err)
	}
}

func TestLoadMissingAndMalformed(t *testing.T) {
	ix := New()
	err := ix.Load(t.TempDir())
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Fatalf("expected ErrMetadataUnavailable, got %v", err)
	}
	if ix.Loaded() {
		t.Fatal("index should not be loaded")
	}
	if got := ix.TypeInfoRVAByName("playercontrol"); got != 0 {
		t.Fatalf("expected 0 from empty index, got 0x%x", got)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ix.Load(dir); !errors.Is(err, ErrMetadataUnavailable) {
		t.Fatalf("expected ErrMetadataUnavailable for malformed file, got %v", err)
	}
}

func TestLoadSkipsMalformedCandidate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sub := filepath.Join(dir, "Il2cpp_result")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "metadata.json"), []byte(document), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ix := New()
	if err := ix.Load(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if ix.Path() != filepath.Join(sub, "metadata.json") {
		t.Fatalf("expected the well-formed candidate, got %q", ix.Path())
	}
}
