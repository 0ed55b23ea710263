// Package config loads reader settings and the build-dependent offsets of the
// target from ILMEM_* environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Offset is a byte offset or RVA. It parses decimal, 0x-hex and 0o-octal text.
type Offset uint64

func (o *Offset) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(strings.TrimSpace(string(text)), 0, 64)
	if err != nil {
		return fmt.Errorf("offset %q: %w", text, err)
	}
	*o = Offset(v)
	return nil
}

func (o Offset) String() string {
	return fmt.Sprintf("0x%X", uint64(o))
}

// Uint64s converts a list of offsets for the scanner APIs
func Uint64s(list []Offset) []uint64 {
	out := make([]uint64, len(list))
	for i, o := range list {
		out[i] = uint64(o)
	}
	return out
}

// Offsets are empirically discovered for one build of the target. A zero RVA
// means "unknown", and resolution falls back to a metadata name lookup.
type Offsets struct {
	PlayerControlRVA    Offset `env:"ILMEM_RVA_PLAYER_CONTROL"     envDefault:"0x29861fc"`
	GameDataRVA         Offset `env:"ILMEM_RVA_GAME_DATA"          envDefault:"0x29933B0"`
	PlayerInfoListRVA   Offset `env:"ILMEM_RVA_PLAYER_INFO_LIST"   envDefault:"0x298ECBC"`
	TaskInfoListRVA     Offset `env:"ILMEM_RVA_TASK_INFO_LIST"     envDefault:"0x2994A70"`
	PlayerInfoRVA       Offset `env:"ILMEM_RVA_PLAYER_INFO"        envDefault:"0x29B7DD8"`
	CachedPlayerDataRVA Offset `env:"ILMEM_RVA_CACHED_PLAYER_DATA" envDefault:"0"`
	ClientDataRVA       Offset `env:"ILMEM_RVA_CLIENT_DATA"        envDefault:"0"`

	// Static-field block pointer inside a class descriptor
	ClassStaticFields     Offset   `env:"ILMEM_CLASS_STATIC_FIELDS"     envDefault:"0x5C"`
	StaticFieldCandidates []Offset `env:"ILMEM_STATIC_FIELD_CANDIDATES" envDefault:"0xB8,0xB0,0xD8,0xD0,0x5C" envSeparator:","`

	LocalPlayerStatic Offset `env:"ILMEM_LOCAL_PLAYER_STATIC" envDefault:"0x0"`
	NetTransformField Offset `env:"ILMEM_NET_TRANSFORM_FIELD" envDefault:"0x90"`
	LastPosition      Offset `env:"ILMEM_LAST_POSITION"       envDefault:"0x3C"`
	LastPositionSent  Offset `env:"ILMEM_LAST_POSITION_SENT"  envDefault:"0x44"`
	RoleTypeX64       Offset `env:"ILMEM_ROLE_TYPE_X64"       envDefault:"0x30"`
	RoleTypeX86       Offset `env:"ILMEM_ROLE_TYPE_X86"       envDefault:"0x24"`

	// Heap windows relative to the module base, scanned when no region list is given
	HeapWindowStart Offset `env:"ILMEM_HEAP_WINDOW_START" envDefault:"0x01000000"`
	HeapWindowSize  Offset `env:"ILMEM_HEAP_WINDOW_SIZE"  envDefault:"0x01000000"`
	HeapWindowCount int    `env:"ILMEM_HEAP_WINDOW_COUNT" envDefault:"4"`

	// Code window used to tell class descriptors from arbitrary pointers
	ModuleCodeSpan Offset `env:"ILMEM_MODULE_CODE_SPAN" envDefault:"0x05000000"`

	ReportButtonMethods []Offset `env:"ILMEM_REPORT_METHODS"      envDefault:"0x105007C0,0x10500870"                       envSeparator:","`
	ReportSeedMethods   []Offset `env:"ILMEM_REPORT_SEED_METHODS" envDefault:"0x10503820,0x105002F0,0x10503C70,0x10500E50" envSeparator:","`
}

// TTL holds the result cache lifetimes
type TTL struct {
	Players time.Duration `env:"ILMEM_TTL_PLAYERS" envDefault:"150ms"`
	Colors  time.Duration `env:"ILMEM_TTL_COLORS"  envDefault:"1s"`
	Tasks   time.Duration `env:"ILMEM_TTL_TASKS"   envDefault:"3s"`
	HUD     time.Duration `env:"ILMEM_TTL_HUD"     envDefault:"1500ms"`
	Session time.Duration `env:"ILMEM_TTL_SESSION" envDefault:"500ms"`
}

type Config struct {
	ProcessName string `env:"ILMEM_PROCESS_NAME" envDefault:"Among Us.exe"`
	ModuleName  string `env:"ILMEM_MODULE_NAME"  envDefault:"GameAssembly.dll"`
	MetadataDir string `env:"ILMEM_METADATA_DIR" envDefault:"."`
	MaxRegions  int    `env:"ILMEM_MAX_REGIONS"  envDefault:"4096"`

	ReportScanBudget   time.Duration `env:"ILMEM_REPORT_SCAN_BUDGET"   envDefault:"100ms"`
	ReportScanInterval time.Duration `env:"ILMEM_REPORT_SCAN_INTERVAL" envDefault:"1500ms"`
	SessionBudget      time.Duration `env:"ILMEM_SESSION_BUDGET"       envDefault:"350ms"`

	TTL     TTL
	Offsets Offsets
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration with every variable unset
func Default() Config {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(err)
	}
	return cfg
}
