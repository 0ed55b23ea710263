// Package reader is the consumer-facing facade. It owns the attached
// accessor and session, and puts the result cache and the HUD scan throttle
// in front of the resolver.
package reader

import (
	"errors"
	"fmt"
	"time"

	"ilmem/accessor"
	"ilmem/cache"
	"ilmem/config"
	"ilmem/metadata"
	"ilmem/process"
	"ilmem/resolver"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Result types held in the cache
const (
	TypePlayers = "players"
	TypeColors  = "colors"
	TypeTasks   = "tasks"
	TypeHUD     = "hud"
	TypeSession = "session"
)

const (
	subReport = "report"
	subState  = "state"
	subMap    = "map"

	defaultHUDInterval = 1500 * time.Millisecond
	defaultHUDBudget   = 100 * time.Millisecond
	minHUDSetting      = 50 * time.Millisecond
)

// ReportStatus is the outcome of one report-button check
type ReportStatus struct {
	Active bool
	OK     bool
	Diag   resolver.Diagnostics
}

type Reader struct {
	cfg  config.Config
	meta *metadata.Index
	log  *logger.Logger
	now  func() time.Time

	mem   *accessor.Accessor
	sess  *resolver.Session
	cache *cache.ResultCache

	hudInterval time.Duration
	hudBudget   time.Duration
	lastHUDScan time.Time
	lastReport  *ReportStatus
}

type Option func(*Reader)

// WithClock replaces time.Now for the cache, the HUD throttle and the session
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}

// WithMetadata uses an already loaded index instead of loading one from the
// configured directory on attach
func WithMetadata(meta *metadata.Index) Option {
	return func(r *Reader) {
		r.meta = meta
	}
}

// WithTTL overrides the lifetime of one result type
func WithTTL(typ string, d time.Duration) Option {
	return func(r *Reader) {
		r.cache.SetTTL(typ, d)
	}
}

func New(cfg config.Config, opts ...Option) *Reader {
	r := &Reader{
		cfg:         cfg,
		now:         time.Now,
		hudInterval: defaultHUDInterval,
		hudBudget:   defaultHUDBudget,
		log:         logger.NewLogger(coloransi.Color(coloransi.ColorOrange, coloransi.ColorPurple, "reader")),
	}
	r.cache = cache.New(map[string]time.Duration{
		TypePlayers: cfg.TTL.Players,
		TypeColors:  cfg.TTL.Colors,
		TypeTasks:   cfg.TTL.Tasks,
		TypeHUD:     cfg.TTL.HUD,
		TypeSession: cfg.TTL.Session,
	}, cache.WithClock(func() time.Time { return r.now() }))

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach opens the configured process by name
func (r *Reader) Attach() error {
	mem, err := accessor.Attach(r.cfg.ProcessName, r.cfg.ModuleName)
	if err != nil {
		return fmt.Errorf("attach %s: %w", r.cfg.ProcessName, err)
	}
	r.bind(mem)
	return nil
}

// AttachProcess attaches to an already opened backend, such as a loaded snapshot
func (r *Reader) AttachProcess(proc process.Process) error {
	mem, err := accessor.AttachProcess(proc, r.cfg.ModuleName)
	if err != nil {
		return fmt.Errorf("attach process: %w", err)
	}
	r.bind(mem)
	return nil
}

func (r *Reader) bind(mem *accessor.Accessor) {
	r.Detach()

	if r.meta == nil {
		r.meta = metadata.New()
	}
	if !r.meta.Loaded() {
		if err := r.meta.Load(r.cfg.MetadataDir); err != nil {
			r.log.Warn("Metadata unavailable, resolving with configured offsets only:", err)
		}
	}

	mem.SetMaxRegions(r.cfg.MaxRegions)
	r.mem = mem
	r.sess = resolver.NewSession(mem, r.meta, r.cfg, resolver.WithClock(r.now))
	r.sess.SetReportScanBudget(r.hudBudget)
	r.log.Infoln("Attached to", mem.Name(), "pid", mem.PID(), "arch", mem.Arch(), "module base", mem.ModuleBase())
}

// Detach drops the session with every cache it owns and closes the process
func (r *Reader) Detach() {
	r.cache.Invalidate(nil, nil)
	r.lastReport = nil
	r.lastHUDScan = time.Time{}

	if r.sess != nil {
		r.sess.Reset()
		r.sess = nil
	}
	if r.mem != nil {
		if err := r.mem.Close(); err != nil && !errors.Is(err, process.ErrProcessNotOpen) {
			r.log.Warn("Close failed:", err)
		}
		r.mem = nil
	}
}

func (r *Reader) Attached() bool {
	return r.sess != nil
}

// Session exposes the underlying resolver session, nil when detached
func (r *Reader) Session() *resolver.Session {
	return r.sess
}

// Accessor exposes the attached accessor, nil when detached
func (r *Reader) Accessor() *accessor.Accessor {
	return r.mem
}

// ConfigureHUD changes the report scan throttle. Zero leaves a setting
// unchanged; values below 50ms are raised to 50ms.
func (r *Reader) ConfigureHUD(minInterval, budget time.Duration) {
	if minInterval != 0 {
		r.hudInterval = max(minHUDSetting, minInterval)
	}
	if budget != 0 {
		r.hudBudget = max(minHUDSetting, budget)
		if r.sess != nil {
			r.sess.SetReportScanBudget(r.hudBudget)
		}
	}
}

// Invalidate drops cached results of the given types, or all of them
func (r *Reader) Invalidate(types ...string) {
	r.cache.Invalidate(types, nil)
}

// Snapshot returns the cached results grouped by type
func (r *Reader) Snapshot(types ...string) map[string]map[any]any {
	return r.cache.Snapshot(types...)
}

// Refresh re-resolves the given types into the cache. Without types every
// cached result is dropped and the players are resolved again.
func (r *Reader) Refresh(types ...string) {
	if r.sess == nil {
		return
	}
	if len(types) == 0 {
		r.cache.Invalidate(nil, nil)
		r.cache.Set(TypePlayers, nil, r.sess.Refresh())
		return
	}
	for _, typ := range types {
		switch typ {
		case TypePlayers:
			r.cache.Set(TypePlayers, nil, r.sess.Refresh())
		case TypeColors:
			r.cache.Set(TypeColors, nil, colorMap(r.sess.Refresh()))
		case TypeHUD:
			r.cache.Set(TypeHUD, subReport, r.reportStatus())
		case TypeTasks:
			// tasks are keyed per player and reload lazily
			r.cache.Invalidate([]string{TypeTasks}, nil)
		case TypeSession:
			r.cache.Invalidate([]string{TypeSession}, nil)
		}
	}
}
