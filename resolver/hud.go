package resolver

import (
	"maps"
	"slices"
	"time"

	"ilmem/config"
	"ilmem/il2cpp"
	"ilmem/process"
)

const (
	hudSingletonSpan = 0x400
	hudStaticSpan    = 0x2000
	hudHeapLimit     = 4

	buttonFieldSpan  = 0x4000
	buttonHeapLimit  = 8
	labelHeapLimit   = 64
	labelFieldSpan   = 0x400
	seedFanoutSpan   = 0x1200
	activeFlagStart  = 0x20
	activeFlagEnd    = 0x200
	activeFlagStride = 4

	reportLabel = "report"
)

var buttonClassNames = []string{"reportbutton", "actionbutton", "passivebutton"}

func (s *Session) buttonClasses() []process.ProcessMemoryAddress {
	var out []process.ProcessMemoryAddress
	for _, name := range buttonClassNames {
		if k := s.ClassByName(name); !k.IsNull() {
			out = append(out, k)
		}
	}
	return out
}

// HUD resolves the HUD manager instance: cached pointer, then the singleton
// holder's statics, then the class's own statics, then a short heap scan
func (s *Session) HUD() process.ProcessMemoryAddress {
	klass := s.ClassByName("hudmanager")
	if klass.IsNull() {
		return 0
	}
	if s.scan.IsInstance(s.hud, klass) {
		return s.hud
	}

	s.hud = il2cpp.First(
		func() process.ProcessMemoryAddress {
			holder := s.scan.ClassFromTypeInfo(s.meta.TypeInfoRVABySubstrings("destroyablesingleton", "hudmanager"))
			obj, _ := s.scan.ScanFieldsForClass(s.scan.StaticFieldsPtr(holder), hudSingletonSpan, klass)
			return obj
		},
		func() process.ProcessMemoryAddress {
			obj, _ := s.scan.ScanFieldsForClass(s.scan.StaticFieldsPtr(klass), hudStaticSpan, klass)
			return obj
		},
		func() process.ProcessMemoryAddress {
			insts := s.scan.ScanHeapForClassInstances(klass, nil, hudHeapLimit, s.deadline(s.cfg.ReportScanBudget))
			if len(insts) == 0 {
				return 0
			}
			return insts[0]
		},
	)
	if !s.hud.IsNull() {
		s.log.Debugln("HUD manager at", s.hud.ToString())
	}
	return s.hud
}

// SetReportScanBudget bounds the heap strategies of ReportButton
func (s *Session) SetReportScanBudget(d time.Duration) {
	s.cfg.ReportScanBudget = d
}

func (s *Session) moduleAddrs(rvas []config.Offset) []process.ProcessMemoryAddress {
	base := s.mem.ModuleBase()
	out := make([]process.ProcessMemoryAddress, 0, len(rvas))
	for _, rva := range rvas {
		out = append(out, base.Add(uint64(rva)))
	}
	return out
}

// ReportButton resolves the report button. Cheap strategies run on every
// call; the heap, label, fingerprint and seed strategies share one budget
// and run at most once per scan interval.
func (s *Session) ReportButton() process.ProcessMemoryAddress {
	classes := s.buttonClasses()

	if !s.reportButton.IsNull() {
		if slices.Contains(classes, s.scan.ClassOf(s.reportButton)) {
			return s.reportButton
		}
		s.reportButton = 0
	}

	if hud := s.HUD(); !hud.IsNull() {
		for _, klass := range classes {
			if obj, _ := s.scan.ScanFieldsForClass(s.fields(hud), buttonFieldSpan, klass); !obj.IsNull() {
				s.reportButton = obj
				return obj
			}
		}
	}

	now := s.now()
	if !s.lastReportScan.IsZero() && now.Sub(s.lastReportScan) < s.cfg.ReportScanInterval {
		return 0
	}
	s.lastReportScan = now
	deadline := now.Add(s.cfg.ReportScanBudget)

	s.reportButton = il2cpp.First(
		func() process.ProcessMemoryAddress {
			for _, klass := range classes {
				if insts := s.scan.ScanHeapForClassInstances(klass, nil, buttonHeapLimit, deadline); len(insts) > 0 {
					return insts[0]
				}
			}
			return 0
		},
		func() process.ProcessMemoryAddress { return s.reportButtonByLabel(classes, deadline) },
		func() process.ProcessMemoryAddress {
			return s.scan.FindObjectByMethodSignature(s.moduleAddrs(s.off.ReportButtonMethods), deadline)
		},
		func() process.ProcessMemoryAddress { return s.reportButtonBySeeds(deadline) },
	)
	if s.reportButton.IsNull() {
		s.log.Debugln("Report button not found within", s.cfg.ReportScanBudget)
	}
	return s.reportButton
}

// reportButtonByLabel anchors on the "report" string literal: first a string
// cross-reference scan, then button instances holding the literal
func (s *Session) reportButtonByLabel(classes []process.ProcessMemoryAddress, deadline time.Time) process.ProcessMemoryAddress {
	strVA := s.meta.StringVA(s.mem.ModuleBase(), reportLabel)
	if strVA.IsNull() {
		return 0
	}
	if obj := s.scan.FindButtonByStringXref(strVA, classes, deadline); !obj.IsNull() {
		return obj
	}

	for _, klass := range classes {
		for _, inst := range s.scan.ScanHeapForClassInstances(klass, nil, labelHeapLimit, deadline) {
			if s.expired(deadline) {
				return 0
			}
			if s.scan.ObjectFieldsContainsPtr(inst, strVA, labelFieldSpan) {
				return inst
			}
		}
	}
	return 0
}

// reportButtonBySeeds finds objects of known neighbouring types and fans out
// through their fields looking for an object whose class carries the report
// button's methods
func (s *Session) reportButtonBySeeds(deadline time.Time) process.ProcessMemoryAddress {
	methods := s.moduleAddrs(s.off.ReportButtonMethods)
	base := s.mem.ModuleBase()
	top := base.Add(uint64(s.off.ModuleCodeSpan))

	var seeds []process.ProcessMemoryAddress
	for _, m := range s.moduleAddrs(s.off.ReportSeedMethods) {
		if obj := s.scan.FindObjectByMethodSignature([]process.ProcessMemoryAddress{m}, deadline); !obj.IsNull() {
			seeds = append(seeds, obj)
		}
	}

	for _, seed := range seeds {
		if s.expired(deadline) {
			break
		}
		for _, ref := range s.scan.ScanObjectFieldPtrs(seed, seedFanoutSpan) {
			if s.expired(deadline) {
				break
			}
			k := s.scan.ClassOf(ref)
			if k < base || k >= top {
				continue
			}
			if s.scan.ClassHasMethods(k, methods) {
				return ref
			}
		}
	}
	return 0
}

// activeFlagCandidates reads every 0/1 byte in the button's flag range
func (s *Session) activeFlagCandidates(fields process.ProcessMemoryAddress) map[uint64]uint8 {
	out := make(map[uint64]uint8)
	data, err := s.mem.ReadBytes(fields.Add(activeFlagStart), activeFlagEnd-activeFlagStart)
	for off := uint64(activeFlagStart); off < activeFlagEnd; off += activeFlagStride {
		var v uint8
		if err == nil {
			v = data[off-activeFlagStart]
		} else if b, ok := s.readU8(fields.Add(off)); ok {
			v = b
		} else {
			continue
		}
		if v <= 1 {
			out[off] = v
		}
	}
	return out
}

// IsReportButtonActive reads the report button's active flag. The flag is
// taken to be the lowest 0/1 byte in the field range; that offset is cached
// until it reads as something else.
func (s *Session) IsReportButtonActive() (active, ok bool, diag Diagnostics) {
	diag = Diagnostics{}

	rb := s.ReportButton()
	if rb.IsNull() {
		diag["error"] = "report button not found"
		return false, false, diag
	}
	diag["report_button_ptr"] = rb
	fields := s.fields(rb)

	if off, cached := s.offsets.Get(s.arch, fieldReportActive); cached {
		if v, ok := s.readU8(fields.Add(off)); ok && v <= 1 {
			diag["chosen_offset"] = off
			return v == 1, true, diag
		}
		s.offsets.Invalidate(s.arch, fieldReportActive)
	}

	candidates := s.activeFlagCandidates(fields)
	diag["bool_candidates"] = candidates
	if len(candidates) == 0 {
		return false, false, diag
	}

	best := slices.Min(slices.Collect(maps.Keys(candidates)))
	s.offsets.Set(s.arch, fieldReportActive, best)
	diag["chosen_offset"] = best
	return candidates[best] == 1, true, diag
}
