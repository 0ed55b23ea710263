package resolver

import (
	"fmt"
	"maps"
	"slices"

	"ilmem/process"
)

const (
	cachedDataSpan64 = 0x200
	cachedDataSpan32 = 0x100

	roleSearchStart = 0x24
	roleSearchEnd   = 0x80

	// a player-info byte that tracks the dead flag on the builds seen so far
	quickDeadFlag = 0xE8
)

// last-resort player-info bytes that may hold the dead flag
var deadFlagOffsets = []uint64{0x34, 0x4C, 0xE8, 0xF0}

// cachedData flag bytes follow two pointer-sized fields
const (
	flagIsYou = iota
	flagImpostor
	flagDead
)

func (s *Session) cachedDataClass() process.ProcessMemoryAddress {
	return s.class(s.off.CachedPlayerDataRVA, "cachedplayerdata")
}

// CachedPlayerData finds the per-player data block referenced by a controller.
// The field offset is cached per architecture and re-searched when it stops
// pointing at a block.
func (s *Session) CachedPlayerData(pc process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if pc.IsNull() {
		return 0
	}
	klass := s.cachedDataClass()
	if klass.IsNull() {
		return 0
	}

	span := uint64(cachedDataSpan32)
	if s.arch.Is64() {
		span = cachedDataSpan64
	}
	base := s.fields(pc)

	var found process.ProcessMemoryAddress
	s.offsets.Resolve(s.arch, fieldCachedData, Stride(0, span, s.ptrSize()), func(off uint64) bool {
		p := s.readPtr(base.Add(off))
		if s.scan.IsInstance(p, klass) {
			found = p
			return true
		}
		return false
	})
	return found
}

func (s *Session) flagOffset(flag int) uint64 {
	return 2*s.ptrSize() + uint64(flag)
}

// IsLocalImpostor reads the impostor flag of the local player's data block
func (s *Session) IsLocalImpostor() (impostor, ok bool, diag Diagnostics) {
	diag = Diagnostics{"is64": s.arch.Is64()}

	pc := s.LocalPlayer()
	diag["local_pc"] = pc
	if pc.IsNull() {
		diag["error"] = "local player not found"
		return false, false, diag
	}

	data := s.CachedPlayerData(pc)
	diag["cached_playerdata_ptr"] = data
	diag["cached_ptr_offset"] = -1
	if off, ok := s.offsets.Get(s.arch, fieldCachedData); ok {
		diag["cached_ptr_offset"] = int(off)
	}
	if data.IsNull() {
		diag["error"] = "CachedPlayerData not found"
		return false, false, diag
	}

	base := s.fields(data)
	diag["fields_offset"] = s.arch.HeaderSize()
	diag["is_you_offset"] = s.flagOffset(flagIsYou)
	diag["is_impostor_offset"] = s.flagOffset(flagImpostor)

	diag["is_you_raw"] = -1
	if v, ok := s.readU8(base.Add(s.flagOffset(flagIsYou))); ok {
		diag["is_you_raw"] = int(v)
	}
	diag["is_dead_raw"] = -1
	if v, ok := s.readU8(base.Add(s.flagOffset(flagDead))); ok {
		diag["is_dead_raw"] = int(v)
	}

	raw, err := s.mem.ReadU8(base.Add(s.flagOffset(flagImpostor)))
	if err != nil {
		diag["error"] = err.Error()
		return false, false, diag
	}
	diag["impostor_raw"] = int(raw)
	if raw > 1 {
		diag["error"] = "unexpected raw value"
		return false, false, diag
	}
	return raw == 1, true, diag
}

func (s *Session) readRole(npi process.ProcessMemoryAddress, off uint64) (RoleType, bool) {
	v, err := s.mem.ReadU16(s.fields(npi).Add(off))
	if err != nil {
		return 0, false
	}
	return RoleType(v), true
}

// roleOffset finds the role field: every player must hold a known role and at
// least two different roles must be present
func (s *Session) roleOffset(infos map[int]process.ProcessMemoryAddress) (uint64, bool) {
	if len(infos) < 2 {
		return 0, false
	}
	preferred := uint64(s.off.RoleTypeX86)
	if s.arch.Is64() {
		preferred = uint64(s.off.RoleTypeX64)
	}
	candidates := []uint64{preferred}
	for _, off := range Stride(roleSearchStart, roleSearchEnd, 2) {
		if off != preferred {
			candidates = append(candidates, off)
		}
	}

	return s.offsets.Resolve(s.arch, fieldRoleType, candidates, func(off uint64) bool {
		seen := make(map[RoleType]bool)
		for _, npi := range infos {
			role, ok := s.readRole(npi, off)
			if !ok || !role.Known() {
				return false
			}
			seen[role] = true
		}
		return len(seen) > 1
	})
}

// IsPlayerDead decides whether the player wearing color is dead. Signals are
// tried in order: the data-block dead flag, the role enumeration checked
// across all players, and a raw flag byte on the player-info object.
func (s *Session) IsPlayerDead(color int) (dead, ok bool, diag Diagnostics) {
	diag = Diagnostics{}

	var player *PlayerData
	for _, p := range s.players {
		if p.ColorID == color {
			player = &p
			break
		}
	}
	if player == nil {
		diag["error"] = fmt.Sprintf("player with color_id %d not found", color)
		return false, false, diag
	}
	diag["color_id"] = color
	diag["color_name"] = player.ColorName
	diag["player_id"] = player.ID

	npi := s.InfoByColor(color)
	if npi.IsNull() {
		diag["error"] = "NPI not found"
		return false, false, diag
	}
	diag["npi_ptr"] = npi

	pc := s.ControlFromInfo(npi)
	diag["pc_ptr"] = pc

	if data := s.CachedPlayerData(pc); !data.IsNull() {
		off := s.flagOffset(flagDead)
		if raw, ok := s.readU8(s.fields(data).Add(off)); ok && raw <= 1 {
			diag["method"] = "CachedPlayerData"
			diag["cached_playerdata_ptr"] = data
			diag["is_dead_offset"] = off
			diag["is_dead_raw"] = int(raw)
			return raw == 1, true, diag
		}
	}

	infos := map[int]process.ProcessMemoryAddress{color: npi}
	for _, p := range s.players {
		if info := s.InfoByColor(p.ColorID); !info.IsNull() {
			infos[p.ColorID] = info
		}
	}

	if dead, ok := s.deadByRole(color, npi, infos, diag); ok {
		return dead, true, diag
	}

	base := s.fields(npi)
	for _, off := range deadFlagOffsets {
		if raw, ok := s.readU8(base.Add(off)); ok && raw <= 1 {
			diag["method"] = "NPI_bool_fallback"
			diag["npi_offset"] = off
			diag["is_dead_raw"] = int(raw)
			diag["note"] = "heuristic fallback - verify manually"
			return raw == 1, true, diag
		}
	}

	diag["error"] = "could not determine death status"
	return false, false, diag
}

func (s *Session) deadByRole(color int, npi process.ProcessMemoryAddress, infos map[int]process.ProcessMemoryAddress, diag Diagnostics) (bool, bool) {
	off, ok := s.roleOffset(infos)
	if !ok {
		return false, false
	}

	roles := make(map[int]RoleType, len(infos))
	for c, info := range infos {
		if role, ok := s.readRole(info, off); ok {
			roles[c] = role
		}
	}
	role, ok := roles[color]
	if !ok {
		return false, false
	}

	var deadColors, impostorColors []int
	snapshot := make(map[int]string, len(roles))
	for _, c := range slices.Sorted(maps.Keys(roles)) {
		r := roles[c]
		snapshot[c] = r.String()
		if r.Dead() {
			deadColors = append(deadColors, c)
		} else if r.Impostor() {
			impostorColors = append(impostorColors, c)
		}
	}

	dead := role.Dead()
	diag["role_offset"] = off
	diag["role_type"] = int(role)
	diag["role_type_label"] = role.String()
	diag["dead_role_colors"] = deadColors
	diag["impostor_role_colors"] = impostorColors
	diag["role_snapshot"] = snapshot
	diag["method"] = "RoleType_inference"

	if flag, ok := s.readU8(s.fields(npi).Add(quickDeadFlag)); ok && flag <= 1 {
		diag["flag_0xE8"] = int(flag)
		if (flag == 1) != dead {
			diag["warnings"] = []string{"flag_0xE8 mismatch"}
		}
	}
	return dead, true
}
