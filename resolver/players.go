package resolver

import (
	"slices"

	"ilmem/process"
)

const (
	playerListCeiling = 32
	gameDataSpan      = 0x400
	maxPlayerID       = 16
)

var (
	// player-info fields that may hold the controller
	infoControlOffsets = []uint64{0x48, 0x4C, 0x50, 0x54, 0x58, 0x5C}
	// fields probed for the player id, on the player-info object then the controller
	playerIDOffsets = []uint64{0x8, 0x10, 0x18, 0x20, 0x24, 0x28, 0x2C, 0x30, 0x34, 0x38}
	// fields matched against a requested player id
	infoIDOffsets = []uint64{0x8, 0x10, 0x18, 0x20, 0x24, 0x28}
	// preferred fields of the outfit dictionary, before the pointer-stride sweep
	colorDictOffsets = []uint64{0x38, 0x3C, 0x40, 0x44, 0x48}
	clientDataTail   = []uint64{0x10, 0x14, 0x18, 0x1C}
)

func (s *Session) playerControlClass() process.ProcessMemoryAddress {
	return s.class(s.off.PlayerControlRVA, "playercontrol")
}

// LocalPlayer returns the locally controlled player's controller object
func (s *Session) LocalPlayer() process.ProcessMemoryAddress {
	return s.staticInstance(s.playerControlClass(), uint64(s.off.LocalPlayerStatic))
}

// GameData returns the shared game-data singleton
func (s *Session) GameData() process.ProcessMemoryAddress {
	return s.staticInstance(s.class(s.off.GameDataRVA, "gamedata"), 0)
}

// PlayerInfos decodes the player-info list held by the game-data singleton
func (s *Session) PlayerInfos() []process.ProcessMemoryAddress {
	gd := s.GameData()
	if gd.IsNull() {
		return nil
	}
	listKlass := s.class(s.off.PlayerInfoListRVA, "list_1_networkedplayerinfo_")
	list, _ := s.scan.ScanFieldsForClass(s.fields(gd), gameDataSpan, listKlass)
	items := s.scan.ReadList(list, playerListCeiling)

	infoKlass := s.scan.ClassFromTypeInfo(uint64(s.off.PlayerInfoRVA))
	if infoKlass.IsNull() {
		return items
	}
	return slices.DeleteFunc(items, func(npi process.ProcessMemoryAddress) bool {
		return !s.scan.IsInstance(npi, infoKlass)
	})
}

// ControlFromInfo finds the controller referenced by a player-info object
func (s *Session) ControlFromInfo(npi process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if npi.IsNull() {
		return 0
	}
	pcKlass := s.playerControlClass()
	if pcKlass.IsNull() {
		return 0
	}
	base := s.fields(npi)
	for _, off := range infoControlOffsets {
		pc := s.readPtr(base.Add(off))
		if s.scan.IsInstance(pc, pcKlass) {
			return pc
		}
	}
	return 0
}

// Position reads the network transform's last position, falling back to the
// last sent position when the first reads as the origin
func (s *Session) Position(pc process.ProcessMemoryAddress) (Vec2, bool) {
	if pc.IsNull() {
		return Vec2{}, false
	}
	header := s.arch.HeaderSize()
	net := header + uint64(s.off.NetTransformField)

	xy, err := process.ReadPath[[2]float32](s.mem, s.arch, pc, net, header+uint64(s.off.LastPosition))
	if err != nil {
		return Vec2{}, false
	}
	pos := Vec2{X: xy[0], Y: xy[1]}
	if !pos.IsZero() {
		return pos, true
	}

	xy, err = process.ReadPath[[2]float32](s.mem, s.arch, pc, net, header+uint64(s.off.LastPositionSent))
	if err != nil {
		return Vec2{}, false
	}
	return Vec2{X: xy[0], Y: xy[1]}, true
}

// colorAt reads the default outfit's color through the dictionary at off
func (s *Session) colorAt(npi process.ProcessMemoryAddress, off uint64) (int, bool) {
	dict := s.readPtr(s.fields(npi).Add(off))
	if dict.IsNull() {
		return 0, false
	}
	h, ok := s.scan.ReadDictHeader(dict)
	if !ok || !h.Plausible() {
		return 0, false
	}
	outfit, ok := s.scan.DictLookup(dict, 0)
	if !ok || outfit.IsNull() {
		return 0, false
	}
	color, ok := s.readU32(s.fields(outfit))
	if !ok || color > MaxColorID {
		return 0, false
	}
	return int(color), true
}

// ColorID returns the player's color, -1 when it cannot be resolved
func (s *Session) ColorID(npi process.ProcessMemoryAddress) int {
	if npi.IsNull() {
		return -1
	}
	candidates := append(slices.Clone(colorDictOffsets), Stride(0x30, 0x80, s.ptrSize())...)

	color := -1
	_, ok := s.offsets.Resolve(s.arch, fieldColorDict, candidates, func(off uint64) bool {
		c, ok := s.colorAt(npi, off)
		if ok {
			color = c
		}
		return ok
	})
	if !ok {
		return -1
	}
	return color
}

// HasClientData reports whether the player-info object references a client record
func (s *Session) HasClientData(npi process.ProcessMemoryAddress) bool {
	if npi.IsNull() {
		return false
	}
	klass := s.class(s.off.ClientDataRVA, "clientdata")
	if klass.IsNull() {
		return false
	}
	base := s.fields(npi)
	for _, off := range append(Stride(0x30, 0x100, s.ptrSize()), clientDataTail...) {
		if s.scan.IsInstance(s.readPtr(base.Add(off)), klass) {
			return true
		}
	}
	return false
}

func (s *Session) playerID(npi, pc process.ProcessMemoryAddress) (int, bool) {
	for _, obj := range []process.ProcessMemoryAddress{npi, pc} {
		base := s.fields(obj)
		for _, off := range playerIDOffsets {
			if v, ok := s.readU8(base.Add(off)); ok && v < maxPlayerID {
				return int(v), true
			}
		}
	}
	return 0, false
}

// Refresh resolves every player with a controller, a position and a color
func (s *Session) Refresh() []PlayerData {
	now := s.now()
	local := s.LocalPlayer()

	s.hasLocalID = false
	players := make([]PlayerData, 0, playerListCeiling)
	used := make(map[int]bool)
	maxID := -1

	for idx, npi := range s.PlayerInfos() {
		pc := s.ControlFromInfo(npi)
		if pc.IsNull() {
			continue
		}
		pos, ok := s.Position(pc)
		if !ok {
			continue
		}
		color := s.ColorID(npi)
		if color < 0 {
			continue
		}

		id, ok := s.playerID(npi, pc)
		if !ok {
			id = idx
		}
		if used[id] {
			id = maxID + 1
		}
		used[id] = true
		maxID = max(maxID, id)

		isLocal := !local.IsNull() && pc == local
		if isLocal {
			s.localID = id
			s.hasLocalID = true
		}

		players = append(players, PlayerData{
			ID:         id,
			ColorID:    color,
			ColorName:  ColorName(color),
			Position:   pos,
			IsLocal:    isLocal,
			LastUpdate: now,
		})
	}

	s.log.Debugln("Resolved", len(players), "players")
	s.players = players
	return slices.Clone(players)
}

// Players returns the result of the last Refresh
func (s *Session) Players() []PlayerData {
	return slices.Clone(s.players)
}

// LocalPlayerID returns the id the last Refresh assigned to the local player
func (s *Session) LocalPlayerID() (int, bool) {
	return s.localID, s.hasLocalID
}

// InfoByPlayerID finds a player-info object by id. The local player is
// matched through its controller since the id field offset varies by build.
func (s *Session) InfoByPlayerID(id int) process.ProcessMemoryAddress {
	infos := s.PlayerInfos()

	if s.hasLocalID && id == s.localID {
		if local := s.LocalPlayer(); !local.IsNull() {
			for _, npi := range infos {
				if s.ControlFromInfo(npi) == local {
					return npi
				}
			}
		}
	}

	for _, npi := range infos {
		base := s.fields(npi)
		for _, off := range infoIDOffsets {
			if v, ok := s.readU8(base.Add(off)); ok && int(v) == id {
				return npi
			}
		}
	}
	return 0
}

// InfoByColor finds the player-info object wearing the given color
func (s *Session) InfoByColor(color int) process.ProcessMemoryAddress {
	if color < 0 || color > MaxColorID {
		return 0
	}
	for _, npi := range s.PlayerInfos() {
		if s.ColorID(npi) == color {
			return npi
		}
	}
	return 0
}
