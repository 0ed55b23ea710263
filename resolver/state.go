package resolver

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"ilmem/process"
)

const (
	gameDataInts    = 8
	positionEpsilon = 1e-5
	maxSlotID       = 255
)

var lobbyUIClasses = []string{"creategameoptions", "gameoptionsmappicker", "gamesettingmenu"}

// ship status classes in probe order, with the map each one belongs to
var shipStatusClasses = []struct {
	name  string
	label string
}{
	{"skeldshipstatus", "SKELD"},
	{"mirashipstatus", "MIRA"},
	{"polusshipstatus", "POLUS"},
	{"airshipstatus", "AIRSHIP"},
	{"fungleshipstatus", "FUNGLE"},
}

// Signals are the raw observations the session state is derived from
type Signals struct {
	LobbyUIPresent bool
	LocalPlayer    process.ProcessMemoryAddress
	LocalPlayerID  *int
	NPICount       int
	AnyControl     bool
	AnyPosition    bool
	AnyClientData  bool
	HUD            process.ProcessMemoryAddress
	ShipStatusHits []string
	Errors         []string
	PlayerIDs      []int
	ClientSlots    []int
	GameDataFirst  *int
	GameDataState  *int
}

func hexOrZero(p process.ProcessMemoryAddress) any {
	if p.IsNull() {
		return 0
	}
	return fmt.Sprintf("0x%x", uint64(p))
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// Map renders the signals for diagnostics output
func (s Signals) Map() map[string]any {
	return map[string]any{
		"lobby_ui_present":   s.LobbyUIPresent,
		"local_player_ptr":   hexOrZero(s.LocalPlayer),
		"local_player_id":    intOrNil(s.LocalPlayerID),
		"npi_count":          s.NPICount,
		"any_pc":             s.AnyControl,
		"any_pc_pos":         s.AnyPosition,
		"any_clientdata":     s.AnyClientData,
		"hud_ptr":            hexOrZero(s.HUD),
		"ship_status_hits":   append([]string{}, s.ShipStatusHits...),
		"errors":             append([]string{}, s.Errors...),
		"player_ids":         append([]int{}, s.PlayerIDs...),
		"client_slots":       append([]int{}, s.ClientSlots...),
		"gamedata_first_int": intOrNil(s.GameDataFirst),
		"gamedata_state_int": intOrNil(s.GameDataState),
	}
}

// firstInstanceOf returns the first class in names with a live heap instance
func (s *Session) firstInstanceOf(names []string, deadline time.Time) (string, bool) {
	for _, name := range names {
		if s.expired(deadline) {
			break
		}
		klass := s.ClassByName(name)
		if klass.IsNull() {
			continue
		}
		if len(s.scan.ScanHeapForClassInstances(klass, nil, 1, deadline)) > 0 {
			return name, true
		}
	}
	return "", false
}

func (s *Session) gatherPlayerSignals(sig *Signals) {
	sig.LocalPlayer = s.LocalPlayer()
	if s.playerControlClass().IsNull() {
		sig.Errors = append(sig.Errors, "local_player_error:player control class not resolved")
	}

	infos := s.PlayerInfos()
	if len(infos) == 0 && s.GameData().IsNull() {
		sig.Errors = append(sig.Errors, "npi_error:game data not resolved")
	}
	sig.NPICount = len(infos)

	header := s.arch.HeaderSize()
	for _, npi := range infos {
		pc := s.ControlFromInfo(npi)
		if !pc.IsNull() {
			sig.AnyControl = true
			if pos, ok := s.Position(pc); ok && (math.Abs(float64(pos.X)) > positionEpsilon || math.Abs(float64(pos.Y)) > positionEpsilon) {
				sig.AnyPosition = true
			}
		}
		if !sig.AnyClientData && s.HasClientData(npi) {
			sig.AnyClientData = true
		}

		if id, ok := s.readU8(npi.Add(header + 0x8)); ok {
			sig.PlayerIDs = append(sig.PlayerIDs, int(id))
			if !pc.IsNull() && pc == sig.LocalPlayer {
				sig.LocalPlayerID = ptrTo(int(id))
			}
		}
		if slot, ok := s.readU32(npi.Add(header + 0x20)); ok {
			sig.ClientSlots = append(sig.ClientSlots, int(slot))
		}

		if sig.AnyPosition && sig.AnyClientData {
			break
		}
	}
}

func (s *Session) gameDataInts() []uint32 {
	gd := s.GameData()
	if gd.IsNull() {
		return nil
	}
	data, err := s.mem.ReadBytes(s.fields(gd), gameDataInts*4)
	if err != nil {
		return nil
	}
	out := make([]uint32, 0, gameDataInts)
	for off := 0; off+4 <= len(data); off += 4 {
		out = append(out, binary.LittleEndian.Uint32(data[off:]))
	}
	return out
}

// CollectSignals gathers one set of observations. The heap probes share the
// session budget; a probe that runs out of time counts as a miss.
func (s *Session) CollectSignals() Signals {
	var sig Signals
	deadline := s.deadline(s.cfg.SessionBudget)

	_, sig.LobbyUIPresent = s.firstInstanceOf(lobbyUIClasses, deadline)
	s.gatherPlayerSignals(&sig)

	if ints := s.gameDataInts(); len(ints) > 0 {
		sig.GameDataFirst = ptrTo(int(ints[0]))
		if len(ints) > 4 {
			sig.GameDataState = ptrTo(int(ints[4]))
		}
	}

	sig.HUD = s.HUD()

	names := make([]string, len(shipStatusClasses))
	for i, c := range shipStatusClasses {
		names[i] = c.name
	}
	if hit, ok := s.firstInstanceOf(names, deadline); ok {
		sig.ShipStatusHits = []string{hit}
	}
	return sig
}

// Classify derives the session state from one set of signals. Any lobby
// evidence wins; a round counts as running only once a player has moved
// off the origin.
func Classify(sig Signals) State {
	if sig.LobbyUIPresent || sig.LocalPlayer.IsNull() {
		return StateLobby
	}

	joined := sig.AnyControl || sig.NPICount > 1 || sig.AnyClientData
	first := sig.GameDataFirst
	if first != nil {
		if *first == 0 {
			return StateLobby
		}
		joined = true
	}

	slots := make(map[int]bool)
	for _, slot := range sig.ClientSlots {
		if slot >= 0 {
			slots[slot] = true
		}
	}
	if len(slots) >= 2 {
		joined = true
	} else if first == nil {
		return StateLobby
	}

	ids := make(map[int]int)
	for _, id := range sig.PlayerIDs {
		if id >= 0 && id < maxSlotID {
			ids[id]++
		}
	}
	if len(ids) > 0 {
		repeated := false
		for _, n := range ids {
			repeated = repeated || n > 1
		}
		started := first != nil && *first != 0
		if len(ids) == 1 && repeated && !sig.AnyClientData && len(slots) <= 1 && !started {
			return StateLobby
		}
	} else if first == nil {
		return StateLobby
	}

	if !joined {
		return StateLobby
	}

	switch {
	case sig.GameDataState != nil && *sig.GameDataState != 0 && sig.AnyPosition:
		return StateShip
	case !sig.HUD.IsNull() && sig.AnyPosition:
		return StateShip
	case len(sig.ShipStatusHits) > 0 && sig.AnyPosition:
		return StateShip
	}
	return StateMatching
}

// Snapshot collects signals and classifies them
func (s *Session) Snapshot() (State, Signals) {
	sig := s.CollectSignals()
	state := Classify(sig)
	s.log.Debugln("Session state", state)
	return state, sig
}

// State returns the current coarse session state
func (s *Session) State() State {
	state, _ := s.Snapshot()
	return state
}

// MapName returns the map label while a round runs, otherwise the state name
func (s *Session) MapName() string {
	state, sig := s.Snapshot()
	if state != StateShip {
		return string(state)
	}
	for _, hit := range sig.ShipStatusHits {
		for _, c := range shipStatusClasses {
			if c.name == hit {
				return c.label
			}
		}
	}
	return string(state)
}
