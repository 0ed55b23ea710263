package resolver

import (
	"slices"
	"testing"

	"ilmem/process"
)

func TestIsLocalImpostor(t *testing.T) {
	for _, arch := range arches {
		w := newWorld(t, arch)
		w.addPlayer(playerSpec{id: 0, color: 1, local: true, impostor: 1})
		s := w.session()

		impostor, ok, diag := s.IsLocalImpostor()
		if !ok || !impostor {
			t.Fatalf("%s: expected impostor, got %v ok=%v diag=%v", arch, impostor, ok, diag)
		}
		if diag["cached_ptr_offset"] != controlCachedField || diag["is_you_raw"] != 1 || diag["impostor_raw"] != 1 {
			t.Fatalf("%s: unexpected diagnostics %v", arch, diag)
		}
		if diag["is_impostor_offset"] != 2*uint64(arch.PointerSize())+1 {
			t.Fatalf("%s: unexpected impostor offset %v", arch, diag["is_impostor_offset"])
		}

		flags := w.fields(controlAt(0)+0x300) + 2*w.ptr()
		w.blob.PutU8(flags+1, 2)
		if _, ok, diag := s.IsLocalImpostor(); ok || diag["error"] != "unexpected raw value" {
			t.Fatalf("%s: expected a raw value error, got ok=%v diag=%v", arch, ok, diag)
		}
	}
}

func TestIsLocalImpostorErrors(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 1})
	s := w.session()

	if _, ok, diag := s.IsLocalImpostor(); ok || diag["error"] != "local player not found" {
		t.Fatalf("expected a missing local player, got ok=%v diag=%v", ok, diag)
	}

	w.blob.PutPointer(pcStatics, controlAt(0))
	w.blob.PutPointer(w.fields(controlAt(0))+controlCachedField, 0)
	_, ok, diag := s.IsLocalImpostor()
	if ok || diag["error"] != "CachedPlayerData not found" || diag["cached_ptr_offset"] != -1 {
		t.Fatalf("expected a missing data block, got ok=%v diag=%v", ok, diag)
	}
}

func TestIsPlayerDeadFromCachedData(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 1, pos: Vec2{1, 1}})
	w.addPlayer(playerSpec{id: 1, color: 2, pos: Vec2{1, 1}, dead: 1})
	s := w.session()
	s.Refresh()

	dead, ok, diag := s.IsPlayerDead(2)
	if !ok || !dead || diag["method"] != "CachedPlayerData" {
		t.Fatalf("expected dead via data block, got %v ok=%v diag=%v", dead, ok, diag)
	}
	if diag["color_name"] != "Green" || diag["player_id"] != 1 {
		t.Fatalf("unexpected player diagnostics %v", diag)
	}

	if dead, ok, _ := s.IsPlayerDead(1); !ok || dead {
		t.Fatalf("expected alive, got %v ok=%v", dead, ok)
	}
	if _, ok, diag := s.IsPlayerDead(9); ok || diag["error"] != "player with color_id 9 not found" {
		t.Fatalf("expected unknown color error, got %v", diag)
	}
}

func TestIsPlayerDeadFromRoles(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 1, pos: Vec2{1, 1}, role: RoleCrewmate})
	w.addPlayer(playerSpec{id: 1, color: 2, pos: Vec2{1, 1}, role: RoleImpostor})
	w.addPlayer(playerSpec{id: 2, color: 3, pos: Vec2{1, 1}, role: RoleCrewmateGhost})
	for i := range 3 {
		w.blob.PutPointer(w.fields(controlAt(i))+controlCachedField, 0)
	}
	s := w.session()
	s.Refresh()

	dead, ok, diag := s.IsPlayerDead(3)
	if !ok || !dead || diag["method"] != "RoleType_inference" {
		t.Fatalf("expected dead via roles, got %v ok=%v diag=%v", dead, ok, diag)
	}
	if diag["role_offset"] != uint64(infoRoleField) || diag["role_type_label"] != "CrewmateGhost" {
		t.Fatalf("unexpected role diagnostics %v", diag)
	}
	if got := diag["dead_role_colors"].([]int); !slices.Equal(got, []int{3}) {
		t.Fatalf("unexpected dead colors %v", got)
	}
	if got := diag["impostor_role_colors"].([]int); !slices.Equal(got, []int{2}) {
		t.Fatalf("unexpected impostor colors %v", got)
	}
	if diag["flag_0xE8"] != 0 || diag["warnings"] == nil {
		t.Fatalf("expected a quick flag mismatch, got %v", diag)
	}

	if dead, ok, diag := s.IsPlayerDead(2); !ok || dead || diag["warnings"] != nil {
		t.Fatalf("expected the impostor alive without warnings, got %v ok=%v diag=%v", dead, ok, diag)
	}
}

func TestIsPlayerDeadFallsBackToFlagBytes(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 1, pos: Vec2{1, 1}})
	w.blob.PutPointer(w.fields(controlAt(0))+controlCachedField, 0)
	s := w.session()
	s.Refresh()

	dead, ok, diag := s.IsPlayerDead(1)
	if !ok || dead || diag["method"] != "NPI_bool_fallback" || diag["npi_offset"] != uint64(0x34) {
		t.Fatalf("expected the flag byte fallback, got %v ok=%v diag=%v", dead, ok, diag)
	}
}
