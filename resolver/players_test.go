package resolver

import (
	"testing"

	"ilmem/process"
)

func TestPositionFallsBackToLastSent(t *testing.T) {
	for _, arch := range arches {
		w := newWorld(t, arch)
		w.addPlayer(playerSpec{id: 0, color: 1, sent: Vec2{3.5, -2.25}})
		w.addPlayer(playerSpec{id: 1, color: 2, pos: Vec2{1, 2}, sent: Vec2{9, 9}})
		s := w.session()

		pos, ok := s.Position(controlAt(0))
		if !ok || pos != (Vec2{3.5, -2.25}) {
			t.Fatalf("%s: expected last sent position, got %v ok=%v", arch, pos, ok)
		}
		pos, ok = s.Position(controlAt(1))
		if !ok || pos != (Vec2{1, 2}) {
			t.Fatalf("%s: expected primary position, got %v ok=%v", arch, pos, ok)
		}
		if _, ok := s.Position(0); ok {
			t.Fatalf("%s: null controller should have no position", arch)
		}
	}
}

func TestRefreshResolvesPlayers(t *testing.T) {
	for _, arch := range arches {
		w := newWorld(t, arch)
		w.addPlayer(playerSpec{id: 0, color: 0, pos: Vec2{1, 1}})
		w.addPlayer(playerSpec{id: 1, color: 3, pos: Vec2{2, 2}, local: true})
		w.addPlayer(playerSpec{id: 1, color: 10, pos: Vec2{3, 3}})
		s := w.session()

		players := s.Refresh()
		if len(players) != 3 {
			t.Fatalf("%s: expected 3 players, got %d", arch, len(players))
		}

		want := []struct {
			id    int
			color string
			local bool
		}{
			{0, "Red", false},
			{1, "Pink", true},
			{2, "Cyan", false},
		}
		for i, p := range players {
			if p.ID != want[i].id || p.ColorName != want[i].color || p.IsLocal != want[i].local {
				t.Fatalf("%s: player %d = %+v, want %+v", arch, i, p, want[i])
			}
			if !p.LastUpdate.Equal(w.now) {
				t.Fatalf("%s: player %d has timestamp %v", arch, i, p.LastUpdate)
			}
		}

		if id, ok := s.LocalPlayerID(); !ok || id != 1 {
			t.Fatalf("%s: expected local id 1, got %d ok=%v", arch, id, ok)
		}
		if got := s.InfoByColor(10); got != infoAt(2) {
			t.Fatalf("%s: InfoByColor(10) = %s", arch, got.ToString())
		}
		if got := s.InfoByPlayerID(1); got != infoAt(1) {
			t.Fatalf("%s: local player should resolve through its controller, got %s", arch, got.ToString())
		}
		if got := s.InfoByColor(MaxColorID + 1); got != 0 {
			t.Fatalf("%s: out of range color resolved to %s", arch, got.ToString())
		}
	}
}

func TestRefreshSkipsPlayersWithoutControl(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 4, pos: Vec2{1, 1}})
	w.addPlayer(playerSpec{id: 1, color: 5, pos: Vec2{1, 1}})
	w.blob.PutPointer(w.fields(infoAt(1))+infoControlField, 0)

	players := w.session().Refresh()
	if len(players) != 1 || players[0].ColorID != 4 {
		t.Fatalf("expected only the orange player, got %+v", players)
	}
}

func TestPlayerInfosFiltersByClass(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 1})
	w.addPlayer(playerSpec{id: 1, color: 2})
	w.object(infoAt(0), rvaClientData)

	infos := w.session().PlayerInfos()
	if len(infos) != 1 || infos[0] != infoAt(1) {
		t.Fatalf("expected only the second player-info, got %v", infos)
	}
}

func TestColorOffsetIsReSearchedWhenStale(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 7})
	s := w.session()

	npi := infoAt(0)
	if c := s.ColorID(npi); c != 7 {
		t.Fatalf("expected color 7, got %d", c)
	}
	if off, ok := s.offsets.Get(s.arch, fieldColorDict); !ok || off != infoColorField {
		t.Fatalf("expected cached offset 0x%x, got 0x%x ok=%v", infoColorField, off, ok)
	}

	dict := npi + 0x200
	w.blob.PutPointer(w.fields(npi)+infoColorField, 0)
	w.blob.PutPointer(w.fields(npi)+0x40, dict)

	if c := s.ColorID(npi); c != 7 {
		t.Fatalf("expected color 7 after the move, got %d", c)
	}
	if off, _ := s.offsets.Get(s.arch, fieldColorDict); off != 0x40 {
		t.Fatalf("expected the offset to move to 0x40, got 0x%x", off)
	}

	w.blob.PutPointer(w.fields(npi)+0x40, 0)
	if c := s.ColorID(npi); c != -1 {
		t.Fatalf("expected -1 without a dictionary, got %d", c)
	}
	if _, ok := s.offsets.Get(s.arch, fieldColorDict); ok {
		t.Fatalf("stale offset should be evicted")
	}
}

func TestResetClearsSessionCaches(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addPlayer(playerSpec{id: 0, color: 1, pos: Vec2{1, 1}, local: true})
	s := w.session()

	s.Refresh()
	if _, ok := s.LocalPlayerID(); !ok {
		t.Fatalf("expected a local id after refresh")
	}

	s.Reset()
	if _, ok := s.LocalPlayerID(); ok {
		t.Fatalf("reset should drop the local id")
	}
	if len(s.Players()) != 0 {
		t.Fatalf("reset should drop the players")
	}
	if _, ok := s.offsets.Get(s.arch, fieldColorDict); ok {
		t.Fatalf("reset should drop cached offsets")
	}
}
