package reader

import (
	"ilmem/cache"
	"ilmem/resolver"
)

func colorMap(players []resolver.PlayerData) map[int]string {
	out := make(map[int]string, len(players))
	for _, p := range players {
		out[p.ID] = p.ColorName
	}
	return out
}

// cachedPlayers returns the cached player list without forcing a refresh
func (r *Reader) cachedPlayers() ([]resolver.PlayerData, bool) {
	v, ok := r.cache.Get(TypePlayers, nil)
	if !ok {
		return nil, false
	}
	players, ok := v.([]resolver.PlayerData)
	return players, ok
}

// Players lists every resolved player
func (r *Reader) Players() []resolver.PlayerData {
	if r.sess == nil {
		return nil
	}
	return cache.Fetch(r.cache, TypePlayers, nil, r.sess.Refresh)
}

func (r *Reader) find(match func(resolver.PlayerData) bool) (resolver.PlayerData, bool) {
	players, ok := r.cachedPlayers()
	if !ok {
		if r.sess == nil {
			return resolver.PlayerData{}, false
		}
		players = r.sess.Refresh()
	}
	for _, p := range players {
		if match(p) {
			return p, true
		}
	}
	return resolver.PlayerData{}, false
}

func (r *Reader) LocalPlayer() (resolver.PlayerData, bool) {
	return r.find(func(p resolver.PlayerData) bool { return p.IsLocal })
}

// LocalPlayerID is the id the session last assigned to the local player
func (r *Reader) LocalPlayerID() (int, bool) {
	if r.sess == nil {
		return 0, false
	}
	if _, ok := r.sess.LocalPlayerID(); !ok {
		r.sess.Refresh()
	}
	return r.sess.LocalPlayerID()
}

func (r *Reader) Player(id int) (resolver.PlayerData, bool) {
	return r.find(func(p resolver.PlayerData) bool { return p.ID == id })
}

func (r *Reader) PlayerByColor(color int) (resolver.PlayerData, bool) {
	return r.find(func(p resolver.PlayerData) bool { return p.ColorID == color })
}

// Positions maps player ids to positions, always freshly resolved
func (r *Reader) Positions() map[int]resolver.Vec2 {
	if r.sess == nil {
		return nil
	}
	players := r.sess.Refresh()
	out := make(map[int]resolver.Vec2, len(players))
	for _, p := range players {
		out[p.ID] = p.Position
	}
	return out
}

// Colors maps player ids to color names
func (r *Reader) Colors() map[int]string {
	if r.sess == nil {
		return nil
	}
	return cache.Fetch(r.cache, TypeColors, nil, func() map[int]string {
		return colorMap(r.sess.Refresh())
	})
}

func (r *Reader) Count() int {
	if players, ok := r.cachedPlayers(); ok {
		return len(players)
	}
	if r.sess == nil {
		return 0
	}
	return len(r.sess.Refresh())
}

func (r *Reader) Tasks(id int) []resolver.TaskData {
	if r.sess == nil {
		return nil
	}
	return cache.Fetch(r.cache, TypeTasks, id, func() []resolver.TaskData {
		return r.sess.TasksForPlayer(id)
	})
}

// reportStatus runs the report check at most once per HUD interval and
// repeats the last outcome in between
func (r *Reader) reportStatus() ReportStatus {
	now := r.now()
	if r.lastReport != nil && now.Sub(r.lastHUDScan) < r.hudInterval {
		return *r.lastReport
	}
	active, ok, diag := r.sess.IsReportButtonActive()
	status := ReportStatus{Active: active, OK: ok, Diag: diag}
	r.lastReport = &status
	r.lastHUDScan = now
	return status
}

// ReportActive reports whether the report button is currently usable
func (r *Reader) ReportActive() ReportStatus {
	if r.sess == nil {
		return ReportStatus{Diag: resolver.Diagnostics{"error": "not attached"}}
	}
	return cache.Fetch(r.cache, TypeHUD, subReport, r.reportStatus)
}

// SessionState returns the coarse session state
func (r *Reader) SessionState() resolver.State {
	if r.sess == nil {
		return resolver.StateLobby
	}
	return cache.Fetch(r.cache, TypeSession, subState, r.sess.State)
}

// MapName returns the map while a round runs, otherwise the state name
func (r *Reader) MapName() string {
	state := r.SessionState()
	if state != resolver.StateShip {
		return string(state)
	}
	return cache.Fetch(r.cache, TypeSession, subMap, r.sess.MapName)
}

func (r *Reader) LocalImpostor() (impostor, ok bool, diag resolver.Diagnostics) {
	if r.sess == nil {
		return false, false, resolver.Diagnostics{"error": "not attached"}
	}
	return r.sess.IsLocalImpostor()
}

func (r *Reader) PlayerDead(color int) (dead, ok bool, diag resolver.Diagnostics) {
	if r.sess == nil {
		return false, false, resolver.Diagnostics{"error": "not attached"}
	}
	if len(r.sess.Players()) == 0 {
		r.sess.Refresh()
	}
	return r.sess.IsPlayerDead(color)
}
