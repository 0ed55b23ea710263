package resolver

import (
	"fmt"
	"strings"
)

// PanelEntry is one line of the in-game task list
type PanelEntry struct {
	Room     string
	Task     string
	Done     int
	Total    int
	TaskID   uint32
	TypeID   int
	Coord    Vec2
	HasCoord bool
}

func (e PanelEntry) String() string {
	if e.Total > 1 {
		return fmt.Sprintf("%s: %s (%d/%d)", e.Room, e.Task, e.Done, e.Total)
	}
	return fmt.Sprintf("%s: %s", e.Room, e.Task)
}

// TaskPanel formats tasks the way the game's task list shows them. Step
// counts come from the task itself when known, else from how many tasks of
// the same type the player holds.
func TaskPanel(tasks []TaskData) []PanelEntry {
	totals := make(map[int]int)
	completed := make(map[int]int)
	for _, t := range tasks {
		totals[t.TypeID]++
		if t.Completed {
			completed[t.TypeID]++
		}
	}

	out := make([]PanelEntry, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, panelEntry(t, totals, completed))
	}
	return out
}

func panelEntry(t TaskData, totals, completed map[int]int) PanelEntry {
	var location string
	if t.Location != nil {
		location = *t.Location
	}

	roomName, coord, hasCoord := TaskLocation(t.TypeID, location)
	if location != "" {
		roomName = canonicalRoom(location)
	}

	e := PanelEntry{
		Room:     displayRoom(roomName),
		Task:     TaskTypeName(t.TypeID),
		TaskID:   t.ID,
		TypeID:   t.TypeID,
		Coord:    coord,
		HasCoord: hasCoord,
	}

	if t.Step != nil && t.MaxStep != nil {
		e.Done = *t.Step
		e.Total = max(*t.MaxStep, 1)
	} else {
		e.Total = totals[t.TypeID]
		if hint, ok := multiStepHint[t.TypeID]; ok && e.Total <= 1 {
			e.Total = hint
		}
		e.Done = completed[t.TypeID]
	}

	if t.TypeID == TaskDivertPower {
		dest := ""
		if t.Destination != nil {
			dest = *t.Destination
		}
		electrical := strings.EqualFold(roomName, "Electrical")
		if dest == "" && electrical {
			dest = divertDestination(roomName)
		}
		switch {
		case dest != "":
			e.Task = "Divert Power to " + dest
		case roomName != "" && !electrical:
			e.Task = "Accept Diverted Power"
		}
	}
	return e
}
