package resolver

import (
	"fmt"
	"time"
)

// Vec2 is a world position
type Vec2 struct {
	X float32
	Y float32
}

func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}

// PlayerData is one player as seen in a single resolution cycle
type PlayerData struct {
	ID         int
	ColorID    int
	ColorName  string
	Position   Vec2
	IsLocal    bool
	LastUpdate time.Time
}

// TaskData is one task of a player. Optional fields are nil when the
// enrichment pass could not resolve them.
type TaskData struct {
	ID          uint32
	TypeID      int
	Completed   bool
	Step        *int
	MaxStep     *int
	StartSystem *int
	Location    *string
	Destination *string
}

// TypeName is the display name of the task type
func (t TaskData) TypeName() string {
	return TaskTypeName(t.TypeID)
}

// Diagnostics holds every intermediate signal of a derivation, keyed by name
type Diagnostics map[string]any

// State is the coarse session state
type State string

const (
	// StateLobby covers the main menu and the pre-game lobby
	StateLobby State = "LOBBY"
	// StateMatching is a joined room whose round has not started
	StateMatching State = "MATCHING"
	// StateShip is a running round
	StateShip State = "SHIP"
)

func ptrTo[T any](v T) *T {
	return &v
}
