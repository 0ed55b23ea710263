package resolver

import (
	"fmt"
	"strings"
)

// MaxColorID is the highest valid player color
const MaxColorID = 18

var colorNames = [...]string{
	"Red", "Blue", "Green", "Pink", "Orange", "Yellow", "Black", "White", "Purple", "Brown",
	"Cyan", "Lime", "Maroon", "Rose", "Banana", "Gray", "Tan", "Sunset", "Coral",
}

func ColorName(id int) string {
	if id < 0 || id >= len(colorNames) {
		return fmt.Sprintf("Unknown(%d)", id)
	}
	return colorNames[id]
}

// RoleType is the role enumeration stored on a player-info object
type RoleType uint16

const (
	RoleCrewmate      RoleType = 0x00
	RoleImpostor      RoleType = 0x01
	RoleScientist     RoleType = 0x02
	RoleEngineer      RoleType = 0x03
	RoleGuardianAngel RoleType = 0x04
	RoleShapeshifter  RoleType = 0x05
	RoleCrewmateGhost RoleType = 0x06
	RoleImpostorGhost RoleType = 0x07
	RoleNoisemaker    RoleType = 0x08
	RolePhantom       RoleType = 0x09
	RoleTracker       RoleType = 0x0A
	RoleDetective     RoleType = 0x0C
	RoleViper         RoleType = 0x12
)

// roleTypeCeiling leaves room for roles added after this table
const roleTypeCeiling = 0x20

var roleNames = map[RoleType]string{
	RoleCrewmate:      "Crewmate",
	RoleImpostor:      "Impostor",
	RoleScientist:     "Scientist",
	RoleEngineer:      "Engineer",
	RoleGuardianAngel: "GuardianAngel",
	RoleShapeshifter:  "Shapeshifter",
	RoleCrewmateGhost: "CrewmateGhost",
	RoleImpostorGhost: "ImpostorGhost",
	RoleNoisemaker:    "Noisemaker",
	RolePhantom:       "Phantom",
	RoleTracker:       "Tracker",
	RoleDetective:     "Detective",
	RoleViper:         "Viper",
}

func (r RoleType) Known() bool {
	_, named := roleNames[r]
	return named || r < roleTypeCeiling
}

func (r RoleType) Dead() bool {
	return r == RoleGuardianAngel || r == RoleCrewmateGhost || r == RoleImpostorGhost
}

func (r RoleType) Impostor() bool {
	return r == RoleImpostor || r == RoleShapeshifter || r == RoleImpostorGhost
}

func (r RoleType) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint16(r))
}

// Task type ids of the ship map
const (
	TaskDivertPower = 0x0E
)

var taskTypeNames = map[int]string{
	0x00: "Submit Scan",
	0x01: "Prime Shields",
	0x02: "Fuel Engines",
	0x03: "Chart Course",
	0x04: "Start Reactor",
	0x05: "Swipe Card",
	0x06: "Clear Asteroids",
	0x07: "Download Data",
	0x09: "Empty Chute",
	0x0B: "Align Engine Output",
	0x0C: "Fix Wiring",
	0x0E: "Divert Power",
	0x12: "Clean O2 Filter",
	0x14: "Restore Oxygen",
	0x15: "Stabilize Steering",
	0x1C: "Run Diagnostics",
}

func TaskTypeName(id int) string {
	if name, ok := taskTypeNames[id]; ok {
		return name
	}
	return fmt.Sprintf("TaskType#%d", id)
}

// multiStepHint is the step count of task types that take several visits
var multiStepHint = map[int]int{
	0x02: 2,
	0x07: 2,
	0x0B: 2,
	0x0C: 3,
	0x0E: 2,
}

var systemNames = [...]string{
	"Hallway", "Storage", "Cafeteria", "Reactor", "Upper Engine", "Navigation", "Admin",
	"Electrical", "Oxygen", "Shields", "MedBay", "Security", "Weapons", "Lower Engine",
	"Communications", "Ship Tasks", "Doors", "Sabotage", "Decontamination", "Launchpad",
	"Locker Room", "Laboratory", "Balcony", "Office", "Greenhouse", "Dropship",
	"Decontamination", "Outside", "Specimens", "Boiler Room", "Vault", "Cockpit", "Armory",
	"Kitchen", "Viewing Deck", "Hall of Portraits", "Cargo Bay", "Ventilation", "Showers",
	"Engine Room", "Brig", "Meeting Room", "Records", "Lounge", "Gap Room", "Main Hall",
	"Medical", "Decontamination", "Zipline", "Mining Pit", "Fishing Dock", "Rec Room",
	"Lookout", "Beach", "Highlands", "Jungle", "Sleeping Quarters",
}

// SystemName maps a system type id to its room name
func SystemName(id int) (string, bool) {
	if id < 0 || id >= len(systemNames) {
		return "", false
	}
	return systemNames[id], true
}

type room struct {
	name string
	pos  Vec2
}

// taskRooms lists where each ship task can be done, first entry is the default
var taskRooms = map[string][]room{
	"Submit Scan":     {{"MedBay", Vec2{-7.19, -5.17}}},
	"Prime Shields":   {{"Shields", Vec2{7.52, -14.48}}},
	"Fuel Engines":    {{"Storage", Vec2{-3.28, -14.32}}, {"Upper Engine", Vec2{-18.04, -0.61}}, {"Lower Engine", Vec2{-18.01, -12.81}}},
	"Chart Course":    {{"Navigation", Vec2{17.43, -3.12}}},
	"Start Reactor":   {{"Reactor", Vec2{-21.47, -6.12}}},
	"Swipe Card":      {{"Admin", Vec2{5.92, -9.02}}},
	"Clear Asteroids": {{"Weapons", Vec2{8.71, 1.26}}},
	"Download Data": {
		{"Communications", Vec2{4.30, -14.87}}, {"Admin", Vec2{2.69, -6.87}}, {"Electrical", Vec2{-9.88, -8.05}},
		{"Navigation", Vec2{16.92, -3.12}}, {"Weapons", Vec2{8.71, 3.37}},
	},
	"Align Engine Output": {{"Upper Engine", Vec2{-19.36, -1.22}}, {"Lower Engine", Vec2{-18.92, -13.43}}},
	"Fix Wiring": {
		{"Navigation", Vec2{14.59, -4.70}}, {"Cafeteria", Vec2{-5.06, 4.79}}, {"Security", Vec2{-15.54, -5.16}},
		{"Electrical", Vec2{-7.59, -8.11}}, {"Storage", Vec2{-1.97, -9.40}}, {"Admin", Vec2{1.28, -6.98}},
	},
	"Empty Chute": {{"Oxygen", Vec2{5.13, -3.80}}, {"Storage", Vec2{0.59, -16.96}}},
	"Divert Power": {
		{"Electrical", Vec2{-8.96, -8.07}}, {"Security", Vec2{-12.25, -3.52}}, {"Communications", Vec2{6.33, -14.73}},
		{"Weapons", Vec2{11.18, 1.64}}, {"Navigation", Vec2{16.03, -3.11}}, {"Upper Engine", Vec2{-17.15, 2.62}},
		{"Lower Engine", Vec2{-18.07, -9.88}}, {"Oxygen", Vec2{8.31, -3.15}}, {"Shields", Vec2{10.80, -10.72}},
	},
	"Clean O2 Filter":    {{"Oxygen", Vec2{6.06, -3.31}}},
	"Restore Oxygen":     {{"Oxygen", Vec2{6.75, -3.43}}},
	"Stabilize Steering": {{"Navigation", Vec2{0, 0}}},
}

var roomAliases = map[string]string{
	"O2": "Oxygen",
}

var divertPriority = []string{
	"Weapons", "Navigation", "Shields", "Communications", "Upper Engine", "Lower Engine", "Oxygen", "Security",
}

func canonicalRoom(name string) string {
	if c, ok := roomAliases[name]; ok {
		return c
	}
	return name
}

func displayRoom(name string) string {
	if name == "" {
		return "Unknown"
	}
	for alias, canonical := range roomAliases {
		if strings.EqualFold(canonical, name) {
			return alias
		}
	}
	return name
}

// TaskLocation returns the room and coordinates of a task type, preferring
// the given room when the task can be done there
func TaskLocation(typeID int, preferred string) (string, Vec2, bool) {
	rooms := taskRooms[TaskTypeName(typeID)]
	if len(rooms) == 0 {
		return "Unknown", Vec2{}, false
	}
	if preferred != "" {
		want := canonicalRoom(preferred)
		for _, r := range rooms {
			if r.name == want {
				return r.name, r.pos, true
			}
		}
	}
	return rooms[0].name, rooms[0].pos, true
}

func divertDestination(current string) string {
	current = canonicalRoom(current)
	for _, candidate := range divertPriority {
		if canonicalRoom(candidate) != current {
			return candidate
		}
	}
	return ""
}
