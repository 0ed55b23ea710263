package resolver

import (
	"encoding/binary"

	"ilmem/process"
)

const (
	taskListCeiling = 64
	taskInfoSpan    = 0x400
	maxTaskID       = 1024

	// span of the controller searched for its own task objects
	ownedTasksSpan  = 0x1400
	ownedTaskProbe  = 6
	ownerRefSpan    = 0x120
	ownerFieldLimit = 0x80

	stepScanStart = 0x10
	stepScanEnd   = 0x200
	maxStepValue  = 16
)

// TaskInfoList finds the task-info list on a player-info object
func (s *Session) TaskInfoList(npi process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if npi.IsNull() {
		return 0
	}
	klass := s.class(s.off.TaskInfoListRVA, "list_1_networkedplayerinfo_taskinfo_")
	list, _ := s.scan.ScanFieldsForClass(s.fields(npi), taskInfoSpan, klass)
	return list
}

// parseTaskInfos decodes {id u32, type u8, completed u8} records, keeping
// those with a plausible id
func (s *Session) parseTaskInfos(list process.ProcessMemoryAddress) []*TaskData {
	var tasks []*TaskData
	for _, item := range s.scan.ReadList(list, taskListCeiling) {
		base := s.fields(item)
		data, err := s.mem.ReadBytes(base, 6)
		if err != nil {
			continue
		}
		id := binary.LittleEndian.Uint32(data)
		if id >= maxTaskID {
			continue
		}
		tasks = append(tasks, &TaskData{ID: id, TypeID: int(data[4]), Completed: data[5] != 0})
	}
	return tasks
}

// OwnedTaskList finds the controller's own task-object list. A candidate list
// qualifies when enough of its first items point back at the controller.
func (s *Session) OwnedTaskList(pc process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	if pc.IsNull() {
		return 0
	}
	base := s.fields(pc)
	for off := uint64(0); off < ownedTasksSpan; off += s.ptrSize() {
		list := s.readPtr(base.Add(off))
		h, ok := s.scan.ReadListHeader(list)
		if !ok || h.Count <= 0 || h.Count > taskListCeiling {
			continue
		}

		total := min(h.Count, ownedTaskProbe)
		hits := 0
		for _, obj := range s.scan.ReadArray(h.Items, total) {
			if s.scan.ObjectFieldsContainsPtr(obj, pc, ownerRefSpan) {
				hits++
			}
		}
		if hits >= max(2, total/2) {
			return list
		}
	}
	return 0
}

// ownedTask is what a task object reveals around its owner back-reference
type ownedTask struct {
	id      uint32
	typeID  *int
	startAt *int
}

// readOwnedTask locates the owner field, then reads the id before it and the
// start system and type after it
func (s *Session) readOwnedTask(obj, pc process.ProcessMemoryAddress) (ownedTask, bool) {
	base := s.fields(obj)
	ptr := s.ptrSize()

	for off := uint64(0); off < ownerFieldLimit; off += ptr {
		if s.readPtr(base.Add(off)) != pc {
			continue
		}
		owner := base.Add(off)

		id, ok := s.readU32(owner - 4)
		if !ok {
			return ownedTask{}, false
		}
		t := ownedTask{id: id}
		if v, ok := s.readI32(owner.Add(ptr)); ok {
			t.startAt = ptrTo(int(v))
		}
		if v, ok := s.readI32(owner.Add(ptr + 4)); ok {
			t.typeID = ptrTo(int(v))
		}
		return t, true
	}
	return ownedTask{}, false
}

// stepInfo scores adjacent int pairs (step, maxStep) and keeps the first best.
// Small maxima, small steps and agreement with the completion hint score up.
func (s *Session) stepInfo(obj process.ProcessMemoryAddress, completed bool) (step, maxStep int, ok bool) {
	base := s.fields(obj)
	data, err := s.mem.ReadBytes(base.Add(stepScanStart), stepScanEnd-stepScanStart+4)
	if err != nil {
		return s.stepInfoSlow(base, completed)
	}

	bestScore := -1
	for off := 0; off+8 <= len(data); off += 4 {
		a := int(int32(binary.LittleEndian.Uint32(data[off:])))
		b := int(int32(binary.LittleEndian.Uint32(data[off+4:])))
		if score, valid := scoreStep(a, b, completed); valid && score > bestScore {
			bestScore, step, maxStep = score, a, b
		}
	}
	return step, maxStep, bestScore >= 0
}

func (s *Session) stepInfoSlow(base process.ProcessMemoryAddress, completed bool) (step, maxStep int, ok bool) {
	bestScore := -1
	for off := uint64(stepScanStart); off < stepScanEnd; off += 4 {
		a, okA := s.readI32(base.Add(off))
		b, okB := s.readI32(base.Add(off + 4))
		if !okA || !okB {
			continue
		}
		if score, valid := scoreStep(int(a), int(b), completed); valid && score > bestScore {
			bestScore, step, maxStep = score, int(a), int(b)
		}
	}
	return step, maxStep, bestScore >= 0
}

func scoreStep(a, b int, completed bool) (int, bool) {
	if a < 0 || a > maxStepValue || b < 1 || b > maxStepValue || a > b {
		return 0, false
	}
	score := 0
	if b <= 7 {
		score += 2
	}
	if a <= 3 {
		score++
	}
	if completed && a == b {
		score += 2
	}
	if !completed && a < b {
		score++
	}
	return score, true
}

// tasksFor decodes a player's tasks and enriches them from the controller's
// own task objects when they can be found
func (s *Session) tasksFor(npi process.ProcessMemoryAddress) []TaskData {
	tasks := s.parseTaskInfos(s.TaskInfoList(npi))
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[uint32]*TaskData, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	pc := s.ControlFromInfo(npi)
	if !pc.IsNull() {
		for _, obj := range s.scan.ReadList(s.OwnedTaskList(pc), taskListCeiling) {
			owned, ok := s.readOwnedTask(obj, pc)
			if !ok {
				continue
			}

			t := byID[owned.id]
			if t == nil {
				t = &TaskData{ID: owned.id, TypeID: -1}
				byID[owned.id] = t
				tasks = append(tasks, t)
			}
			if owned.typeID != nil {
				t.TypeID = *owned.typeID
			}
			if owned.startAt != nil {
				t.StartSystem = ptrTo(*owned.startAt)
				if name, ok := SystemName(*owned.startAt); ok {
					t.Location = ptrTo(name)
				}
			}

			t.Step, t.MaxStep = nil, nil
			if step, maxStep, ok := s.stepInfo(obj, t.Completed); ok {
				t.Step, t.MaxStep = ptrTo(step), ptrTo(maxStep)
				if maxStep > 0 && step >= maxStep {
					t.Completed = true
				}
			}
		}
	}

	out := make([]TaskData, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, *t)
	}
	return out
}

// TasksForPlayer returns the tasks of the player with the given id
func (s *Session) TasksForPlayer(id int) []TaskData {
	npi := s.InfoByPlayerID(id)
	if npi.IsNull() {
		return nil
	}
	return s.tasksFor(npi)
}

// TasksForColor returns the tasks of the player wearing the given color
func (s *Session) TasksForColor(color int) []TaskData {
	npi := s.InfoByColor(color)
	if npi.IsNull() {
		return nil
	}
	return s.tasksFor(npi)
}
