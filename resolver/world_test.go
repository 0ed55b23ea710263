package resolver

import (
	"testing"
	"time"

	"ilmem/accessor"
	"ilmem/config"
	"ilmem/metadata"
	"ilmem/process"
	"ilmem/process/memory_map"
	"ilmem/process_blob"
)

const (
	moduleBase process.ProcessMemoryAddress = 0x10000000
	heapBase   process.ProcessMemoryAddress = 0x11000000
	moduleSize                              = 0x20000
	heapSize                                = 0x40000
	moduleName                              = "GameAssembly.dll"
)

// type-info slots of the synthetic module
const (
	rvaPlayerControl  = 0x100
	rvaGameData       = 0x108
	rvaPlayerInfoList = 0x110
	rvaTaskInfoList   = 0x118
	rvaPlayerInfo     = 0x120
	rvaCachedData     = 0x128
	rvaClientData     = 0x130
	rvaHudManager     = 0x140
	rvaReportButton   = 0x148
	rvaSkeldShip      = 0x150
	rvaDictionary     = 0x158
	rvaNetTransform   = 0x160
	rvaOwnedTaskList  = 0x168
	rvaTaskObject     = 0x170
)

const metadataDoc = `{
  "typeInfoPointers": [
    {"dotNetType": "HudManager", "name": "HudManager_TypeInfo", "type": "HudManager", "virtualAddress": "0x140"},
    {"dotNetType": "ReportButton", "name": "ReportButton_TypeInfo", "type": "ReportButton", "virtualAddress": "0x148"},
    {"dotNetType": "SkeldShipStatus", "name": "SkeldShipStatus_TypeInfo", "type": "SkeldShipStatus", "virtualAddress": "0x150"}
  ],
  "stringLiterals": []
}`

// field offsets used by the synthetic objects
const (
	infoIDField         = 0x8
	infoSlotField       = 0x20
	infoRoleField       = 0x30
	infoColorField      = 0x38
	infoControlField    = 0x48
	infoClientField     = 0x50
	infoTaskListField   = 0x60
	controlCachedField  = 0x20
	controlNetField     = 0x90
	controlOwnedField   = 0x100
	gameDataListField   = 0x18
	gameDataStateField  = 0x10
	hudButtonField      = 0x80
	cachedFlagsPtrCount = 2
)

var (
	pcStatics  = heapBase + 0x000
	gdStatics  = heapBase + 0x040
	hudStatics = heapBase + 0x080
	gameData   = heapBase + 0x400
	infoList   = heapBase + 0x500
	infoItems  = heapBase + 0x600
	clientData = heapBase + 0x30000
	hudObject  = heapBase + 0x31000
	reportObj  = heapBase + 0x31800
	shipObject = heapBase + 0x32000
)

func classAt(rva uint64) process.ProcessMemoryAddress {
	return moduleBase + 0x1000 + process.ProcessMemoryAddress((rva-0x100)*0x20)
}

func infoAt(i int) process.ProcessMemoryAddress {
	return heapBase + 0x1000 + process.ProcessMemoryAddress(i*0x800)
}

func controlAt(i int) process.ProcessMemoryAddress {
	return heapBase + 0x8000 + process.ProcessMemoryAddress(i*0x800)
}

func taskListAt(i int) process.ProcessMemoryAddress {
	return heapBase + 0x20000 + process.ProcessMemoryAddress(i*0x1000)
}

type playerSpec struct {
	id       uint8
	color    uint32
	pos      Vec2
	sent     Vec2
	slot     uint32
	role     RoleType
	flagE8   uint8
	local    bool
	client   bool
	impostor uint8
	dead     uint8
}

type taskSpec struct {
	id        uint32
	typeID    uint8
	completed bool
	startAt   int32
	step      int32
	maxStep   int32
}

// world is a synthetic game image: a read-only module holding type-info
// slots and class descriptors, and one heap region holding the objects
type world struct {
	t       *testing.T
	arch    process.Arch
	blob    *process_blob.ProcessBlob
	mem     *accessor.Accessor
	cfg     config.Config
	meta    *metadata.Index
	now     time.Time
	players int
}

func newWorld(t *testing.T, arch process.Arch) *world {
	t.Helper()
	blob := process_blob.NewProcessBlob(arch)
	blob.Map(moduleBase, moduleSize, memory_map.PAGE_READONLY)
	blob.AddModule(moduleName, moduleBase, moduleSize)
	blob.Map(heapBase, heapSize, memory_map.PAGE_READWRITE)

	mem, err := accessor.AttachProcess(blob, moduleName)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	meta := metadata.New()
	if err := meta.LoadBytes([]byte(metadataDoc)); err != nil {
		t.Fatalf("metadata: %v", err)
	}

	cfg := config.Default()
	off := &cfg.Offsets
	off.PlayerControlRVA = rvaPlayerControl
	off.GameDataRVA = rvaGameData
	off.PlayerInfoListRVA = rvaPlayerInfoList
	off.TaskInfoListRVA = rvaTaskInfoList
	off.PlayerInfoRVA = rvaPlayerInfo
	off.CachedPlayerDataRVA = rvaCachedData
	off.ClientDataRVA = rvaClientData
	off.HeapWindowStart = config.Offset(heapBase - moduleBase)
	off.HeapWindowSize = heapSize
	off.HeapWindowCount = 1
	off.ModuleCodeSpan = moduleSize
	off.ReportButtonMethods = nil
	off.ReportSeedMethods = nil

	w := &world{
		t:    t,
		arch: arch,
		blob: blob,
		mem:  mem,
		cfg:  cfg,
		meta: meta,
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for rva := uint64(rvaPlayerControl); rva <= rvaTaskObject; rva += 8 {
		blob.PutPointer(moduleBase.Add(rva), classAt(rva))
	}
	blob.PutPointer(classAt(rvaPlayerControl)+0x5C, pcStatics)
	blob.PutPointer(classAt(rvaGameData)+0x5C, gdStatics)
	blob.PutPointer(classAt(rvaHudManager)+0x5C, hudStatics)

	w.object(gameData, rvaGameData)
	blob.PutPointer(gdStatics, gameData)
	w.object(infoList, rvaPlayerInfoList)
	blob.PutPointer(w.fields(gameData)+gameDataListField, infoList)
	blob.PutPointer(w.fields(infoList), infoItems)

	w.object(clientData, rvaClientData)
	return w
}

func (w *world) fields(obj process.ProcessMemoryAddress) process.ProcessMemoryAddress {
	return obj.Add(w.arch.HeaderSize())
}

func (w *world) ptr() process.ProcessMemoryAddress {
	return process.ProcessMemoryAddress(w.arch.PointerSize())
}

func (w *world) object(obj process.ProcessMemoryAddress, rva uint64) {
	w.blob.PutPointer(obj, classAt(rva))
}

// list writes a List<T> header at list with its items array at items
func (w *world) list(list, items process.ProcessMemoryAddress, rva uint64, elems ...process.ProcessMemoryAddress) {
	w.object(list, rva)
	w.blob.PutPointer(w.fields(list), items)
	w.blob.PutI32(w.fields(list)+w.ptr(), int32(len(elems)))
	first := items.Add(w.arch.VectorOffset())
	for i, e := range elems {
		w.blob.PutPointer(first+process.ProcessMemoryAddress(i)*w.ptr(), e)
	}
}

// addPlayer builds a player-info object, its controller and everything they
// reference, and appends it to the game-data player list
func (w *world) addPlayer(p playerSpec) int {
	i := w.players
	w.players++

	npi, pc := infoAt(i), controlAt(i)
	w.object(npi, rvaPlayerInfo)
	nf := w.fields(npi)
	w.blob.PutU8(nf+infoIDField, p.id)
	w.blob.PutU32(nf+infoSlotField, p.slot)
	w.blob.PutU16(nf+infoRoleField, uint16(p.role))
	w.blob.PutPointer(nf+infoControlField, pc)
	w.blob.PutU8(nf+0xE8, p.flagE8)
	if p.client {
		w.blob.PutPointer(nf+infoClientField, clientData)
	}

	// outfit dictionary {0: outfit}
	dict, entries, outfit := npi+0x200, npi+0x280, npi+0x300
	w.object(dict, rvaDictionary)
	df := w.fields(dict)
	w.blob.PutPointer(df.Add(w.arch.DictEntriesOffset()), entries)
	w.blob.PutI32(df.Add(w.arch.DictCountOffset()), 1)
	entry := entries.Add(w.arch.VectorOffset())
	w.blob.PutI32(entry, 0)
	w.blob.PutI32(entry.Add(w.arch.DictKeyOffset()), 0)
	w.blob.PutPointer(entry.Add(w.arch.DictValueOffset()), outfit)
	w.blob.PutU32(w.fields(outfit), p.color)
	w.blob.PutPointer(nf+infoColorField, dict)

	w.object(pc, rvaPlayerControl)
	pf := w.fields(pc)
	net := pc + 0x200
	w.object(net, rvaNetTransform)
	w.blob.PutPointer(pf+controlNetField, net)
	w.putPos(net, 0x3C, p.pos)
	w.putPos(net, 0x44, p.sent)

	cached := pc + 0x300
	w.object(cached, rvaCachedData)
	w.blob.PutPointer(pf+controlCachedField, cached)
	flags := w.fields(cached) + cachedFlagsPtrCount*w.ptr()
	if p.local {
		w.blob.PutU8(flags, 1)
		w.blob.PutPointer(pcStatics, pc)
	}
	w.blob.PutU8(flags+1, p.impostor)
	w.blob.PutU8(flags+2, p.dead)

	infos := make([]process.ProcessMemoryAddress, w.players)
	for j := range infos {
		infos[j] = infoAt(j)
	}
	w.list(infoList, infoItems, rvaPlayerInfoList, infos...)
	return i
}

func (w *world) putPos(net process.ProcessMemoryAddress, off uint64, v Vec2) {
	at := w.fields(net).Add(off)
	w.blob.PutF32(at, v.X)
	w.blob.PutF32(at+4, v.Y)
}

// addTasks gives player i a task-info list and, on its controller, a list of
// task objects pointing back at the controller
func (w *world) addTasks(i int, tasks ...taskSpec) {
	npi, pc := infoAt(i), controlAt(i)
	base := taskListAt(i)

	var infos []process.ProcessMemoryAddress
	for j, task := range tasks {
		obj := base + 0x200 + process.ProcessMemoryAddress(j*0x40)
		w.object(obj, rvaTaskObject)
		f := w.fields(obj)
		w.blob.PutU32(f, task.id)
		w.blob.PutU8(f+4, task.typeID)
		if task.completed {
			w.blob.PutU8(f+5, 1)
		}
		infos = append(infos, obj)
	}
	w.list(base, base+0x100, rvaTaskInfoList, infos...)
	w.blob.PutPointer(w.fields(npi)+infoTaskListField, base)

	// owned task objects: id, owner, start system, type, step, max step
	owned := pc + 0x400
	var objs []process.ProcessMemoryAddress
	for j, task := range tasks {
		obj := pc + 0x500 + process.ProcessMemoryAddress(j*0x100)
		w.object(obj, rvaTaskObject)
		owner := w.fields(obj) + 0x18
		w.blob.PutU32(owner-4, task.id)
		w.blob.PutPointer(owner, pc)
		w.blob.PutI32(owner+w.ptr(), task.startAt)
		w.blob.PutI32(owner+w.ptr()+4, int32(task.typeID))
		w.blob.PutI32(owner+w.ptr()+8, task.step)
		w.blob.PutI32(owner+w.ptr()+12, task.maxStep)
		objs = append(objs, obj)
	}
	w.list(owned, owned+0x80, rvaOwnedTaskList, objs...)
	w.blob.PutPointer(w.fields(pc)+controlOwnedField, owned)
}

// addHUD places the HUD manager in its class statics and the report button in
// one of its fields
func (w *world) addHUD() {
	w.object(hudObject, rvaHudManager)
	w.blob.PutPointer(hudStatics, hudObject)
	w.object(reportObj, rvaReportButton)
	w.blob.PutPointer(w.fields(hudObject)+hudButtonField, reportObj)
}

func (w *world) session() *Session {
	return NewSession(w.mem, w.meta, w.cfg, WithClock(func() time.Time { return w.now }))
}

var arches = []process.Arch{process.Arch32, process.Arch64}
