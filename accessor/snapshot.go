package accessor

import (
	"fmt"

	"ilmem/process"
	"ilmem/process_blob"

	"github.com/dustin/go-humanize"
)

// SnapshotStats summarizes a saved snapshot
type SnapshotStats struct {
	Regions int
	Skipped int
	Bytes   uint64
}

func (s SnapshotStats) String() string {
	return fmt.Sprintf("%d regions, %s, %d skipped", s.Regions, humanize.IBytes(s.Bytes), s.Skipped)
}

// Snapshot copies every committed readable region into a process_blob and
// saves it under dir. Regions larger than maxRegionSize are skipped when the
// limit is non-zero. The saved blob can be attached with AttachProcess.
func (a *Accessor) Snapshot(dir string, maxRegionSize uint64) (SnapshotStats, error) {
	var stats SnapshotStats

	blob := process_blob.NewProcessBlob(a.arch)
	blob.Name = a.name
	if err := blob.Open(a.PID()); err != nil {
		return stats, err
	}
	blob.AddModule(a.module, a.base, 0)

	for item := range a.CommittedReadableRegions() {
		if maxRegionSize > 0 && uint64(item.Size) > maxRegionSize {
			stats.Skipped++
			continue
		}

		data, err := a.proc.ReadMemory(process.ProcessMemoryAddress(item.Address), process.ProcessMemorySize(item.Size))
		if err != nil {
			a.log.Debugln("Skipping region", item.String(), err)
			stats.Skipped++
			continue
		}

		blob.MapData(process.ProcessMemoryAddress(item.Address), data, item.Protect)
		stats.Regions++
		stats.Bytes += uint64(len(data))
	}

	if err := blob.Save(dir); err != nil {
		return stats, fmt.Errorf("save snapshot: %w", err)
	}

	a.log.Infoln("Snapshot saved to", dir, "-", stats.String())
	return stats, nil
}
