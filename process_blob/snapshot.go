package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ilmem/process"
	"ilmem/process/memory_map"
)

const (
	snapshotMetadataFile = "snapshot.json"
	snapshotMapFile      = "process_memory_map.json"
)

type snapshotMetadata struct {
	PID     process.ProcessID `json:"pid"`
	Name    string            `json:"name"`
	Arch    process.Arch      `json:"arch"`
	Modules []process.Module  `json:"modules"`
}

func blobFilename(dirname string, item memory_map.MemoryMapItem) string {
	return filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", item.Address, item.Size))
}

// Save writes the blob process to a directory: metadata, region map and one file per region
func (p *ProcessBlob) Save(dirname string) error {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	metadata := snapshotMetadata{
		PID:     p.pid,
		Name:    p.Name,
		Arch:    p.arch,
		Modules: p.modules,
	}
	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, snapshotMetadataFile), metadataJSON, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	items := p.items()
	memoryMapJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, snapshotMapFile), memoryMapJSON, 0644); err != nil {
		return fmt.Errorf("failed to write memory map file: %w", err)
	}

	for _, r := range p.regions {
		if err := os.WriteFile(blobFilename(dirname, r.item), r.data, 0644); err != nil {
			return fmt.Errorf("failed to write blob 0x%x: %w", r.item.Address, err)
		}
	}

	return nil
}

// Load reads a directory written by Save
func Load(dirname string) (*ProcessBlob, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, snapshotMetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata snapshotMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	mmBytes, err := os.ReadFile(filepath.Join(dirname, snapshotMapFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map: %w", err)
	}

	var items []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory map: %w", err)
	}
	memory_map.SortByAddress(items)

	p := NewProcessBlob(metadata.Arch)
	p.pid = metadata.PID
	p.Name = metadata.Name
	p.modules = metadata.Modules

	for _, item := range items {
		data, err := os.ReadFile(blobFilename(dirname, item))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read blob 0x%x: %w", item.Address, err)
		}
		if len(data) != int(item.Size) {
			return nil, fmt.Errorf("blob 0x%x has %d bytes, map says %d", item.Address, len(data), item.Size)
		}
		p.regions = append(p.regions, region{item: item, data: data})
	}

	return p, nil
}
