package main

import (
	"flag"
	"fmt"
	"os"

	"ilmem/accessor"
	"ilmem/config"

	"github.com/dustin/go-humanize"
)

func main() {
	outputFlag := flag.String("output", "", "Output directory for the snapshot")
	maxRegionFlag := flag.String("max-region", "64MiB", "Skip regions larger than this (0 keeps everything)")
	flag.Parse()

	if *outputFlag == "" {
		fmt.Println("Error: --output is required")
		flag.Usage()
		os.Exit(1)
	}

	maxRegion, err := humanize.ParseBytes(*maxRegionFlag)
	if err != nil {
		fmt.Printf("Error parsing --max-region: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	mem, err := accessor.Attach(cfg.ProcessName, cfg.ModuleName)
	if err != nil {
		fmt.Printf("Error attaching to %s: %v\n", cfg.ProcessName, err)
		os.Exit(1)
	}
	defer mem.Close()
	mem.SetMaxRegions(cfg.MaxRegions)

	fmt.Printf("Attached to %s (pid %d, %s), %s at 0x%x\n", mem.Name(), mem.PID(), mem.Arch(), mem.Module(), uint64(mem.ModuleBase()))
	fmt.Printf("Saving snapshot to %s...\n", *outputFlag)

	stats, err := mem.Snapshot(*outputFlag, maxRegion)
	if err != nil {
		fmt.Printf("Error saving snapshot: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Snapshot saved:", stats)
}
