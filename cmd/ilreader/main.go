package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"time"

	"ilmem/config"
	"ilmem/process"
	"ilmem/process_blob"
	"ilmem/reader"
	"ilmem/resolver"
	"ilmem/search"
	"ilmem/textview"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/dustin/go-humanize"
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "ilreader"))

func main() {
	snapshotFlag := flag.String("snapshot", "", "Read from a saved snapshot directory instead of the live process")
	metadataFlag := flag.String("metadata", "", "Directory holding script.json (overrides ILMEM_METADATA_DIR)")
	watchFlag := flag.Duration("watch", 0, "Print again at this interval until interrupted")
	inspectFlag := flag.String("inspect", "", "Dump an object at this address (hex) instead of the summary")
	sizeFlag := flag.String("size", "256B", "Number of bytes to dump with -inspect (e.g. 512, 1KiB)")
	findFlag := flag.String("find", "", "With -inspect, search pointer paths for a value (u8:3, u32:42, f32:-1.5)")
	depthFlag := flag.Int("depth", 3, "Pointer depth for -find")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *metadataFlag != "" {
		cfg.MetadataDir = *metadataFlag
	}

	r := reader.New(cfg)
	if *snapshotFlag != "" {
		blob, loadErr := process_blob.Load(*snapshotFlag)
		if loadErr != nil {
			fmt.Printf("Error loading snapshot from %s: %v\n", *snapshotFlag, loadErr)
			os.Exit(1)
		}
		err = r.AttachProcess(blob)
	} else {
		err = r.Attach()
	}
	if err != nil {
		fmt.Printf("Error attaching: %v\n", err)
		os.Exit(1)
	}
	defer r.Detach()

	if *inspectFlag != "" && *findFlag != "" {
		if err := find(r, *inspectFlag, *findFlag, *sizeFlag, *depthFlag); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *inspectFlag != "" {
		if err := inspect(r, *inspectFlag, *sizeFlag); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *watchFlag <= 0 {
		printSummary(r)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(*watchFlag)
	defer ticker.Stop()
	for {
		printSummary(r)
		select {
		case <-ctx.Done():
			log.Infoln("Interrupted")
			return
		case <-ticker.C:
			fmt.Println()
		}
	}
}

func printSummary(r *reader.Reader) {
	state := r.SessionState()
	fmt.Printf("State: %s   Map: %s\n\n", state, r.MapName())

	players := r.Players()
	localID, hasLocal := r.LocalPlayerID()

	tbl := textview.NewTable(
		textview.Column{Header: "ID"},
		textview.Column{Header: "Color"},
		textview.Column{Header: "Position"},
		textview.Column{Header: "Local", Blank: " "},
		textview.Column{Header: "Dead", Blank: "?", Format: func(s string) string {
			if s == "yes" {
				return coloransi.Color(coloransi.Red, coloransi.ColorOrange, s)
			}
			return s
		}},
	)
	for _, p := range players {
		local := ""
		if hasLocal && p.ID == localID {
			local = "*"
		}
		dead := ""
		if state == resolver.StateShip {
			if d, ok, _ := r.PlayerDead(p.ColorID); ok {
				dead = map[bool]string{true: "yes", false: "no"}[d]
			}
		}
		tbl.AddRow(strconv.Itoa(p.ID), p.ColorName, p.Position.String(), local, dead)
	}
	if tbl.Len() == 0 {
		fmt.Println("No players resolved")
	} else {
		tbl.Render(os.Stdout)
	}

	if !hasLocal {
		return
	}
	fmt.Println()

	if tasks := r.Tasks(localID); len(tasks) > 0 {
		fmt.Println("Tasks:")
		for _, e := range resolver.TaskPanel(tasks) {
			fmt.Printf("  %s\n", e)
		}
		fmt.Println()
	}

	if st := r.ReportActive(); st.OK {
		fmt.Printf("Report button active: %v\n", st.Active)
	} else {
		fmt.Printf("Report button: unavailable (%v)\n", st.Diag["error"])
	}
	if impostor, ok, diag := r.LocalImpostor(); ok {
		fmt.Printf("Local impostor: %v\n", impostor)
	} else {
		fmt.Printf("Local impostor: unknown (%v)\n", diag["error"])
	}
}

func parseAddr(text string) (uint64, error) {
	addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(text), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse address: %w", err)
	}
	return addr, nil
}

func parseTarget(text string) (search.Option, error) {
	kind, value, ok := strings.Cut(text, ":")
	if !ok {
		return nil, fmt.Errorf("target %q: expected type:value", text)
	}
	switch kind {
	case "u8":
		v, err := strconv.ParseUint(value, 0, 8)
		return search.WithU8(uint8(v)), err
	case "u32":
		v, err := strconv.ParseUint(value, 0, 32)
		return search.WithU32(uint32(v)), err
	case "f32":
		v, err := strconv.ParseFloat(value, 32)
		return search.WithF32(float32(v), 0.01), err
	}
	return nil, fmt.Errorf("target %q: unknown type %s", text, kind)
}

func find(r *reader.Reader, addrText, target, sizeText string, depth int) error {
	addr, err := parseAddr(addrText)
	if err != nil {
		return err
	}
	size, err := humanize.ParseBytes(sizeText)
	if err != nil {
		return fmt.Errorf("parse size: %w", err)
	}
	want, err := parseTarget(target)
	if err != nil {
		return err
	}

	mem := r.Accessor()
	results, err := search.Search(mem, mem.Arch(), process.ProcessMemoryAddress(addr), want,
		search.WithMaxDepth(depth),
		search.WithMaxStructSize(size),
		search.WithMaxResults(64),
		search.WithDeadline(time.Now().Add(5*time.Second), time.Now),
	)
	if err != nil {
		return err
	}
	fmt.Printf("%d paths from 0x%x to %s\n", len(results), addr, target)
	for _, res := range results {
		fmt.Println(" ", res)
	}
	return nil
}

func inspect(r *reader.Reader, addrText, sizeText string) error {
	addr, err := parseAddr(addrText)
	if err != nil {
		return err
	}
	size, err := humanize.ParseBytes(sizeText)
	if err != nil {
		return fmt.Errorf("parse size: %w", err)
	}

	mem := r.Accessor()
	data, err := mem.ReadMemory(process.ProcessMemoryAddress(addr), process.ProcessMemorySize(size))
	if err != nil {
		return fmt.Errorf("read 0x%x: %w", addr, err)
	}

	regions := slices.Collect(mem.CommittedReadableRegions())
	klass := r.Session().Scanner().ClassOf(process.ProcessMemoryAddress(addr))
	fmt.Printf("Object at 0x%x (%s), class 0x%x, %d regions mapped\n\n", addr, humanize.IBytes(size), uint64(klass), len(regions))

	return textview.Dump(os.Stdout, data, textview.DumpOptions{
		Base:        addr,
		PointerSize: mem.Arch().PointerSize(),
		Annotate:    textview.RegionAnnotator(regions),
		Color:       true,
	})
}
