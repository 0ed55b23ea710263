package process

import (
	"fmt"
	"strings"

	gops "github.com/shirou/gopsutil/v3/process"
)

// NormalizeName lowercases a process name and strips a trailing ".exe"
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(n, ".exe")
}

// nameRank is 2 for an exact case-insensitive match, 1 for a suffix-normalized match, 0 otherwise.
func nameRank(candidate, want string) int {
	if strings.EqualFold(candidate, want) {
		return 2
	}
	if candidate != "" && NormalizeName(candidate) == NormalizeName(want) {
		return 1
	}
	return 0
}

// FindProcessByName lists running processes whose name matches. Exact matches are
// returned ahead of matches that only agree after ".exe" normalization.
func FindProcessByName(name string) ([]ProcessInfo, error) {
	procs, err := gops.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var exact, normalized []ProcessInfo
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}

		rank := nameRank(pname, name)
		if rank == 0 {
			continue
		}

		info := ProcessInfo{PID: ProcessID(p.Pid), Name: pname}
		if ppid, err := p.Ppid(); err == nil {
			info.PPID = ProcessID(ppid)
		}
		if exe, err := p.Exe(); err == nil {
			info.Exe = exe
		}

		if rank == 2 {
			exact = append(exact, info)
		} else {
			normalized = append(normalized, info)
		}
	}

	return append(exact, normalized...), nil
}

// FindFirstProcessByName returns the best match or ErrProcessNotFound
func FindFirstProcessByName(name string) (ProcessInfo, error) {
	list, err := FindProcessByName(name)
	if err != nil {
		return ProcessInfo{}, err
	}
	if len(list) == 0 {
		return ProcessInfo{}, fmt.Errorf("%w: %q", ErrProcessNotFound, name)
	}
	return list[0], nil
}
