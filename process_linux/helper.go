//go:build linux

package process_linux

import (
	"fmt"
	"path/filepath"
	"sort"

	"memsync/process"

	ps "github.com/shirou/gopsutil/v3/process"
)

// FindProcessByName returns the lowest PID whose name equals name. The kernel
// truncates comm to 15 bytes, so the executable base name is checked too.
func FindProcessByName(name string) (*process.ProcessInfo, error) {
	matches, err := FindProcessesByName(name)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no process named %q: %w", name, process.ErrProcessNotFound)
	}
	return &matches[0], nil
}

// FindProcessesByName lists every process named name, ordered by PID.
func FindProcessesByName(name string) ([]process.ProcessInfo, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var result []process.ProcessInfo
	for _, p := range procs {
		comm, err := p.Name()
		if err != nil {
			continue
		}
		exe, _ := p.Exe()
		if comm != name && (exe == "" || filepath.Base(exe) != name) {
			continue
		}
		result = append(result, process.ProcessInfo{
			PID:  process.ProcessID(p.Pid),
			Name: comm,
			Exe:  exe,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].PID < result[j].PID })
	return result, nil
}

func findProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	p, err := ps.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("process with PID %d does not exist: %w", pid, process.ErrProcessNotFound)
	}
	name, err := p.Name()
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}
	exe, _ := p.Exe()
	return &process.ProcessInfo{PID: pid, Name: name, Exe: exe}, nil
}

// Attach opens pid when it is set and otherwise the lowest PID named name.
func Attach(pid int, name string) (*LinuxProcess, error) {
	if pid != 0 {
		return NewWithPID(process.ProcessID(pid))
	}
	if name == "" {
		return nil, fmt.Errorf("no pid or process name given: %w", process.ErrProcessNotFound)
	}
	return OpenByName(name)
}
