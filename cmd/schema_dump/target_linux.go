package main

import (
	"memsync/process"
	"memsync/process_blob"
	"memsync/process_linux"
)

// openTarget loads a saved dump when from is set and attaches to the live
// process otherwise.
func openTarget(from string, pid int, name string) (process.Process, error) {
	if from != "" {
		img, err := process_blob.Load(from)
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	proc, err := process_linux.Attach(pid, name)
	if err != nil {
		return nil, err
	}
	return proc, nil
}
