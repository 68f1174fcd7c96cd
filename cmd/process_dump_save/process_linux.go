package main

import (
	"fmt"

	"memsync/process_linux"
)

func save(pid int, name, dir string, symbols []string) error {
	proc, err := process_linux.Attach(pid, name)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	defer proc.Close()

	fmt.Printf("Attached to process %d\n", proc.GetPID())
	return proc.Save(dir, symbols...)
}
