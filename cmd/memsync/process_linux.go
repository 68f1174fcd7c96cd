package main

import (
	"context"

	"memsync/process"
	"memsync/process_linux"
	"memsync/session"
)

// attacher opens the lowest PID named name on every call.
func attacher(name string) session.Attacher {
	return func(context.Context) (process.Process, error) {
		proc, err := process_linux.OpenByName(name)
		if err != nil {
			return nil, err
		}
		return proc, nil
	}
}
