package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	pidFlag := pflag.Int("pid", 0, "Process ID to attach to")
	nameFlag := pflag.String("name", "cs2", "Process name to attach to when --pid is not set")
	outputFlag := pflag.String("output", "", "Output directory for the dump")
	symbolFlag := pflag.StringSlice("symbol", []string{"CreateInterface"}, "Exported symbols to record for every module")
	pflag.Parse()

	if *outputFlag == "" {
		fmt.Println("Error: --output is required")
		pflag.Usage()
		os.Exit(1)
	}

	if err := save(*pidFlag, *nameFlag, *outputFlag, *symbolFlag); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Dump saved to", *outputFlag)
}
