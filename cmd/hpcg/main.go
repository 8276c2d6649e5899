// Package main provides the hpcg CLI: it builds a multigrid hierarchy on a
// compute device and checks the grid transfers against host references.
package main

import (
	"fmt"
	"log"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "version":
		fmt.Printf("hpcg %s\n", version)
	case "run":
		cmdRun(os.Args[2:])
	case "config":
		cmdConfig(os.Args[2:])
	case "devices":
		cmdDevices()
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("hpcg - geometric multigrid grid-transfer core")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("usage: hpcg <command> [flags]")
	fmt.Println("  run      build a hierarchy and verify prolongation/restriction")
	fmt.Println("  config   print the effective configuration as YAML")
	fmt.Println("  devices  list available compute devices")
	fmt.Println("  version  show version")
}
