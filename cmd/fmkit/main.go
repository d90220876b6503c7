// Command fmkit works with .fm scanning-session containers: generating
// synthetic sessions, inspecting and indexing recorded files, and building
// point clouds from their depth frames.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "gen":
		err = runGen(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "cloud":
		err = runCloud(os.Args[2:])
	case "index":
		err = runIndex(os.Args[2:])
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fmkit %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprint(os.Stderr, `Usage: fmkit <command> [flags]

Commands:
  gen     generate a synthetic scanning session into an .fm file
  info    print the header and record summary of an .fm file
  cloud   build a point cloud from an .fm file and write OBJ vertices
  index   index .fm files into the session catalogue

Run 'fmkit <command> -h' for command flags.
`)
}
