package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/livefir/livebind/cmd/livebind/commands"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "replay":
		err = commands.Replay(args)
	case "serve":
		err = commands.Serve(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("livebind version %s\n", version)

	if info, ok := debug.ReadBuildInfo(); ok {
		revision := commit
		if revision == "unknown" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					revision = setting.Value
				}
			}
		}
		if len(revision) > 12 {
			revision = revision[:12]
		}
		if revision != "" && revision != "unknown" {
			fmt.Printf("commit: %s\n", revision)
		}
		fmt.Printf("go: %s\n", info.GoVersion)
	}
}

func printUsage() {
	fmt.Println("livebind - replay array mutations against a bound list")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  livebind replay <scenario.yaml> [--minify] [--color]   Print the list after every flush")
	fmt.Println("  livebind serve <scenario.yaml> [--addr :8080]          Stream the replay to browsers")
	fmt.Println("                 [--interval 500ms]")
	fmt.Println("  livebind version                                       Show version information")
	fmt.Println()
	fmt.Println("Scenario ops:")
	fmt.Println("  push, pop, shift, unshift, splice, insert, remove, set, reverse, sort, flush")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  livebind replay testdata/basic.yaml")
	fmt.Println("  livebind serve testdata/basic.yaml --interval 1s")
}
