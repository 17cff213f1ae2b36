// Command reflectkit prepares earth models for the reflectivity program and
// turns its spectral output into time series.
//
// Usage:
//
//	reflectkit <command> [flags] [args]
//
// Commands:
//
//	build       build a model from a reference or ND profile
//	convert     convert a model between GER, JSON, YAML and MessagePack
//	flatten     apply the earth-flattening transform to a model
//	info        print the layers of a model
//	crust       print the Crust-1.0 profile at a location
//	references  list the embedded reference profiles
//	mspec       decode a spectral file and synthesize time series
//
// Examples:
//
//	reflectkit build -reference ak135fcont -max-depth 150 -o ak135.ger
//	reflectkit build -config run.json -crust crust1 -lat 34.3 -lon -81.3 -flatten -o site.ger
//	reflectkit convert model.ger model.yaml
//	reflectkit mspec -amp displacement -source impulse -o traces.msgpack mspec
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cwbudde/algo-reflect/internal/log"
)

type command struct {
	name    string
	summary string
	run     func(args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"build", "build a model from a reference or ND profile", runBuild},
	{"convert", "convert a model between GER, JSON, YAML and MessagePack", runConvert},
	{"flatten", "apply the earth-flattening transform to a model", runFlatten},
	{"info", "print the layers of a model", runInfo},
	{"crust", "print the Crust-1.0 profile at a location", runCrust},
	{"references", "list the embedded reference profiles", runReferences},
	{"mspec", "decode a spectral file and synthesize time series", runMspec},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		usage(stderr)
		return 2
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}

		err := c.run(args[1:], stdout, stderr)
		log.Sync()

		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 2
		default:
			fmt.Fprintf(stderr, "error: %s: %v\n", c.name, err)
			return 1
		}
	}

	fmt.Fprintf(stderr, "error: unknown command %q\n\n", args[0])
	usage(stderr)

	return 2
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: reflectkit <command> [flags] [args]\n\n")
	fmt.Fprintf(w, "Commands:\n")

	names := make([]string, 0, len(commands))
	byName := make(map[string]string, len(commands))
	for _, c := range commands {
		names = append(names, c.name)
		byName[c.name] = c.summary
	}
	sort.Strings(names)

	for _, n := range names {
		fmt.Fprintf(w, "  %-11s %s\n", n, byName[n])
	}
	fmt.Fprintf(w, "\nRun 'reflectkit <command> -h' for the flags of a command.\n")
}
