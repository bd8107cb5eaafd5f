// Command bridged is an embedder front end for the Synaptic Bridge: it
// initializes a Bridge from command-line flags, optionally opens a WAL file
// and attaches it as the Bridge's Log, and either evaluates a script file or drops into a
// line-oriented REPL, in the spirit of the teacher's cmd/io REPL loop
// (cmd/io/main.go) generalized from an Io-language prompt to bridge-level
// eval.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/ImPhilipGlover/EntropicGarden/bridge"
	"github.com/ImPhilipGlover/EntropicGarden/wal"
)

// Exit codes: 0 success, 1 runtime/init failure, 2 usage error, 3 script
// evaluation raised a foreign error.
const (
	exitOK = iota
	exitRuntimeError
	exitUsage
	exitEvalError
)

func main() {
	os.Exit(run())
}

func run() int {
	walPath := flag.String("wal-path", "", "path to a WAL file to journal transactional slot writes (empty disables journaling)")
	runtimePath := flag.String("foreign-runtime", "", "plugin search path for the foreign runtime (empty uses the built-in native-table runtime)")
	script := flag.String("script", "", "path to a script file to evaluate and exit (empty starts an interactive REPL)")
	flag.Parse()

	if *runtimePath == "" {
		if home := os.Getenv("RUNTIME_HOME"); home != "" {
			*runtimePath = home
		}
	}

	cfg := &bridge.Config{RuntimePath: *runtimePath}
	b, err := bridge.Initialize(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bridged: initialize:", err)
		return exitRuntimeError
	}
	defer b.Shutdown()

	if *walPath != "" {
		w, err := wal.Open(*walPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bridged: opening WAL:", err)
			return exitRuntimeError
		}
		defer w.Close()
		b.Log = w
	}

	if *script != "" {
		src, err := os.ReadFile(*script)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bridged: reading script:", err)
			return exitUsage
		}
		v, err := b.Eval(string(src), nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bridged:", err)
			return exitEvalError
		}
		fmt.Println(v)
		return exitOK
	}

	return repl(b)
}

func repl(b *bridge.Bridge) int {
	in := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stdout, "bridge> ")
	for in.Scan() {
		line := in.Text()
		if line == "" {
			fmt.Fprint(os.Stdout, "bridge> ")
			continue
		}
		v, err := b.Eval(line, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Println(v)
		}
		fmt.Fprint(os.Stdout, "bridge> ")
	}
	fmt.Println()
	return exitOK
}
