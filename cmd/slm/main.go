package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hussainpithawala/go-slm/engine"
	"github.com/hussainpithawala/go-slm/journal"
	"github.com/hussainpithawala/go-slm/loader"
	"github.com/hussainpithawala/go-slm/machine"
)

const version = "0.3.0"

func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigCh := make(chan os.Signal, 1)
	stopCh := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				cancel(fmt.Errorf("stopped by signal %s", sig.String()))
			case <-stopCh:
				return
			}
		}
	}()
	cleanup := func() {
		signal.Stop(sigCh)
		close(stopCh)
		cancel(nil)
	}
	return ctx, cleanup
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("slm %s\n", version)
		os.Exit(0)
	case "run":
		os.Exit(runCmd(os.Args[2:]))
	case "validate":
		os.Exit(validateCmd(os.Args[2:]))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  slm --version")
	fmt.Fprintln(os.Stderr, "  slm run --definition <file.yaml|file.json> [--input <file.json>] [--name <id>] [--journal <file>] [--events] [--max-steps <n>] [--merge-branches]")
	fmt.Fprintln(os.Stderr, "  slm validate <glob>...")
}

func runCmd(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	defPath := fs.String("definition", "", "machine definition file (YAML or JSON)")
	inputPath := fs.String("input", "", "input document file (JSON); defaults to {}")
	name := fs.String("name", "", "execution name; defaults to a fresh ULID")
	journalPath := fs.String("journal", "", "append history frames to this journal file")
	events := fs.Bool("events", false, "stream progress events to stderr as NDJSON")
	maxSteps := fs.Int("max-steps", 0, "fail the execution after this many transitions (0 = unbounded)")
	mergeBranches := fs.Bool("merge-branches", false, "legacy Parallel result shape: deep-merge branch outputs")
	_ = fs.Parse(args)

	if *defPath == "" {
		usage()
		return 1
	}

	m, err := loader.LoadMachine(*defPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "slm: %v\n", err)
		return 2
	}

	var input any = map[string]any{}
	if *inputPath != "" {
		b, err := os.ReadFile(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "slm: %v\n", err)
			return 1
		}
		if input, err = loader.ParseJSON(b); err != nil {
			fmt.Fprintf(os.Stderr, "slm: %v\n", err)
			return 1
		}
	}

	ectx := &engine.Context{
		TaskExecutor:       demoExecutor,
		MaxSteps:           *maxSteps,
		MergeBranchOutputs: *mergeBranches,
	}
	if *events {
		ectx.Sink = journal.NewNDJSONSink(os.Stderr)
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	ex := engine.StartExecution(m, input, *name, ectx)
	if err := ex.RunAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "slm: %v\n", err)
		return 1
	}

	if *journalPath != "" {
		if err := writeJournal(*journalPath, ex); err != nil {
			fmt.Fprintf(os.Stderr, "slm: journal: %v\n", err)
			return 1
		}
	}

	switch ex.Status() {
	case engine.StatusSucceeded:
		printJSON(os.Stdout, ex.Output())
		return 0
	default:
		rec := ex.Err().Record()
		printJSON(os.Stdout, map[string]any{"Error": rec.Error, "Cause": rec.Cause})
		return 3
	}
}

func validateCmd(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}
	paths, err := loader.Discover(".", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "slm: %v\n", err)
		return 1
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "slm: no definition files matched")
		return 1
	}

	failed := 0
	for _, path := range paths {
		doc, err := loader.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if err := loader.ValidateSchema(doc); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		m, err := machine.Decode(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		ok := true
		for _, d := range machine.Validate(m) {
			fmt.Fprintf(os.Stderr, "%s: %s %s: %s\n", path, d.Severity, d.Rule, d.Message)
			if d.Severity == machine.SeverityError {
				ok = false
			}
		}
		if !ok {
			failed++
			continue
		}
		fmt.Printf("%s: ok\n", path)
	}
	if failed > 0 {
		return 2
	}
	return 0
}

func writeJournal(path string, ex *engine.Execution) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return journal.NewWriter(f).WriteHistory(ex.Name(), ex.History())
}

func printJSON(w *os.File, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "slm: encode output: %v\n", err)
		return
	}
	_, _ = w.Write(buf.Bytes())
}
