// Command wdib runs one control-plane cycle per invocation.
//
// Subcommands:
//
//	wdib tick [--pretty]
//	wdib message --text "<body>" [--pretty]
//
// Output is a single JSON document on stdout: {"ok": true, "result": ...}
// or {"ok": false, "error": "..."}. Exit codes: 0 success, 1 runtime
// error, 2 usage error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danshapiro/wdib/internal/cmdrun"
	"github.com/danshapiro/wdib/internal/engine"
	"github.com/danshapiro/wdib/internal/envutil"
	"github.com/danshapiro/wdib/internal/gitutil"
	"github.com/danshapiro/wdib/internal/inbox"
	"github.com/danshapiro/wdib/internal/notify"
	"github.com/danshapiro/wdib/internal/paths"
	"github.com/danshapiro/wdib/internal/storage"
	"github.com/danshapiro/wdib/internal/worker"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wdib <tick|message> [flags]")
	fmt.Fprintln(os.Stderr, "  tick     [--pretty]            run one orchestration cycle")
	fmt.Fprintln(os.Stderr, "  message  --text <body> [--pretty]  enqueue a human message")
}

func emit(pretty bool, doc map[string]any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(doc)
}

func emitError(pretty bool, err error) {
	emit(pretty, map[string]any{"ok": false, "error": err.Error()})
}

func projectRoot() (paths.Paths, error) {
	if root := envutil.Str("WDIB_ROOT", ""); root != "" {
		return paths.New(root), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return paths.Paths{}, err
	}
	return paths.New(cwd), nil
}

func setup() (paths.Paths, string, error) {
	p, err := projectRoot()
	if err != nil {
		return paths.Paths{}, "", err
	}
	envutil.LoadDotenv(p)
	cfg, err := envutil.LoadProjectConfig(p)
	if err != nil {
		return paths.Paths{}, "", err
	}
	cfg.ApplyEnvDefaults()
	deviceID, err := envutil.ResolveDeviceID(p)
	if err != nil {
		return paths.Paths{}, "", err
	}
	return p, deviceID, nil
}

func runTick(args []string) int {
	fs := flag.NewFlagSet("tick", flag.ContinueOnError)
	pretty := fs.Bool("pretty", false, "indent the output JSON")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	p, deviceID, err := setup()
	if err != nil {
		emitError(*pretty, err)
		return 1
	}

	eng := &engine.Engine{
		Paths:    p,
		DeviceID: deviceID,
		Store:    storage.New(p.Device(deviceID)),
		Runner:   cmdrun.ShellRunner{},
		Worker: &worker.Adapter{
			ProjectRoot: p.Root,
			Timeout:     time.Duration(envutil.CodexTimeoutSeconds()) * time.Second,
		},
		Git:      gitutil.CommitDeviceChanges,
		Notifier: notify.NewRouter(),
	}

	result, err := eng.Tick(context.Background())
	if err != nil {
		emitError(*pretty, err)
		return 1
	}
	emit(*pretty, map[string]any{"ok": true, "result": result})
	return 0
}

func runMessage(args []string) int {
	fs := flag.NewFlagSet("message", flag.ContinueOnError)
	text := fs.String("text", "", "message body")
	pretty := fs.Bool("pretty", false, "indent the output JSON")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *text == "" {
		fmt.Fprintln(os.Stderr, "message: --text is required")
		return 2
	}

	p, deviceID, err := setup()
	if err != nil {
		emitError(*pretty, err)
		return 1
	}

	device := p.Device(deviceID)
	if err := storage.New(device).EnsureLayout(); err != nil {
		emitError(*pretty, err)
		return 1
	}
	if err := inbox.Enqueue(device.HumanMessage, *text, time.Now()); err != nil {
		emitError(*pretty, err)
		return 1
	}
	emit(*pretty, map[string]any{"ok": true, "result": map[string]any{
		"device_id": deviceID,
		"path":      device.HumanMessage,
		"terminate": inbox.IsTerminateCommand(*text),
	}})
	return 0
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "tick":
		os.Exit(runTick(os.Args[2:]))
	case "message":
		os.Exit(runMessage(os.Args[2:]))
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}
