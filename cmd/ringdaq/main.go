package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nick/ringdaq/internal/config"
	"github.com/nick/ringdaq/internal/daqctl"
	"github.com/nick/ringdaq/internal/rotlog"
	"github.com/nick/ringdaq/internal/statusui"

	_ "github.com/nick/ringdaq/internal/workers"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s run [--tui] <setup.yaml>\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "run" {
		usage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	tui := fs.Bool("tui", false, "render a live status dashboard instead of plain log lines")
	fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	setupPath := fs.Arg(0)

	sf, err := config.LoadSetupFile(setupPath)
	if err != nil {
		log.Printf("error loading setup file: %v", err)
		os.Exit(1)
	}
	config.ApplyDefaults(sf)

	var common map[string]any
	if sf.Main.ConfigFile != "" {
		common, err = config.LoadCommonConfig(sf.Main.ConfigFile)
		if err != nil {
			log.Printf("error loading common config: %v", err)
			os.Exit(1)
		}
	}

	var hooks config.Hooks
	if h, ok := common["hooks"].(map[string]any); ok {
		hooks = decodeHooks(h)
	}

	outputDir, err := daqctl.NewOutputDir(setupPath)
	if err != nil {
		log.Printf("error preparing output directory: %v", err)
		os.Exit(1)
	}
	if err := daqctl.CopyReferencedConfigs(setupPath, sf, outputDir); err != nil {
		log.Printf("error copying referenced configs: %v", err)
		os.Exit(1)
	}

	runLog, err := rotlog.Open(outputDir)
	if err != nil {
		log.Printf("error opening run log: %v", err)
		os.Exit(1)
	}
	defer runLog.Close()

	ctrl, err := daqctl.Setup(sf, common, hooks, outputDir)
	if err != nil {
		log.Printf("error setting up controller: %v", err)
		os.Exit(2)
	}
	log.Printf("%s", ctrl.Summary())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *tui {
		if err := statusui.Run(ctx, ctrl); err != nil {
			log.Printf("dashboard error: %v", err)
		}
	} else if err := ctrl.Run(ctx); err != nil {
		log.Printf("run completed with worker errors: %v", err)
	}

	log.Printf("run complete, output directory: %s", outputDir)
}

func decodeHooks(h map[string]any) config.Hooks {
	return config.Hooks{
		PreSetup:  stringSlice(h["pre_setup"]),
		PostStart: stringSlice(h["post_start"]),
		PostStop:  stringSlice(h["post_stop"]),
	}
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
