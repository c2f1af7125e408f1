package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	fillsim "github.com/kaifufi/exchange-fillsim-go"
)

const (
	programName = "fillsim"
)

var cmdlineFlags struct {
	configFile string
	version    bool
	list       bool
	suites     string
	limit      int
	reportFile string
}

func main() {
	flag.StringVar(&cmdlineFlags.configFile, "config", "", "path to config file to load")
	flag.BoolVar(&cmdlineFlags.version, "version", false, "show version")
	flag.BoolVar(&cmdlineFlags.list, "list", false, "list the selected scenarios and exit")
	flag.StringVar(&cmdlineFlags.suites, "suite", "", "comma-separated suites to run (default: all)")
	flag.IntVar(&cmdlineFlags.limit, "limit", 0, "maximum number of scenarios per suite")
	flag.StringVar(&cmdlineFlags.reportFile, "report", "", "write the run summary as JSON to this file")
	flag.Parse()

	if cmdlineFlags.version {
		fmt.Printf("%s %s\n", programName, fillsim.GetVersionString())
		os.Exit(0)
	}

	// A missing .env file is fine
	_ = godotenv.Load()

	// Load config
	cfg, err := fillsim.Load(cmdlineFlags.configFile)
	if err != nil {
		fmt.Printf("Failed to load config: %s\n", err)
		os.Exit(1)
	}
	if cmdlineFlags.suites != "" {
		cfg.Run.Suites = strings.Split(cmdlineFlags.suites, ",")
	}
	if cmdlineFlags.limit > 0 {
		cfg.Run.Limit = cmdlineFlags.limit
	}

	// Configure logging
	fillsim.Configure()
	logger := fillsim.GetLogger().With("component", "main")

	harness, err := fillsim.NewHarness(cfg, nil)
	if err != nil {
		logger.Error("failed to create harness", "error", err)
		os.Exit(1)
	}
	defer harness.Close()

	if cmdlineFlags.list {
		scenarios, err := harness.GenerateAllScenarios()
		if err != nil {
			logger.Error("failed to generate scenarios", "error", err)
			os.Exit(1)
		}
		for _, s := range scenarios {
			fmt.Println(s.String())
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := harness.Preflight(ctx); err != nil {
		logger.Error("preflight failed", "error", err)
		os.Exit(1)
	}

	summary, err := harness.RunSuites(ctx)
	if summary != nil && cmdlineFlags.reportFile != "" {
		if werr := writeReport(cmdlineFlags.reportFile, summary); werr != nil {
			logger.Error("failed to write report", "error", werr)
		}
	}
	if err != nil {
		logger.Error("run aborted", "error", err)
		os.Exit(1)
	}
	if !summary.OK() {
		logger.Warn("targets disagree with the reference simulator",
			"run_id", summary.RunID,
			"mismatched", summary.Mismatched,
		)
		os.Exit(1)
	}
}

func writeReport(path string, summary *fillsim.RunSummary) error {
	buf, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
