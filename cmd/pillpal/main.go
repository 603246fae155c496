package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gmsas95/pillpal/internal/cli"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	verbose    = flag.Bool("v", false, "Verbose logging")
	version    = "dev"
)

func main() {
	flag.Usage = cli.PrintExtendedHelp
	flag.Parse()

	cli.Version = version
	opts := cli.Options{
		ConfigPath: *configPath,
		DataDir:    *dataDir,
		Verbose:    *verbose,
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.HandleServeCommand(opts)
		return
	}

	switch args[0] {
	case "serve", "server", "run":
		cli.HandleServeCommand(opts)
	case "meds", "medications":
		cli.HandleMedsCommand(opts, args[1:])
	case "doses", "today":
		cli.HandleDosesCommand(opts, args[1:])
	case "adherence":
		cli.HandleAdherenceCommand(opts)
	case "visit", "doctor-visit":
		cli.HandleVisitCommand(opts, args[1:])
	case "dashboard", "ui":
		cli.HandleDashboardCommand(opts)
	case "notify":
		cli.HandleNotifyCommand(opts, args[1:])
	case "config":
		cli.HandleConfigCommand(opts, args[1:])
	case "help", "--help", "-h":
		cli.PrintExtendedHelp()
	case "version", "--version":
		fmt.Printf("PillPal version %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		cli.PrintExtendedHelp()
		os.Exit(2)
	}
}
