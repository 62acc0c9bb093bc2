// Command crewsched manages and runs scheduled crew jobs.
//
// The short-lived subcommands (list, upsert, delete, run, history) talk to
// the shared schedule store directly; the service subcommand runs the
// long-lived reconciliation loop. Both sides share the store file and its
// lock, so they can run concurrently.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"crewsched/internal/config"
)

const usageText = `usage: crewsched [-config path] <command> [flags]

commands:
  list      print all schedule entries as JSON
  upsert    create or update a schedule entry
  delete    remove a schedule entry by id
  run       execute a crew once, outside the scheduler
  history   show recent scheduled runs
  service   run the long-lived scheduler service

Run 'crewsched <command> -h' for command flags.`

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usageText) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		err = cmdList(cfg, args[1:])
	case "upsert":
		err = cmdUpsert(cfg, args[1:])
	case "delete":
		err = cmdDelete(cfg, args[1:])
	case "run":
		err = cmdRun(cfg, args[1:])
	case "history":
		err = cmdHistory(cfg, args[1:])
	case "service":
		err = cmdService(cfgPath, cfg, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", args[0], usageText)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// kvValue collects repeatable key=value flags into a map.
type kvValue map[string]string

func (v kvValue) String() string {
	parts := make([]string, 0, len(v))
	for k, val := range v {
		parts = append(parts, k+"="+val)
	}
	return strings.Join(parts, ",")
}

func (v kvValue) Set(s string) error {
	k, val, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("invalid pair %q, use key=value", s)
	}
	v[k] = val
	return nil
}
