package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"time"

	"crewsched/internal/agent"
	"crewsched/internal/config"
	"crewsched/internal/schedule"
	"crewsched/internal/storage"
	"crewsched/pkg/logx"
)

// cliLogger keeps stdout clean for command output; diagnostics go at warn+.
func cliLogger() logx.Logger { return logx.NewConsole("warn") }

func openStore(cfg config.Config) *schedule.Store {
	return schedule.NewStore(cfg.Root, cliLogger())
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func cmdList(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return printJSON(openStore(cfg).List())
}

func cmdUpsert(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("upsert", flag.ExitOnError)
	var (
		id         = fs.String("id", "", "schedule id (empty = assign a new one)")
		name       = fs.String("name", "", "human label (defaults to id)")
		crew       = fs.String("crew", "", "crew to run (empty = runner default)")
		trigger    = fs.String("trigger", "date", "trigger kind: date, interval or cron")
		runAt      = fs.String("run-at", "", "date trigger: RFC 3339 or local 2006-01-02T15:04:05")
		interval   = fs.Int("interval-seconds", 0, "interval trigger: period in seconds")
		tz         = fs.String("timezone", "", "IANA timezone for the trigger")
		disabled   = fs.Bool("disabled", false, "store the entry without scheduling it")
		inputsJSON = fs.String("inputs-json", "", "kickoff inputs as a JSON object")
	)
	cronFields := kvValue{}
	inputPairs := kvValue{}
	fs.Var(cronFields, "cron", "cron trigger field, repeatable: -cron minute=0 -cron hour=*")
	fs.Var(inputPairs, "input", "kickoff input, repeatable: -input topic=X")
	if err := fs.Parse(args); err != nil {
		return err
	}

	inputs := map[string]any{}
	if *inputsJSON != "" {
		if err := json.Unmarshal([]byte(*inputsJSON), &inputs); err != nil {
			return fmt.Errorf("invalid -inputs-json: %w", err)
		}
	}
	for k, v := range inputPairs {
		inputs[k] = v
	}

	entry := schedule.Entry{
		ID:              *id,
		Name:            *name,
		Crew:            *crew,
		Trigger:         schedule.TriggerKind(*trigger),
		RunAt:           *runAt,
		IntervalSeconds: *interval,
		Timezone:        *tz,
		Enabled:         !*disabled,
		Inputs:          inputs,
	}
	if len(cronFields) > 0 {
		entry.Cron = map[string]string(cronFields)
	}

	// Reject obviously broken triggers here, with the same rules the
	// service applies; the store itself stays non-validating.
	probe := entry
	if probe.ID == "" {
		probe.ID = "(new)"
	}
	if _, err := schedule.BuildTrigger(probe, time.Local); err != nil {
		return err
	}

	saved, err := openStore(cfg).Upsert(entry)
	if err != nil {
		return err
	}
	return printJSON(saved)
}

func cmdDelete(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "schedule id to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" && fs.NArg() > 0 {
		*id = fs.Arg(0)
	}
	if *id == "" {
		return errors.New("delete: id is required (crewsched delete <id>)")
	}

	ok, err := openStore(cfg).Delete(*id)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"deleted": ok, "id": *id})
}

func cmdRun(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		crew       = fs.String("crew", "", "crew to run (empty = runner default)")
		inputsJSON = fs.String("inputs-json", "", "kickoff inputs as a JSON object")
		timeout    = fs.Duration("timeout", 0, "execution timeout (0 = config default)")
	)
	inputPairs := kvValue{}
	fs.Var(inputPairs, "input", "kickoff input, repeatable: -input topic=X")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exec, err := buildExecutor(cfg)
	if err != nil {
		return err
	}

	inputs := map[string]any{}
	if *inputsJSON != "" {
		if err := json.Unmarshal([]byte(*inputsJSON), &inputs); err != nil {
			return fmt.Errorf("invalid -inputs-json: %w", err)
		}
	}
	for k, v := range inputPairs {
		inputs[k] = v
	}
	if len(inputs) == 0 {
		inputs = map[string]any{"topic": "Hello World"}
	}

	ctx := context.Background()
	if d := *timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	} else if d := cfg.RunTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	out, err := exec.Execute(ctx, *crew, inputs)
	if out != "" {
		fmt.Println(out)
	}
	return err
}

func cmdHistory(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "max rows to show")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hist, err := storage.Open(storage.Config{
		Driver:      cfg.History.Driver,
		Path:        cfg.HistoryPath(),
		BusyTimeout: time.Duration(cfg.History.BusyTimeoutMS) * time.Millisecond,
	}, cliLogger())
	if err != nil {
		return err
	}
	if hist == nil {
		return errors.New("history: no driver configured (set history.driver: sqlite)")
	}
	defer hist.Close()

	runs, err := hist.RecentRuns(context.Background(), *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(runs)
	}
	for _, r := range runs {
		status := "ok"
		if !r.OK {
			status = "FAILED"
		}
		fmt.Printf("%s  %-8s %-20s took=%-8s %s\n",
			r.FiredAt.Local().Format(time.RFC3339), status, r.ScheduleID, r.Took, r.Error)
	}
	return nil
}

func buildExecutor(cfg config.Config) (agent.Executor, error) {
	if len(cfg.Executor.Command) == 0 {
		return nil, errors.New("no executor configured (set executor.command in config)")
	}
	dir := cfg.Executor.Dir
	if dir == "" {
		dir = cfg.Root
	}
	return agent.NewCommandExecutor(cfg.Executor.Command, dir, cliLogger())
}
