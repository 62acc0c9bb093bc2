// Package agent holds the job execution collaborator boundary. The scheduler
// core only depends on the narrow Executor signature; how the crew actually
// runs (which agent runtime, which process) is this package's business.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"crewsched/pkg/logx"
)

// Executor materializes and runs one crew job. Execute blocks until the job
// finishes and returns the captured result text, or an error with whatever
// output was produced before the failure.
type Executor interface {
	Execute(ctx context.Context, crew string, inputs map[string]any) (string, error)
}

// kickoffPayload is the JSON document handed to the crew runner on stdin.
type kickoffPayload struct {
	Crew   string         `json:"crew,omitempty"`
	Inputs map[string]any `json:"inputs"`
}

// CommandExecutor runs the configured crew-runner program once per firing.
// The payload goes to stdin as JSON; the crew name is also exported as
// CREWSCHED_CREW for runners that prefer the environment. Combined output is
// captured as the run result.
type CommandExecutor struct {
	argv []string
	dir  string
	log  logx.Logger
}

func NewCommandExecutor(argv []string, dir string, log logx.Logger) (*CommandExecutor, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("agent: executor command is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CommandExecutor{argv: argv, dir: dir, log: log}, nil
}

func (x *CommandExecutor) Execute(ctx context.Context, crew string, inputs map[string]any) (string, error) {
	payload, err := json.Marshal(kickoffPayload{Crew: crew, Inputs: inputs})
	if err != nil {
		return "", fmt.Errorf("agent: encode kickoff payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, x.argv[0], x.argv[1:]...)
	cmd.Dir = x.dir
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(), "CREWSCHED_CREW="+crew)

	x.log.Debug("executing crew job", logx.String("crew", crew), logx.String("cmd", x.argv[0]))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("agent: crew runner: %w", err)
	}
	return string(out), nil
}
