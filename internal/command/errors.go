package command

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Stage is the step of a command invocation that failed.
type Stage string

const (
	StageSpawn  Stage = "spawn"
	StageWait   Stage = "wait"
	StageFeed   Stage = "feed"
	StageDecode Stage = "decode"
)

// Error is returned by every function in this package. It names the command
// line and the stage that failed; Err is the root cause.
type Error struct {
	Command string
	Stage   Stage
	// ExitCode is set for non-zero exits and -1 otherwise.
	ExitCode int
	// Stderr holds the tail of the standard error of a failed process
	// when it was captured.
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	var verb string
	switch e.Stage {
	case StageSpawn:
		verb = "run"
	case StageFeed:
		verb = "write input to"
	case StageDecode:
		verb = "decode output of"
	default:
		verb = "evaluate result of"
	}
	msg := fmt.Sprintf("unable to %s command %q: %v", verb, e.Command, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsSpawnFailure reports whether err is a command that could not be started.
func IsSpawnFailure(err error) bool {
	return stageOf(err) == StageSpawn
}

// IsDecodeFailure reports whether err is command output that could not be decoded.
func IsDecodeFailure(err error) bool {
	return stageOf(err) == StageDecode
}

// ExitCode returns the exit code of a command that ran and failed.
func ExitCode(err error) (int, bool) {
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Stage == StageWait && cerr.ExitCode >= 0 {
		return cerr.ExitCode, true
	}
	return 0, false
}

func stageOf(err error) Stage {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Stage
	}
	return ""
}

// String renders cmd the way a shell user would type it.
func String(cmd *exec.Cmd) string {
	if len(cmd.Args) == 0 {
		return cmd.Path
	}
	return strings.Join(cmd.Args, " ")
}

func newError(cmd *exec.Cmd, stage Stage, err error) *Error {
	e := &Error{Command: String(cmd), Stage: stage, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		e.ExitCode = exitErr.ExitCode()
	}
	return e
}
