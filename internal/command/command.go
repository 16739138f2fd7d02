// Package command runs external processes and decodes what they print.
//
// Every function converts failures into a *Error naming the command line and
// the stage (spawn, wait, feed, decode) that failed. Callers build commands
// with exec.CommandContext when the invocation must be cancellable.
package command

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// maxStderr bounds how much of a failed command's stderr ends up in an error.
const maxStderr = 512

// Decoder turns the captured standard output of a successful command into
// the caller's value.
type Decoder func(stdout []byte) error

// Status runs cmd to completion and succeeds iff it exits successfully.
func Status(cmd *exec.Cmd) error {
	stderr := captureStderr(cmd)
	if err := cmd.Start(); err != nil {
		return newError(cmd, StageSpawn, err)
	}
	return wait(cmd, stderr)
}

// Output runs cmd to completion, captures its standard output and hands it
// to decode.
func Output(cmd *exec.Cmd, decode Decoder) error {
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := Status(cmd); err != nil {
		return err
	}
	if err := decode(stdout.Bytes()); err != nil {
		return newError(cmd, StageDecode, err)
	}
	return nil
}

// Text runs cmd and returns its standard output, which must be valid UTF-8.
func Text(cmd *exec.Cmd) (string, error) {
	var text string
	err := Output(cmd, func(stdout []byte) error {
		if !utf8.Valid(stdout) {
			return errors.New("stdout is not valid UTF-8")
		}
		text = string(stdout)
		return nil
	})
	return text, err
}

// JSON runs cmd and decodes its standard output into v.
func JSON(cmd *exec.Cmd, v any) error {
	return Output(cmd, func(stdout []byte) error {
		if err := json.Unmarshal(stdout, v); err != nil {
			return fmt.Errorf("unable to deserialize JSON from stdout: %w", err)
		}
		return nil
	})
}

// Table runs cmd and splits each line of its standard output on whitespace.
// Every line must have exactly columns fields.
func Table(cmd *exec.Cmd, columns int) ([][]string, error) {
	var rows [][]string
	err := Output(cmd, func(stdout []byte) error {
		var err error
		rows, err = DecodeTable(stdout, columns)
		return err
	})
	return rows, err
}

// DecodeTable splits data into lines and each line into whitespace-separated
// fields. A line with a field count other than columns is an error naming
// its 1-based line number.
func DecodeTable(data []byte, columns int) ([][]string, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("stdout is not valid UTF-8")
	}
	var rows [][]string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		row := scanner.Text()
		fields := strings.Fields(row)
		if len(fields) != columns {
			return nil, fmt.Errorf("unable to parse result line %d, expected %d fields but got %d: %q", line, columns, len(fields), row)
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Pipe connects the standard output of writer to the standard input of
// reader and runs both. It succeeds iff both exit successfully; otherwise
// the returned error holds the failure of each side that failed.
func Pipe(writer, reader *exec.Cmd) error {
	pr, pw, err := os.Pipe()
	if err != nil {
		return newError(writer, StageSpawn, fmt.Errorf("unable to create pipe: %w", err))
	}
	writer.Stdout = pw
	reader.Stdin = pr

	writerStderr := captureStderr(writer)
	if err := writer.Start(); err != nil {
		pr.Close()
		pw.Close()
		return newError(writer, StageSpawn, err)
	}
	// The writer holds its own copy; closing ours lets the reader see EOF.
	pw.Close()

	readerErr := Status(reader)
	// A writer still producing output gets EPIPE once the reader is gone.
	pr.Close()
	writerErr := wait(writer, writerStderr)

	return errors.Join(writerErr, readerErr)
}

// FeedStdin starts cmd, writes input to its standard input from a separate
// goroutine and waits for cmd to exit. Writing concurrently keeps a command
// that produces output before draining its input from blocking on a full pipe.
func FeedStdin(input []byte, cmd *exec.Cmd) error {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return newError(cmd, StageSpawn, err)
	}
	stderr := captureStderr(cmd)
	if err := cmd.Start(); err != nil {
		return newError(cmd, StageSpawn, err)
	}

	var feeder errgroup.Group
	feeder.Go(func() error {
		_, err := stdin.Write(input)
		if cerr := stdin.Close(); err == nil {
			err = cerr
		}
		return err
	})

	waitErr := wait(cmd, stderr)
	feedErr := feeder.Wait()
	if waitErr != nil {
		return waitErr
	}
	// A command may exit successfully without reading all of its input.
	if feedErr != nil && !errors.Is(feedErr, syscall.EPIPE) && !errors.Is(feedErr, os.ErrClosed) {
		return newError(cmd, StageFeed, feedErr)
	}
	return nil
}

func wait(cmd *exec.Cmd, stderr *bytes.Buffer) error {
	if err := cmd.Wait(); err != nil {
		e := newError(cmd, StageWait, err)
		e.Stderr = tail(stderr)
		return e
	}
	return nil
}

// captureStderr collects the standard error of cmd unless the caller already
// directed it somewhere.
func captureStderr(cmd *exec.Cmd) *bytes.Buffer {
	if cmd.Stderr != nil {
		return nil
	}
	var buf bytes.Buffer
	cmd.Stderr = &buf
	return &buf
}

func tail(buf *bytes.Buffer) string {
	if buf == nil {
		return ""
	}
	s := strings.TrimSpace(buf.String())
	if len(s) > maxStderr {
		s = "…" + s[len(s)-maxStderr:]
	}
	return s
}
