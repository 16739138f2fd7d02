package command

import (
	"os/exec"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/skip"
)

func bash(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	_, err := exec.LookPath("bash")
	skip.If(t, err != nil, "bash is not available")
	return exec.Command("bash", "-c", script)
}

func invalidProgram() *exec.Cmd {
	return exec.Command("")
}

func TestStatus(t *testing.T) {
	assert.NilError(t, Status(bash(t, "true")))

	err := Status(bash(t, "echo boom >&2; exit 3"))
	code, ok := ExitCode(err)
	assert.Check(t, ok)
	assert.Check(t, is.Equal(code, 3))
	assert.Check(t, is.ErrorContains(err, `unable to evaluate result of command "bash -c echo boom >&2; exit 3": exit status 3: boom`))

	err = Status(invalidProgram())
	assert.Check(t, IsSpawnFailure(err))
	assert.Check(t, is.ErrorContains(err, "unable to run command"))
	_, ok = ExitCode(err)
	assert.Check(t, !ok)
}

func TestText(t *testing.T) {
	text, err := Text(bash(t, "printf 'Hi'"))
	assert.NilError(t, err)
	assert.Check(t, is.Equal(text, "Hi"))

	_, err = Text(bash(t, "false"))
	assert.Check(t, is.ErrorContains(err, "exit status 1"))

	_, err = Text(bash(t, `printf '\xff\xfe'`))
	assert.Check(t, IsDecodeFailure(err))
	assert.Check(t, is.ErrorContains(err, "not valid UTF-8"))

	_, err = Text(invalidProgram())
	assert.Check(t, IsSpawnFailure(err))
}

func TestJSON(t *testing.T) {
	var greeting string
	assert.NilError(t, JSON(bash(t, `echo '"Hi"'`), &greeting))
	assert.Check(t, is.Equal(greeting, "Hi"))

	var server struct {
		Version string
	}
	assert.NilError(t, JSON(bash(t, `echo '{"Version":"25.0.6","Os":"linux"}'`), &server))
	assert.Check(t, is.Equal(server.Version, "25.0.6"))

	var number int
	err := JSON(bash(t, `echo '"Hi"'`), &number)
	assert.Check(t, IsDecodeFailure(err))
	assert.Check(t, is.ErrorContains(err, "unable to deserialize JSON from stdout"))

	assert.Check(t, is.ErrorContains(JSON(bash(t, "false"), &greeting), "exit status 1"))
	assert.Check(t, IsSpawnFailure(JSON(invalidProgram(), &greeting)))
}

func TestTable(t *testing.T) {
	rows, err := Table(bash(t, `printf '13 a  b\n 8 x\tyz'`), 3)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(rows, [][]string{{"13", "a", "b"}, {"8", "x", "yz"}}))

	_, err = Table(bash(t, "false"), 3)
	assert.Check(t, is.ErrorContains(err, "exit status 1"))

	_, err = Table(invalidProgram(), 3)
	assert.Check(t, IsSpawnFailure(err))
}

func TestDecodeTable(t *testing.T) {
	rows, err := DecodeTable([]byte("13 a  b\n 8 x\tyz"), 3)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(rows, [][]string{{"13", "a", "b"}, {"8", "x", "yz"}}))

	rows, err = DecodeTable([]byte("a b c\n"), 3)
	assert.NilError(t, err)
	assert.Check(t, is.Len(rows, 1))

	rows, err = DecodeTable(nil, 3)
	assert.NilError(t, err)
	assert.Check(t, is.Len(rows, 0))

	_, err = DecodeTable([]byte("a b c\nd e\n"), 3)
	assert.Check(t, is.ErrorContains(err, "line 2, expected 3 fields but got 2"))
}

func TestPipe(t *testing.T) {
	for _, tc := range []struct {
		name    string
		writer  func(*testing.T) *exec.Cmd
		reader  func(*testing.T) *exec.Cmd
		success bool
		// failing is the command line the error must name, spawn whether
		// that command never started.
		failing string
		spawn   bool
	}{
		{
			name:   "invalid writer",
			writer: func(*testing.T) *exec.Cmd { return invalidProgram() },
			reader: func(t *testing.T) *exec.Cmd { return bash(t, "cat >/dev/null") },
			spawn:  true,
		},
		{
			name:   "invalid reader",
			writer: func(t *testing.T) *exec.Cmd { return bash(t, "true") },
			reader: func(*testing.T) *exec.Cmd { return invalidProgram() },
			spawn:  true,
		},
		{
			name:    "writer failure",
			writer:  func(t *testing.T) *exec.Cmd { return bash(t, "exit 4") },
			reader:  func(t *testing.T) *exec.Cmd { return bash(t, "cat >/dev/null") },
			failing: `"bash -c exit 4"`,
		},
		{
			name:    "reader failure",
			writer:  func(t *testing.T) *exec.Cmd { return bash(t, "true") },
			reader:  func(t *testing.T) *exec.Cmd { return bash(t, "cat >/dev/null; exit 5") },
			failing: `"bash -c cat >/dev/null; exit 5"`,
		},
		{
			name:    "success",
			writer:  func(t *testing.T) *exec.Cmd { return bash(t, "echo 'Hi'") },
			reader:  func(t *testing.T) *exec.Cmd { return bash(t, "[[ $(cat) == 'Hi' ]]") },
			success: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := Pipe(tc.writer(t), tc.reader(t))
			if tc.success {
				assert.NilError(t, err)
				return
			}
			assert.Assert(t, err != nil)
			assert.Check(t, is.Equal(IsSpawnFailure(err), tc.spawn))
			if tc.failing != "" {
				assert.Check(t, is.ErrorContains(err, tc.failing))
			}
		})
	}
}

func TestPipeNamesFailingSide(t *testing.T) {
	err := Pipe(bash(t, "exit 4"), bash(t, "cat >/dev/null"))
	assert.Check(t, is.ErrorContains(err, `"bash -c exit 4"`))
	assert.Check(t, !strings.Contains(err.Error(), "cat >/dev/null"))

	err = Pipe(bash(t, "true"), bash(t, "cat >/dev/null; exit 5"))
	assert.Check(t, is.ErrorContains(err, `"bash -c cat >/dev/null; exit 5"`))
	assert.Check(t, !strings.Contains(err.Error(), `"bash -c true"`))
	code, ok := ExitCode(err)
	assert.Check(t, ok)
	assert.Check(t, is.Equal(code, 5))

	err = Pipe(bash(t, "true"), exec.Command("/nonexistent/lighthouse-reader"))
	assert.Check(t, IsSpawnFailure(err))
	assert.Check(t, is.ErrorContains(err, `"/nonexistent/lighthouse-reader"`))
	assert.Check(t, !strings.Contains(err.Error(), `"bash -c true"`))
}

func TestFeedStdin(t *testing.T) {
	assert.NilError(t, FeedStdin([]byte("Hi"), bash(t, "[[ $(cat) == 'Hi' ]]")))
	assert.Check(t, FeedStdin([]byte("Hi"), bash(t, "[[ $(cat) != 'Hi' ]]")) != nil)
	assert.Check(t, IsSpawnFailure(FeedStdin([]byte("Hi"), invalidProgram())))

	// More than a pipe buffer of input while the command writes output first.
	big := []byte(strings.Repeat("x", 1<<20))
	assert.NilError(t, FeedStdin(big, bash(t, "seq 1 100000 >/dev/null; wc -c >/dev/null")))

	// Commands may ignore their input.
	assert.NilError(t, FeedStdin(big, bash(t, "true")))
}
