package cli

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/skip"

	"github.com/melih/lighthouse/internal/command"
	"github.com/melih/lighthouse/internal/core/domain"
)

// fakeDocker is a docker stand-in that records its arguments and replays a
// canned stdout and exit code.
type fakeDocker struct {
	dir    string
	binary string
}

func newFakeDocker(t *testing.T) *fakeDocker {
	t.Helper()
	_, err := exec.LookPath("bash")
	skip.If(t, err != nil, "bash is not available")

	dir := t.TempDir()
	binary := filepath.Join(dir, "docker")
	script := `#!/usr/bin/env bash
dir="$(dirname "$0")"
printf '%s\n' "$*" >> "$dir/calls"
[[ -f "$dir/stdout" ]] && cat "$dir/stdout"
exit "$(cat "$dir/exit" 2>/dev/null || echo 0)"
`
	assert.NilError(t, os.WriteFile(binary, []byte(script), 0o755))
	return &fakeDocker{dir: dir, binary: binary}
}

func (f *fakeDocker) respond(t *testing.T, stdout string, exit int) {
	t.Helper()
	assert.NilError(t, os.WriteFile(filepath.Join(f.dir, "stdout"), []byte(stdout), 0o644))
	assert.NilError(t, os.WriteFile(filepath.Join(f.dir, "exit"), []byte(strconv.Itoa(exit)), 0o644))
}

func (f *fakeDocker) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, "calls"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	assert.NilError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestCollectContainers(t *testing.T) {
	fake := newFakeDocker(t)
	fake.respond(t, "c2 h1 web\nc1 h0 web\n", 0)
	engine := NewEngine(fake.binary, "ssh://deploy@example.com", "shop", 10*time.Second)

	actual, err := engine.CollectContainers(context.Background())
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(slices.Collect(actual.All()), []domain.ActualContainer{
		{ContainerID: "c1", ServiceConfigHash: "h0", ServiceName: "web"},
		{ContainerID: "c2", ServiceConfigHash: "h1", ServiceName: "web"},
	}))

	calls := fake.calls(t)
	assert.Assert(t, is.Len(calls, 1))
	assert.Check(t, strings.HasPrefix(calls[0], "--host ssh://deploy@example.com container ls --no-trunc"))
	assert.Check(t, is.Contains(calls[0], "--filter label=lighthouse.project=shop"))
	assert.Check(t, is.Contains(calls[0], `{{.ID}} {{.Label "lighthouse.config-hash"}} {{.Label "lighthouse.service"}}`))
}

func TestCollectContainersBadRow(t *testing.T) {
	fake := newFakeDocker(t)
	fake.respond(t, "c1 h1 web\nc2 web\n", 0)
	engine := NewEngine(fake.binary, "", "shop", 10*time.Second)

	_, err := engine.CollectContainers(context.Background())
	var collectionErr *domain.CollectionError
	assert.Check(t, errors.As(err, &collectionErr))
	assert.Check(t, command.IsDecodeFailure(err))
	assert.Check(t, is.ErrorContains(err, "line 2, expected 3 fields but got 2"))
}

func TestCollectContainersEngineFailure(t *testing.T) {
	fake := newFakeDocker(t)
	fake.respond(t, "", 1)
	engine := NewEngine(fake.binary, "", "shop", 10*time.Second)

	_, err := engine.CollectContainers(context.Background())
	code, ok := command.ExitCode(err)
	assert.Check(t, ok)
	assert.Check(t, is.Equal(code, 1))
}

func TestStartContainer(t *testing.T) {
	fake := newFakeDocker(t)
	fake.respond(t, "abc123\n", 0)
	engine := NewEngine(fake.binary, "", "shop", 10*time.Second)

	id, err := engine.StartContainer(context.Background(), domain.StartRequest{
		ServiceName:       "web",
		ServiceConfigHash: "sha256:1",
		Template: domain.ContainerTemplate{
			Image:       "nginx:1.27",
			Command:     []string{"nginx", "-g", "daemon off;"},
			Environment: map[string]string{"B": "2", "A": "1"},
		},
	})
	assert.NilError(t, err)
	assert.Check(t, is.Equal(id, "abc123"))

	calls := fake.calls(t)
	assert.Assert(t, is.Len(calls, 1))
	assert.Check(t, is.Regexp(`^container run --detach --name shop-web-[0-9a-f]{8} `+
		`--label lighthouse.config-hash=sha256:1 --label lighthouse.project=shop --label lighthouse.service=web `+
		`--env A=1 --env B=2 nginx:1.27 nginx -g daemon off;$`, calls[0]))
}

func TestStartContainerRequiresImage(t *testing.T) {
	engine := NewEngine("docker", "", "shop", 10*time.Second)
	_, err := engine.StartContainer(context.Background(), domain.StartRequest{ServiceName: "web"})
	assert.Check(t, is.ErrorContains(err, `service "web" has no image`))
}

func TestStopAndRemove(t *testing.T) {
	fake := newFakeDocker(t)
	engine := NewEngine(fake.binary, "", "shop", 30*time.Second)

	assert.NilError(t, engine.StopContainer(context.Background(), "c1"))
	assert.NilError(t, engine.RemoveContainer(context.Background(), "c1"))
	assert.Check(t, is.DeepEqual(fake.calls(t), []string{
		"container stop --time 30 c1",
		"container rm c1",
	}))
}

func TestVersion(t *testing.T) {
	fake := newFakeDocker(t)
	fake.respond(t, `{"Version":"25.0.6","ApiVersion":"1.44","Os":"linux","Arch":"amd64"}`, 0)
	engine := NewEngine(fake.binary, "", "shop", 10*time.Second)

	info, err := engine.Version(context.Background())
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(info, domain.EngineInfo{Version: "25.0.6", APIVersion: "1.44", Os: "linux", Arch: "amd64"}))
}
