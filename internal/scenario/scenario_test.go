package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.yaml")
	content := `
name: list
template: "<ul><li>{{.Data}}</li></ul>"
items: [a, b]
steps:
  - op: push
    values: [c]
  - op: flush
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "list", s.Name)
	assert.Equal(t, EngineForEach, s.Engine)
	assert.Equal(t, []string{"a", "b"}, s.Items)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, OpPush, s.Steps[0].Op)
	assert.Equal(t, []string{"c"}, s.Steps[0].Values)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ntemplate: <ul></ul>\nstep: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "template: <ul></ul>\nsteps: [{op: flush}]\n",
			wantErr: "Name is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ntemplate: <ul></ul>\nsteps: [{op: shuffle}]\n",
			wantErr: "Steps[0].Op must be one of",
		},
		{
			name:    "negative index",
			yaml:    "name: x\ntemplate: <ul></ul>\nsteps: [{op: insert, index: -1, values: [a]}]\n",
			wantErr: "Steps[0].Index must be at least 0",
		},
		{
			name:    "unknown engine",
			yaml:    "name: x\ntemplate: <ul></ul>\nengine: vdom\nsteps: [{op: flush}]\n",
			wantErr: "Engine must be one of",
		},
		{
			name:    "push without values",
			yaml:    "name: x\ntemplate: <ul></ul>\nsteps: [{op: push}]\n",
			wantErr: "steps[0]: push needs values",
		},
		{
			name:    "pop with values",
			yaml:    "name: x\ntemplate: <ul></ul>\nsteps: [{op: pop, values: [a]}]\n",
			wantErr: "steps[0]: pop takes no values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := Parse([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_CapturesFramePerFlush(t *testing.T) {
	s := mustParse(t, `
name: frames
template: "<ul><li>{{.Data}}</li></ul>"
items: [a, b, c]
steps:
  - op: push
    values: [d]
  - op: flush
  - op: remove
    values: [b]
  - op: shift
`)

	result, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)

	require.Len(t, result.Frames, 3)
	assert.Equal(t, Frame{Step: 0, Op: "init", HTML: "<li>a</li><li>b</li><li>c</li>"}, result.Frames[0])
	assert.Equal(t, Frame{Step: 2, Op: "flush", HTML: "<li>a</li><li>b</li><li>c</li><li>d</li>"}, result.Frames[1])
	assert.Equal(t, Frame{Step: 5, Op: "end", HTML: "<li>c</li><li>d</li>"}, result.Frames[2])
	assert.Equal(t, "<li>c</li><li>d</li>", result.HTML)

	assert.Equal(t, int64(4), result.Metrics.TemplatesInstantiated)
	assert.Equal(t, int64(2), result.Metrics.ItemsDeleted)
	assert.Equal(t, int64(1), result.Metrics.InstancesDisposed)
}

func TestRun_ObjectsReuseNodesWithinAFlush(t *testing.T) {
	s := mustParse(t, `
name: reuse
template: "<ul><li>{{.Data}}</li></ul>"
items: [a, b, c]
objects: true
steps:
  - op: remove
    values: [a]
  - op: push
    values: [a]
`)

	result, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)

	assert.Equal(t, "<li>b</li><li>c</li><li>a</li>", result.HTML)
	assert.Equal(t, int64(3), result.Metrics.TemplatesInstantiated)
	assert.Equal(t, int64(1), result.Metrics.NodesetsReused)
}

func TestRun_DeferredPrimitivesRenderNothingForNetNoop(t *testing.T) {
	s := mustParse(t, `
name: deferred
template: "<ul><li>{{.Data}}</li></ul>"
items: [a, b, c]
deferred: true
steps:
  - op: shift
  - op: unshift
    values: [a]
`)

	result, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)

	assert.Equal(t, "<li>a</li><li>b</li><li>c</li>", result.HTML)
	assert.Equal(t, int64(3), result.Metrics.TemplatesInstantiated)
	assert.Zero(t, result.Metrics.ItemsDeleted)
}

func TestRun_EnginesAgree(t *testing.T) {
	src := `
name: agree
template: "<ol><li>{{.Data}}</li></ol>"
items: [a, b, c, d]
objects: true
steps:
  - op: reverse
  - op: flush
  - op: splice
    index: 1
    count: 2
    values: [x, y, z]
  - op: flush
  - op: sort
  - op: flush
  - op: set
    values: [z, a]
`
	foreach := mustParse(t, src)
	viaMapping := mustParse(t, src+"engine: mapping\n")
	require.Equal(t, EngineMapping, viaMapping.Engine)

	want, err := Run(context.Background(), foreach, Options{})
	require.NoError(t, err)
	got, err := Run(context.Background(), viaMapping, Options{})
	require.NoError(t, err)

	assert.Equal(t, want.Frames, got.Frames)
	assert.Equal(t, "<li>z</li><li>a</li>", got.HTML)
}

func TestRun_Sync(t *testing.T) {
	s := mustParse(t, `
name: sync
template: "<ul><li>{{.Data}}</li></ul>"
sync: true
steps:
  - op: push
    values: [a, b]
  - op: insert
    index: 1
    values: [x]
`)

	var seen []string
	result, err := Run(context.Background(), s, Options{OnFrame: func(f Frame) error {
		seen = append(seen, f.HTML)
		return nil
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "<li>a</li><li>x</li><li>b</li>"}, seen)
	assert.Equal(t, int64(2), result.Metrics.FlushesProcessed)
}

func TestRun_Minify(t *testing.T) {
	s := mustParse(t, `
name: minify
template: |
  <ul>
    <li>
      {{.Data}}
    </li>
  </ul>
items: [a, b]
steps: [{op: flush}]
`)

	plain, err := Run(context.Background(), s, Options{})
	require.NoError(t, err)
	minified, err := Run(context.Background(), s, Options{Minify: true})
	require.NoError(t, err)

	assert.Less(t, len(minified.HTML), len(plain.HTML))
	assert.Contains(t, minified.HTML, "a")
	assert.Contains(t, minified.HTML, "b")
}

func TestRun_Errors(t *testing.T) {
	t.Run("splice out of range", func(t *testing.T) {
		s := mustParse(t, `
name: bad
template: "<ul><li>{{.Data}}</li></ul>"
items: [a]
steps: [{op: splice, index: 5, count: 1}]
`)
		_, err := Run(context.Background(), s, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "steps[0] splice: index 5 out of range")
	})

	t.Run("frame callback stops the run", func(t *testing.T) {
		s := mustParse(t, `
name: stop
template: "<ul><li>{{.Data}}</li></ul>"
steps: [{op: flush}, {op: push, values: [a]}]
`)
		stop := errors.New("stop")
		calls := 0
		_, err := Run(context.Background(), s, Options{OnFrame: func(Frame) error {
			calls++
			return stop
		}})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("canceled context", func(t *testing.T) {
		s := mustParse(t, `
name: cancel
template: "<ul><li>{{.Data}}</li></ul>"
steps: [{op: flush}]
`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, s, Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("template without container", func(t *testing.T) {
		s := mustParse(t, `
name: empty
template: "just text"
steps: [{op: flush}]
`)
		_, err := Run(context.Background(), s, Options{})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "no container element"))
	})
}
