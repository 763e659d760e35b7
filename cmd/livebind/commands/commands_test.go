package commands

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livebind/internal/scenario"
)

func TestReplay_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, replay(&buf, []string{"testdata/basic.yaml"}))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "replay_basic", buf.Bytes())
}

func TestReplay_Arguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no file", nil, "scenario file required"},
		{"unknown flag", []string{"testdata/basic.yaml", "--fast"}, "unknown flag: --fast"},
		{"two files", []string{"a.yaml", "b.yaml"}, "unexpected argument: b.yaml"},
		{"missing file", []string{"testdata/missing.yaml"}, "failed to read scenario file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := replay(io.Discard, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReplay_Color(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, replay(&buf, []string{"testdata/basic.yaml", "--color", "--minify"}))
	assert.Contains(t, buf.String(), "basic (foreach)")
	assert.Contains(t, buf.String(), "<li>b</li><li>c</li><li>d</li><li>a</li>")
}

func TestNewStyles(t *testing.T) {
	for _, color := range []bool{false, true} {
		st := newStyles(color)
		for _, style := range []func(string) string{st.title, st.step, st.metric} {
			assert.Contains(t, style("metrics"), "metrics")
		}
	}
	assert.Equal(t, "plain", newStyles(false).title("plain"))
}

func TestServe_StreamsFrames(t *testing.T) {
	s, err := scenario.Load("testdata/basic.yaml")
	require.NoError(t, err)

	server := httptest.NewServer(NewServeHandler(s, 0))
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>basic</title>")

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var frames []scenario.Frame
	for {
		var f scenario.Frame
		if err := conn.ReadJSON(&f); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		frames = append(frames, f)
	}

	require.Len(t, frames, 3)
	assert.Equal(t, "init", frames[0].Op)
	assert.Equal(t, "<li>b</li><li>c</li><li>d</li><li>a</li>", frames[2].HTML)
}

func TestServe_UnknownPath(t *testing.T) {
	s, err := scenario.Load("testdata/basic.yaml")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewServeHandler(s, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
