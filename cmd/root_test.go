package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliHarness struct {
	t  *testing.T
	db string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	return &cliHarness{t: t, db: filepath.Join(t.TempDir(), "tutord.db")}
}

// run executes the CLI and returns stdout and the error.
func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), append([]string{"--db", h.db}, args...), &out)
	return out.String(), err
}

// ok runs the CLI, requires success and decodes the JSON result.
func (h *cliHarness) ok(args ...string) map[string]any {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	var m map[string]any
	require.NoError(h.t, json.Unmarshal([]byte(out), &m), out)
	return m
}

// fail runs the CLI, requires failure and returns the error kind.
func (h *cliHarness) fail(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.Error(h.t, err)
	var doc errorDocument
	require.NoError(h.t, json.Unmarshal([]byte(out), &doc), out)
	assert.NotEmpty(h.t, doc.Message)
	return doc.Error
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), []string{"version"}, &out))
	assert.Equal(t, "tutord (devel)\n", out.String())
}

func TestTutoringFlow(t *testing.T) {
	h := newHarness(t)

	start := h.ok("session", "start", "-l", "ada", "-t", "Long Division")
	assert.Equal(t, "long_division", start["topic"])
	assert.Equal(t, true, start["needs_topic_graph"])
	assert.Equal(t, 0.0, start["mastery"])
	zpd := start["zpd"].(map[string]any)
	assert.Equal(t, "remember", zpd["current"])

	graph := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(graph, []byte("long division: [multiplication, subtraction]\n"), 0o644))
	g := h.ok("topics", "graph", "-l", "ada", "-t", "long division", "--file", graph)
	assert.Equal(t, []any{"long_division", "multiplication", "subtraction"}, g["nodes"])

	for i := 0; i < 3; i++ {
		h.ok("attempt", "-l", "ada", "-t", "long division", "--error-type", "conceptual", "--answer", "41", "--expected", "42")
	}
	// Mastery is below the floor after repeated conceptual errors, so the
	// nearest unmastered prerequisite is recommended.
	assess := h.ok("assess", "-l", "ada", "-t", "long division")
	rec := assess["recommendation"].(map[string]any)
	assert.Equal(t, "go_back", rec["action"])
	params := rec["params"].(map[string]any)
	assert.Equal(t, "multiplication", params["prerequisite"])
	assert.Equal(t, 0.0, params["prerequisite_mastery"])

	h.ok("misconception", "add", "-l", "ada", "-t", "long division", "forgets", "to", "carry")
	mc := h.ok("misconception", "resolve", "-l", "ada", "-t", "long division", "forgets to carry")
	assert.Equal(t, true, mc["changed"])

	brk := h.ok("break", "-l", "ada", "-t", "long division")
	assert.Equal(t, true, brk["recorded"])
	assess = h.ok("assess", "-l", "ada", "-t", "long division")
	assert.Equal(t, "warmup", assess["recommendation"].(map[string]any)["action"])

	topics := h.ok("topics", "add", "-l", "ada", "fractions", "long division")
	assert.Equal(t, []any{"fractions"}, topics["added"])
	assert.Equal(t, []any{"long_division"}, topics["already_existed"])

	out, err := h.run("report", "-l", "ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Learner ada")
	assert.Contains(t, out, "long_division")
	assert.False(t, strings.Contains(out, "\x1b["), "report is plain without --color")

	end := h.ok("session", "end", "-l", "ada")
	assert.Equal(t, 3.0, end["attempts"])
	assert.Len(t, end["sessions"], 1)

	out, err = h.run("events", "-l", "ada", "--limit", "1")
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "session_ended", events[0]["kind"])

	learners := h.ok("learners")
	assert.Equal(t, []any{"ada"}, learners["learners"])

	h.ok("topics", "delete", "-l", "ada", "-t", "fractions")
	profile := h.ok("profile", "-l", "ada")
	assert.NotContains(t, profile["topics"], "fractions")
}

func TestGraphFromStdin(t *testing.T) {
	h := newHarness(t)
	h.ok("topics", "add", "-l", "ada", "algebra")

	var out bytes.Buffer
	c := &cli{}
	root := newRootCmd(c)
	root.SetArgs([]string{"--db", h.db, "topics", "graph", "-l", "ada", "-t", "algebra", "-f", "-"})
	root.SetOut(&out)
	root.SetIn(strings.NewReader(`{"algebra": ["arithmetic"]}`))
	err := root.ExecuteContext(context.Background())
	c.app.close()
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), `"arithmetic"`)
}

func TestErrorDocuments(t *testing.T) {
	h := newHarness(t)
	h.ok("session", "start", "-l", "ada", "-t", "fractions")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown learner", []string{"assess", "-l", "nobody", "-t", "fractions"}, "not_found"},
		{"unknown topic", []string{"assess", "-l", "ada", "-t", "decimals"}, "not_found"},
		{"bad error type", []string{"attempt", "-l", "ada", "-t", "fractions", "--error-type", "sloppy"}, "invalid_input"},
		{"bad bloom", []string{"attempt", "-l", "ada", "-t", "fractions", "--correct", "--bloom", "memorize"}, "invalid_input"},
		{"missing learner", []string{"assess", "-t", "fractions"}, "invalid_input"},
		{"missing topic", []string{"break", "-l", "ada"}, "invalid_input"},
		{"unknown flag", []string{"assess", "--nope"}, "invalid_input"},
		{"no topics", []string{"topics", "add", "-l", "ada"}, "invalid_input"},
		{"resolve missing", []string{"mc", "resolve", "-l", "ada", "-t", "fractions", "never seen"}, "not_found"},
		{"delete missing", []string{"topics", "delete", "-l", "ada", "-t", "decimals"}, "not_found"},
		{"graph without file", []string{"topics", "graph", "-l", "ada", "-t", "fractions"}, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.fail(tt.args...))
		})
	}
}

func TestCyclicGraphRejected(t *testing.T) {
	h := newHarness(t)
	h.ok("topics", "add", "-l", "ada", "a", "b")

	dir := t.TempDir()
	first := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(first, []byte(`{"a": ["b"]}`), 0o644))
	h.ok("topics", "graph", "-l", "ada", "-t", "a", "-f", first)

	second := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(second, []byte(`{"b": ["a"]}`), 0o644))
	assert.Equal(t, "invalid_input", h.fail("topics", "graph", "-l", "ada", "-t", "b", "-f", second))
}

func TestConfigFile(t *testing.T) {
	h := newHarness(t)
	cfgPath := filepath.Join(t.TempDir(), "tutord.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("policy:\n  productive_failure_threshold: 0\n"), 0o644))

	h.ok("session", "start", "-l", "ada", "-t", "fractions")
	h.ok("attempt", "-l", "ada", "-t", "fractions", "--error-type", "computational")

	assess := h.ok("--config", cfgPath, "assess", "-l", "ada", "-t", "fractions")
	rec := assess["recommendation"].(map[string]any)
	assert.Equal(t, "brief_tip", rec["action"])
	params := rec["params"].(map[string]any)
	assert.Equal(t, "computational", params["error_type"])
	assert.Equal(t, 1.0, params["streak"])

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("policy:\n  mastery_decay: 2\n"), 0o644))
	assert.Equal(t, "invalid_input", h.fail("--config", bad, "assess", "-l", "ada", "-t", "fractions"))
}
