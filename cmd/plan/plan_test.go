package plan

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/meridian-works/meridian/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	applyDryRun = false

	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(io.Discard)
	Cmd.SetArgs(args)
	err := Cmd.Execute()
	return out.String(), err
}

func TestLintGlob(t *testing.T) {
	dir := t.TempDir()
	writePlan(t, dir, "teams/billing.yaml", testutil.SamplePlan)
	writePlan(t, dir, "notes.txt", "not a plan")

	out, err := run(t, "lint", filepath.Join(dir, "**", "*.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Validated 1 plan(s) with 3 task(s)\n", out)
}

func TestLintRejectsCycles(t *testing.T) {
	dir := t.TempDir()
	path := writePlan(t, dir, "cycle.yaml", `
apiVersion: v1
kind: Plan
project:
  name: Loop
  start: 2024-01-01
  end: 2024-02-01
tasks:
  - key: a
    title: A
    due: 2024-01-10
    dependsOn: [b]
  - key: b
    title: B
    due: 2024-01-12
    dependsOn: [a]
`)

	_, err := run(t, "lint", path)
	assert.Error(t, err)
}

func TestApplyPostsEachFile(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/plans/apply", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"dry_run":false,"plans":1,"results":[{"project":{"code":"PRJ-1","name":"Billing revamp"},"task_ids":{"design":1,"build":2,"ship":3}}]}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	writePlan(t, dir, "billing.yaml", testutil.SamplePlan)

	out, err := run(t, "apply", "--server", srv.URL, "--token", "tok", dir)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.Equal(t, testutil.SamplePlan, bodies[0])
	assert.Contains(t, out, "PRJ-1\tBilling revamp\t3 task(s)")
	assert.Contains(t, out, "Applied 1 plan(s)")
}

func TestApplyStopsOnInvalidPlan(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	dir := t.TempDir()
	writePlan(t, dir, "a.yaml", testutil.SamplePlan)
	writePlan(t, dir, "b.yaml", "apiVersion: v9\nkind: Plan\n")

	_, err := run(t, "apply", "--server", srv.URL, dir)
	assert.Error(t, err)
	assert.False(t, called)
}
