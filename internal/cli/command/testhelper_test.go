package command

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
	_ "modernc.org/sqlite"
)

// runApp runs pjctl with args and returns stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runAppContext(context.Background(), t, args...)
}

func runAppContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runAppEnv(ctx, t, args...)
	return out, err
}

// runAppEnv also returns the invocation state so tests can inspect metrics.
func runAppEnv(ctx context.Context, t *testing.T, args ...string) (string, *env, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(ctx, append([]string{"pjctl"}, args...))
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	e, _ := app.Metadata[envKey].(*env)
	return stdout.String(), e, err
}

// storeArgs points pjctl at a fresh badger store.
func storeArgs(t *testing.T) []string {
	t.Helper()
	return []string{
		"--engine", "badger",
		"--data-dir", filepath.Join(t.TempDir(), "store"),
		"--log-level", "error",
	}
}

// createImage writes a real SQLite database with the given page size and
// rows, and returns its path and content.
func createImage(t *testing.T, pageSize, rows int) (string, []byte) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	stmts := []string{
		fmt.Sprintf("PRAGMA page_size = %d", pageSize),
		"CREATE TABLE kv (k INTEGER PRIMARY KEY, v BLOB)",
	}
	for i := 0; i < rows; i++ {
		stmts = append(stmts, fmt.Sprintf("INSERT INTO kv (k, v) VALUES (%d, zeroblob(300))", i))
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			t.Fatalf("%s: %v", s, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	image, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	return path, image
}

func args(base []string, rest ...string) []string {
	out := append([]string(nil), base...)
	return append(out, rest...)
}
