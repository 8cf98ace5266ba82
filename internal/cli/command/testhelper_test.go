package command

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// runIn runs the CLI against a filedir backend in dir.
func runIn(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	return runCtx(context.Background(), dir, &syncBuffer{}, args...)
}

func runCtx(ctx context.Context, dir string, out *syncBuffer, args ...string) (string, error) {
	app := App()
	app.Writer = out
	app.ErrWriter = &syncBuffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"ttlstash", "--backend", "filedir", "--dir", dir}, args...)
	err := app.RunContext(ctx, full)
	return out.String(), err
}

// mustRun runs the CLI and fails the test on error.
func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runIn(t, dir, args...)
	if err != nil {
		t.Fatalf("ttlstash %v: %v", args, err)
	}
	return out
}
