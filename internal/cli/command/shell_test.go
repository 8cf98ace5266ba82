package command

import (
	"context"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func runShell(t *testing.T, input string, args ...string) string {
	t.Helper()
	out := &syncBuffer{}
	app := App()
	app.Reader = strings.NewReader(input)
	app.Writer = out
	app.ErrWriter = &syncBuffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{"ttlstash"}, args...)
	full = append(full, "shell", "--no-history")
	if err := app.RunContext(context.Background(), full); err != nil {
		t.Fatalf("shell: %v", err)
	}
	return out.String()
}

func TestShell_MemoryBackendKeepsState(t *testing.T) {
	input := strings.Join([]string{
		`set --ttl 3600 greeting 'hello world'`,
		`set count 3`,
		`get greeting`,
		`keys`,
		`has count`,
		`rm count`,
		`has count`,
		`exit`,
	}, "\n") + "\n"

	out := runShell(t, input, "--backend", "memory", "--namespace", "demo")

	if !strings.Contains(out, "ttlstash[demo]> ") {
		t.Errorf("prompt missing namespace: %q", out)
	}
	if !strings.Contains(out, "hello world") {
		t.Errorf("value not read back within the session: %q", out)
	}
	if !strings.Contains(out, "count") {
		t.Errorf("keys output missing count: %q", out)
	}
	if !strings.Contains(out, "true") || !strings.Contains(out, "false") {
		t.Errorf("has output: %q", out)
	}
}

func TestShell_ErrorsDoNotEndSession(t *testing.T) {
	out := runShell(t, "get missing\nbogus\nset k v\nget k\n", "--backend", "memory")

	if !strings.Contains(out, "error: key not found: missing") {
		t.Errorf("missing key error not shown: %q", out)
	}
	if !strings.Contains(out, `unknown command "bogus"`) {
		t.Errorf("unknown command not reported: %q", out)
	}
	if !strings.HasSuffix(strings.TrimRight(out, "\n"), "ttlstash[__ttlstash__]> ") ||
		!strings.Contains(out, "v\n") {
		t.Errorf("session did not continue: %q", out)
	}
}

func TestShell_OutputFormatInherited(t *testing.T) {
	out := runShell(t, "set k '{\"a\":1}'\nget k\n", "--backend", "memory", "--output", "json")
	if !strings.Contains(out, `"a": 1`) {
		t.Errorf("json output not used inside the shell: %q", out)
	}
}

func TestShell_Builtins(t *testing.T) {
	out := runShell(t, "complete ex\nhistory\n", "--backend", "memory")
	if !strings.Contains(out, "expire\n") || !strings.Contains(out, "exit\n") {
		t.Errorf("complete output: %q", out)
	}
	if !strings.Contains(out, "   1  complete ex") {
		t.Errorf("history output: %q", out)
	}
}
