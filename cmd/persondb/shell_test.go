package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/persondb/internal/limiter"
	"github.com/and161185/persondb/internal/model"
	"github.com/and161185/persondb/internal/service"
	"github.com/and161185/persondb/internal/store"
	"github.com/stretchr/testify/require"
)

func newShell() (*shell, *bytes.Buffer) {
	out := &bytes.Buffer{}
	svc := service.NewPersonService(
		store.New(),
		limiter.NewMemory(time.Minute, 3, time.Minute),
		[]byte("shell-test-key-0123456789abcdef0"),
		time.Minute,
		nil,
	)
	return &shell{svc: svc, out: out}, out
}

// lastID decodes the id from the last JSON object written to out.
func lastID(t *testing.T, out *bytes.Buffer) string {
	t.Helper()
	s := out.String()
	i := strings.LastIndex(s, "{")
	require.GreaterOrEqual(t, i, 0, "no json in %q", s)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(s[i:]), &v))
	return v["id"]
}

func Test_shell_Scenario(t *testing.T) {
	sh, out := newShell()
	ctx := context.Background()

	require.NoError(t, sh.run(ctx, strings.NewReader("create login1 Aa1Bb2Cc3Dd4 user#1\n")))
	require.NotEmpty(t, lastID(t, out))

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("create login1 Aa1Bb2Cc3Dd4 user#2\ncount\n")))
	require.Contains(t, out.String(), "error: validation: login: duplicate-login")
	require.Contains(t, out.String(), `"count": 1`)

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("create login2 12345 x\n")))
	require.Contains(t, out.String(), "weak-password")

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("create login2 AaBbcC1234Dd user#2\n")))
	id2 := lastID(t, out)

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("update "+id2+" login=LOGIN2\nread "+id2+"\n")))
	require.Contains(t, out.String(), "ok\n")
	i := strings.Index(out.String(), "{")
	var p model.Person
	require.NoError(t, json.Unmarshal([]byte(out.String()[i:]), &p))
	require.Equal(t, "LOGIN2", p.Login)
	require.Equal(t, "user#2", p.Username)

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("lookup login2\nlookup LOGIN2\n")))
	require.Contains(t, out.String(), "not found")
	require.Equal(t, id2, lastID(t, out))

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("verify LOGIN2 AaBbcC1234Dd\n")))
	var verified map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &verified))
	require.Equal(t, id2, verified["id"])
	require.NotEmpty(t, verified["access_token"])
	_, err := time.Parse(time.RFC3339, verified["expires_at"])
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("verify LOGIN2 wrong\nwhoami "+verified["access_token"]+"\n")))
	require.Contains(t, out.String(), "error: unauthorized")
	require.Equal(t, id2, lastID(t, out))

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("delete "+id2+"\nread "+id2+"\ncheck\n")))
	require.Equal(t, "ok\nerror: person "+id2+": not found\nok\n", out.String())

	out.Reset()
	require.NoError(t, sh.run(ctx, strings.NewReader("whoami "+verified["access_token"]+"\nwhoami garbage\n")))
	require.Equal(t, "error: unauthorized\nerror: unauthorized\n", out.String())
}

func Test_shell_CanceledContext(t *testing.T) {
	sh, out := newShell()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sh.run(ctx, strings.NewReader("count\ncount\ncount\n"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, out.String())
}

// lockedBuffer lets the test read output while run writes it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func Test_shell_CancelWhileWaitingForInput(t *testing.T) {
	sh, _ := newShell()
	out := &lockedBuffer{}
	sh.out = out
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	errc := make(chan error, 1)
	go func() { errc <- sh.run(ctx, pr) }()

	_, err := io.WriteString(pw, "count\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), `"count": 0`) },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func Test_shell_BadInput(t *testing.T) {
	sh, out := newShell()
	ctx := context.Background()

	script := strings.Join([]string{
		"# comment",
		"",
		"frobnicate",
		"create onlylogin",
		"read not-a-uuid",
		"update",
		"update 6ba7b810-9dad-41d1-80b4-00c04fd430c8 nickname=x",
		"update 6ba7b810-9dad-41d1-80b4-00c04fd430c8 login",
		"delete",
		"help",
		"quit",
		"count",
	}, "\n")
	require.NoError(t, sh.run(ctx, strings.NewReader(script)))

	got := out.String()
	require.Contains(t, got, `error: unknown command "frobnicate"`)
	require.Contains(t, got, "error: usage (try help)")
	require.Contains(t, got, "error: bad id")
	require.Contains(t, got, `error: unknown field "nickname"`)
	require.Contains(t, got, `error: expected key=value, got "login"`)
	require.Contains(t, got, "commands:")
	require.NotContains(t, got, "count\"", "commands after quit must not run")
}

func Test_parseChanges(t *testing.T) {
	t.Parallel()
	ch, err := parseChanges([]string{"login=a1", "password=Aa1Bb2Cc3Dd4", "username=bob", "metadata=k=v"})
	require.NoError(t, err)
	require.Equal(t, model.PersonChanges{Login: "a1", Password: "Aa1Bb2Cc3Dd4", Username: "bob", Metadata: "k=v"}, ch)

	ch, err = parseChanges(nil)
	require.NoError(t, err)
	require.True(t, ch.IsEmpty())
}
