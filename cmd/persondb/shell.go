package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/and161185/persondb/internal/model"
	"github.com/and161185/persondb/internal/service"
	"github.com/gofrs/uuid/v5"
)

const help = `commands:
  create <login> <password> <username> [metadata]
  read   <id>
  update <id> [login=<v>] [password=<v>] [username=<v>] [metadata=<v>]
  delete <id>
  lookup <login>
  verify <login> <password>
  whoami <token>
  count
  check
  help
  quit
`

var errUsage = errors.New("usage (try help)")

// shell executes one command per input line against svc and writes JSON results.
type shell struct {
	svc service.PersonService
	out io.Writer
}

func (sh *shell) printJSON(v any) {
	enc := json.NewEncoder(sh.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// run reads commands until EOF, "quit", or ctx cancellation.
func (sh *shell) run(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args := strings.Fields(line)
		if args[0] == "quit" || args[0] == "exit" {
			return nil
		}
		if err := sh.exec(ctx, args[0], args[1:]); err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprint(sh.out, help)
		return nil

	case "create":
		if len(args) < 3 || len(args) > 4 {
			return errUsage
		}
		p := model.Person{Login: args[0], Password: args[1], Username: args[2]}
		if len(args) == 4 {
			p.Metadata = args[3]
		}
		id, err := sh.svc.Create(ctx, p)
		if err != nil {
			return err
		}
		sh.printJSON(map[string]string{"id": id.String()})
		return nil

	case "read":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		p, err := sh.svc.Get(ctx, id)
		if err != nil {
			return err
		}
		sh.printJSON(p)
		return nil

	case "update":
		if len(args) < 1 {
			return errUsage
		}
		id, err := uuid.FromString(args[0])
		if err != nil {
			return fmt.Errorf("bad id: %w", err)
		}
		ch, err := parseChanges(args[1:])
		if err != nil {
			return err
		}
		if err := sh.svc.Update(ctx, id, ch); err != nil {
			return err
		}
		fmt.Fprintln(sh.out, "ok")
		return nil

	case "delete":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		if err := sh.svc.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(sh.out, "ok")
		return nil

	case "lookup":
		if len(args) != 1 {
			return errUsage
		}
		id, err := sh.svc.Lookup(ctx, args[0])
		if err != nil {
			return err
		}
		sh.printJSON(map[string]string{"id": id.String()})
		return nil

	case "verify":
		if len(args) != 2 {
			return errUsage
		}
		tok, id, err := sh.svc.Verify(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		sh.printJSON(map[string]string{
			"id":           id.String(),
			"access_token": tok.AccessToken,
			"expires_at":   tok.ExpiresAt.UTC().Format(time.RFC3339),
		})
		return nil

	case "whoami":
		if len(args) != 1 {
			return errUsage
		}
		id, err := sh.svc.Authenticate(ctx, args[0])
		if err != nil {
			return err
		}
		sh.printJSON(map[string]string{"id": id.String()})
		return nil

	case "count":
		n, err := sh.svc.Count(ctx)
		if err != nil {
			return err
		}
		sh.printJSON(map[string]int{"count": n})
		return nil

	case "check":
		if err := sh.svc.Check(ctx); err != nil {
			return err
		}
		fmt.Fprintln(sh.out, "ok")
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func oneID(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, errUsage
	}
	id, err := uuid.FromString(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad id: %w", err)
	}
	return id, nil
}

// parseChanges turns key=value pairs into PersonChanges.
func parseChanges(kvs []string) (model.PersonChanges, error) {
	var ch model.PersonChanges
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return ch, fmt.Errorf("expected key=value, got %q", kv)
		}
		switch k {
		case "login":
			ch.Login = v
		case "password":
			ch.Password = v
		case "username":
			ch.Username = v
		case "metadata":
			ch.Metadata = v
		default:
			return ch, fmt.Errorf("unknown field %q", k)
		}
	}
	return ch, nil
}
