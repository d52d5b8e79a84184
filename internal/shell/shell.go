// Package shell maps lines typed at the interactive prompt to session
// operations and renders their replies.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"dlshell/internal/datalog"
	"dlshell/internal/engine"
	"dlshell/internal/logging"
	"dlshell/internal/session"
	"dlshell/internal/store"
)

// Action tells the front-end what to do after a reply is shown.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionEdit
)

// ReplyKind selects how a reply is rendered.
type ReplyKind int

const (
	ReplyInfo ReplyKind = iota
	ReplyRelation
	ReplyMarkdown
	ReplyError
)

// Reply is the result of one executed line.
type Reply struct {
	Kind   ReplyKind
	Text   string
	Action Action
	Err    error
}

func info(format string, args ...interface{}) Reply {
	return Reply{Kind: ReplyInfo, Text: fmt.Sprintf(format, args...)}
}

func failure(err error) Reply {
	return Reply{Kind: ReplyError, Text: describe(err), Err: err}
}

// Shell dispatches prompt lines for one session.
type Shell struct {
	cache   *session.Cache
	history *store.History
	editor  string
}

// New creates a shell over cache. history may be nil.
func New(cache *session.Cache, history *store.History, editor string) *Shell {
	if editor == "" {
		editor = "emacs"
	}
	return &Shell{cache: cache, history: history, editor: editor}
}

// Cache returns the session the shell drives.
func (s *Shell) Cache() *session.Cache { return s.cache }

// Execute runs one prompt line. Errors are reported in the reply; they never
// end the session.
func (s *Shell) Execute(ctx context.Context, line string) Reply {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Reply{}
	}

	fields := strings.Fields(trimmed)
	cmd := FindCommand(fields[0])
	if cmd == nil {
		return s.statement(ctx, trimmed)
	}
	args := fields[1:]
	logging.ShellDebug("command %s %v", cmd.Name, args)

	start := time.Now()
	reply := s.command(ctx, cmd, args)
	if cmd.Name != "quit" && cmd.Name != "help" {
		s.record(store.KindCommand, trimmed, outcomeOf(reply.Err), time.Since(start))
	}
	return reply
}

func (s *Shell) command(ctx context.Context, cmd *CommandInfo, args []string) Reply {
	switch cmd.Name {
	case "quit":
		return Reply{Kind: ReplyInfo, Text: "see you (TvT)/~", Action: ActionQuit}

	case "help":
		return Reply{Kind: ReplyMarkdown, Text: HelpMarkdown()}

	case "compile":
		res, err := s.cache.Compile(ctx)
		if err != nil {
			return failure(err)
		}
		return info("compiled in %s, %d relations in outputs", res.Duration.Round(time.Millisecond), len(res.Outputs))

	case "load":
		if len(args) == 0 {
			return failure(fmt.Errorf("usage: %s", cmd.Usage))
		}
		res, err := s.cache.Load(ctx, args...)
		var sb strings.Builder
		if res != nil {
			for _, m := range res.Missing {
				sb.WriteString(fmt.Sprintf("file %s does not exist\n", m))
			}
		}
		if err != nil {
			r := failure(err)
			r.Text = sb.String() + r.Text
			return r
		}
		if len(res.Loaded) == 0 {
			sb.WriteString("nothing loaded")
		} else {
			sb.WriteString(fmt.Sprintf("loaded %s", strings.Join(res.Loaded, ", ")))
		}
		return info("%s", strings.TrimRight(sb.String(), "\n"))

	case "facts":
		if len(args) != 1 {
			return failure(fmt.Errorf("usage: %s", cmd.Usage))
		}
		n, err := s.cache.ImportFacts(args[0])
		if err != nil {
			return failure(err)
		}
		return info("imported %d fact files", n)

	case "rules":
		names, err := s.cache.Rules()
		if err != nil {
			return failure(err)
		}
		if len(names) == 0 {
			return info("no relations yet")
		}
		return info("%s", columns(names, 4, 30))

	case "history":
		return Reply{Kind: ReplyRelation, Text: s.cache.Text()}

	case "export":
		if len(args) != 1 {
			return failure(fmt.Errorf("usage: %s", cmd.Usage))
		}
		if err := s.cache.Export(args[0]); err != nil {
			return failure(err)
		}
		return info("session written to %s", args[0])

	case "save":
		if len(args) != 1 {
			return failure(fmt.Errorf("usage: %s", cmd.Usage))
		}
		if err := s.cache.SaveOutputs(args[0]); err != nil {
			return failure(err)
		}
		return info("outputs saved to %s", args[0])

	case "cleancache":
		if err := s.cache.Clean(); err != nil {
			return failure(err)
		}
		return info("cache cleaned")

	case "edit":
		return Reply{Kind: ReplyInfo, Text: "opening " + s.cache.Path(), Action: ActionEdit}

	case "replay":
		if len(args) != 1 {
			return failure(fmt.Errorf("usage: %s", cmd.Usage))
		}
		return s.replay(ctx, strings.ToUpper(args[0]))
	}
	return failure(fmt.Errorf("unhandled command %s", cmd.Name))
}

// statement submits a statement line to the session.
func (s *Shell) statement(ctx context.Context, line string) Reply {
	kind := store.KindStatement
	if marker, _, ok := datalog.DirectiveTarget(line); ok && marker == datalog.MarkerOutput {
		kind = store.KindOutput
	}

	start := time.Now()
	out, err := s.cache.Submit(ctx, line)
	s.record(kind, line, outcomeOf(err), time.Since(start))
	if err != nil {
		return failure(err)
	}
	if out == nil {
		return Reply{}
	}
	if !out.Produced {
		return info("%s produced no output", out.Name)
	}
	return Reply{Kind: ReplyRelation, Text: string(out.Data)}
}

func (s *Shell) replay(ctx context.Context, token string) Reply {
	if s.history == nil {
		return failure(errors.New("no history store configured"))
	}
	texts, err := s.history.Accepted(token)
	if err != nil {
		return failure(err)
	}

	replayed := 0
	for _, text := range texts {
		r := s.statement(ctx, text)
		if r.Err != nil {
			r.Text = fmt.Sprintf("replay stopped after %d of %d statements: %s", replayed, len(texts), r.Text)
			return r
		}
		replayed++
	}
	logging.Shell("replayed %d statements from %s", replayed, token)
	return info("replayed %d statements from %s", replayed, token)
}

// EditCommand returns the editor process for the session cache file.
func (s *Shell) EditCommand() *exec.Cmd {
	parts := strings.Fields(s.editor)
	args := append(parts[1:], s.cache.Path())
	return exec.Command(parts[0], args...)
}

// FinishEdit reloads the buffer after the editor exited.
func (s *Shell) FinishEdit(editErr error) Reply {
	if editErr != nil {
		return failure(fmt.Errorf("editor: %w", editErr))
	}
	if err := s.cache.Reload(); err != nil {
		return failure(err)
	}
	return info("reloaded %d statements", len(s.cache.Statements()))
}

func (s *Shell) record(kind store.Kind, text string, outcome store.Outcome, took time.Duration) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(s.cache.Token(), kind, text, outcome, took); err != nil {
		logging.Get(logging.CategoryShell).Warn("failed to record %q: %v", text, err)
	}
}

func outcomeOf(err error) store.Outcome {
	switch {
	case err == nil:
		return store.OutcomeAccepted
	case errors.Is(err, session.ErrUndeclared):
		return store.OutcomeUndeclared
	case errors.Is(err, engine.ErrEngineFailed):
		return store.OutcomeEngineFailed
	default:
		return store.OutcomeRejected
	}
}

// describe turns an error into the short diagnostic shown at the prompt.
func describe(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidStatement):
		return `invalid datalog statement; type "?" to list commands`
	case errors.Is(err, session.ErrUndeclared):
		return fmt.Sprintf("relation has not been declared (%v)", err)
	case errors.Is(err, engine.ErrEngineFailed):
		return fmt.Sprintf("%v; session cache was reset", err)
	default:
		return err.Error()
	}
}

// columns lays names out in rows of n, each padded to width.
func columns(names []string, n, width int) string {
	var rows []string
	for i := 0; i < len(names); i += n {
		end := min(i+n, len(names))
		var row strings.Builder
		for _, name := range names[i:end] {
			row.WriteString(fmt.Sprintf("%-*s", width, name))
		}
		rows = append(rows, strings.TrimRight(row.String(), " "))
	}
	return strings.Join(rows, "\n")
}
