package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"dlshell/internal/shell"
)

const promptText = "🥞 > "

// runPlain is the line-oriented prompt used when stdin is not a terminal.
func runPlain(ctx context.Context, sh *shell.Shell, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, banner(sh))

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for ctx.Err() == nil {
		fmt.Fprint(out, promptText)
		if !sc.Scan() {
			fmt.Fprintln(out)
			break
		}
		reply := sh.Execute(ctx, sc.Text())
		writePlain(out, reply)

		switch reply.Action {
		case shell.ActionQuit:
			return nil
		case shell.ActionEdit:
			cmd := sh.EditCommand()
			cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
			writePlain(out, sh.FinishEdit(cmd.Run()))
		}
	}
	return sc.Err()
}

func writePlain(out io.Writer, r shell.Reply) {
	if r.Text == "" {
		return
	}
	switch r.Kind {
	case shell.ReplyError:
		fmt.Fprintf(out, "error: %s\n", r.Text)
	default:
		fmt.Fprint(out, r.Text)
		if r.Text[len(r.Text)-1] != '\n' {
			fmt.Fprintln(out)
		}
	}
}

func banner(sh *shell.Shell) string {
	return fmt.Sprintf(`dlshell session %s
Type Soufflé statements such as "path(x, y) :- edge(x, y)." or ".output NAME".
Type "?" for commands, "quit" to leave.`, sh.Cache().Token())
}
