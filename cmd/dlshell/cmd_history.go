package main

import (
	"fmt"
	"text/tabwriter"

	"dlshell/internal/store"

	"github.com/spf13/cobra"
)

var (
	historySession string
	historyLimit   int
)

// historyCmd lists recorded sessions or the statements of one session.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded sessions and statements",
	Long: `Without --session, lists recent sessions. With --session TOKEN, lists the
statements submitted in that session with their outcome.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historySession, "session", "s", "", "Session token")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum rows")
}

func runHistory(cmd *cobra.Command, args []string) error {
	h, err := store.Open(cfg.HistoryDBPath())
	if err != nil {
		return err
	}
	defer h.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	if historySession == "" {
		sessions, err := h.Sessions(historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "TOKEN\tSTARTED\tSTATEMENTS\tBASE")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Token, s.StartedAt.Local().Format("2006-01-02 15:04"), s.Statements, s.BaseDir)
		}
		return nil
	}

	statements, err := h.Statements(historySession, historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "SEQ\tKIND\tOUTCOME\tTEXT")
	for _, st := range statements {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Seq, st.Kind, st.Outcome, st.Text)
	}
	return nil
}
