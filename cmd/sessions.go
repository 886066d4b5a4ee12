package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cvswarm/cvswarm/db"
	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/responder"
	"github.com/cvswarm/cvswarm/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently active first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSessionsList(cmd.Context())
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the turns of one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessionsShow(cmd.Context(), args[0])
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// openSessions connects to the database without the model stack; the
// sessions commands never call the model or the embedder.
func openSessions(ctx context.Context) (*session.Store, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err = db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return session.New(pool, responder.RoleCurriculum, log.NewNop()), pool, nil
}

func runSessionsList(ctx context.Context) error {
	store, pool, err := openSessions(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessions, err := store.List(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tACTIVE AGENT\tLAST ACTIVITY")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			s.ID,
			responder.DisplayName(s.ActiveRole),
			s.UpdatedAt.Local().Format(time.RFC3339),
		)
	}
	return w.Flush()
}

func runSessionsShow(ctx context.Context, id string) error {
	store, pool, err := openSessions(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	turns, err := store.Turns(ctx, id, 1000, 0)
	if err != nil {
		return fmt.Errorf("loading turns: %w", err)
	}
	if len(turns) == 0 {
		fmt.Printf("Session %s has no turns.\n", id)
		return nil
	}

	st := defaultStyles()
	for _, turn := range turns {
		fmt.Printf("[%d] %s\n", turn.Sequence, turn.CreatedAt.Local().Format(time.RFC3339))
		fmt.Println(st.Prompt.Render("you:") + " " + turn.Question)
		agent := responder.DisplayName(turn.Role)
		if len(turn.Chain) > 1 {
			agent += fmt.Sprintf(" (via %v)", turn.Chain)
		}
		fmt.Println(st.Agent.Render(agent+":") + " " + turn.Answer)
		fmt.Println()
	}
	return nil
}
