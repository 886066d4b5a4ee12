package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cvswarm/cvswarm/internal/app"
	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/session"
)

var chatNewSession bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatNewSession, "new", false, "start a fresh session instead of resuming the last one")
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if err = requireAPIKey(); err != nil {
		return err
	}

	// Keep the REPL quiet: only warnings reach the terminal.
	logger := log.New(log.Config{Level: slog.LevelWarn})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if _, err = a.Knowledge.Ingest(ctx, cfg.Knowledge.DocumentPath, false); err != nil {
		return fmt.Errorf("building knowledge base: %w", err)
	}

	sessionID := ""
	if !chatNewSession {
		if sessionID, err = session.LoadCurrentID(ctx); err != nil {
			logger.Warn("could not resume previous session", "error", err)
			sessionID = ""
		}
	}

	st := defaultStyles()
	md := newMarkdownRenderer()

	fmt.Println(st.Banner.Render("cvswarm"))
	if sessionID != "" {
		fmt.Println(st.System.Render("Resuming session " + sessionID))
	}
	fmt.Println(st.System.Render("Ask about the CV or anything else. Type 'exit' to leave."))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(st.Prompt.Render("you> ") + " ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if isExitCommand(input) {
			break
		}

		reply, err := a.Swarm.Process(ctx, sessionID, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Println(st.Error.Render("error: " + err.Error()))
			continue
		}

		if reply.SessionID != sessionID {
			sessionID = reply.SessionID
			if saveErr := session.SaveCurrentID(ctx, sessionID); saveErr != nil {
				logger.Warn("could not save session id", "error", saveErr)
			}
		}

		fmt.Println(st.Agent.Render(reply.Agent + ":"))
		fmt.Println(md.Render(reply.Content))
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if sessionID != "" {
		fmt.Println(st.System.Render("Session saved: " + sessionID))
	}
	return nil
}

func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

// requireAPIKey fails early with a usable hint instead of letting the
// first model call surface an opaque provider error.
func requireAPIKey() error {
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		return nil
	}
	fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Please run:")
	fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
	return fmt.Errorf("GEMINI_API_KEY not set")
}
