package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"ecotrack/internal/auth"
	"ecotrack/internal/client/api"
	"ecotrack/internal/client/config"
	"ecotrack/internal/client/gateway/httpgw"
	"ecotrack/internal/client/gateway/memory"
	"ecotrack/internal/client/guard"
	"ecotrack/internal/client/sessionstore"
	"ecotrack/internal/client/ui"
	"ecotrack/internal/logger"
)

func main() {
	// The terminal belongs to the UI; logs go to --log-file or nowhere.
	logger.Init(io.Discard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ecotrack:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, loadErr := config.Load()
	var logFile *os.File

	root := &cobra.Command{
		Use:           "ecotrack",
		Short:         "Join eco challenges and track your impact from the terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.LogFile != "" {
				f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				logFile = f
				logger.Init(f)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFile != nil {
				logFile.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cmd.Context(), cfg)
		},
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "whoami",
			Short: "Print the signed-in account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return whoami(cmd.Context(), cmd.OutOrStdout(), cfg)
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "End the saved session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return logout(cmd.Context(), cmd.OutOrStdout(), cfg)
			},
		},
	)
	root.SetHelpCommand(&cobra.Command{Hidden: true})
	return root
}

// session is the identity side of the client: a gateway and the store
// that follows it. start restores any saved session; the store reports
// Loading until it has.
type session struct {
	store *sessionstore.Store
	token oauth2.TokenSource
	start func(ctx context.Context)
	close func()
}

func openSession(ctx context.Context, cfg config.Config) (*session, error) {
	if cfg.Offline {
		gw := memory.New(memory.WithInteractive(offlineProvider))
		store := sessionstore.New(gw)
		logger.Info("running offline", nil)
		return &session{store: store, start: func(context.Context) {}, close: store.Close}, nil
	}

	gw, err := httpgw.New(httpgw.Config{
		BaseURL:     cfg.IdentityURL,
		SessionFile: cfg.SessionFile,
		OpenURL:     openBrowser,
	})
	if err != nil {
		return nil, err
	}
	store := sessionstore.New(gw)
	return &session{
		store: store,
		token: gw,
		start: gw.Start,
		close: func() {
			store.Close()
			gw.Close()
		},
	}, nil
}

func runUI(ctx context.Context, cfg config.Config) error {
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	data, err := api.NewClient(api.Config{BaseURL: cfg.APIURL, TokenSource: sess.token})
	if err != nil {
		return err
	}

	model := ui.New(ui.Deps{
		Store:    sess.store,
		Guard:    guard.New(guard.Options{}),
		Data:     data,
		Provider: cfg.Provider,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// Restore in the background so the first frame is the pending screen.
	startCtx, cancelStart := context.WithCancel(ctx)
	started := make(chan struct{})
	go func() {
		defer close(started)
		sess.start(startCtx)
	}()
	defer func() {
		cancelStart()
		<-started
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func whoami(ctx context.Context, out io.Writer, cfg config.Config) error {
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	sess.start(ctx)
	if err := sess.store.Ready(ctx); err != nil {
		return err
	}

	id := sess.store.Snapshot().Identity
	if id == nil {
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}
	fmt.Fprintf(out, "%s <%s> via %s\n", displayName(id), id.Email, id.Provider)
	return nil
}

func logout(ctx context.Context, out io.Writer, cfg config.Config) error {
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	sess.start(ctx)
	if err := sess.store.Ready(ctx); err != nil {
		return err
	}
	if err := sess.store.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Signed out.")
	return nil
}

func displayName(id *auth.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return id.Email
}

// offlineProvider vouches for a local account when no identity service
// is in reach.
func offlineProvider(_ context.Context, provider string) (*auth.Identity, error) {
	user := os.Getenv("USER")
	if user == "" {
		user = "guest"
	}
	return &auth.Identity{Email: user + "@" + provider + ".offline", DisplayName: user}, nil
}

func openBrowser(authURL string) error {
	logger.Info("opening federated sign-in page", map[string]any{"url": authURL})

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", authURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", authURL)
	default:
		cmd = exec.Command("xdg-open", authURL)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}
