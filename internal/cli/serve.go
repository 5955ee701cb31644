package cli

import (
	"context"
	stderrs "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/authforge/authcore/config"
	"github.com/authforge/authcore/internal/httpapi"
	"github.com/authforge/authcore/lifecycle"
	"github.com/authforge/authcore/users"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts.settings())
		},
	}
}

// startApp builds the application and runs its startup hooks with the user
// schema registered.
func startApp(ctx context.Context, s *config.Settings) (*lifecycle.App, *users.Service, error) {
	app, err := lifecycle.New(s, nil)
	if err != nil {
		return nil, nil, err
	}
	app.Migrations = users.Migrations()
	if err := app.Startup(ctx); err != nil {
		app.Logger.ErrorWith().Err(err).Msg("Startup failed")
		_ = app.Shutdown(context.WithoutCancel(ctx))
		return nil, nil, err
	}

	tokens, err := users.NewTokens(s)
	if err != nil {
		_ = app.Shutdown(context.WithoutCancel(ctx))
		return nil, nil, err
	}
	return app, users.NewService(app.DB, tokens, app.Logger, bcrypt.DefaultCost), nil
}

func runServe(ctx context.Context, s *config.Settings) error {
	app, svc, err := startApp(ctx, s)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: s.ServerAddr(),
		Handler: httpapi.NewRouter(httpapi.Deps{
			Settings: s,
			Logger:   app.Logger,
			DB:       app.DB,
			Users:    svc,
		}),
		ReadHeaderTimeout: s.Server.ReadHeader,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.InfoWith().Str("address", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if stderrs.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.WarnWith().Err(err).Msg("HTTP server shutdown incomplete")
	}
	return stderrs.Join(serveErr, app.Shutdown(shutdownCtx))
}
