package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/apiclient"
	"github.com/agencydesk/mdconsole/pkg/auth"
	"github.com/agencydesk/mdconsole/pkg/config"
	"github.com/agencydesk/mdconsole/pkg/console"
	"github.com/agencydesk/mdconsole/pkg/logging"
)

// app carries what every command needs. Config is loaded lazily so that help and
// completion work without a config file.
type app struct {
	loadConfig  func() (*config.Config, error)
	sessionPath string
	apiURL      string
	verbose     bool
}

func newApp() *app {
	return &app{loadConfig: config.Load}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mdctl",
		Short:        "Operate master-data hierarchies from the terminal",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&a.sessionPath, "session", "", "Session file (default auth.session_file)")
	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "Master-data API base URL (default api.base_url)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log upstream requests")

	cmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newDomainsCmd(a),
		newDepsCmd(a),
		newToggleCmd(a),
		newReorderCmd(a),
	)
	return cmd
}

func (a *app) config() (*config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.sessionPath != "" {
		cfg.Auth.SessionFile = a.sessionPath
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	return cfg, nil
}

func (a *app) session() (*auth.FileSession, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return auth.NewFileSession(cfg.Auth.SessionFile), nil
}

// workspace opens the caller's company workspace against the master-data API using the
// stored session token.
func (a *app) workspace(ctx context.Context) (*console.Workspace, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if a.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
		if logger, err = logging.New(cfg.Logging); err != nil {
			return nil, err
		}
	}

	session := auth.NewFileSession(cfg.Auth.SessionFile)
	claims, err := session.Claims(ctx)
	if err != nil {
		return nil, notLoggedIn(err)
	}

	client := apiclient.NewClient(cfg.API, session, logger)
	manager := console.NewManager(client, console.Options{
		ConfirmationTTL: cfg.Cascade.ConfirmationTTL,
		Logger:          logger,
	})
	return manager.Workspace(claims.CompID), nil
}

func notLoggedIn(err error) error {
	if errors.Is(err, apiclient.ErrNoSession) {
		return errors.New("not logged in, run mdctl login --token <token>")
	}
	return fmt.Errorf("stored session is unusable, run mdctl login again: %w", err)
}

// explain turns an expired or rejected session into a login hint.
func explain(err error) error {
	if apiclient.IsAuthentication(err) || errors.Is(err, apiclient.ErrNoSession) {
		return fmt.Errorf("session rejected and removed, run mdctl login again: %w", err)
	}
	return err
}

func parseIDArg(value, name string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return id, nil
}
