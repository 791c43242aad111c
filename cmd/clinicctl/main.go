package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/clinicdesk/internal/adapters/cache"
	"github.com/zatekoja/clinicdesk/internal/api/middleware"
	"github.com/zatekoja/clinicdesk/internal/application/services"
	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/clients/clinicapi"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	"github.com/zatekoja/clinicdesk/pkg/config"
	"github.com/zatekoja/clinicdesk/pkg/retry"
)

// app is the wiring shared by every subcommand
type app struct {
	cfg        *config.Config
	location   *time.Location
	session    entities.Session
	auth       *middleware.Authenticator
	scheduling *services.SchedulingService
	board      *services.BoardService
	details    *services.DetailsService
	out        io.Writer
}

type sessionFlags struct {
	user   string
	role   string
	clinic string
	token  string
}

func newApp(cfg *config.Config, flags sessionFlags, out io.Writer) (*app, error) {
	role, ok := entities.ParseRole(flags.role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", flags.role)
	}

	location := cfg.ClinicAPI.Location()
	resolver := services.NewClinicContextResolver(cache.NewMemoryAdapter(), cfg.Scheduling.DefaultClinicID)

	readRetry := retry.DefaultConfig()
	if !cfg.ClinicAPI.RetryReads {
		readRetry = retry.NoRetry()
	}
	client := clinicapi.NewClient(
		cfg.ClinicAPI.BaseURL,
		clinicapi.WithTimeout(cfg.ClinicAPI.Timeout),
		clinicapi.WithServiceToken(cfg.ClinicAPI.ServiceToken),
		clinicapi.WithClinicResolver(resolver),
		clinicapi.WithReadRetry(readRetry),
		clinicapi.WithLocation(location),
	)

	policy, err := rules.NewSlotPolicy(
		cfg.Scheduling.BusinessHoursStart,
		cfg.Scheduling.BusinessHoursEnd,
		cfg.Scheduling.DefaultSlotDuration,
		location,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid business hours: %w", err)
	}

	scheduling := services.NewSchedulingService(client, resolver, policy)
	return &app{
		cfg:      cfg,
		location: location,
		session: entities.Session{
			UserID:         flags.user,
			Role:           role,
			ActiveClinicID: flags.clinic,
			Token:          flags.token,
		},
		auth:       middleware.NewAuthenticator(cfg.Auth),
		scheduling: scheduling,
		board:      services.NewBoardService(client, scheduling),
		details:    services.NewDetailsService(scheduling),
		out:        out,
	}, nil
}

// ctx carries the acting session the way the API middleware does
func (a *app) ctx(cmd *cobra.Command) context.Context {
	return entities.ContextWithSession(cmd.Context(), a.session)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(load func() (*config.Config, error), out io.Writer) *cobra.Command {
	var (
		flags sessionFlags
		cli   *app
	)

	rootCmd := &cobra.Command{
		Use:           "clinicctl",
		Short:         "Operate on clinic appointments from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			observability.InitLoggerTo(os.Stderr, "clinicctl", cfg.Environment)
			cli, err = newApp(cfg, flags, out)
			return err
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.user, "user", "clinicctl", "User id the commands act as")
	pf.StringVar(&flags.role, "role", string(entities.RoleAdmin), "Role the commands act as")
	pf.StringVar(&flags.clinic, "clinic", "", "Clinic id; defaults to the configured clinic")
	pf.StringVar(&flags.token, "token", "", "Bearer token forwarded to the clinic API")

	current := func() *app { return cli }
	rootCmd.AddCommand(appointmentsCmd(current))
	rootCmd.AddCommand(slotsCmd(current))
	rootCmd.AddCommand(statsCmd(current))
	rootCmd.AddCommand(tokenCmd(current))

	return rootCmd
}

func main() {
	load := func() (*config.Config, error) {
		if err := config.LoadDotEnv(); err != nil {
			return nil, err
		}
		return config.Load()
	}
	if err := newRootCmd(load, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
