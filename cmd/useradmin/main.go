package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stylegen/internal/adapter/repo"
	"stylegen/internal/auth"
	"stylegen/internal/domain"
	"stylegen/internal/infra"
	"stylegen/internal/infra/credentials"
)

const version = "0.1.0"

// env is the database-backed state every subcommand works against.
type env struct {
	repos domain.Repositories
	auth  *auth.Service
	creds *credentials.Store
}

func main() {
	var (
		state   env
		closeDB func()
	)
	root := &cobra.Command{
		Use:   "useradmin",
		Short: "Manage stylegen accounts and provider keys",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			var err error
			state, closeDB, err = connect(cmd.Context())
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if closeDB != nil {
				closeDB()
			}
		},
		SilenceUsage: true,
	}
	root.AddCommand(
		newCreateUserCmd(&state),
		newListUsersCmd(&state),
		newSetRoleCmd(&state),
		newSetActiveCmd(&state),
		newSetOpenAIKeyCmd(&state),
		newOpenAIKeyStatusCmd(&state),
		newClearOpenAIKeyCmd(&state),
	)

	if err := fang.Execute(context.Background(), root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func connect(ctx context.Context) (env, func(), error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return env{}, nil, err
	}
	if cfg.StoreDriver != infra.StoreDriverPostgres {
		return env{}, nil, errors.New("useradmin requires STORE_DRIVER=postgres")
	}
	logger := infra.NewLogger(cfg).Level(zerolog.WarnLevel).With().Str("cmd", "useradmin").Logger()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return env{}, nil, err
	}
	sql := infra.NewSQLRunner(pool, logger)
	repos := repo.New(sql)
	authn, err := auth.NewService(repos.Users, auth.Options{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Logger: logger})
	if err != nil {
		pool.Close()
		return env{}, nil, err
	}
	return env{repos: repos, auth: authn, creds: credentials.NewStore(sql)}, pool.Close, nil
}

func newCreateUserCmd(state *env) *cobra.Command {
	var email, password, role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := domain.ParseRole(strings.ToLower(role))
			if !ok {
				return fmt.Errorf("unsupported role %q", role)
			}
			if password == "" {
				password = os.Getenv("USERADMIN_PASSWORD")
			}
			user, err := state.auth.CreateUserUnchecked(cmd.Context(), email, password, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s (%s) created with role %s\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (defaults to $USERADMIN_PASSWORD)")
	cmd.Flags().StringVar(&role, "role", string(domain.UserRoleUser), "role to assign (user, admin)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newListUsersCmd(state *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List every account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := state.repos.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tACTIVE\tLAST LOGIN")
			for _, u := range users {
				last := "-"
				if u.LastLogin != nil {
					last = u.LastLogin.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", u.ID, u.Email, u.Role, u.IsActive, last)
			}
			return tw.Flush()
		},
	}
}

func newSetRoleCmd(state *env) *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := domain.ParseRole(strings.ToLower(role))
			if !ok {
				return fmt.Errorf("unsupported role %q", role)
			}
			user, err := lookup(cmd.Context(), state, email)
			if err != nil {
				return err
			}
			updated, err := state.repos.Users.SetRole(cmd.Context(), user.ID, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s (%s) now has role %s\n", updated.ID, updated.Email, updated.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", "", "role to assign (user, admin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newSetActiveCmd(state *env) *cobra.Command {
	var (
		email  string
		active bool
	)
	cmd := &cobra.Command{
		Use:   "set-active",
		Short: "Enable or disable an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := lookup(cmd.Context(), state, email)
			if err != nil {
				return err
			}
			updated, err := state.repos.Users.SetActive(cmd.Context(), user.ID, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s (%s) active=%t\n", updated.ID, updated.Email, updated.IsActive)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&active, "active", true, "whether the account may sign in")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSetOpenAIKeyCmd(state *env) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "set-openai-key",
		Short: "Store the OpenAI API key used when OPENAI_API_KEY is unset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = os.Getenv("USERADMIN_OPENAI_KEY")
			}
			if err := state.creds.SetOpenAIAPIKey(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OpenAI API key stored; restart the api to pick it up")
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key (defaults to $USERADMIN_OPENAI_KEY)")
	return cmd
}

func newOpenAIKeyStatusCmd(state *env) *cobra.Command {
	return &cobra.Command{
		Use:   "openai-key-status",
		Short: "Show whether an OpenAI API key is stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := state.creds.Get(cmd.Context(), credentials.ProviderOpenAI)
			if err != nil {
				return err
			}
			if key.Token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No OpenAI API key stored")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OpenAI API key %s (updated %s)\n", key.Masked(), key.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newClearOpenAIKeyCmd(state *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-openai-key",
		Short: "Remove the stored OpenAI API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := state.creds.ClearOpenAIAPIKey(cmd.Context())
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintln(cmd.OutOrStdout(), "No OpenAI API key was stored")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OpenAI API key removed; the api falls back to placeholder providers after restart")
			return nil
		},
	}
}

func lookup(ctx context.Context, state *env, email string) (*domain.User, error) {
	user, err := state.repos.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("no account for %s", email)
	}
	return user, err
}
