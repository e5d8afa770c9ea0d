package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"llm_router/internal/models"
	"llm_router/internal/storage"
	"llm_router/internal/utils"
)

// credentialStore is the part of the credential repository keyctl drives.
type credentialStore interface {
	Create(ctx context.Context, provider models.ProviderKind, secret string) (*models.Credential, error)
	List(ctx context.Context, provider models.ProviderKind) ([]*models.Credential, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	DailyUsage(ctx context.Context, id uuid.UUID, from, to time.Time) ([]*models.DailyUsageRecord, error)
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// runtime carries the connection flags and the lazily opened store shared by
// all subcommands.
type runtime struct {
	dsn           string
	encryptionKey string
	timeout       time.Duration
	now           func() time.Time

	store    credentialStore
	migrator migrator
	db       *storage.DB
}

func (rt *runtime) connect() error {
	if rt.store != nil {
		return nil
	}
	if rt.dsn == "" {
		return fmt.Errorf("database DSN is required (--dsn or DATABASE_URL)")
	}

	db, err := storage.NewDB(storage.DBConfig{DSN: rt.dsn, MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	var enc *storage.Encryption
	if rt.encryptionKey != "" {
		if enc, err = storage.NewEncryptionFromBase64(rt.encryptionKey); err != nil {
			db.Close()
			return fmt.Errorf("failed to initialize encryption: %w", err)
		}
	}

	rt.db = db
	rt.migrator = db
	rt.store = storage.NewCredentialRepository(db, enc)
	return nil
}

func (rt *runtime) close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

func (rt *runtime) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := rt.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

func newRootCmd(rt *runtime) *cobra.Command {
	if rt.now == nil {
		rt.now = time.Now
	}

	root := &cobra.Command{
		Use:          "keyctl",
		Short:        "Manage pooled LLM provider credentials",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return rt.connect()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flags.StringVar(&rt.encryptionKey, "encryption-key", os.Getenv("ENCRYPTION_KEY"), "base64 key sealing stored secrets")
	flags.DurationVar(&rt.timeout, "timeout", 30*time.Second, "timeout for each database operation")

	root.AddCommand(newMigrateCmd(rt))
	root.AddCommand(newAddCmd(rt))
	root.AddCommand(newListCmd(rt))
	root.AddCommand(newSetActiveCmd(rt, "activate", true))
	root.AddCommand(newSetActiveCmd(rt, "deactivate", false))
	root.AddCommand(newDeleteCmd(rt))
	root.AddCommand(newUsageCmd(rt))

	return root
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := rt.context(cmd)
			defer cancel()

			if err := rt.migrator.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newAddCmd(rt *runtime) *cobra.Command {
	var provider, key string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an active credential to the pool",
		Long:  "Add an active credential to the pool. Pass --key - to read the secret from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := models.ParseProviderKind(provider)
			if err != nil {
				return err
			}
			if key == "-" {
				if key, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if key == "" {
				return fmt.Errorf("--key is required")
			}

			ctx, cancel := rt.context(cmd)
			defer cancel()

			cred, err := rt.store.Create(ctx, kind, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s credential %s (fingerprint %s)\n",
				cred.Provider, cred.ID, utils.Fingerprint(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider kind (anthropic, openai, google, bedrock)")
	cmd.Flags().StringVar(&key, "key", "", "secret to store, or - to read it from stdin")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newListCmd(rt *runtime) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pooled credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var kind models.ProviderKind
			if provider != "" {
				var err error
				if kind, err = models.ParseProviderKind(provider); err != nil {
					return err
				}
			}

			ctx, cancel := rt.context(cmd)
			defer cancel()

			creds, err := rt.store.List(ctx, kind)
			if err != nil {
				return err
			}
			return printCredentials(cmd.OutOrStdout(), creds)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "only list credentials of this provider")
	return cmd
}

func printCredentials(out io.Writer, creds []*models.Credential) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROVIDER\tFINGERPRINT\tACTIVE\tUSES\tLAST USED")
	for _, c := range creds {
		lastUsed := "never"
		if c.LastUsedAt != nil {
			lastUsed = c.LastUsedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\n",
			c.ID, c.Provider, utils.Fingerprint(c.Secret), c.Active, c.UsageCount, lastUsed)
	}
	return tw.Flush()
}

func newSetActiveCmd(rt *runtime, name string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " ID",
		Short: strings.ToUpper(name[:1]) + name[1:] + " a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid credential id %q: %w", args[0], err)
			}

			ctx, cancel := rt.context(cmd)
			defer cancel()

			if err := rt.store.SetActive(ctx, id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd credential %s\n", name, id)
			return nil
		},
	}
}

func newDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a credential and its usage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid credential id %q: %w", args[0], err)
			}

			ctx, cancel := rt.context(cmd)
			defer cancel()

			if err := rt.store.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted credential %s\n", id)
			return nil
		},
	}
}

func newUsageCmd(rt *runtime) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "usage ID",
		Short: "Show daily request counts of a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid credential id %q: %w", args[0], err)
			}
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}

			to := models.UsageDay(rt.now(), time.UTC)
			from := to.AddDate(0, 0, -(days - 1))

			ctx, cancel := rt.context(cmd)
			defer cancel()

			records, err := rt.store.DailyUsage(ctx, id, from, to)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tREQUESTS")
			total := 0
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%d\n", r.UsageDate.Format(time.DateOnly), r.RequestCount)
				total += r.RequestCount
			}
			fmt.Fprintf(tw, "total\t%d\n", total)
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to show, ending today (UTC)")
	return cmd
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
