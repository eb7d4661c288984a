package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gss-go/internal/app"
	"gss-go/internal/config"
	"gss-go/internal/database"
	"gss-go/internal/encryption"
	"gss-go/internal/gss"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig resolves the config path from the defaults and reads it.
func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a GSSApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "run", "upload").
func newApp(ctx context.Context, command string) (*app.GSSApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewGSSApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "gss",
	Short:        "Game session screenshot sync",
	SilenceUsage: true,
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch for game sessions, capture and upload screenshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "run")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Run(ctx); err != nil {
			return fmt.Errorf("session watcher failed: %w", err)
		}
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload staged screenshots now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "upload")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Upload(ctx)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		state := "complete"
		if !res.Completed {
			state = "interrupted"
		}
		fmt.Printf("Upload %s: %d session(s), %d uploaded, %d unchanged, %d created, %d extended\n",
			state, res.Clusters, res.FilesUploaded, res.FilesSkipped, res.RecordsCreated, res.RecordsExtended)
		if res.Unparsed > 0 {
			fmt.Printf("%d file(s) with unrecognized names left in staging\n", res.Unparsed)
		}
		return nil
	},
}

// sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list [TITLE]",
	Short: "List recorded sessions, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "sessions")
		if err != nil {
			return err
		}
		defer a.Close()

		title := ""
		if len(args) > 0 {
			title = args[0]
		}
		recs, err := a.Sessions(cmd.Context(), title, limit)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		loc := a.Location()
		for _, r := range recs {
			name := r.Name
			if t, start, ok := gss.ParseSessionName(r.Name, loc); ok {
				name = t + "  " + start.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-40s  %8s  %s\n",
				name,
				r.End.Sub(r.Start).Truncate(time.Minute).String(),
				r.Link,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View upload operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No upload operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-6s  %s  %-11s  %4d files  %2d new  %2d extended  %s\n",
				op.ID,
				op.Source,
				op.StartedAt.In(a.Location()).Format("2006-01-02 15:04:05"),
				op.Status,
				op.FilesUploaded,
				op.RecordsCreated,
				op.RecordsExtended,
				duration,
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		m := &config.Manager{Format: config.FormatForPath(path)}
		if err := m.Write(os.Stdout, cfg); err != nil {
			return fmt.Errorf("printing config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nProblems:\n%v\n", err)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage upload encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair for encrypted uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		pub, err := enc.PublicKey()
		if err != nil {
			return err
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		fmt.Printf("Recipient:   %s\n", pub)
		if !cfg.Folders.Encrypt {
			fmt.Println("Set folders.encrypt = true to encrypt new uploads.")
		}
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE...",
	Short: "Decrypt downloaded .age screenshots",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output != "" && len(args) > 1 {
			return errors.New("--output can only be used with a single file")
		}

		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		dc, err := enc.Unlock(pass)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}

		for _, src := range args {
			dst, err := encryption.DecryptFile(dc, src, output)
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", src, dst)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the record database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// sessions subcommands
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsListCmd.Flags().IntP("limit", "n", 20, "Maximum number of sessions to show")

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)

	// root commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().StringP("output", "o", "", "Output path (single file only)")
	rootCmd.AddCommand(dbCmd)
}
