package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"strings"

	"evento/internal/app"
	"evento/internal/config"
	"evento/internal/database"
	"evento/internal/logger"
	"evento/internal/service"

	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "evento-cli",
		Usage: "operations tooling for the evento backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "migrations",
				Value: "./migrations",
				Usage: "directory holding the *.up.sql / *.down.sql files",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			distributeCommand(),
			certificateCommand(),
			quotaCommand(),
			keysCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withApp loads configuration, opens the database and hands an assembled
// App to fn. Optional collaborators (Vault, Redis) are not needed here.
func withApp(c *cli.Context, fn func(ctx context.Context, db *database.Database, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})

	db, err := database.New(c.Context, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(c.Context, db, app.New(db.DB, cfg, app.Options{}))
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, db *database.Database, _ *app.App) error {
						n, err := database.NewMigrationExecutor(db.DB).Up(ctx, c.String("migrations"))
						if err != nil {
							return err
						}
						if n == 0 {
							fmt.Println("No new migrations to run")
						} else {
							fmt.Printf("Applied %d migration(s)\n", n)
						}
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back the most recent migration",
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, db *database.Database, _ *app.App) error {
						version, err := database.NewMigrationExecutor(db.DB).Down(ctx, c.String("migrations"))
						if err != nil {
							return err
						}
						if version == "" {
							fmt.Println("Nothing to roll back")
						} else {
							fmt.Printf("Rolled back %s\n", version)
						}
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "list migrations and whether they are applied",
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, db *database.Database, _ *app.App) error {
						statuses, err := database.NewMigrationExecutor(db.DB).Status(ctx, c.String("migrations"))
						if err != nil {
							return err
						}
						for _, s := range statuses {
							state := "pending"
							if s.Applied && s.AppliedAt != nil {
								state = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
							} else if s.Applied {
								state = "applied"
							}
							fmt.Printf("%s  %-40s %s\n", s.Version, s.Title, state)
						}
						return nil
					})
				},
			},
		},
	}
}

func distributeCommand() *cli.Command {
	return &cli.Command{
		Name:  "distribute",
		Usage: "assign reviewers to the pending submissions of an event",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "event", Required: true},
			&cli.StringFlag{Name: "export", Usage: "also write the xlsx report into this directory"},
		},
		Action: func(c *cli.Context) error {
			return withApp(c, func(ctx context.Context, _ *database.Database, a *app.App) error {
				eventID := c.Int64("event")
				run, err := a.Distribution.Distribute(ctx, eventID, nil)
				if err != nil {
					return err
				}
				fmt.Printf("Run %s: %d submission(s), %d assignment(s), %d conflict(s), %d fallback, %d failed\n",
					run.RunID, run.TotalSubmissions, run.TotalAssignments, run.ConflictsDetected,
					run.FallbackAssignments, run.FailedAssignments)

				if dir := c.String("export"); dir != "" {
					path, err := a.Distribution.ExportReport(ctx, eventID, dir)
					if err != nil {
						return err
					}
					fmt.Printf("Report written to %s\n", path)
				}
				return nil
			})
		},
	}
}

func certificateCommand() *cli.Command {
	return &cli.Command{
		Name:  "certificate",
		Usage: "certificate eligibility",
		Subcommands: []*cli.Command{
			{
				Name:  "verify",
				Usage: "check whether a participant may receive a certificate",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Required: true},
					&cli.Int64Flag{Name: "event", Required: true},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, _ *database.Database, a *app.App) error {
						ok, pending, err := a.Certificates.Verify(ctx, c.Int64("user"), c.Int64("event"))
						if err != nil {
							return err
						}
						if ok {
							fmt.Println("Eligible")
							return nil
						}
						fmt.Printf("Not eligible:\n  - %s\n", strings.Join(pending, "\n  - "))
						return nil
					})
				},
			},
		},
	}
}

func quotaCommand() *cli.Command {
	return &cli.Command{
		Name:  "quota",
		Usage: "tenant limits",
		Subcommands: []*cli.Command{
			{
				Name:  "usage",
				Usage: "show used and allowed counts for a tenant",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "tenant", Required: true},
				},
				Action: func(c *cli.Context) error {
					return withApp(c, func(ctx context.Context, _ *database.Database, a *app.App) error {
						usage, err := a.Quotas.Usage(ctx, c.Int64("tenant"))
						if err != nil {
							return err
						}
						for _, kind := range service.QuotaKinds {
							u := usage[kind]
							fmt.Printf("%-12s %d / %d\n", kind, u.Used, u.Limit)
						}
						return nil
					})
				},
			},
		},
	}
}

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "JWT signing keys",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "generate an ECDSA P-256 key for JWT_SECRET",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "jwt-private-key.pem"},
				},
				Action: func(c *cli.Context) error {
					privateKeyPEM, err := generateKey()
					if err != nil {
						return err
					}
					if err := os.WriteFile(c.String("out"), privateKeyPEM, 0o600); err != nil {
						return fmt.Errorf("write private key: %w", err)
					}

					fmt.Println("Add this to your .env file:")
					fmt.Printf("JWT_SECRET=%s\n", strings.ReplaceAll(string(privateKeyPEM), "\n", `\n`))
					fmt.Printf("Private key saved to: %s\n", c.String("out"))
					return nil
				},
			},
		},
	}
}

func generateKey() ([]byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	der, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}
