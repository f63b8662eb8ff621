// Package main содержит консольную утилиту администрирования сервиса aquabill.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/model"
	"github.com/mmeshcher/aquabill/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		logger.Sugar().Fatalw("command failed", "error", err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "aquabill-admin",
		Usage: "operator tasks for the aquabill database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-uri",
				Aliases:  []string{"d"},
				Usage:    "PostgreSQL connection string",
				EnvVars:  []string{"DATABASE_URI"},
				Required: true,
			},
		},
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Action: func(c *cli.Context) error {
					repo, err := open(c)
					if err != nil {
						return err
					}
					defer repo.Close()

					fmt.Fprintln(c.App.Writer, "migrations applied")
					return nil
				},
			},
			{
				Name:  "users",
				Usage: "list registered users",
				Action: func(c *cli.Context) error {
					repo, err := open(c)
					if err != nil {
						return err
					}
					defer repo.Close()

					users, err := repo.ListUsers(c.Context)
					if err != nil {
						return err
					}
					return printUsers(c.App.Writer, users)
				},
			},
			{
				Name:  "promote",
				Usage: "assign a role to a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "user email", Required: true},
					&cli.StringFlag{Name: "role", Usage: "customer or accountant", Value: string(model.RoleAccountant)},
				},
				Action: func(c *cli.Context) error {
					role := model.Role(strings.ToLower(c.String("role")))
					if !role.Valid() {
						return fmt.Errorf("unknown role %q", c.String("role"))
					}

					repo, err := open(c)
					if err != nil {
						return err
					}
					defer repo.Close()

					email := strings.ToLower(strings.TrimSpace(c.String("email")))
					if err := repo.SetUserRole(c.Context, email, role); err != nil {
						return fmt.Errorf("promote %s: %w", email, err)
					}

					fmt.Fprintf(c.App.Writer, "%s is now %s\n", email, role)
					return nil
				},
			},
		},
	}
}

// open подключается к БД; миграции применяются при подключении.
func open(c *cli.Context) (*repository.PostgresRepository, error) {
	return repository.NewPostgresRepository(c.String("database-uri"))
}

func printUsers(out io.Writer, users []model.User) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role, u.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}
