package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"planboard-backend/internal/cli"
	"planboard-backend/internal/models"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"
)

var overrides cli.Overrides

func main() {
	c := &cobra.Command{
		Use:     "planctl",
		Short:   "Planboard command line client",
		Version: fmt.Sprintf("%s - build %.7s @ %s", version, revision, date),
		Args:    cobra.NoArgs,
	}
	c.PersistentFlags().StringVar(&overrides.Endpoint, "endpoint", os.Getenv("PLANBOARD_ENDPOINT"), "server URL")
	c.PersistentFlags().StringVar(&overrides.Token, "token", os.Getenv("PLANBOARD_TOKEN"), "bearer token")

	c.AddCommand(loginCmd())
	c.AddCommand(logoutCmd)
	c.AddCommand(listCmd())
	c.AddCommand(boardCmd())
	c.AddCommand(createCmd())
	c.AddCommand(moveCmd)
	c.AddCommand(deleteCmd)
	c.AddCommand(watchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}

func loginCmd() *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "login",
		Short: "Login to a Planboard server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Login(cmd.Context(), overrides, username, password)
		},
	}
	c.Flags().StringVarP(&username, "username", "u", "", "account name")
	c.Flags().StringVarP(&password, "password", "p", os.Getenv("PLANBOARD_PASSWORD"), "account password")
	return c
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Logout from the Planboard server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Logout(cmd.Context(), overrides)
	},
}

func listCmd() *cobra.Command {
	var stage, contentType, sortBy string

	c := &cobra.Command{
		Use:   "list",
		Short: "List content items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.List(cmd.Context(), cmd.OutOrStdout(), overrides, models.ListOptions{
				Stage:       models.Stage(stage),
				ContentType: models.ContentType(contentType),
				Sort:        sortBy,
			})
		},
	}
	c.Flags().StringVar(&stage, "stage", "", "only items in this stage")
	c.Flags().StringVar(&contentType, "type", "", "only Short or Long items")
	c.Flags().StringVar(&sortBy, "sort", "", "newest, oldest, plannedDate, titleAZ or lastModified")
	return c
}

func boardCmd() *cobra.Command {
	var sortBy string

	c := &cobra.Command{
		Use:   "board",
		Short: "Show items grouped by stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Board(cmd.Context(), cmd.OutOrStdout(), overrides, sortBy)
		},
	}
	c.Flags().StringVar(&sortBy, "sort", "", "newest, oldest, plannedDate, titleAZ or lastModified")
	return c
}

func createCmd() *cobra.Command {
	var contentType, stage, planned, description string

	c := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.CreateContentRequest{
				Title:       args[0],
				ContentType: contentType,
			}
			if stage != "" {
				req.Stage = &stage
			}
			if planned != "" {
				req.PlannedDate = &planned
			}
			if description != "" {
				req.Description = &description
			}
			return cli.Create(cmd.Context(), cmd.OutOrStdout(), overrides, req)
		},
	}
	c.Flags().StringVarP(&contentType, "type", "t", "Short", "Short or Long")
	c.Flags().StringVarP(&stage, "stage", "s", "", "initial stage (default Idea)")
	c.Flags().StringVar(&planned, "date", "", "planned date, e.g. 2025-03-01")
	c.Flags().StringVarP(&description, "description", "d", "", "description")
	return c
}

var moveCmd = &cobra.Command{
	Use:   "move ID STAGE",
	Short: "Move a content item to another stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return cli.Move(cmd.Context(), cmd.OutOrStdout(), overrides, id, args[1])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a content item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return cli.Delete(cmd.Context(), cmd.OutOrStdout(), overrides, id)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the board on every change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Watch(cmd.Context(), cmd.OutOrStdout(), overrides)
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid id %q", s)
	}
	return id, nil
}
