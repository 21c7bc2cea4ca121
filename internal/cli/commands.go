package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"planboard-backend/internal/models"
	"planboard-backend/pkg/plannerclient"
)

// Login authenticates against the server and stores the session. Missing
// credentials are prompted for.
func Login(ctx context.Context, o Overrides, username, password string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	cfg = o.apply(cfg)

	if cfg.Endpoint == "" {
		if cfg.Endpoint, err = readline.Line("Endpoint: "); err != nil {
			return errors.Wrap(err, "could not read endpoint from stdin")
		}
	}
	client, err := plannerclient.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		return errors.Wrap(err, "could not reach given endpoint")
	}

	if username == "" {
		if username, err = readline.Line("Username: "); err != nil {
			return errors.Wrap(err, "could not read username from stdin")
		}
	}
	if password == "" {
		secret, err := readline.Password("Password: ")
		if err != nil {
			return errors.Wrap(err, "could not read password from stdin")
		}
		password = string(secret)
	}

	login, err := client.Login(ctx, username, password)
	if err != nil {
		return errors.Wrap(err, "could not login")
	}
	cfg.Username = login.User.Username
	cfg.BearerToken = login.Token

	return Save(cfg)
}

// Logout ends the server session and forgets the stored token.
func Logout(ctx context.Context, o Overrides) error {
	client, _, err := connect(o)
	if err != nil {
		return err
	}
	if err := client.Logout(ctx); err != nil {
		return errors.Wrap(err, "could not logout")
	}
	return Remove()
}

func List(ctx context.Context, w io.Writer, o Overrides, opts models.ListOptions) error {
	client, _, err := connect(o)
	if err != nil {
		return err
	}
	items, err := client.List(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "could not list contents")
	}
	return printItems(w, items)
}

func Board(ctx context.Context, w io.Writer, o Overrides, sortBy string) error {
	client, _, err := connect(o)
	if err != nil {
		return err
	}
	board, err := client.Board(ctx, sortBy)
	if err != nil {
		return errors.Wrap(err, "could not fetch board")
	}
	printBoard(w, board)
	return nil
}

func Create(ctx context.Context, w io.Writer, o Overrides, req models.CreateContentRequest) error {
	client, _, err := connect(o)
	if err != nil {
		return err
	}
	item, err := client.Create(ctx, req)
	if err != nil {
		return errors.Wrap(err, "could not create content")
	}
	fmt.Fprintf(w, "Created #%d %q in %s\n", item.ID, item.Title, item.Stage)
	return nil
}

// Move changes the stage of one item.
func Move(ctx context.Context, w io.Writer, o Overrides, id int64, stage string) error {
	client, _, err := connect(o)
	if err != nil {
		return err
	}
	item, err := client.UpdateStage(ctx, id, models.Stage(stage))
	if err != nil {
		return errors.Wrap(err, "could not move content")
	}
	fmt.Fprintf(w, "Moved #%d %q to %s\n", item.ID, item.Title, item.Stage)
	return nil
}

func Delete(ctx context.Context, w io.Writer, o Overrides, id int64) error {
	client, _, err := connect(o)
	if err != nil {
		return err
	}
	if err := client.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "could not delete content")
	}
	fmt.Fprintf(w, "Deleted #%d\n", id)
	return nil
}

// Watch prints the board every time the server reports a change, until ctx
// is cancelled.
func Watch(ctx context.Context, w io.Writer, o Overrides) error {
	client, _, err := connect(o)
	if err != nil {
		return err
	}

	cache := plannerclient.NewCache(client)
	cache.OnChange(func(items []*models.ContentItem) {
		fmt.Fprintln(w, strings.Repeat("─", 40))
		printBoard(w, groupByStage(items))
	})

	sub := plannerclient.NewSubscriber(cache)
	sub.OnConnect = func() {
		fmt.Fprintf(w, "Connected to %s\n", client.WebSocketURL())
	}

	err = sub.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func groupByStage(items []*models.ContentItem) models.Board {
	board := make(models.Board, len(models.Stages))
	for _, stage := range models.Stages {
		board[stage] = []*models.ContentItem{}
	}
	for _, item := range items {
		board[item.Stage] = append(board[item.Stage], item)
	}
	return board
}

func printItems(w io.Writer, items []*models.ContentItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAGE\tTYPE\tPLANNED\tTITLE")
	for _, item := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", item.ID, item.Stage, item.ContentType, plannedDate(item), item.Title)
	}
	return tw.Flush()
}

func printBoard(w io.Writer, board models.Board) {
	for _, stage := range models.Stages {
		items := board[stage]
		fmt.Fprintf(w, "%s (%d)\n", stage, len(items))
		for _, item := range items {
			fmt.Fprintf(w, "  #%-4d %-5s %s\n", item.ID, item.ContentType, item.Title)
		}
	}
}

func plannedDate(item *models.ContentItem) string {
	if item.PlannedDate == nil {
		return "-"
	}
	return item.PlannedDate.Format("2006-01-02")
}
