package main

import (
	"bot-bridge/auth"
	"bot-bridge/infrastructure/storage"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

func messagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "messages",
		Usage: "Dump the messages of a Badger store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "path to the Badger directory", Value: "./data/badger", Sources: cli.EnvVars("BADGER_FILEPATH")},
			&cli.IntFlag{Name: "limit", Usage: "newest messages to show, 0 for all", Value: 50},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			db, err := openReadOnly(c.String("db"))
			if err != nil {
				return fmt.Errorf("open badger: %w", err)
			}
			repository := storage.NewMessageRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
			defer repository.Close()

			messages, err := repository.LoadMessages()
			if err != nil {
				return err
			}
			if limit := int(c.Int("limit")); limit > 0 && len(messages) > limit {
				messages = messages[len(messages)-limit:]
			}

			out := c.Root().Writer
			header := fmt.Sprintf("%d message(s) in %s", len(messages), c.String("db"))
			_, _ = fmt.Fprintln(out, color.New(color.BgBlack, color.FgGreen).Render(header))

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Key", "Time", "From", "Text", "Reactions"})
			table.SetAutoWrapText(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetCenterSeparator("")
			table.SetColumnSeparator("")
			table.SetRowSeparator("")
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetTablePadding("\t")
			for _, m := range messages {
				var reactions []string
				for emoji, keys := range m.Reactions.Flatten() {
					reactions = append(reactions, fmt.Sprintf("%s:%d", emoji, len(keys)))
				}
				table.Append([]string{
					string(storage.MessageKey(m.ID)),
					m.CreatedAt.Format(time.DateTime),
					m.SenderKey,
					m.Text,
					strings.Join(reactions, " "),
				})
			}
			table.Render()
			return nil
		},
	}
}

func hashKeyCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-key",
		Usage:     "Print the argon2id encoding of an API key for API_KEY_HASH",
		ArgsUsage: "KEY",
		Action: func(_ context.Context, c *cli.Command) error {
			key := c.Args().First()
			if key == "" {
				return fmt.Errorf("missing KEY argument")
			}
			hash, err := auth.HashKey(key)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.Root().Writer, hash)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token allowing one sender to post",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", Usage: "JWT_SECRET of the relay", Required: true, Sources: cli.EnvVars("JWT_SECRET")},
			&cli.StringFlag{Name: "sender", Usage: "user key the token may post as", Required: true},
			&cli.StringFlag{Name: "role", Usage: "role claim", Value: "bot"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: 24 * time.Hour},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			token, err := auth.NewTokens(c.String("secret")).Generate(c.String("sender"), c.String("role"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.Root().Writer, token)
			return nil
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Post a message to a running relay",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "relay base URL", Value: "http://localhost:3000"},
			&cli.StringFlag{Name: "from", Usage: "sender user key", Required: true},
			&cli.StringFlag{Name: "text", Usage: "message text", Required: true},
			&cli.StringFlag{Name: "api-key", Usage: "API key of the relay", Sources: cli.EnvVars("BRIDGE_API_KEY")},
			&cli.StringFlag{Name: "token", Usage: "bearer token", Sources: cli.EnvVars("BRIDGE_TOKEN")},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			agent := fiber.Post(strings.TrimRight(c.String("url"), "/") + "/message").
				JSON(auth.MessageRequest{Sender: c.String("from"), Content: c.String("text")}).
				Timeout(10 * time.Second)
			if key := c.String("api-key"); key != "" {
				agent.Set("X-API-Key", key)
			}
			if token := c.String("token"); token != "" {
				agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
			}
			if err := agent.Parse(); err != nil {
				return fmt.Errorf("send: %w", err)
			}

			status, body, errs := agent.Bytes()
			if len(errs) > 0 {
				return fmt.Errorf("send: %w", errs[0])
			}
			if status != fiber.StatusCreated {
				var failure struct {
					Error string `json:"error"`
					Code  string `json:"code"`
				}
				_ = json.Unmarshal(body, &failure)
				return fmt.Errorf("relay answered %d: %s (%s)", status, failure.Error, failure.Code)
			}
			_, _ = fmt.Fprintln(c.Root().Writer, color.Green.Render("sent"), string(body))
			return nil
		},
	}
}

// openReadOnly lets the dump run next to a live relay holding the lock.
func openReadOnly(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
