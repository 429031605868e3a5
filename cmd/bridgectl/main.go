package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "bridgectl",
		Usage:     "Operate a bot-bridge relay",
		UsageText: "bridgectl command [command options]",
		Commands: []*cli.Command{
			messagesCommand(),
			hashKeyCommand(),
			tokenCommand(),
			sendCommand(),
		},
	}
}
