package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/serene-care/backend/internal/client"
	"github.com/zhouzirui/serene-care/backend/internal/service/chat"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		server       string
		timeout      time.Duration
		replyTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Chat with the Serene Care assistant from a terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			proxy := client.NewProxy(server, timeout)
			p, err := proxy.Persona(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch assistant persona: %w", err)
			}

			store := chat.NewStore(p.Greeting, proxy,
				chat.WithReplyTimeout(replyTimeout),
				chat.WithNotifier(chat.NotifierFunc(func(title, description string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "! %s: %s\n", title, description)
				})),
			)

			repl := newREPL(store, p, cmd.OutOrStdout())
			return repl.Run(ctx, cmd.InOrStdin())
		},
	}

	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}
	defaultServer := os.Getenv("HEALTHCHAT_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	cmd.Flags().StringVar(&server, "server", defaultServer, "base URL of the healthchat backend")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "HTTP timeout for proxy requests")
	cmd.Flags().DurationVar(&replyTimeout, "reply-timeout", chat.DefaultReplyTimeout, "how long a turn may wait for a reply")
	return cmd
}
