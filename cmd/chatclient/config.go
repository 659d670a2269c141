package main

import (
	"github.com/Netflix/go-env"
	"github.com/spf13/cobra"
)

// Config is read from the environment; flags override it.
type Config struct {
	ServerURL   string `env:"CHAT_SERVER_URL,default=http://localhost:8080"`
	Origin      string `env:"CHAT_ORIGIN,default=http://localhost:8080"`
	Token       string `env:"CHAT_TOKEN"`
	ClientClass string `env:"CHAT_CLIENT_CLASS,default=mobile"`
	PeerID      string `env:"CHAT_PEER_ID"`
	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	LogLevel    string `env:"LOG_LEVEL,default=WARN"`
}

func loadConfig() (Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	return cfg, err
}

func newRootCmd() *cobra.Command {
	cfg := &Config{}
	root := &cobra.Command{
		Use:           "chatclient",
		Short:         "Command line client for the roomchat gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	loaded, err := loadConfig()
	if err == nil {
		*cfg = loaded
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "base URL of the chat server")
	flags.StringVar(&cfg.Origin, "origin", cfg.Origin, "Origin header sent on the upgrade")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "bearer token")
	flags.StringVar(&cfg.ClientClass, "class", cfg.ClientClass, "client class: web or mobile")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	root.PersistentPreRunE = func(*cobra.Command, []string) error {
		return err
	}

	root.AddCommand(
		newListenCmd(cfg),
		newTokenCmd(cfg),
		newCandidatesCmd(cfg),
	)
	return root
}
