// Package cli implements the hypermem CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/config"
	"github.com/calder-labs/hypermem/internal/core"
	"github.com/calder-labs/hypermem/internal/model"
	"github.com/calder-labs/hypermem/internal/security"
	"github.com/calder-labs/hypermem/internal/storage"
)

var (
	cfgPath    string
	dbPath     string
	tokenFlag  string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "hypermem",
	Short: "Hyperbolic memory and identity engine",
	Long:  "Tiered agent memory addressed in hyperbolic space, with consolidation, compression and encrypted state snapshots.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ./hypermem.yaml or ~/.hypermem/hypermem.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "State database path (overrides config)")
	RootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Auth token (required when auth_token is configured)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity to stderr")
}

// session wires one core instance to its collaborators for the
// duration of a command.
type session struct {
	cfg   *config.Config
	core  *core.Core
	store storage.Storage
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}

	gate, err := security.NewAEADGate(cfg.Passphrase, cfg.AuthToken)
	if err != nil {
		return nil, err
	}
	if cfg.AuthToken != "" {
		if _, err := gate.Authenticate(security.Credentials{Token: tokenFlag}); err != nil {
			return nil, err
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	c := core.New(cfg, gate, store, logger)
	if err := c.RestoreState(ctx); err != nil && !errors.Is(err, model.ErrNotFound) {
		store.Close()
		return nil, err
	}
	return &session{cfg: cfg, core: c, store: store}, nil
}

func (s *session) save(ctx context.Context) error {
	return s.core.SaveState(ctx)
}

func (s *session) close() {
	s.store.Close()
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
