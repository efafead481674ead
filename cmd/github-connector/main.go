/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/mikelane/github-connector/internal/config"
	"github.com/mikelane/github-connector/internal/connector"
	"github.com/mikelane/github-connector/internal/github"
	"github.com/mikelane/github-connector/internal/subscription"
	"github.com/mikelane/github-connector/internal/webhook"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		zapOpts    = zap.Options{Development: true}
	)

	rootCmd := &cobra.Command{
		Use:          "github-connector",
		Short:        "Keep GitHub webhooks in place and route their deliveries to subscribers",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
		},
	}

	goFlags := flag.NewFlagSet("zap", flag.ExitOnError)
	zapOpts.BindFlags(goFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(goFlags)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to the configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Reconcile webhooks, then serve deliveries until interrupted",
		RunE: func(*cobra.Command, []string) error {
			return serve(signals.SetupSignalHandler(), configPath)
		},
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile webhooks for the configured subscriptions and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := signals.SetupSignalHandler()
			_, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			if err := reconcileOnce(ctx, cmd.OutOrStdout(), conn); err != nil {
				return err
			}
			return conn.Stop(ctx)
		},
	}

	rootCmd.AddCommand(serveCmd, reconcileCmd)
	return rootCmd
}

// setup loads configuration and builds a connector with every configured
// subscription registered.
func setup(configPath string) (*config.Config, *connector.Connector, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	var clientOpts []github.Option
	if cfg.APIBaseURL != "" {
		clientOpts = append(clientOpts, github.WithBaseURL(cfg.APIBaseURL))
	}
	client, err := github.NewClient(cfg.Token, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	conn := connector.New(client, connector.Options{
		Secret:         cfg.Secret,
		WebhookPath:    cfg.WebhookPath,
		RuntimeBaseURL: cfg.RuntimeBaseURL,
		Concurrency:    cfg.Concurrency,
	})
	for _, s := range cfg.Subscriptions {
		if _, err := conn.On(s.EventOptions(), logEvent, s.ID); err != nil {
			return nil, nil, fmt.Errorf("failed to register subscription for %s/%s: %w", s.Owner, s.Repo, err)
		}
	}
	return cfg, conn, nil
}

// reconcileOnce starts conn and prints one line per reconciled repository,
// including the ones that succeeded when others failed.
func reconcileOnce(ctx context.Context, out io.Writer, conn *connector.Connector) error {
	err := conn.Start(ctx)
	for _, w := range conn.Webhooks() {
		fmt.Fprintf(out, "%s/%s: webhook %d %s\n", w.Owner, w.Repo, w.Hook.ID, w.Action)
	}
	return err
}

func serve(ctx context.Context, configPath string) error {
	logger := log.Log.WithName("github-connector")

	cfg, conn, err := setup(configPath)
	if err != nil {
		return err
	}
	if err := conn.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := conn.Stop(context.Background()); err != nil {
			logger.Error(err, "Failed to stop connector")
		}
	}()

	server := webhook.NewServer(cfg.Listen.Address, cfg.Listen.Port, conn.Path(), conn)
	logger.Info("Connector started", "id", conn.ID(), "subscriptions", len(conn.Subscriptions()))
	return server.Start(ctx)
}

// logEvent is the handler attached to subscriptions declared in the
// configuration file.
func logEvent(ctx context.Context, event *subscription.Event) error {
	log.FromContext(ctx).Info("Received event",
		"subscription", event.Subscription.ID(),
		"event", event.Name,
		"action", event.Action,
		"delivery", event.DeliveryID,
	)
	return nil
}
