package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/glimte/rabbitkit"
	"github.com/glimte/rabbitkit/config"
	"github.com/glimte/rabbitkit/health"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	strict     bool
	envFiles   []string
	configFile string
	verbose    bool
	heartbeat  time.Duration
	autoAck    bool
	prefetch   int
	exclusive  bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "rabbitctl",
		Short: "Declare, publish to and consume from RabbitMQ",
		Long: `rabbitctl talks to a RabbitMQ broker using settings from the environment
(RABBITMQ_HOST, RABBITMQ_PORT, RABBITMQ_USERNAME, RABBITMQ_PASSWORD, RABBITMQ_QUEUE),
command-line flags, or a config file, in that order of precedence.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			return config.LoadDotEnv(opts.envFiles...)
		},
	}

	flags := rootCmd.PersistentFlags()
	config.RegisterFlags(flags)
	flags.BoolVar(&opts.strict, "strict", false, "fail on missing settings instead of using local broker defaults")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "load environment variables from these files")
	flags.StringVar(&opts.configFile, "config", "", "read settings from a YAML, JSON or TOML file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.DurationVar(&opts.heartbeat, "heartbeat", 0, "heartbeat interval to negotiate with the broker (0 = library default)")

	rootCmd.AddCommand(
		newDeclareCmd(opts),
		newBindCmd(opts),
		newPublishCmd(opts),
		newConsumeCmd(opts),
		newHealthCmd(opts),
	)

	return rootCmd
}

// connect builds a client from the command's flags and opens a channel
func connect(cmd *cobra.Command, opts *globalOptions) (*rabbitkit.Client, error) {
	logger := slog.Default()

	mode := config.Lenient
	if opts.strict {
		mode = config.Strict
	}
	resolverOpts := []config.Option{
		config.WithMode(mode),
		config.WithFlagSet(cmd.Flags()),
		config.WithLogger(logger),
	}
	if opts.configFile != "" {
		src, err := config.NewFileSource(opts.configFile)
		if err != nil {
			return nil, err
		}
		resolverOpts = append(resolverOpts, config.WithSource(src))
	}

	client := rabbitkit.New(
		rabbitkit.WithLogger(logger),
		rabbitkit.WithResolver(config.NewResolver(resolverOpts...)),
		rabbitkit.WithDialer(rabbitkit.NewDialer("rabbitctl", opts.heartbeat)),
		rabbitkit.WithAutoAck(opts.autoAck),
		rabbitkit.WithPrefetchCount(opts.prefetch),
		rabbitkit.WithExclusive(opts.exclusive),
	)
	if err := client.Connect(cmd.Context()); err != nil {
		return nil, err
	}
	return client, nil
}

func newDeclareCmd(opts *globalOptions) *cobra.Command {
	declareCmd := &cobra.Command{
		Use:   "declare",
		Short: "Declare exchanges and queues",
	}

	var kind string
	exchangeCmd := &cobra.Command{
		Use:   "exchange NAME",
		Short: "Declare an exchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.DeclareExchange(cmd.Context(), args[0], kind); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exchange %s declared\n", args[0])
			return nil
		},
	}
	exchangeCmd.Flags().StringVarP(&kind, "type", "t", amqp.ExchangeDirect, "exchange type (direct, fanout, topic, headers)")

	var (
		exchange   string
		routingKey string
		durable    bool
		lazy       bool
	)
	queueCmd := &cobra.Command{
		Use:   "queue NAME",
		Short: "Declare a queue, optionally binding it to an exchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			q, err := client.DeclareQueue(cmd.Context(), args[0], rabbitkit.QueueOptions{Durable: durable, Lazy: lazy})
			if err != nil {
				return err
			}
			if exchange != "" {
				if err := client.BindQueue(cmd.Context(), exchange, q.Name, routingKey); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue %s declared (%d messages, %d consumers)\n", q.Name, q.Messages, q.Consumers)
			return nil
		},
	}
	queueCmd.Flags().StringVarP(&exchange, "exchange", "e", "", "bind the queue to this exchange")
	queueCmd.Flags().StringVarP(&routingKey, "routing-key", "k", "", "routing key for the binding")
	queueCmd.Flags().BoolVar(&durable, "durable", true, "survive broker restarts")
	queueCmd.Flags().BoolVar(&lazy, "lazy", false, "keep messages on disk (x-queue-mode=lazy)")

	declareCmd.AddCommand(exchangeCmd, queueCmd)
	return declareCmd
}

func newBindCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bind EXCHANGE QUEUE [ROUTING_KEY]",
		Short: "Bind a queue to an exchange",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			var key string
			if len(args) == 3 {
				key = args[2]
			}
			if err := client.BindQueue(cmd.Context(), args[0], args[1], key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue %s bound to %s\n", args[1], args[0])
			return nil
		},
	}
}

// messagePayload publishes valid JSON as-is and anything else as a JSON string
func messagePayload(raw string) any {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	return raw
}

func newPublishCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish EXCHANGE ROUTING_KEY MESSAGE",
		Short: "Publish a JSON message",
		Long:  "Publish MESSAGE to EXCHANGE. MESSAGE is sent as-is when it is valid JSON and as a JSON string otherwise. Use \"\" for the default exchange.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			return client.Publish(cmd.Context(), args[0], args[1], messagePayload(args[2]))
		},
	}
}

func newConsumeCmd(opts *globalOptions) *cobra.Command {
	consumeCmd := &cobra.Command{
		Use:   "consume",
		Short: "Print messages from the configured queue until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(cmd.ErrOrStderr(), "Consuming from %s... Press Ctrl+C to stop\n", client.Config().QueueName)

			return client.Consume(ctx, func(ctx context.Context, d amqp.Delivery) error {
				_, err := fmt.Fprintf(out, "[%s %s] %s\n", d.Exchange, d.RoutingKey, d.Body)
				return err
			})
		},
	}
	consumeCmd.Flags().BoolVar(&opts.autoAck, "auto-ack", false, "let the broker settle deliveries on send")
	consumeCmd.Flags().IntVar(&opts.prefetch, "prefetch", 0, "maximum unacknowledged deliveries (0 = broker default)")
	consumeCmd.Flags().BoolVar(&opts.exclusive, "exclusive", false, "request exclusive access to the queue")
	return consumeCmd
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	var threshold int
	healthCmd := &cobra.Command{
		Use:   "health [QUEUE...]",
		Short: "Check the broker connection and queues",
		Long:  "Check the broker connection and each QUEUE (the configured queue when none are given). Exits non-zero when unhealthy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			logger := slog.Default()
			checkers := []health.Checker{health.NewConnectionChecker(client, logger)}
			if len(args) == 0 {
				args = []string{""}
			}
			for _, queue := range args {
				checkers = append(checkers, health.NewQueueChecker(queue, client, logger).WithThreshold(threshold))
			}

			report := health.Run(cmd.Context(), checkers...)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("broker is %s", report.Status)
			}
			return nil
		},
	}
	healthCmd.Flags().IntVar(&threshold, "threshold", health.DefaultMessageThreshold, "message count above which a queue is degraded")
	return healthCmd
}
