// Package cli provides the pixlfs command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/pixlfs"
	"github.com/opd-ai/pixlfs/config"
	"github.com/opd-ai/pixlfs/emulator"
	"github.com/opd-ai/pixlfs/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set by the main package at startup.
var Version = "v0.1.0-dev"

// globals holds the persistent flags and the configuration they resolve to.
type globals struct {
	cfgFile  string
	address  string
	simulate bool
	verbose  bool

	cfg config.Config
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "pixlfs",
		Short: "Browse and transfer files on a Pixl device",
		Long: `pixlfs ` + Version + `
Talks to a Pixl over a BLE-UART bridge that relays protocol frames on a TCP
socket. Use --simulate to run against an in-memory device instead.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&g.address, "address", "a", "", "Bridge address host:port (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&g.simulate, "simulate", false, "Use an in-memory emulated device")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = Version

	rootCmd.AddCommand(
		newDrivesCmd(g),
		newLsCmd(g),
		newGetCmd(g),
		newPutCmd(g),
		newRmCmd(g),
		newMkdirCmd(g),
		newMvCmd(g),
		newVersionCmd(g),
	)

	return rootCmd
}

// Execute runs the root command with signal handling.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if g.address != "" {
		cfg.Device.Address = g.address
	}
	if g.verbose {
		cfg.Logging.Level = logrus.DebugLevel.String()
	}
	if err := cfg.Logging.Apply(cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	g.cfg = cfg
	return nil
}

// dial opens the transport named by the configuration, or an emulated
// device when --simulate is set.
func (g *globals) dial(ctx context.Context) (transport.Transport, error) {
	if !g.simulate {
		return transport.NewTCPTransport(ctx, g.cfg.Device.Address, g.cfg.Device.DialTimeout)
	}

	d := emulator.New()
	d.AddDrive('E', "Flash", 8<<20)
	if err := d.Mkdir("E:/amiibo"); err != nil {
		return nil, err
	}

	host, dev := transport.NewPipe(64)
	go func() {
		if err := d.Serve(ctx, dev); err != nil && ctx.Err() == nil {
			logrus.WithFields(logrus.Fields{
				"function": "dial",
				"error":    err.Error(),
			}).Warn("Emulated device stopped")
		}
	}()
	return host, nil
}

// withClient connects, completes the handshake and runs fn.
func (g *globals) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *pixlfs.Client) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	link, err := g.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	client, err := pixlfs.New(link, g.cfg.ToOptions())
	if err != nil {
		_ = link.Close()
		return err
	}

	runErr := make(chan error, 1)
	runDone := make(chan struct{})
	go func() {
		runErr <- client.Run(ctx)
		close(runDone)
	}()
	// Stop the read loop before dropping the link so a normal exit is not
	// reported as link loss.
	defer func() {
		cancel()
		<-runDone
		_ = client.Close()
	}()

	if err := client.Connect(); err != nil {
		return err
	}

	readyCtx, readyCancel := context.WithTimeout(ctx, g.cfg.Protocol.CommandTimeout*3+time.Second)
	defer readyCancel()
	if err := client.WaitReady(readyCtx); err != nil {
		select {
		case rerr := <-runErr:
			return fmt.Errorf("handshake failed: %w", rerr)
		default:
		}
		return fmt.Errorf("handshake failed: %w", err)
	}

	return fn(ctx, client)
}
