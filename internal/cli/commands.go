package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/opd-ai/pixlfs"
	"github.com/opd-ai/pixlfs/protocol"
	"github.com/opd-ai/pixlfs/transfer"
	"github.com/spf13/cobra"
)

func newDrivesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List the device's drives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *pixlfs.Client) error {
				out := cmd.OutOrStdout()
				for _, d := range c.Drives() {
					fmt.Fprintf(out, "%-4s %-16s %10d %10d\n", d.Root(), d.Label, d.Used, d.Size)
				}
				return nil
			})
		},
	}
}

func newLsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote directory (default: the first drive)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *pixlfs.Client) error {
				path := c.Displayed()
				if len(args) == 1 {
					path = pixlfs.NormalizeRemote(args[0])
				}
				entries, err := c.List(ctx, path)
				if err != nil {
					return fmt.Errorf("ls %s: %w", path, err)
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
}

func printEntries(out io.Writer, entries []protocol.DirEntry) {
	sorted := append([]protocol.DirEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsDir() != sorted[j].IsDir() {
			return sorted[i].IsDir()
		}
		return sorted[i].Name < sorted[j].Name
	})

	for _, e := range sorted {
		kind := "-"
		if e.IsDir() {
			kind = "d"
		}
		fmt.Fprintf(out, "%s %10d %s\n", kind, e.Size, e.Name)
	}
}

func newGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote>... <localdir>",
		Short: "Download remote files into a local directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remotes, localDir := args[:len(args)-1], args[len(args)-1]
			return g.run(cmd, transfer.DownloadOps(remotes, localDir), "Downloading")
		},
	}
}

func newPutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "put <local>... <remotedir>",
		Short: "Upload local files or directories into a remote directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			locals := args[:len(args)-1]
			remoteDir := pixlfs.NormalizeRemote(args[len(args)-1])

			var ops []pixlfs.Operation
			for _, local := range locals {
				expanded, err := transfer.ExpandUpload(local, remoteDir)
				if err != nil {
					return err
				}
				ops = append(ops, expanded...)
			}
			return g.run(cmd, ops, "Uploading")
		},
	}
}

func newRmCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <remote>...",
		Short: "Remove remote files or empty directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, transfer.DeleteOps(args), "Deleting")
		},
	}
}

func newMkdirCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <remote>...",
		Short: "Create remote directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops := make([]pixlfs.Operation, 0, len(args))
			for _, p := range args {
				ops = append(ops, transfer.CreateFolder(pixlfs.NormalizeRemote(p)))
			}
			return g.run(cmd, ops, "Creating folders")
		},
	}
}

func newMvCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Rename or move a remote file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, []pixlfs.Operation{transfer.Rename(args[0], args[1])}, "Renaming")
		},
	}
}

func newVersionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client and device firmware versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pixlfs %s\n", Version)
			return g.withClient(cmd, func(ctx context.Context, c *pixlfs.Client) error {
				fmt.Fprintf(out, "device %s\n", c.Version())
				return nil
			})
		},
	}
}

// run executes one batch of operations with progress on stderr.
func (g *globals) run(cmd *cobra.Command, ops []pixlfs.Operation, label string) error {
	return g.withClient(cmd, func(ctx context.Context, c *pixlfs.Client) error {
		progress := newBatchProgress(cmd.ErrOrStderr(), len(ops), label)
		c.OnProgress(progress.Update)

		summary, err := c.Execute(ctx, ops, label)
		progress.Finish()
		return report(cmd.OutOrStdout(), summary, err)
	})
}
