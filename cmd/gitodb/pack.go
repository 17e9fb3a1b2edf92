package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/gitodb/explode"
	"github.com/meigma/gitodb/pack"
)

func (c *cli) newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Work with pack files",
	}
	cmd.AddCommand(c.newExplodeCmd())
	cmd.AddCommand(c.newVerifyCmd())
	return cmd
}

func addCheckFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("check", "c", "all",
		"verification level, one of: "+strings.Join(explode.SafetyCheckKeys(), ", "))
	cmd.Flags().IntP("threads", "t", 0, "number of decoding workers (0 uses all CPUs)")
	cmd.Flags().String("hash", "sha1", "object hash function: sha1 or sha256")
	cmd.Flags().Uint64("max-object-size", pack.DefaultMaxObjectSize, "largest decoded object in bytes (0 for no limit)")
}

func (c *cli) newExplodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explode [flags] <pack> [object-dir]",
		Short: "Write every object of a pack as a loose object",
		Long: `Decode every object listed in a pack index and write it into the loose
object directory. Without an object directory the objects are only verified.

The pack may be named by its .idx file, its .pack file or their shared stem.`,
		Args: args(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, a []string) error {
			objectDir := ""
			if len(a) == 2 {
				objectDir = a[1]
			}
			return c.runExplode(cmd, a[0], objectDir, true)
		},
	}
	addCheckFlags(cmd)
	cmd.Flags().BoolP("delete-pack", "d", false, "remove the pack files after a run without fatal errors")
	return cmd
}

func (c *cli) newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [flags] <pack>",
		Short: "Decode and check every object of a pack without writing anything",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			return c.runExplode(cmd, a[0], "", false)
		},
	}
	addCheckFlags(cmd)
	return cmd
}

func (c *cli) runExplode(cmd *cobra.Command, packPath, objectDir string, allowDelete bool) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.ExplodeOptions()
	if err != nil {
		return err
	}
	logger := c.logger(cfg.Log.Verbose || c.verbose)
	opts = append(opts, explode.WithLogger(logger), explode.WithObjectDir(objectDir))
	if !allowDelete {
		opts = append(opts, explode.WithDeletePack(false))
	}

	outcome, err := explode.Explode(packPath, opts...)
	if outcome != nil {
		fmt.Fprintf(c.stdout, "processed=%d tolerated=%d failures=%d\n",
			outcome.Processed, outcome.Tolerated, len(outcome.Failures))
		logger.Debug("traversal statistics",
			"decoded", outcome.Traversal.Decoded,
			"bytes", outcome.Traversal.DecodedBytes,
			"cache_hits", outcome.Traversal.CacheHits,
			"cache_misses", outcome.Traversal.CacheMisses,
			"workers", outcome.Traversal.Workers,
			"duration", outcome.Traversal.Duration)
	}
	return err
}
