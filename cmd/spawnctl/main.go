package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/danmuck/spawnctl/internal/feed"
	"github.com/danmuck/spawnctl/internal/launch"
	"github.com/danmuck/spawnctl/internal/observability"
	"github.com/danmuck/spawnctl/internal/selections"
	"github.com/danmuck/spawnctl/internal/solver"
)

var (
	flagConfig    string
	flagStability string
	flagRefresh   bool

	logger zerolog.Logger
	eng    *engine
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spawnctl: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spawnctl",
		Short:         "Run programs published as signed interface feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Best effort; a missing .env simply means no overrides.
			_ = godotenv.Load()
			logger = observability.InitLogger("spawnctl")

			cfg, err := loadConfig(flagConfig)
			if err != nil {
				return err
			}
			eng, err = newEngine(cfg, logger)
			if err != nil {
				return err
			}
			if cfg.MetricsAddr != "" {
				go func() {
					if err := observability.ServeMetrics(cfg.MetricsAddr); err != nil {
						logger.Warn().Err(err).Msg("metrics listener stopped")
					}
				}()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "spawnctl.toml", "path to the TOML config file")
	root.PersistentFlags().StringVar(&flagStability, "stability", "", "preferred implementation stability (stable, testing, developer)")
	root.PersistentFlags().BoolVar(&flagRefresh, "refresh", false, "re-download feeds even when cached")

	root.AddCommand(runCmd(), selectCmd(), downloadCmd(), trustCmd(), storeCmd())
	return root
}

func policyFromFlags() (solver.Policy, error) {
	policy := solver.DefaultPolicy()
	if flagStability != "" {
		preferred, err := feed.ParseStability(flagStability)
		if err != nil {
			return solver.Policy{}, err
		}
		policy.PreferredStability = preferred
		// Asking for a less-stable channel also admits it.
		if preferred < policy.StabilityFloor {
			policy.StabilityFloor = preferred
		}
	}
	return policy, nil
}

// resolve is the shared front half of run/select/download: feeds present,
// graph solved, cache flags fresh.
func resolve(uri string) (*selections.Selections, error) {
	policy, err := policyFromFlags()
	if err != nil {
		return nil, err
	}
	if err := eng.ensureFeeds(uri, flagRefresh); err != nil {
		return nil, err
	}
	return eng.solve(uri, policy)
}

// runOptions carries the launch-shaping flags of `run`.
type runOptions struct {
	mainOverride string
	wrapper      string
	dryRun       bool
	testMode     bool
}

// runProgram is the back half of `run`: make every selection cached,
// compute the invocation, then either print it (dry run, before any
// environment mutation), test it in a child, or exec it.
func runProgram(e *engine, sels *selections.Selections, args []string, opts runOptions, env launch.Env, out io.Writer) error {
	if err := e.downloadSelections(sels); err != nil {
		return err
	}

	inv, err := e.launcher.Command(sels, args, opts.mainOverride, opts.wrapper)
	if err != nil {
		return err
	}
	if opts.dryRun {
		fmt.Fprintln(out, inv.String())
		return nil
	}

	if err := launch.ApplyBindings(sels, e.store, env); err != nil {
		return err
	}
	if opts.testMode {
		output, err := e.launcher.Test(inv)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output)
		return nil
	}
	return e.launcher.Exec(inv)
}

func runCmd() *cobra.Command {
	var (
		opts           runOptions
		selectionsFile string
	)
	cmd := &cobra.Command{
		Use:   "run <interface-uri> [-- args...]",
		Short: "Solve, fetch, bind, and execute an interface's program",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sels     *selections.Selections
				progArgs []string
				err      error
			)
			if selectionsFile != "" {
				// Replay a saved document: no feeds, no solving.
				sels, err = eng.loadSelections(selectionsFile)
				progArgs = args
			} else {
				if len(args) == 0 {
					return fmt.Errorf("an interface uri (or --selections) is required")
				}
				sels, err = resolve(args[0])
				progArgs = args[1:]
			}
			if err != nil {
				return err
			}
			return runProgram(eng, sels, progArgs, opts, launch.OSEnv{}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.mainOverride, "main", "m", "", "override the declared entry point")
	cmd.Flags().StringVarP(&opts.wrapper, "wrapper", "w", "", "run the program through a wrapper command")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the command line instead of executing it")
	cmd.Flags().BoolVar(&opts.testMode, "test", false, "run in an isolated child and print its combined output")
	cmd.Flags().StringVar(&selectionsFile, "selections", "", "replay a saved selection set instead of solving")
	return cmd
}

func selectCmd() *cobra.Command {
	var (
		asXML    bool
		saveFile string
	)
	cmd := &cobra.Command{
		Use:   "select <interface-uri>",
		Short: "Resolve an interface to a selection set and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sels, err := resolve(args[0])
			if err != nil {
				return err
			}
			if saveFile != "" || asXML {
				doc, err := selections.Marshal(sels)
				if err != nil {
					return err
				}
				if saveFile != "" {
					if err := os.WriteFile(saveFile, doc, 0o644); err != nil {
						return fmt.Errorf("save selections: %w", err)
					}
				}
				if asXML {
					fmt.Fprint(cmd.OutOrStdout(), string(doc))
				}
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INTERFACE\tVERSION\tID\tCACHED")
			for _, uri := range sels.Interfaces() {
				sel := sels.Selections[uri]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", uri, sel.Version, sel.ID, sel.Cached)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asXML, "xml", false, "print the selection set as XML")
	cmd.Flags().StringVar(&saveFile, "save", "", "write the selection set XML to a file")
	return cmd
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <interface-uri>",
		Short: "Fetch an interface's implementations into the store without running anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sels, err := resolve(args[0])
			if err != nil {
				return err
			}
			if err := eng.downloadSelections(sels); err != nil {
				return err
			}
			for _, uri := range sels.Interfaces() {
				sel := sels.Selections[uri]
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s cached\n", uri, sel.Version)
			}
			return nil
		},
	}
}

func trustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Inspect and edit the key trust database",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <domain>",
			Short: "List fingerprints trusted for a domain",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, fp := range eng.trustDB.Keys(args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), fp)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <fingerprint> <domain>",
			Short: "Trust a key fingerprint for a domain",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := eng.trustDB.TrustKey(args[0], args[1]); err != nil {
					return err
				}
				eng.trustDB.Notify()
				fmt.Fprintf(cmd.OutOrStdout(), "trusted %s for %s\n", strings.ToUpper(args[0]), args[1])
				return nil
			},
		},
	)
	return cmd
}

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the implementation store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "find <implementation-id>",
			Short: "Print the installed directory for an implementation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := eng.store.Lookup(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <archive>",
			Short: "Import a local archive into the store under its digest id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := eng.addArchive(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List cached implementation ids",
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := eng.store.List()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			},
		},
	)
	return cmd
}
