// crates-cli queries the crates.io registry API from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkgwatch/crates-io-client/pkg/crates"
	"github.com/pkgwatch/crates-io-client/pkg/logging"
	"github.com/pkgwatch/crates-io-client/pkg/types"
)

var (
	flagUserAgent   string
	flagInterval    time.Duration
	flagRegistryURL string
	flagLogLevel    string
	flagPretty      bool
)

func main() {
	root := &cobra.Command{
		Use:   "crates-cli",
		Short: "Query the crates.io registry API",
		Long: `crates-cli looks up crates, owners, and dependencies on crates.io.

Requests are rate limited per the crates.io crawler policy (one request
per second by default). Results are printed as JSON on stdout; logs go
to stderr.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logging.Config{
				Level:  logging.LogLevel(flagLogLevel),
				Pretty: flagPretty,
				Output: os.Stderr,
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagUserAgent, "user-agent", "crates-cli (github.com/pkgwatch/crates-io-client)", "User-Agent sent to the registry")
	pf.DurationVar(&flagInterval, "interval", time.Second, "minimum delay between requests")
	pf.StringVar(&flagRegistryURL, "registry-url", "", "alternative registry API root (default crates.io)")
	pf.StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVar(&flagPretty, "pretty", false, "human-readable log output")

	root.AddCommand(
		summaryCmd(),
		infoCmd(),
		searchCmd(),
		depsCmd(),
		ownersCmd(),
		rdepsCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient() (*crates.Client, error) {
	cfg := crates.DefaultConfig(flagUserAgent)
	cfg.MinInterval = flagInterval
	if flagRegistryURL != "" {
		cfg.Registry = &crates.Registry{URL: flagRegistryURL}
	}
	return crates.New(cfg)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show registry-wide statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			summary, err := client.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
}

func infoCmd() *cobra.Command {
	var full bool
	var allVersions bool

	cmd := &cobra.Command{
		Use:   "info <crate>",
		Short: "Show information about a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			if full {
				crate, err := client.FullCrate(cmd.Context(), args[0], allVersions)
				if err != nil {
					return err
				}
				return printJSON(crate)
			}

			resp, err := client.GetCrate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include downloads, owners, and reverse dependencies (more requests)")
	cmd.Flags().BoolVar(&allVersions, "all-versions", false, "with --full, enrich every version instead of the latest")
	return cmd
}

func searchCmd() *cobra.Command {
	var limit int
	var sort string

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search crates by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			stream := client.CratesStream(types.CratesQuery{
				Search: args[0],
				Sort:   types.Sort(sort),
			})

			var results []types.Crate
			for stream.Next(cmd.Context()) {
				results = append(results, stream.Crate())
				if len(results) >= limit {
					break
				}
			}
			if err := stream.Err(); err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 30, "maximum number of results")
	cmd.Flags().StringVar(&sort, "sort", string(types.SortRelevance), "sort order (alpha, downloads, recent-downloads, recent-updates, new)")
	return cmd
}

func depsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <crate> <version>",
		Short: "Show the dependencies of a crate version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			deps, err := client.CrateDependencies(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(deps)
		},
	}
}

func ownersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "owners <crate>",
		Short: "Show the owners of a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			owners, err := client.CrateOwners(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(owners)
		},
	}
}

func rdepsCmd() *cobra.Command {
	var countOnly bool

	cmd := &cobra.Command{
		Use:   "rdeps <crate>",
		Short: "Show the crates depending on a crate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			if countOnly {
				count, err := client.ReverseDependencyCount(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Println(count)
				return nil
			}

			rdeps, err := client.ReverseDependencies(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(rdeps)
		},
	}
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of dependents (one request)")
	return cmd
}
