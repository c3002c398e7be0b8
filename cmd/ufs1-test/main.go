// Command ufs1-test is a diagnostic driver: it opens a UFS1 image
// read-only, validates its super block and cylinder groups, and dumps
// every live inode it finds to stderr.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ikle/go-ufs1/internal/bio"
	"github.com/ikle/go-ufs1/internal/diag"
)

var (
	cacheSize int
	readAhead int
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "ufs1-test <image-path>",
	Short: "Validate and dump a UFS1 file system image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := diag.SetLevel(viper.GetString("log-level")); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		diag.SetJSON(viper.GetString("log-format") == "json")

		if size := viper.GetInt("cache-size"); size != bio.TableSize {
			diag.Default().Warnf(
				"cache-size %d differs from the compiled-in table size %d; "+
					"the table is fixed at build time, the running cache still uses %d",
				size, bio.TableSize, bio.TableSize)
		}

		ok, err := run(args[0], viper.GetInt("read-ahead"))
		if err != nil {
			return err
		}
		if !ok {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&cacheSize, "cache-size", bio.TableSize, "expected BIO cache table size (diagnostic only; the table is fixed at build time)")
	flags.IntVar(&readAhead, "read-ahead", 1, "number of cylinder groups to read ahead while enumerating")
	flags.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text or json")

	_ = viper.BindPFlag("cache-size", flags.Lookup("cache-size"))
	_ = viper.BindPFlag("read-ahead", flags.Lookup("read-ahead"))
	_ = viper.BindPFlag("log-level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log-format", flags.Lookup("log-format"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
