package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	stateDirFlag    string
	verboseFlag     int
	debugFlag       string
	formatFlag      string
	optionOverrides []string
	includePatterns []string
	excludePatterns []string
)

const rootLongDescription = `fpdiff records fingerprints of file collections and reports which files
were added, removed or modified since the previous run.

A fingerprint is taken with one of the path sensitivity strategies:
  - absolute    full paths and contents
  - relative    paths relative to each root and contents
  - ignored     contents only, paths do not matter
  - classpath   contents in root order`

// rootCmd represents the base command when called without any subcommands.
var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fpdiff",
		Short:        "File collection fingerprinting and change detection",
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	configureRootFlags(cmd)

	cmd.AddCommand(
		newSnapshotCmd(),
		newFingerprintCmd(),
		newDiffCmd(),
		newWatchCmd(),
		newCacheCmd(),
		newConfigCmd(),
	)
	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&stateDirFlag, stateDirFlagName, viper.GetString(stateDirFlagName), "directory holding config, fingerprints and file hashes")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(stateDirFlagName), stateDirFlagName)

	cmd.PersistentFlags().IntVarP(&verboseFlag, verboseFlagName, "v", viper.GetInt(verboseFlagName), "verbose level (0-3)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), verboseFlagName)

	cmd.PersistentFlags().StringVar(&debugFlag, debugFlagName, viper.GetString(debugFlagName), "debug flags, e.g. walk,merkle,compare,cache")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(debugFlagName), debugFlagName)

	cmd.PersistentFlags().StringVar(&formatFlag, formatFlagName, viper.GetString(formatFlagName), "output format (human|json|yaml)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(formatFlagName), formatFlagName)

	cmd.PersistentFlags().StringArrayVarP(&optionOverrides, optionFlagName, "O", nil, "config override as key:value (can be repeated)")

	cmd.PersistentFlags().StringArrayVarP(&includePatterns, includeFlagName, "i", viper.GetStringSlice(includeConfigKey), "include files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(includeFlagName), includeConfigKey)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files and directories matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// withSession runs fn with an open session and closes it afterwards
func withSession(fn func(s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
