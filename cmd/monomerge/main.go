// Command monomerge consolidates a submodule-linked meta repository
// and its submodules into a single monorepo, preserving commit
// lineage.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/monomerge/monomerge/internal/orchestrator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		meta            string
		mono            string
		strategyFile    string
		whitelistFile   string
		dumpTemplate    bool
		dumpLog         bool
		checkSquashable bool
		squash          bool
		squashTitle     string
		squashDesc      string
		filterRepoBin   string
		workDir         string
		logLevel        string
		logFormat       string
	)

	cmd := &cobra.Command{
		Use:   "monomerge",
		Short: "Consolidate a meta repository and its submodules into one monorepo",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(logLevel, logFormat)
			if err != nil {
				return err
			}

			o, err := orchestrator.New(orchestrator.Config{
				MetaLocation:      meta,
				MonoLocation:      mono,
				StrategyFile:      strategyFile,
				WhitelistFile:     whitelistFile,
				DumpTemplate:      dumpTemplate,
				DumpLog:           dumpLog,
				CheckSquashable:   checkSquashable,
				Squash:            squash,
				SquashTitle:       squashTitle,
				SquashDescription: squashDesc,
				FilterRepoBin:     filterRepoBin,
				WorkDir:           workDir,
				Log:               log,
			})
			if err != nil {
				return err
			}

			result, err := o.Run()
			if err != nil {
				return err
			}
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "monorepo written to %s\n", result.MonoDir)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&meta, "meta", "", "meta repository URL or local path (required)")
	flags.StringVar(&mono, "mono", "", "existing monorepo URL or local path; creates a new one if omitted")
	flags.StringVar(&strategyFile, "strategy", "", "path to a strategy JSON file")
	flags.StringVar(&whitelistFile, "whitelist", "", "path to a branch-whitelist JSON file")
	flags.BoolVar(&dumpTemplate, "dump-template", false, "write a strategy template covering every discovered submodule, then exit")
	flags.BoolVar(&dumpLog, "dump-log", false, "print the meta branch-closure plan, then exit")
	flags.BoolVar(&checkSquashable, "check-squashable", false, "report which mono branches can be squashed, then exit")
	flags.BoolVar(&squash, "squash", false, "squash bookkeeping commits at each branch's tip after migrating")
	flags.StringVar(&squashTitle, "squash-title", "", "title for the squashed commit")
	flags.StringVar(&squashDesc, "squash-description", "", "body for the squashed commit, before the original subjects")
	flags.StringVar(&filterRepoBin, "filter-repo-bin", "", "path to the git-filter-repo binary; defaults to PATH lookup")
	flags.StringVar(&workDir, "work-dir", "", "base directory for the run's scratch workspace; defaults to the OS temp dir")
	flags.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text, json")

	cobra.CheckErr(cmd.MarkFlagRequired("meta"))

	return cmd
}

func newLogger(level, format string) (*logrus.Entry, error) {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}

	return logrus.NewEntry(log), nil
}
