package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tnqbao/gau-media-service/cleanup"
	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/infra/produce"
	"github.com/tnqbao/gau-media-service/repository"
	"github.com/tnqbao/gau-media-service/utils"
)

// newCleanupViper reads every cleanup flag from the command line first and
// MEDIA_CLEANUP_<FLAG> second.
func newCleanupViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("media_cleanup")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind cleanup flags: %w", err)
	}
	return v, nil
}

func cleanupOptions(v *viper.Viper) (cleanup.Options, error) {
	opts := cleanup.Options{
		Orphaned: v.GetBool("orphaned"),
		Missing:  v.GetBool("missing"),
		Unused:   v.GetBool("unused"),
		DryRun:   v.GetBool("dry-run"),
	}
	if v.GetBool("all") {
		opts = cleanup.All(opts.DryRun)
	}
	if !opts.Orphaned && !opts.Missing && !opts.Unused {
		return opts, cleanup.ErrNoOperation
	}
	return opts, nil
}

func newCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned records, records without files and files without records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newCleanupViper(cmd)
			if err != nil {
				return err
			}
			opts, err := cleanupOptions(v)
			if err != nil {
				return err
			}

			cfg := config.NewConfig()
			inf := infra.InitInfra(cfg)
			repo := repository.InitRepository(inf)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			defer func() { _ = inf.Logger.Shutdown(context.Background()) }()

			if v.GetBool("queue") {
				return enqueueCleanup(ctx, cmd, inf.Produce.Cleanup, opts)
			}

			report, err := cleanup.NewServiceSweeper(cfg, inf, repo).Run(ctx, opts)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Bool("dry-run", false, "Show what would be deleted without deleting anything")
	flags.Bool("orphaned", false, "Remove media whose owner no longer exists")
	flags.Bool("missing", false, "Remove records whose file is gone")
	flags.Bool("unused", false, "Remove files that no record points at")
	flags.Bool("all", false, "Run every cleanup pass")
	flags.Bool("queue", false, "Enqueue the sweep for the consumer instead of running it here")
	return cmd
}

func enqueueCleanup(ctx context.Context, cmd *cobra.Command, service *produce.CleanupService, opts cleanup.Options) error {
	err := service.PublishCleanupJob(ctx, produce.CleanupJobMessage{
		Orphaned:    opts.Orphaned,
		Missing:     opts.Missing,
		Unused:      opts.Unused,
		DryRun:      opts.DryRun,
		RequestedBy: "cli",
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue cleanup job: %w", err)
	}
	cmd.Println("Cleanup job enqueued")
	return nil
}

func printReport(cmd *cobra.Command, report *cleanup.Report) {
	if report.DryRun {
		cmd.Println("DRY RUN MODE - No changes will be made")
	}
	passes := []struct {
		title  string
		result *cleanup.PassResult
	}{
		{"Orphaned media", report.Orphaned},
		{"Missing files", report.Missing},
		{"Unused files", report.Unused},
	}
	for _, pass := range passes {
		if pass.result == nil {
			continue
		}
		cmd.Printf("%s: %d item(s), %s\n", pass.title, pass.result.Count, utils.FormatBytes(pass.result.Bytes))
		for _, item := range pass.result.Items {
			cmd.Printf("  - %s\n", item)
		}
		for _, msg := range pass.result.Errors {
			cmd.PrintErrf("  ! %s\n", msg)
		}
	}
	for _, line := range report.Summary() {
		cmd.Println(line)
	}
	cmd.Println("Cleanup completed")
}
