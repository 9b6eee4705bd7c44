package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/config"
	"github.com/hiddenhill/api/internal/model"
	"github.com/hiddenhill/api/internal/worker"
)

func newVideosCommand(cfg *config.Config) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect videos and jobs in the store",
	}

	videosCmd.AddCommand(newVideosListCommand(cfg))
	videosCmd.AddCommand(newVideosStatsCommand(cfg))
	videosCmd.AddCommand(newVideosReapCommand(cfg))

	return videosCmd
}

func newVideosListCommand(cfg *config.Config) *cobra.Command {
	var (
		limit int
		email string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(rt *runtime) error {
				videos, err := listVideos(cmd, rt, email, limit)
				if err != nil {
					return err
				}
				if len(videos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No videos")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "PubMed ID", "Status", "URL / Error", "Created"},
					videoRows(videos),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of videos to show")
	cmd.Flags().StringVar(&email, "email", "", "Only show videos requested by this email")
	return cmd
}

// listVideos returns recent videos, or all videos of one requester when
// email is set. An unknown email yields no videos.
func listVideos(cmd *cobra.Command, rt *runtime, email string, limit int) ([]model.Video, error) {
	if email == "" {
		return rt.jobs.ListVideos(cmd.Context(), limit)
	}
	user, err := rt.users.GetByEmail(cmd.Context(), email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt.jobs.ListVideosByUser(cmd.Context(), user.ID)
}

func newVideosStatsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(rt *runtime) error {
				counts, err := rt.jobs.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Jobs"},
					statsRows(counts),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newVideosReapCommand(cfg *config.Config) *cobra.Command {
	var staleAfter time.Duration
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Fail jobs that have not progressed for a while",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(rt *runtime) error {
				if staleAfter <= 0 {
					staleAfter = cfg.Reaper.StaleAfter
				}
				n, err := worker.NewReaper(rt.jobs, staleAfter).Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Failed %d stale job(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "Idle time after which a job is failed (default REAPER_STALE_AFTER)")
	return cmd
}

func videoRows(videos []model.Video) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		detail := ""
		switch {
		case v.VideoURL != nil:
			detail = *v.VideoURL
		case v.ErrorMessage != nil:
			detail = *v.ErrorMessage
		}
		rows = append(rows, []string{
			v.ID,
			v.PubmedID,
			string(v.Status),
			detail,
			v.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func statsRows(counts map[model.JobStatus]int64) [][]string {
	statuses := make([]string, 0, len(model.ValidJobStatuses))
	for _, s := range model.ValidJobStatuses {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{s, strconv.FormatInt(counts[model.JobStatus(s)], 10)})
	}
	return rows
}
