package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/store"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage fitting checkpoints",
	Long: `List and clean the checkpoints stored below --checkpoint-dir.
A checkpoint holds the best face of a job and lets "facefit resume" continue it.`,
}

var listCheckpointsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewFSStore(cfg.CheckpointDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		infos, err := st.ListCheckpoints()
		if err != nil {
			return fmt.Errorf("failed to list checkpoints: %w", err)
		}
		printCheckpoints(cmd.OutOrStdout(), st.BaseDir(), infos)
		return nil
	},
}

var cleanCheckpointsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old checkpoints",
	Long: `Delete checkpoints based on a retention policy: keep the N most recent
jobs, delete jobs older than N days, or both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keepLast == 0 && olderThanDays == 0 {
			return fmt.Errorf("must specify either --keep-last or --older-than")
		}
		st, err := store.NewFSStore(cfg.CheckpointDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		infos, err := st.ListCheckpoints()
		if err != nil {
			return fmt.Errorf("failed to list checkpoints: %w", err)
		}

		out := cmd.OutOrStdout()
		toDelete := selectCheckpointsForDeletion(infos, keepLast, olderThanDays, time.Now())
		if len(toDelete) == 0 {
			fmt.Fprintln(out, "No checkpoints match deletion criteria.")
			return nil
		}

		fmt.Fprintf(out, "Found %d checkpoint(s) to delete:\n", len(toDelete))
		for _, info := range toDelete {
			fmt.Fprintf(out, "  - %s (%s, loop %d, %s)\n",
				shortID(info.JobID), info.Method, info.Loop, info.Timestamp.Format(time.DateTime))
		}

		if !forceClean && !confirm(cmd.InOrStdin(), out) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}

		deleted, failed := 0, 0
		for _, info := range toDelete {
			if err := st.DeleteCheckpoint(info.JobID); err != nil {
				logger.Error("Failed to delete checkpoint", "job_id", info.JobID, "error", err)
				failed++
				continue
			}
			logger.Info("Deleted checkpoint", "job_id", info.JobID)
			deleted++
		}
		fmt.Fprintf(out, "\nDeleted %d checkpoint(s), %d failed.\n", deleted, failed)
		return nil
	},
}

func init() {
	checkpointsCmd.PersistentFlags().StringVar(&flagCfg.CheckpointDir, "checkpoint-dir", "./data", "Checkpoint directory")
	cleanCheckpointsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the N most recent checkpoints (0 = keep all)")
	cleanCheckpointsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete checkpoints older than N days (0 = no age limit)")
	cleanCheckpointsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")

	checkpointsCmd.AddCommand(listCheckpointsCmd, cleanCheckpointsCmd)
	rootCmd.AddCommand(checkpointsCmd)
}

func printCheckpoints(out io.Writer, baseDir string, infos []store.CheckpointInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No checkpoints found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tTIMESTAMP\tMETHOD\tDIMS\tLOOP\tCOST\tSIZE")
	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := getDirSize(filepath.Join(baseDir, "jobs", info.JobID)); err == nil {
			sizeStr = formatBytes(size)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.6f\t%s\n",
			shortID(info.JobID),
			info.Timestamp.Format(time.DateTime),
			info.Method,
			info.Dimensions,
			info.Loop,
			info.Cost,
			sizeStr,
		)
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal checkpoints: %d\n", len(infos))
}

// selectCheckpointsForDeletion applies the retention policy. A checkpoint is
// selected when it is older than olderThanDays or not among the keepLast most
// recent ones; zero disables a rule.
func selectCheckpointsForDeletion(infos []store.CheckpointInfo, keepLast, olderThanDays int, now time.Time) []store.CheckpointInfo {
	sorted := append([]store.CheckpointInfo(nil), infos...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	cutoff := now.AddDate(0, 0, -olderThanDays)
	var toDelete []store.CheckpointInfo
	for i, info := range sorted {
		tooOld := olderThanDays > 0 && info.Timestamp.Before(cutoff)
		beyondKeep := keepLast > 0 && i >= keepLast
		if tooOld || beyondKeep {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
	var response string
	fmt.Fscanln(in, &response)
	return response == "y" || response == "Y"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
