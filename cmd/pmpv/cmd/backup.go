package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pmpv/internal/services"
)

func newBackupCmd(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "backup [DIR]",
		Short: "Write a consistent copy of the SQLite database",
		Long: `Write a consistent copy of the SQLite database into DIR (default:
BACKUP_DIR, or ./backups). With --keep only the newest backups are kept.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.BackupDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				dir = "./backups"
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create backup dir: %w", err)
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			path, err := svc.Backup(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Backup written: %s\n", path)
			if keep > 0 {
				removed, err := services.PruneBackups(dir, keep)
				if err != nil {
					return fmt.Errorf("prune backups: %w", err)
				}
				if removed > 0 {
					fmt.Fprintf(a.out, "Removed %d old backups\n", removed)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "number of backups to retain (0 keeps all)")
	return cmd
}
