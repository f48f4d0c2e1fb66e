package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/embedb/maintenance"
	"github.com/hupe1980/embedb/store"
	"github.com/hupe1980/embedb/util"
)

var (
	vacuumPath  string
	vacuumForce bool
)

func newUtilsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "utils",
		Short: "Use maintenance utilities",
	}

	cmd.AddCommand(newVacuumCommand())

	return cmd
}

func newVacuumCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Vacuum the database",
		Long: `Vacuum the database. This may result in a significant reduction in size.

The vacuum prunes the record log down to the latest entry per record and
compacts the backing file. It needs exclusive ownership of the data
directory: stop the server first.`,
		Args: cobra.NoArgs,
		RunE: runVacuum,
	}

	cmd.Flags().StringVar(&vacuumPath, "path", "", "data directory")
	cmd.Flags().BoolVar(&vacuumForce, "force", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}

func runVacuum(cmd *cobra.Command, _ []string) error {
	info, err := os.Stat(vacuumPath)
	if err != nil || !info.IsDir() {
		msg := fmt.Sprintf("Path %s does not exist.", vacuumPath)
		fmt.Println(errorStyle.Render(msg))
		return errors.New(msg)
	}

	if _, err := os.Stat(filepath.Join(vacuumPath, store.BackingFileName)); err != nil {
		msg := fmt.Sprintf("Path %s is not an embedb data directory.", vacuumPath)
		fmt.Println(errorStyle.Render(msg))
		return errors.New(msg)
	}

	if !vacuumForce {
		fmt.Println("WARNING: The server should be stopped before vacuuming the database.")
		if !confirm("Are you sure you want to vacuum the database? This will block both reads and writes to the database and may take a while.") {
			fmt.Println("Vacuum cancelled.")
			return nil
		}
	}

	// Size is measured over the whole directory, so the reduction also
	// reflects the WAL side files folded back into the backing file.
	sizeBefore, err := util.DirSize(vacuumPath)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error vacuuming database: %v", err)))
		return err
	}

	ctx := cmd.Context()

	s, err := store.Open(ctx, vacuumPath)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error vacuuming database: %v", err)))
		return err
	}
	defer func() { _ = s.Close() }()

	if _, err := maintenance.New(s).Run(ctx); err != nil {
		var merr *store.MaintenanceError
		if errors.As(err, &merr) && merr.Op == "purge" {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error pruning the log: %v", err)))
		} else {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error vacuuming database: %v", err)))
		}
		return err
	}

	if err := s.Close(); err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error vacuuming database: %v", err)))
		return err
	}

	sizeAfter, err := util.DirSize(vacuumPath)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Error vacuuming database: %v", err)))
		return err
	}

	reduced := sizeBefore - sizeAfter
	if reduced < 0 {
		reduced = 0
	}
	var pct float64
	if sizeBefore > 0 {
		pct = float64(reduced) / float64(sizeBefore) * 100
	}

	fmt.Println(successStyle.Render(fmt.Sprintf(
		"🧼 vacuum complete! Database size reduced by %s (↓ %.1f%%).",
		humanize.IBytes(uint64(reduced)), pct,
	)))

	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)

	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))

	return answer == "y" || answer == "yes"
}
