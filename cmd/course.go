package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nolcrawler/internal/catalog"
)

var flagIndex int

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Fetch a single course record by its global index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		semester, err := resolveSemester(ctx, cfg)
		if err != nil {
			return err
		}

		client := buildClient(cfg, semester)
		crawler, err := catalog.NewCrawler(semester, client, client, cfg.CacheSize)
		if err != nil {
			return err
		}

		course, err := crawler.GetCourse(ctx, flagIndex)
		if err != nil {
			return err
		}
		if course == nil {
			return fmt.Errorf("index must not be negative, got %d", flagIndex)
		}
		course.Index = flagIndex

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(course)
	},
}

func init() {
	courseCmd.Flags().IntVar(&flagIndex, "index", 0, "global zero-based course index")
}
