package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var semestersCmd = &cobra.Command{
	Use:   "semesters",
	Short: "List the semesters the catalog offers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		client := buildClient(cfg, "")
		current, err := client.DefaultSemester(ctx)
		if err != nil {
			return err
		}
		semesters, err := client.Semesters(ctx)
		if err != nil {
			return err
		}

		for _, semester := range semesters {
			marker := " "
			if semester == current {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %s\n", marker, semester)
		}
		return nil
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of courses in a semester",
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

		count, err := buildClient(cfg, semester).CourseCount(ctx, semester)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, count)
		return nil
	},
}
