package commands

import (
	"fmt"
	"os"

	"campussync/internal/chrono"
	"campussync/internal/extract"
	"campussync/internal/telemetry"
	"campussync/internal/validate"
	"campussync/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var parseMonthIndex int

func init() {
	parseCmd.Flags().IntVar(&parseMonthIndex, "month-index", 0, "Months after the current one a calendar page without a header shows.")
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse <grades|attendance|schedule|calendar|subjects> <file>",
	Short: "Runs the extractor and validator on the saved text of a records page.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		tel := telemetry.SlogAPI{}
		extractor := extract.NewExtractor(cfg.Heuristics, chrono.NewStandardTime(), tel)
		validator := validate.NewValidator(cfg.Validate, tel)

		text, err := os.ReadFile(args[1])
		if err != nil {
			serviceutil.Fatal("read page text", err)
		}

		switch args[0] {
		case "grades":
			printGrades(validator.Grades(extractor.Grades(string(text))))
		case "attendance":
			attendance, err := validator.Attendance(extractor.Attendance(string(text)))
			if err != nil {
				serviceutil.Fatal("validate attendance", err)
			}
			printAttendance(attendance)
		case "schedule":
			printSchedule(validator.Schedule(extractor.Schedule(string(text))))
		case "calendar":
			printCalendar(validator.MergeCalendar(extractor.Calendar(string(text), parseMonthIndex, nil)))
		case "subjects":
			printSubjects(extractor.Subjects(string(text)))
		default:
			serviceutil.Fatal("parse", fmt.Errorf("unknown page '%s'", args[0]))
		}
	},
}
