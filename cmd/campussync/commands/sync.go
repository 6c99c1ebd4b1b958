package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campussync/internal/model"
	"campussync/internal/syncjob"
	"campussync/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var syncForced bool

func init() {
	syncCmd.Flags().BoolVar(&syncForced, "forced", false, "Crawl even when data is already stored.")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync <user-id> <lms|records> [--forced]",
	Short: "Runs one sync job in the foreground and prints what was stored.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		userID := args[0]
		portal, err := model.ParsePortal(args[1])
		if err != nil {
			serviceutil.Fatal("parse portal", err)
		}

		ctx := cmd.Context()
		svc, cleanup := setup(ctx, "campussync-cli")
		defer cleanup()

		t1 := time.Now()
		res, err := svc.orch.StartSync(ctx, userID, portal, syncForced)
		if err != nil {
			serviceutil.Fatal("start sync", err)
		}
		slog.Info("sync", "status", res.Status, "job_id", res.JobID)
		svc.orch.Wait()
		t2 := time.Now()

		status, err := svc.orch.GetStatus(ctx, userID, portal)
		if err != nil {
			serviceutil.Fatal("get status", err)
		}
		printStatus(portal, status)
		if res.Status == syncjob.StatusStarted {
			slog.Info("sync time", "seconds", t2.Sub(t1).Seconds())
		}

		switch portal {
		case model.PortalLMS:
			docs, err := svc.store.LMSDocuments(ctx, userID)
			if err != nil {
				serviceutil.Fatal("read documents", err)
			}
			printDocuments(docs)
		case model.PortalRecords:
			result, err := svc.store.Records(ctx, userID)
			if err != nil {
				serviceutil.Fatal("read records", err)
			}
			printGrades(result.Grades)
			printAttendance(result.Attendance)
			printSchedule(result.Schedule)
			printSubjects(result.Subjects)
			fmt.Printf("%d calendar events\n", len(result.Calendar))
		}

		if status.State == model.JobFailed {
			serviceutil.Fatal("sync failed", errors.New(status.Error))
		}
	},
}
