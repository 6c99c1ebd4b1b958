// Package syncjob runs sync jobs in the background. A job logs into one
// portal for one user, extracts everything and replaces what is stored for
// that portal, or changes nothing when it fails.
package syncjob

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"campussync/internal/assert"
	"campussync/internal/credentials"
	"campussync/internal/model"
	"campussync/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("campussync.internal.syncjob")
	meter  = otel.Meter("campussync.internal.syncjob")
)

var (
	startedCounter, _  = meter.Int64Counter("syncjob.started")
	finishedCounter, _ = meter.Int64Counter("syncjob.finished")
)

const (
	report_start   = "start"
	report_job     = "job"
	report_panic   = "job.panic"
	report_persist = "job.persist"
)

// LMSCrawler logs into the LMS and flattens every course into a document.
//
// note: fault injection point
type LMSCrawler interface {
	Scrape(ctx context.Context, userID, loginID, secret string) ([]model.ExtractedDocumentText, error)
}

// RecordsCrawler logs into the records portal and extracts every page.
//
// note: fault injection point
type RecordsCrawler interface {
	Scrape(ctx context.Context, loginID, secret string) (model.RecordsResult, error)
}

type RecordsValidator interface {
	Records(result model.RecordsResult) (model.RecordsResult, error)
}

// Store is the persistence a job needs, it is implemented by store.Store.
type Store interface {
	HasData(ctx context.Context, userID string, portal model.Portal) (bool, error)
	LastSync(ctx context.Context, userID string, portal model.Portal) (*time.Time, error)
	Credentials(ctx context.Context, userID string) (credentials.Credentials, error)
	ReplaceLMS(ctx context.Context, userID string, docs []model.ExtractedDocumentText) error
	ReplaceRecords(ctx context.Context, userID string, result model.RecordsResult) error
}

type StartStatus string

const (
	StatusStarted        StartStatus = "started"
	StatusAlreadyRunning StartStatus = "already_running"
	StatusCached         StartStatus = "cached"
)

type StartResult struct {
	Status StartStatus
	// JobID is set when a job was started.
	JobID string
}

// Status is what a client polls while waiting for a job.
type Status struct {
	Running    bool
	HasData    bool
	LastSyncAt *time.Time
	State      model.JobState
	Error      string
	JobID      string
}

type Orchestrator struct {
	ctx       context.Context
	status    *StatusStore
	store     Store
	lms       LMSCrawler
	records   RecordsCrawler
	validator RecordsValidator
	tel       telemetry.API
	wg        *sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator, jobs run under ctx and are
// cancelled with it.
func NewOrchestrator(
	ctx context.Context,
	status *StatusStore,
	store Store,
	lms LMSCrawler,
	records RecordsCrawler,
	validator RecordsValidator,
	tel telemetry.API,
) Orchestrator {
	assert.NotNil(ctx)
	assert.NotNil(status)
	assert.NotNil(store)
	assert.NotNil(lms)
	assert.NotNil(records)
	assert.NotNil(validator)
	assert.NotNil(tel)

	return Orchestrator{
		ctx:       ctx,
		status:    status,
		store:     store,
		lms:       lms,
		records:   records,
		validator: validator,
		tel:       telemetry.NewScopedAPI("syncjob", tel),
		wg:        &sync.WaitGroup{},
	}
}

// StartSync starts a job in the background and returns without waiting for
// it. Unless forced, a portal that already has stored data is not crawled
// again.
func (o Orchestrator) StartSync(ctx context.Context, userID string, portal model.Portal, forced bool) (StartResult, error) {
	ctx, span := tracer.Start(ctx, "StartSync")
	defer span.End()
	span.SetAttributes(
		attribute.String("portal", string(portal)),
		attribute.Bool("forced", forced),
	)

	if userID == "" {
		return StartResult{}, fmt.Errorf("user id is empty")
	}
	if _, err := model.ParsePortal(string(portal)); err != nil {
		return StartResult{}, err
	}

	if o.status.Running(userID, portal) {
		return StartResult{Status: StatusAlreadyRunning}, nil
	}
	if !forced {
		hasData, err := o.store.HasData(ctx, userID, portal)
		if err != nil {
			return StartResult{}, err
		}
		if hasData {
			o.tel.ReportDebug("serving cached data", userID, portal)
			return StartResult{Status: StatusCached}, nil
		}
	}

	creds, err := o.store.Credentials(ctx, userID)
	if err != nil {
		o.tel.ReportWarning(report_start, err, userID)
		return StartResult{}, err
	}
	secret, err := credentials.DeriveSecret(creds)
	if err != nil {
		o.tel.ReportWarning(report_start, err, userID)
		return StartResult{}, err
	}

	job := model.SyncJob{
		ID:     uuid.NewString(),
		UserID: userID,
		Portal: portal,
		Forced: forced,
		State:  model.JobPending,
	}
	jobCtx, cancel := context.WithCancel(o.ctx)
	if !o.status.TryStart(job, cancel) {
		cancel()
		return StartResult{Status: StatusAlreadyRunning}, nil
	}

	startedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("portal", string(portal))))
	o.wg.Add(1)
	go o.run(jobCtx, cancel, job, creds.LoginID, secret)

	return StartResult{Status: StatusStarted, JobID: job.ID}, nil
}

func (o Orchestrator) run(ctx context.Context, cancel context.CancelFunc, job model.SyncJob, loginID, secret string) {
	defer o.wg.Done()
	defer cancel()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			o.tel.ReportBroken(report_panic, err, string(debug.Stack()))
		}

		state := model.JobSucceeded
		if err != nil {
			state = model.JobFailed
			o.tel.ReportWarning(report_job, err, job.UserID, job.Portal, job.ID)
		}
		o.status.Finish(job.UserID, job.Portal, job.ID, state, err)
		finishedCounter.Add(
			context.Background(), 1,
			metric.WithAttributes(
				attribute.String("portal", string(job.Portal)),
				attribute.String("state", string(state)),
			),
		)
	}()

	err = o.execute(ctx, job, loginID, secret)
}

func (o Orchestrator) execute(ctx context.Context, job model.SyncJob, loginID, secret string) error {
	ctx, span := tracer.Start(ctx, "Job")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("portal", string(job.Portal)),
	)

	switch job.Portal {
	case model.PortalLMS:
		docs, err := o.lms.Scrape(ctx, job.UserID, loginID, secret)
		if err != nil {
			return err
		}
		err = o.checkCancelled(job)
		if err != nil {
			return err
		}
		err = o.store.ReplaceLMS(ctx, job.UserID, docs)
		if err != nil {
			o.tel.ReportBroken(report_persist, err, job.UserID, job.Portal)
		}
		return err

	case model.PortalRecords:
		result, err := o.records.Scrape(ctx, loginID, secret)
		if err != nil {
			return err
		}
		result, err = o.validator.Records(result)
		if err != nil {
			return err
		}
		err = o.checkCancelled(job)
		if err != nil {
			return err
		}
		err = o.store.ReplaceRecords(ctx, job.UserID, result)
		if err != nil {
			o.tel.ReportBroken(report_persist, err, job.UserID, job.Portal)
		}
		return err
	}

	return fmt.Errorf("unknown portal '%s'", job.Portal)
}

// checkCancelled is the last check before anything is written, a job that
// was cancelled after its crawl finished must not replace stored data.
func (o Orchestrator) checkCancelled(job model.SyncJob) error {
	if o.status.Cancelled(job.UserID, job.Portal) {
		return model.ErrCancelled
	}
	return nil
}

// GetStatus returns the state of the latest job for the user and portal
// together with what is stored.
func (o Orchestrator) GetStatus(ctx context.Context, userID string, portal model.Portal) (Status, error) {
	hasData, err := o.store.HasData(ctx, userID, portal)
	if err != nil {
		return Status{}, err
	}
	lastSync, err := o.store.LastSync(ctx, userID, portal)
	if err != nil {
		return Status{}, err
	}

	status := Status{
		HasData:    hasData,
		LastSyncAt: lastSync,
		State:      model.JobIdle,
	}
	if e, ok := o.status.Get(userID, portal); ok {
		status.Running = e.Job.State == model.JobRunning
		status.State = e.Job.State
		status.Error = e.Error
		status.JobID = e.Job.ID
	}
	return status, nil
}

// Cancel asks the running job for the user and portal to stop, it reports
// whether there was one.
func (o Orchestrator) Cancel(userID string, portal model.Portal) bool {
	cancelled := o.status.Cancel(userID, portal)
	if cancelled {
		o.tel.ReportDebug("job cancelled", userID, portal)
	}
	return cancelled
}

// Shutdown cancels every running job and waits for them to finish.
func (o Orchestrator) Shutdown() {
	o.status.CancelAll()
	o.Wait()
}

// Wait blocks until every started job has finished.
func (o Orchestrator) Wait() {
	o.wg.Wait()
}
