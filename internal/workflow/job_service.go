package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/models"
	"github.com/orebase/mine-maintenance/internal/notify"
)

// baseHoursByCategory is the estimated base effort per problem category.
var baseHoursByCategory = map[models.ProblemCategory]float64{
	models.CategoryDrillBitIssues:      2,
	models.CategoryDrillRodProblems:    3,
	models.CategoryEngineIssues:        8,
	models.CategoryHydraulicProblems:   6,
	models.CategoryElectricalFaults:    5,
	models.CategoryMechanicalBreakdown: 10,
}

// severityMultiplier scales the base effort by fault urgency.
var severityMultiplier = map[models.Severity]float64{
	models.SeverityCritical: 1.5,
	models.SeverityHigh:     1.2,
	models.SeverityMedium:   1.0,
	models.SeverityLow:      0.8,
}

// EstimateHours computes the estimated effort for a job derived from a
// report. Pure function of the two lookup tables; unknown values fall back
// to 4 hours and a neutral multiplier.
func EstimateHours(category models.ProblemCategory, severity models.Severity) float64 {
	base, ok := baseHoursByCategory[category]
	if !ok {
		base = 4
	}
	mult, ok := severityMultiplier[severity]
	if !ok {
		mult = 1.0
	}
	return base * mult
}

// ResponseTimeForSeverity is the fixed estimated-response-time table used
// when a report is acknowledged.
func ResponseTimeForSeverity(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "Within 2 hours"
	case models.SeverityHigh:
		return "Within 4 hours"
	case models.SeverityMedium:
		return "Within 24 hours"
	case models.SeverityLow:
		return "Within 72 hours"
	default:
		return "TBD"
	}
}

// CreateManualJobRequest carries the caller-supplied fields for a manually
// planned job. Unlike report-derived jobs, type and hours are not derived.
type CreateManualJobRequest struct {
	MachineID          string    `json:"machine_id"`
	ProjectID          string    `json:"project_id"`
	Type               string    `json:"type"`
	Reason             string    `json:"reason"`
	EstimatedHours     float64   `json:"estimated_hours"`
	ScheduledDate      time.Time `json:"scheduled_date"`
	AssignedEngineerID string    `json:"assigned_engineer_id"`
}

// CompleteJobRequest carries the operator-entered completion data.
type CompleteJobRequest struct {
	Observations  string   `json:"observations"`
	ActualHours   float64  `json:"actual_hours"`
	PartsReplaced []string `json:"parts_replaced"`
}

// JobService owns the maintenance job lifecycle and runs the
// workload-balancing assignment scheduler.
type JobService struct {
	jobs     db.JobCollection
	reports  db.ReportCollection
	machines db.MachineCollection
	users    db.UserCollection
	sync     *StatusSyncService
	notifier *notify.Notifier

	// Assignment is read-score-write over a shared workload snapshot, so it
	// is serialized per region to keep two concurrent requests from both
	// picking the same least-loaded engineer.
	mu          sync.Mutex
	regionLocks map[string]*sync.Mutex
}

// NewJobService creates a job orchestrator.
func NewJobService(jobs db.JobCollection, reports db.ReportCollection, machines db.MachineCollection, users db.UserCollection, statusSync *StatusSyncService, notifier *notify.Notifier) *JobService {
	return &JobService{
		jobs:        jobs,
		reports:     reports,
		machines:    machines,
		users:       users,
		sync:        statusSync,
		notifier:    notifier,
		regionLocks: make(map[string]*sync.Mutex),
	}
}

func (s *JobService) regionLock(regionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.regionLocks[regionID]
	if !ok {
		lock = &sync.Mutex{}
		s.regionLocks[regionID] = lock
	}
	return lock
}

// CreateJobFromReport derives a job from a submitted report: emergency for
// high or critical severity, corrective otherwise, with effort estimated
// from the category and severity tables. When the machine belongs to a
// region the job is auto-assigned and the report acknowledged with the
// selected engineer. Assignment failures are warnings; the job itself must
// still be created.
func (s *JobService) CreateJobFromReport(ctx context.Context, reportID string) (*models.MaintenanceJob, []Warning, error) {
	var warnings []Warning

	report, err := s.reports.FindReportByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: report %s", ErrNotFound, reportID)
		}
		return nil, nil, fmt.Errorf("loading report %s: %w", reportID, err)
	}

	machine, err := s.machines.FindMachineByID(ctx, report.MachineID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: machine %s", ErrNotFound, report.MachineID)
		}
		return nil, nil, fmt.Errorf("loading machine %s: %w", report.MachineID, err)
	}

	jobType := models.TypeCorrective
	if report.Severity.IsBlocking() {
		jobType = models.TypeEmergency
	}

	job := models.NewMaintenanceJob(
		report.MachineID,
		machine.ProjectID,
		reportID,
		jobType,
		fmt.Sprintf("%s: %s", report.ProblemCategory, report.Description),
		EstimateHours(report.ProblemCategory, report.Severity),
		report.OperatorID,
		time.Time{},
		true,
	)
	job.RegionID = machine.RegionID

	jobID, err := s.jobs.InsertJob(ctx, job)
	if err != nil {
		return nil, nil, fmt.Errorf("creating job from report %s: %w", reportID, err)
	}
	log.WithFields(log.Fields{
		"job_id":    jobID,
		"report_id": reportID,
		"type":      jobType,
	}).Info("maintenance job created from report")

	if machine.RegionID != "" {
		engineerID, err := s.AutoAssign(ctx, jobID, machine.RegionID, report.Severity)
		if err != nil {
			warnings = warn(warnings, "auto-assign", err)
		} else {
			if err := report.Acknowledge(engineerID, ResponseTimeForSeverity(report.Severity)); err != nil {
				warnings = warn(warnings, "acknowledge report", err)
			} else if err := s.reports.UpdateReport(ctx, reportID, *report); err != nil {
				warnings = warn(warnings, "acknowledge report", err)
			}

			if s.notifier != nil {
				s.notifier.Notify(ctx, models.Notification{
					UserID:            engineerID,
					Type:              models.NotificationJobAssigned,
					Title:             "New maintenance job assigned",
					Message:           fmt.Sprintf("Job for machine %s: %s", machine.Name, job.Reason),
					Priority:          notificationPriority(report.Severity),
					RelatedEntityType: "MaintenanceJob",
					RelatedEntityID:   jobID,
				})
			}
		}
	}

	created, err := s.jobs.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, warnings, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	return created, warnings, nil
}

// AutoAssign selects the active mechanical engineer with the fewest
// scheduled or in-progress jobs in the region and records the assignment.
// Ties go to the first engineer in directory order. The whole
// read-score-write sequence holds the region lock.
func (s *JobService) AutoAssign(ctx context.Context, jobID, regionID string, severity models.Severity) (string, error) {
	lock := s.regionLock(regionID)
	lock.Lock()
	defer lock.Unlock()

	engineers, err := s.users.FindUsersByRole(ctx, models.RoleMechanicalEngineer)
	if err != nil {
		return "", fmt.Errorf("loading engineers: %w", err)
	}

	eligible := make([]models.User, 0, len(engineers))
	for _, e := range engineers {
		if e.IsActive && (e.RegionID == "" || e.RegionID == regionID) {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		log.WithField("region_id", regionID).Warn("no mechanical engineers available for auto-assignment")
		return "", fmt.Errorf("%w: no mechanical engineers in region %s", ErrNotFound, regionID)
	}

	workload, err := s.jobs.EngineerWorkloadByRegion(ctx, regionID)
	if err != nil {
		return "", fmt.Errorf("loading workload for region %s: %w", regionID, err)
	}

	// Score is the current count of active jobs. Severity is available here
	// for weighting but does not influence the score.
	selected := eligible[0]
	best := workload[selected.ID.Hex()]
	for _, e := range eligible[1:] {
		if score := workload[e.ID.Hex()]; score < best {
			selected = e
			best = score
		}
	}

	assignment := models.Assignment{
		JobID:      jobID,
		EngineerID: selected.ID.Hex(),
		AssignedAt: time.Now().UTC(),
	}
	if err := s.jobs.InsertAssignment(ctx, assignment); err != nil {
		return "", fmt.Errorf("recording assignment for job %s: %w", jobID, err)
	}

	log.WithFields(log.Fields{
		"job_id":      jobID,
		"engineer_id": selected.ID.Hex(),
		"workload":    best,
		"region_id":   regionID,
	}).Info("job auto-assigned")
	return selected.ID.Hex(), nil
}

// CreateManualJob creates a job with caller-supplied type and hours,
// optionally assigning a specific engineer immediately.
func (s *JobService) CreateManualJob(ctx context.Context, req CreateManualJobRequest, createdBy string) (*models.MaintenanceJob, []Warning, error) {
	var warnings []Warning

	jobType, err := models.ParseMaintenanceType(req.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	machine, err := s.machines.FindMachineByID(ctx, req.MachineID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: machine %s", ErrNotFound, req.MachineID)
		}
		return nil, nil, fmt.Errorf("loading machine %s: %w", req.MachineID, err)
	}

	job := models.NewMaintenanceJob(
		req.MachineID,
		req.ProjectID,
		"",
		jobType,
		req.Reason,
		req.EstimatedHours,
		createdBy,
		req.ScheduledDate,
		false,
	)
	job.RegionID = machine.RegionID

	jobID, err := s.jobs.InsertJob(ctx, job)
	if err != nil {
		return nil, nil, fmt.Errorf("creating manual job: %w", err)
	}

	if req.AssignedEngineerID != "" {
		assignment := models.Assignment{
			JobID:      jobID,
			EngineerID: req.AssignedEngineerID,
			AssignedAt: time.Now().UTC(),
		}
		if err := s.jobs.InsertAssignment(ctx, assignment); err != nil {
			warnings = warn(warnings, "assign engineer", err)
		}
	}

	created, err := s.jobs.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, warnings, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	return created, warnings, nil
}

// UpdateJobStatus moves a job to a new status. A transition to in_progress
// starts a scheduled job, is a no-op when the job is already in progress,
// and otherwise goes through the validated generic path. When the job came
// from a report, an in_progress job pulls the report along.
func (s *JobService) UpdateJobStatus(ctx context.Context, id, status string) (*models.MaintenanceJob, []Warning, error) {
	var warnings []Warning

	newStatus, err := models.ParseJobStatus(status)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	job, err := s.jobs.FindJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("loading job %s: %w", id, err)
	}

	changed := true
	if newStatus == models.JobInProgress {
		switch job.Status {
		case models.JobScheduled:
			if err := job.Start(); err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
		case models.JobInProgress:
			changed = false // already in progress
		default:
			if err := job.UpdateStatus(newStatus); err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
	} else {
		if err := job.UpdateStatus(newStatus); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	if changed {
		if err := s.jobs.UpdateJob(ctx, id, *job); err != nil {
			return nil, nil, fmt.Errorf("updating job %s: %w", id, err)
		}
	}

	if job.ReportID != "" && newStatus == models.JobInProgress {
		report, err := s.reports.FindReportByID(ctx, job.ReportID)
		if err != nil {
			warnings = warn(warnings, "sync report", err)
		} else if report.Status != models.ReportInProgress {
			if err := report.MarkInProgress(); err != nil {
				warnings = warn(warnings, "sync report", err)
			} else if err := s.reports.UpdateReport(ctx, report.ID.Hex(), *report); err != nil {
				warnings = warn(warnings, "sync report", err)
			}
		}
	}

	return job, warnings, nil
}

// CompleteJob finishes a job with the operator-entered observations and
// hours, resolves the linked report, and hands cross-entity cleanup to the
// status synchronizer.
func (s *JobService) CompleteJob(ctx context.Context, id string, req CompleteJobRequest) (*models.MaintenanceJob, []Warning, error) {
	var warnings []Warning

	job, err := s.jobs.FindJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("loading job %s: %w", id, err)
	}

	var partsJSON string
	if len(req.PartsReplaced) > 0 {
		b, err := json.Marshal(req.PartsReplaced)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		partsJSON = string(b)
	}

	if err := job.Complete(req.Observations, req.ActualHours, partsJSON); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.jobs.UpdateJob(ctx, id, *job); err != nil {
		return nil, nil, fmt.Errorf("updating job %s: %w", id, err)
	}
	log.WithFields(log.Fields{
		"job_id":       id,
		"actual_hours": req.ActualHours,
	}).Info("maintenance job completed")

	if job.ReportID != "" {
		report, err := s.reports.FindReportByID(ctx, job.ReportID)
		if err != nil {
			warnings = warn(warnings, "resolve report", err)
		} else if report.Status.IsOpen() {
			if err := report.Resolve(req.Observations); err != nil {
				warnings = warn(warnings, "resolve report", err)
			} else if err := s.reports.UpdateReport(ctx, report.ID.Hex(), *report); err != nil {
				warnings = warn(warnings, "resolve report", err)
			}
		}
	}

	if err := s.sync.HandleJobCompletion(ctx, id); err != nil {
		warnings = warn(warnings, "handle completion", err)
	}

	return job, warnings, nil
}

// CancelJob aborts a non-terminal job with a reason.
func (s *JobService) CancelJob(ctx context.Context, id, reason string) (*models.MaintenanceJob, error) {
	job, err := s.jobs.FindJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}

	if err := job.Cancel(reason); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	job.Deactivate()
	if err := s.jobs.UpdateJob(ctx, id, *job); err != nil {
		return nil, fmt.Errorf("updating job %s: %w", id, err)
	}
	return job, nil
}

// BulkUpdateStatus applies a status change to several jobs. Jobs whose
// current state forbids the transition are skipped and reported as warnings.
func (s *JobService) BulkUpdateStatus(ctx context.Context, jobIDs []string, status string) ([]Warning, error) {
	newStatus, err := models.ParseJobStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var warnings []Warning
	for _, id := range jobIDs {
		job, err := s.jobs.FindJobByID(ctx, id)
		if err != nil {
			warnings = warn(warnings, "job "+id, err)
			continue
		}
		if err := job.UpdateStatus(newStatus); err != nil {
			warnings = warn(warnings, "job "+id, err)
			continue
		}
		if err := s.jobs.UpdateJob(ctx, id, *job); err != nil {
			warnings = warn(warnings, "job "+id, err)
		}
	}
	return warnings, nil
}

// BulkAssignEngineer reassigns several jobs to one engineer. Existing
// assignments are replaced, not appended.
func (s *JobService) BulkAssignEngineer(ctx context.Context, jobIDs []string, engineerID string) ([]Warning, error) {
	if _, err := s.users.FindUserByID(ctx, engineerID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: engineer %s", ErrNotFound, engineerID)
		}
		return nil, fmt.Errorf("loading engineer %s: %w", engineerID, err)
	}

	var warnings []Warning
	for _, id := range jobIDs {
		if _, err := s.jobs.FindJobByID(ctx, id); err != nil {
			warnings = warn(warnings, "job "+id, err)
			continue
		}
		if err := s.jobs.DeleteAssignmentsByJob(ctx, id); err != nil {
			warnings = warn(warnings, "job "+id, err)
			continue
		}
		assignment := models.Assignment{
			JobID:      id,
			EngineerID: engineerID,
			AssignedAt: time.Now().UTC(),
		}
		if err := s.jobs.InsertAssignment(ctx, assignment); err != nil {
			warnings = warn(warnings, "job "+id, err)
		}
	}
	return warnings, nil
}

// GetJob returns a job by id.
func (s *JobService) GetJob(ctx context.Context, id string) (*models.MaintenanceJob, error) {
	job, err := s.jobs.FindJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return job, nil
}

// EngineerJobs lists the active jobs assigned to an engineer.
func (s *JobService) EngineerJobs(ctx context.Context, engineerID string) ([]models.MaintenanceJob, error) {
	jobs, err := s.jobs.FindJobsByEngineer(ctx, engineerID)
	if err != nil {
		return nil, fmt.Errorf("loading jobs for engineer %s: %w", engineerID, err)
	}
	return jobs, nil
}

// OverdueJobs lists active non-terminal jobs past their scheduled date,
// optionally for one region.
func (s *JobService) OverdueJobs(ctx context.Context, regionID string) ([]models.MaintenanceJob, error) {
	jobs, err := s.jobs.FindOverdueJobs(ctx, regionID)
	if err != nil {
		return nil, fmt.Errorf("loading overdue jobs: %w", err)
	}
	return jobs, nil
}

func notificationPriority(severity models.Severity) models.NotificationPriority {
	switch severity {
	case models.SeverityCritical:
		return models.PriorityUrgent
	case models.SeverityHigh:
		return models.PriorityHigh
	default:
		return models.PriorityNormal
	}
}
