package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/models"
)

// maintenanceInterval is the fixed gap between a completed job and the next
// scheduled maintenance, independent of machine type.
const maintenanceIntervalMonths = 6

// StatusSyncService keeps Report, Job and Machine status mutually consistent.
// It is stateless and idempotent: every method is a pure function of current
// store state, so it can safely be re-run after a partial failure. It never
// initiates work on its own; the orchestrators invoke it after mutations.
type StatusSyncService struct {
	reports  db.ReportCollection
	jobs     db.JobCollection
	machines db.MachineCollection
}

// NewStatusSyncService creates a status synchronizer.
func NewStatusSyncService(reports db.ReportCollection, jobs db.JobCollection, machines db.MachineCollection) *StatusSyncService {
	return &StatusSyncService{reports: reports, jobs: jobs, machines: machines}
}

// SynchronizeReportAndJob propagates a report's status to its linked job.
// The reverse direction is deliberately asymmetric: a resolved report does
// NOT auto-complete the job, because completion requires operator-entered
// observations and hours that this service does not have. That case is only
// logged.
func (s *StatusSyncService) SynchronizeReportAndJob(ctx context.Context, reportID string) error {
	report, err := s.reports.FindReportByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: report %s", ErrNotFound, reportID)
		}
		return fmt.Errorf("loading report %s: %w", reportID, err)
	}

	job, err := s.jobs.FindJobByReportID(ctx, reportID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil // nothing to synchronize
		}
		return fmt.Errorf("loading job for report %s: %w", reportID, err)
	}

	switch report.Status {
	case models.ReportInProgress:
		if job.Status != models.JobInProgress && job.Status != models.JobCompleted {
			if err := job.Start(); err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			if err := s.jobs.UpdateJob(ctx, job.ID.Hex(), *job); err != nil {
				return fmt.Errorf("updating job %s: %w", job.ID.Hex(), err)
			}
			log.WithFields(log.Fields{
				"report_id": reportID,
				"job_id":    job.ID.Hex(),
			}).Info("job started to match in-progress report")
		}
	case models.ReportResolved:
		if job.Status != models.JobCompleted {
			log.WithFields(log.Fields{
				"report_id": reportID,
				"job_id":    job.ID.Hex(),
			}).Warn("report resolved but job not completed; completion requires operator observations")
		}
	}

	return nil
}

// UpdateMachineStatus reconciles a machine's operational status with the
// state of a report on it. High and critical open faults force the machine
// into maintenance; resolution restores it once no blocking reports remain.
func (s *StatusSyncService) UpdateMachineStatus(ctx context.Context, machineID string, severity models.Severity, reportStatus models.ReportStatus) error {
	machine, err := s.machines.FindMachineByID(ctx, machineID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: machine %s", ErrNotFound, machineID)
		}
		return fmt.Errorf("loading machine %s: %w", machineID, err)
	}

	switch reportStatus {
	case models.ReportReported, models.ReportAcknowledged, models.ReportInProgress:
		if !severity.IsBlocking() {
			return nil
		}
		if machine.Status == models.MachineInMaintenance || machine.Status == models.MachineOutOfService {
			return nil
		}
		if err := s.machines.UpdateMachineStatus(ctx, machineID, models.MachineInMaintenance); err != nil {
			return fmt.Errorf("updating machine %s status: %w", machineID, err)
		}
		log.WithFields(log.Fields{
			"machine_id": machineID,
			"old_status": machine.Status,
			"severity":   severity,
		}).Info("machine moved to in_maintenance")
	case models.ReportResolved, models.ReportClosed:
		canRestore, err := s.CanRestoreMachineStatus(ctx, machineID)
		if err != nil {
			return err
		}
		if canRestore {
			return s.RestoreMachineStatus(ctx, machineID)
		}
	}

	return nil
}

// CanRestoreMachineStatus reports whether no active, unresolved high or
// critical report remains on the machine. This is the guard that prevents
// restoring a machine while other blocking faults are still open.
func (s *StatusSyncService) CanRestoreMachineStatus(ctx context.Context, machineID string) (bool, error) {
	reports, err := s.reports.FindReportsByMachine(ctx, machineID)
	if err != nil {
		return false, fmt.Errorf("loading reports for machine %s: %w", machineID, err)
	}

	for _, r := range reports {
		if r.IsActive && r.Severity.IsBlocking() && r.Status.IsOpen() {
			log.WithFields(log.Fields{
				"machine_id": machineID,
				"ticket_id":  r.TicketID,
			}).Info("machine cannot be restored, blocking report still open")
			return false, nil
		}
	}
	return true, nil
}

// RestoreMachineStatus returns a machine to assigned (when it has an
// operator) or available. A no-op when the machine already holds the target
// status, so repeated calls produce a single write.
func (s *StatusSyncService) RestoreMachineStatus(ctx context.Context, machineID string) error {
	machine, err := s.machines.FindMachineByID(ctx, machineID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: machine %s", ErrNotFound, machineID)
		}
		return fmt.Errorf("loading machine %s: %w", machineID, err)
	}

	target := machine.RestoredStatus()
	if machine.Status == target {
		return nil
	}

	if err := s.machines.UpdateMachineStatus(ctx, machineID, target); err != nil {
		return fmt.Errorf("restoring machine %s status: %w", machineID, err)
	}
	log.WithFields(log.Fields{
		"machine_id": machineID,
		"old_status": machine.Status,
		"new_status": target,
	}).Info("machine status restored")
	return nil
}

// HandleJobCompletion runs the cross-entity cleanup after a job completes:
// resolve the linked report if still open, reconcile the machine status, and
// refresh the machine's maintenance dates.
func (s *StatusSyncService) HandleJobCompletion(ctx context.Context, jobID string) error {
	job, err := s.jobs.FindJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
		}
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}

	if job.ReportID != "" {
		report, err := s.reports.FindReportByID(ctx, job.ReportID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("loading report %s: %w", job.ReportID, err)
		}
		if report != nil {
			if report.Status.IsOpen() {
				notes := job.Observations
				if notes == "" {
					notes = "Maintenance job completed"
				}
				if err := report.Resolve(notes); err != nil {
					return fmt.Errorf("%w: %v", ErrValidation, err)
				}
				if err := s.reports.UpdateReport(ctx, report.ID.Hex(), *report); err != nil {
					return fmt.Errorf("updating report %s: %w", report.ID.Hex(), err)
				}
				log.WithFields(log.Fields{
					"report_id": report.ID.Hex(),
					"job_id":    jobID,
				}).Info("report resolved after job completion")
			}

			if err := s.UpdateMachineStatus(ctx, job.MachineID, report.Severity, models.ReportResolved); err != nil {
				return err
			}
		}
	}

	now := time.Now().UTC()
	if err := s.machines.UpdateMaintenanceDates(ctx, job.MachineID, now, now.AddDate(0, maintenanceIntervalMonths, 0)); err != nil {
		return fmt.Errorf("updating maintenance dates for machine %s: %w", job.MachineID, err)
	}
	return nil
}
