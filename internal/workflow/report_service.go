package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/models"
	"github.com/orebase/mine-maintenance/internal/notify"
)

// SubmitReportRequest carries an operator's fault report.
type SubmitReportRequest struct {
	OperatorID      string   `json:"operator_id"`
	MachineID       string   `json:"machine_id"`
	AffectedPart    string   `json:"affected_part"`
	ProblemCategory string   `json:"problem_category"`
	Description     string   `json:"description"`
	Symptoms        []string `json:"symptoms"`
	ErrorCodes      string   `json:"error_codes"`
	Severity        string   `json:"severity"`
}

// ReportSummary aggregates an operator's reports by status.
type ReportSummary struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	InProgress   int `json:"in_progress"`
	Resolved     int `json:"resolved"`
	Closed       int `json:"closed"`
	Critical     int `json:"critical"`
	HighPriority int `json:"high_priority"`
}

// ReportService owns the maintenance report lifecycle and fans out the side
// effects of report mutations: machine status sync, job creation, and
// engineer notification. The persisted report is the source of truth; every
// side effect is best-effort and surfaces as a Warning, never as a failure
// of the primary operation.
type ReportService struct {
	reports  db.ReportCollection
	machines db.MachineCollection
	users    db.UserCollection
	jobs     *JobService
	sync     *StatusSyncService
	notifier *notify.Notifier
}

// NewReportService creates a report orchestrator.
func NewReportService(reports db.ReportCollection, machines db.MachineCollection, users db.UserCollection, jobs *JobService, statusSync *StatusSyncService, notifier *notify.Notifier) *ReportService {
	return &ReportService{
		reports:  reports,
		machines: machines,
		users:    users,
		jobs:     jobs,
		sync:     statusSync,
		notifier: notifier,
	}
}

// SubmitReport persists a new fault report and triggers the downstream
// workflow: the machine is flagged for maintenance when the fault is
// blocking, a job is created and auto-assigned, and the region's mechanical
// engineers are notified. From the operator's point of view a submission
// succeeds once the report is persisted, even when no engineer could be
// assigned or notified.
func (s *ReportService) SubmitReport(ctx context.Context, req SubmitReportRequest) (*models.MaintenanceReport, []Warning, error) {
	var warnings []Warning

	severity, err := models.ParseSeverity(req.Severity)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	category, err := models.ParseProblemCategory(req.ProblemCategory)
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

	var symptomsJSON string
	if len(req.Symptoms) > 0 {
		b, err := json.Marshal(req.Symptoms)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		symptomsJSON = string(b)
	}

	report := models.NewMaintenanceReport(
		req.OperatorID,
		req.MachineID,
		req.AffectedPart,
		category,
		req.Description,
		symptomsJSON,
		req.ErrorCodes,
		severity,
	)

	id, err := s.reports.InsertReport(ctx, report)
	if err != nil {
		return nil, nil, fmt.Errorf("creating report: %w", err)
	}
	log.WithFields(log.Fields{
		"ticket_id":   report.TicketID,
		"machine_id":  req.MachineID,
		"operator_id": req.OperatorID,
		"severity":    severity,
	}).Info("maintenance report submitted")

	if err := s.sync.UpdateMachineStatus(ctx, req.MachineID, severity, models.ReportReported); err != nil {
		warnings = warn(warnings, "machine status", err)
	}

	if _, jobWarnings, err := s.jobs.CreateJobFromReport(ctx, id); err != nil {
		warnings = warn(warnings, "create job", err)
	} else {
		warnings = append(warnings, jobWarnings...)
	}

	warnings = append(warnings, s.notifyEngineers(ctx, machine, report.TicketID, severity, id)...)

	for _, w := range warnings {
		log.WithField("ticket_id", report.TicketID).WithError(w.Err).Warnf("report submission side effect failed: %s", w.Op)
	}

	created, err := s.reports.FindReportByID(ctx, id)
	if err != nil {
		return nil, warnings, fmt.Errorf("loading report %s: %w", id, err)
	}
	return created, warnings, nil
}

// notifyEngineers fans a submission notice out to the active mechanical
// engineers of the machine's region.
func (s *ReportService) notifyEngineers(ctx context.Context, machine *models.Machine, ticketID string, severity models.Severity, reportID string) []Warning {
	if s.notifier == nil {
		return nil
	}

	engineers, err := s.users.FindUsersByRole(ctx, models.RoleMechanicalEngineer)
	if err != nil {
		return []Warning{{Op: "notify engineers", Err: err}}
	}

	var notifications []models.Notification
	for _, e := range engineers {
		if !e.IsActive || (e.RegionID != "" && machine.RegionID != "" && e.RegionID != machine.RegionID) {
			continue
		}
		notifications = append(notifications, models.Notification{
			UserID:            e.ID.Hex(),
			Type:              models.NotificationReportSubmitted,
			Title:             fmt.Sprintf("New %s fault report %s", severity, ticketID),
			Message:           fmt.Sprintf("Machine %s reported with a %s severity fault", machine.Name, severity),
			Priority:          notificationPriority(severity),
			RelatedEntityType: "MaintenanceReport",
			RelatedEntityID:   reportID,
		})
	}
	s.notifier.NotifyAll(ctx, notifications)
	return nil
}

// UpdateReportStatus applies a validated status transition, resynchronizes
// the linked job and the machine, and notifies the operator of meaningful
// progress.
func (s *ReportService) UpdateReportStatus(ctx context.Context, id, status string) (*models.MaintenanceReport, []Warning, error) {
	var warnings []Warning

	newStatus, err := models.ParseReportStatus(status)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	report, err := s.reports.FindReportByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("loading report %s: %w", id, err)
	}

	if err := report.UpdateStatus(newStatus); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.reports.UpdateReport(ctx, id, *report); err != nil {
		return nil, nil, fmt.Errorf("updating report %s: %w", id, err)
	}

	if err := s.sync.SynchronizeReportAndJob(ctx, id); err != nil {
		warnings = warn(warnings, "sync job", err)
	}
	if err := s.sync.UpdateMachineStatus(ctx, report.MachineID, report.Severity, newStatus); err != nil {
		warnings = warn(warnings, "machine status", err)
	}

	if s.notifier != nil {
		switch newStatus {
		case models.ReportAcknowledged, models.ReportInProgress, models.ReportResolved:
			s.notifier.Notify(ctx, models.Notification{
				UserID:            report.OperatorID,
				Type:              models.NotificationReportStatus,
				Title:             fmt.Sprintf("Report %s is now %s", report.TicketID, newStatus),
				Message:           fmt.Sprintf("Your maintenance report %s changed status to %s", report.TicketID, newStatus),
				Priority:          models.PriorityNormal,
				RelatedEntityType: "MaintenanceReport",
				RelatedEntityID:   id,
			})
		}
	}

	for _, w := range warnings {
		log.WithField("report_id", id).WithError(w.Err).Warnf("status update side effect failed: %s", w.Op)
	}
	return report, warnings, nil
}

// CloseReport closes a resolved report. Only the operator who submitted the
// report may close it.
func (s *ReportService) CloseReport(ctx context.Context, id, operatorID string) (*models.MaintenanceReport, []Warning, error) {
	var warnings []Warning

	report, err := s.reports.FindReportByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
		}
		return nil, nil, fmt.Errorf("loading report %s: %w", id, err)
	}

	if report.OperatorID != operatorID {
		return nil, nil, fmt.Errorf("%w: only the original operator can close this report", ErrUnauthorized)
	}

	if err := report.Close(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.reports.UpdateReport(ctx, id, *report); err != nil {
		return nil, nil, fmt.Errorf("updating report %s: %w", id, err)
	}

	if err := s.sync.UpdateMachineStatus(ctx, report.MachineID, report.Severity, models.ReportClosed); err != nil {
		warnings = warn(warnings, "machine status", err)
		log.WithField("report_id", id).WithError(err).Warn("close side effect failed")
	}
	return report, warnings, nil
}

// ReopenReport puts a resolved or closed report back in progress. The
// machine and job catch up through the synchronizer on the next mutation.
func (s *ReportService) ReopenReport(ctx context.Context, id, reason string) (*models.MaintenanceReport, error) {
	report, err := s.reports.FindReportByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading report %s: %w", id, err)
	}

	if err := report.Reopen(reason); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.reports.UpdateReport(ctx, id, *report); err != nil {
		return nil, fmt.Errorf("updating report %s: %w", id, err)
	}

	log.WithFields(log.Fields{
		"report_id": id,
		"ticket_id": report.TicketID,
	}).Info("report reopened")
	return report, nil
}

// GetReport returns a report by id.
func (s *ReportService) GetReport(ctx context.Context, id string) (*models.MaintenanceReport, error) {
	report, err := s.reports.FindReportByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading report %s: %w", id, err)
	}
	return report, nil
}

// GetReportByTicket returns a report by its human-readable ticket id.
func (s *ReportService) GetReportByTicket(ctx context.Context, ticketID string) (*models.MaintenanceReport, error) {
	report, err := s.reports.FindReportByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
		}
		return nil, fmt.Errorf("loading ticket %s: %w", ticketID, err)
	}
	return report, nil
}

// OperatorReports lists an operator's active reports.
func (s *ReportService) OperatorReports(ctx context.Context, operatorID string) ([]models.MaintenanceReport, error) {
	reports, err := s.reports.FindReportsByOperator(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("loading reports for operator %s: %w", operatorID, err)
	}
	return reports, nil
}

// OperatorSummary aggregates an operator's reports by status and severity.
func (s *ReportService) OperatorSummary(ctx context.Context, operatorID string) (*ReportSummary, error) {
	reports, err := s.reports.FindReportsByOperator(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("loading reports for operator %s: %w", operatorID, err)
	}

	summary := &ReportSummary{Total: len(reports)}
	for _, r := range reports {
		switch r.Status {
		case models.ReportReported, models.ReportAcknowledged:
			summary.Pending++
		case models.ReportInProgress:
			summary.InProgress++
		case models.ReportResolved:
			summary.Resolved++
		case models.ReportClosed:
			summary.Closed++
		}
		if r.Status != models.ReportClosed {
			switch r.Severity {
			case models.SeverityCritical:
				summary.Critical++
			case models.SeverityHigh:
				summary.HighPriority++
			}
		}
	}
	return summary, nil
}
