package models

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Severity classifies how urgent a reported machine fault is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity parses a severity string, rejecting unknown values.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// IsBlocking reports whether this severity takes a machine out of service
// while the fault is open.
func (s Severity) IsBlocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// ProblemCategory is the kind of fault an operator reports.
type ProblemCategory string

const (
	CategoryDrillBitIssues      ProblemCategory = "drill_bit_issues"
	CategoryDrillRodProblems    ProblemCategory = "drill_rod_problems"
	CategoryEngineIssues        ProblemCategory = "engine_issues"
	CategoryHydraulicProblems   ProblemCategory = "hydraulic_problems"
	CategoryElectricalFaults    ProblemCategory = "electrical_faults"
	CategoryMechanicalBreakdown ProblemCategory = "mechanical_breakdown"
	CategoryOther               ProblemCategory = "other"
)

// ParseProblemCategory parses a problem category string, rejecting unknown values.
func ParseProblemCategory(s string) (ProblemCategory, error) {
	switch ProblemCategory(s) {
	case CategoryDrillBitIssues, CategoryDrillRodProblems, CategoryEngineIssues,
		CategoryHydraulicProblems, CategoryElectricalFaults, CategoryMechanicalBreakdown,
		CategoryOther:
		return ProblemCategory(s), nil
	default:
		return "", fmt.Errorf("unknown problem category %q", s)
	}
}

// ReportStatus is the lifecycle state of a maintenance report.
type ReportStatus string

const (
	ReportReported     ReportStatus = "reported"
	ReportAcknowledged ReportStatus = "acknowledged"
	ReportInProgress   ReportStatus = "in_progress"
	ReportResolved     ReportStatus = "resolved"
	ReportClosed       ReportStatus = "closed"
)

// ParseReportStatus parses a report status string, rejecting unknown values.
func ParseReportStatus(s string) (ReportStatus, error) {
	switch ReportStatus(s) {
	case ReportReported, ReportAcknowledged, ReportInProgress, ReportResolved, ReportClosed:
		return ReportStatus(s), nil
	default:
		return "", fmt.Errorf("unknown report status %q", s)
	}
}

// IsOpen reports whether the report still represents an unresolved fault.
func (s ReportStatus) IsOpen() bool {
	return s != ReportResolved && s != ReportClosed
}

// reportTransitions is the set of valid forward edges. Reopening a resolved
// or closed report is only possible through Reopen, never through UpdateStatus.
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportReported:     {ReportAcknowledged},
	ReportAcknowledged: {ReportInProgress},
	ReportInProgress:   {ReportResolved},
	ReportResolved:     {ReportClosed},
	ReportClosed:       {},
}

// MaintenanceReport is a machine fault report submitted by an operator.
type MaintenanceReport struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TicketID              string             `bson:"ticket_id" json:"ticket_id"`
	OperatorID            string             `bson:"operator_id" json:"operator_id"`
	MachineID             string             `bson:"machine_id" json:"machine_id"`
	MechanicalEngineerID  string             `bson:"mechanical_engineer_id,omitempty" json:"mechanical_engineer_id,omitempty"`
	AffectedPart          string             `bson:"affected_part" json:"affected_part"`
	ProblemCategory       ProblemCategory    `bson:"problem_category" json:"problem_category"`
	Description           string             `bson:"description" json:"description"`
	Symptoms              string             `bson:"symptoms,omitempty" json:"symptoms,omitempty"` // JSON array of selected symptoms
	ErrorCodes            string             `bson:"error_codes,omitempty" json:"error_codes,omitempty"`
	Severity              Severity           `bson:"severity" json:"severity"`
	Status                ReportStatus       `bson:"status" json:"status"`
	EstimatedResponseTime string             `bson:"estimated_response_time,omitempty" json:"estimated_response_time,omitempty"`
	ResolutionNotes       string             `bson:"resolution_notes,omitempty" json:"resolution_notes,omitempty"`
	ReportedAt            time.Time          `bson:"reported_at" json:"reported_at"`
	AcknowledgedAt        *time.Time         `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
	InProgressAt          *time.Time         `bson:"in_progress_at,omitempty" json:"in_progress_at,omitempty"`
	ResolvedAt            *time.Time         `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	ClosedAt              *time.Time         `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
	IsActive              bool               `bson:"is_active" json:"is_active"`
	CreatedAt             time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updated_at"`
}

// NewMaintenanceReport creates a report in the reported state with a fresh
// ticket id.
func NewMaintenanceReport(operatorID, machineID, affectedPart string, category ProblemCategory, description, symptoms, errorCodes string, severity Severity) MaintenanceReport {
	now := time.Now().UTC()
	return MaintenanceReport{
		TicketID:        GenerateTicketID(),
		OperatorID:      operatorID,
		MachineID:       machineID,
		AffectedPart:    affectedPart,
		ProblemCategory: category,
		Description:     description,
		Symptoms:        symptoms,
		ErrorCodes:      errorCodes,
		Severity:        severity,
		Status:          ReportReported,
		ReportedAt:      now,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// GenerateTicketID returns a human-readable ticket id of the form
// MR-YYYYMMDD-####.
func GenerateTicketID() string {
	return fmt.Sprintf("MR-%s-%04d", time.Now().UTC().Format("20060102"), 1000+rand.Intn(9000))
}

// Acknowledge assigns a mechanical engineer and moves the report out of the
// reported state.
func (r *MaintenanceReport) Acknowledge(engineerID, estimatedResponseTime string) error {
	if r.Status != ReportReported {
		return errors.New("only reported issues can be acknowledged")
	}
	now := time.Now().UTC()
	r.Status = ReportAcknowledged
	r.AcknowledgedAt = &now
	r.MechanicalEngineerID = engineerID
	r.EstimatedResponseTime = estimatedResponseTime
	r.UpdatedAt = now
	return nil
}

// MarkInProgress moves the report into active work.
func (r *MaintenanceReport) MarkInProgress() error {
	if r.Status != ReportReported && r.Status != ReportAcknowledged {
		return errors.New("only reported or acknowledged issues can be marked in progress")
	}
	now := time.Now().UTC()
	r.Status = ReportInProgress
	r.InProgressAt = &now
	r.UpdatedAt = now
	return nil
}

// Resolve records the engineer's resolution notes and marks the fault fixed.
func (r *MaintenanceReport) Resolve(notes string) error {
	if r.Status != ReportInProgress {
		return errors.New("only in-progress issues can be resolved")
	}
	if notes == "" {
		return errors.New("resolution notes are required")
	}
	now := time.Now().UTC()
	r.Status = ReportResolved
	r.ResolvedAt = &now
	r.ResolutionNotes = notes
	r.UpdatedAt = now
	return nil
}

// Close closes a resolved report after operator verification.
func (r *MaintenanceReport) Close() error {
	if r.Status != ReportResolved {
		return errors.New("only resolved issues can be closed")
	}
	now := time.Now().UTC()
	r.Status = ReportClosed
	r.ClosedAt = &now
	r.UpdatedAt = now
	return nil
}

// Reopen puts a resolved or closed report back in progress. A reason is
// mandatory and is appended to the resolution notes.
func (r *MaintenanceReport) Reopen(reason string) error {
	if r.Status != ReportResolved && r.Status != ReportClosed {
		return errors.New("only resolved or closed issues can be reopened")
	}
	if reason == "" {
		return errors.New("a reason is required to reopen a report")
	}
	now := time.Now().UTC()
	r.Status = ReportInProgress
	r.ResolutionNotes = fmt.Sprintf("%s\n\n[REOPENED] %s: %s", r.ResolutionNotes, now.Format("2006-01-02 15:04"), reason)
	r.UpdatedAt = now
	return nil
}

// UpdateStatus applies a status change if it is a valid forward transition.
func (r *MaintenanceReport) UpdateStatus(newStatus ReportStatus) error {
	allowed := false
	for _, next := range reportTransitions[r.Status] {
		if next == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid report transition %s -> %s", r.Status, newStatus)
	}

	now := time.Now().UTC()
	r.Status = newStatus
	switch newStatus {
	case ReportAcknowledged:
		if r.AcknowledgedAt == nil {
			r.AcknowledgedAt = &now
		}
	case ReportInProgress:
		if r.InProgressAt == nil {
			r.InProgressAt = &now
		}
	case ReportResolved:
		if r.ResolvedAt == nil {
			r.ResolvedAt = &now
		}
	case ReportClosed:
		if r.ClosedAt == nil {
			r.ClosedAt = &now
		}
	}
	r.UpdatedAt = now
	return nil
}

// Deactivate soft-deletes the report. History stays queryable, workflow
// queries ignore it.
func (r *MaintenanceReport) Deactivate() {
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
}
