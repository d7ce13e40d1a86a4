package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaintenanceType classifies why a job exists.
type MaintenanceType string

const (
	TypeCorrective MaintenanceType = "corrective"
	TypeEmergency  MaintenanceType = "emergency"
	TypePreventive MaintenanceType = "preventive"
	TypeInspection MaintenanceType = "inspection"
)

// ParseMaintenanceType parses a maintenance type string, rejecting unknown values.
func ParseMaintenanceType(s string) (MaintenanceType, error) {
	switch MaintenanceType(s) {
	case TypeCorrective, TypeEmergency, TypePreventive, TypeInspection:
		return MaintenanceType(s), nil
	default:
		return "", fmt.Errorf("unknown maintenance type %q", s)
	}
}

// JobStatus is the lifecycle state of a maintenance job.
type JobStatus string

const (
	JobScheduled  JobStatus = "scheduled"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// ParseJobStatus parses a job status string, rejecting unknown values.
func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobScheduled, JobInProgress, JobCompleted, JobCancelled:
		return JobStatus(s), nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// IsTerminal reports whether no further status changes are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobCancelled
}

// jobTransitions is the set of valid edges. Cancellation is handled by
// Cancel, which allows it from any non-terminal state.
var jobTransitions = map[JobStatus][]JobStatus{
	JobScheduled:  {JobInProgress, JobCancelled},
	JobInProgress: {JobCompleted, JobCancelled},
	JobCompleted:  {},
	JobCancelled:  {},
}

// MaintenanceJob is a scheduled unit of maintenance work on a machine,
// created automatically from a report or manually by a planner.
type MaintenanceJob struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MachineID       string             `bson:"machine_id" json:"machine_id"`
	RegionID        string             `bson:"region_id,omitempty" json:"region_id,omitempty"` // denormalized from the machine for workload queries
	ProjectID       string             `bson:"project_id,omitempty" json:"project_id,omitempty"`
	ReportID        string             `bson:"report_id,omitempty" json:"report_id,omitempty"` // empty for manual jobs
	Type            MaintenanceType    `bson:"type" json:"type"`
	Status          JobStatus          `bson:"status" json:"status"`
	Reason          string             `bson:"reason" json:"reason"`
	EstimatedHours  float64            `bson:"estimated_hours" json:"estimated_hours"`
	ActualHours     float64            `bson:"actual_hours,omitempty" json:"actual_hours,omitempty"`
	Observations    string             `bson:"observations,omitempty" json:"observations,omitempty"`
	PartsReplaced   string             `bson:"parts_replaced,omitempty" json:"parts_replaced,omitempty"` // JSON array
	ScheduledDate   time.Time          `bson:"scheduled_date" json:"scheduled_date"`
	InProgressAt    *time.Time         `bson:"in_progress_at,omitempty" json:"in_progress_at,omitempty"`
	CompletedDate   *time.Time         `bson:"completed_date,omitempty" json:"completed_date,omitempty"`
	CreatedBy       string             `bson:"created_by" json:"created_by"`
	IsAutoGenerated bool               `bson:"is_auto_generated" json:"is_auto_generated"`
	IsActive        bool               `bson:"is_active" json:"is_active"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// NewMaintenanceJob creates a scheduled job.
func NewMaintenanceJob(machineID, projectID, reportID string, jobType MaintenanceType, reason string, estimatedHours float64, createdBy string, scheduledDate time.Time, autoGenerated bool) MaintenanceJob {
	now := time.Now().UTC()
	if scheduledDate.IsZero() {
		scheduledDate = now
	}
	return MaintenanceJob{
		MachineID:       machineID,
		ProjectID:       projectID,
		ReportID:        reportID,
		Type:            jobType,
		Status:          JobScheduled,
		Reason:          reason,
		EstimatedHours:  estimatedHours,
		ScheduledDate:   scheduledDate,
		CreatedBy:       createdBy,
		IsAutoGenerated: autoGenerated,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Start moves a scheduled job into progress.
func (j *MaintenanceJob) Start() error {
	if j.Status != JobScheduled {
		return errors.New("only scheduled jobs can be started")
	}
	now := time.Now().UTC()
	j.Status = JobInProgress
	j.InProgressAt = &now
	j.UpdatedAt = now
	return nil
}

// Complete finishes an in-progress job. Observations and positive actual
// hours are mandatory.
func (j *MaintenanceJob) Complete(observations string, actualHours float64, partsReplaced string) error {
	if j.Status != JobInProgress {
		return errors.New("only in-progress jobs can be completed")
	}
	if observations == "" {
		return errors.New("observations are required to complete a job")
	}
	if actualHours <= 0 {
		return errors.New("actual hours must be greater than zero")
	}
	now := time.Now().UTC()
	j.Status = JobCompleted
	j.CompletedDate = &now
	j.Observations = observations
	j.ActualHours = actualHours
	j.PartsReplaced = partsReplaced
	j.UpdatedAt = now
	return nil
}

// Cancel aborts a job that has not completed yet.
func (j *MaintenanceJob) Cancel(reason string) error {
	if j.Status == JobCompleted {
		return errors.New("completed jobs cannot be cancelled")
	}
	if j.Status == JobCancelled {
		return errors.New("job is already cancelled")
	}
	now := time.Now().UTC()
	j.Status = JobCancelled
	j.Observations = fmt.Sprintf("[CANCELLED] %s: %s", now.Format("2006-01-02 15:04"), reason)
	j.UpdatedAt = now
	return nil
}

// UpdateStatus applies a status change if it is a valid transition.
func (j *MaintenanceJob) UpdateStatus(newStatus JobStatus) error {
	allowed := false
	for _, next := range jobTransitions[j.Status] {
		if next == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("invalid job transition %s -> %s", j.Status, newStatus)
	}

	now := time.Now().UTC()
	j.Status = newStatus
	switch newStatus {
	case JobInProgress:
		if j.InProgressAt == nil {
			j.InProgressAt = &now
		}
	case JobCompleted:
		if j.CompletedDate == nil {
			j.CompletedDate = &now
		}
	}
	j.UpdatedAt = now
	return nil
}

// IsOverdue reports whether a non-terminal job slipped past its scheduled date.
func (j *MaintenanceJob) IsOverdue() bool {
	return !j.Status.IsTerminal() && j.ScheduledDate.Before(time.Now().UTC())
}

// Deactivate soft-deletes the job.
func (j *MaintenanceJob) Deactivate() {
	j.IsActive = false
	j.UpdatedAt = time.Now().UTC()
}

// Assignment binds a job to the mechanical engineer responsible for it.
// Historical assignments are kept for audit; the newest one is current.
type Assignment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID      string             `bson:"job_id" json:"job_id"`
	EngineerID string             `bson:"engineer_id" json:"engineer_id"`
	AssignedAt time.Time          `bson:"assigned_at" json:"assigned_at"`
}
