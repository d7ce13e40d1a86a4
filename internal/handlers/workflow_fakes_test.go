package handlers

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/models"
	"github.com/orebase/mine-maintenance/internal/notify"
	"github.com/orebase/mine-maintenance/internal/workflow"
)

// Minimal in-memory stores for exercising the handlers end to end. Handler
// tests are single-goroutine, so no locking.

type memReports struct {
	reports map[string]models.MaintenanceReport
}

func (s *memReports) InsertReport(ctx context.Context, report models.MaintenanceReport) (string, error) {
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	s.reports[report.ID.Hex()] = report
	return report.ID.Hex(), nil
}

func (s *memReports) FindReportByID(ctx context.Context, id string) (*models.MaintenanceReport, error) {
	report, ok := s.reports[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &report, nil
}

func (s *memReports) FindReportByTicketID(ctx context.Context, ticketID string) (*models.MaintenanceReport, error) {
	for _, report := range s.reports {
		if report.TicketID == ticketID {
			return &report, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memReports) FindReportsByOperator(ctx context.Context, operatorID string) ([]models.MaintenanceReport, error) {
	var out []models.MaintenanceReport
	for _, report := range s.reports {
		if report.OperatorID == operatorID && report.IsActive {
			out = append(out, report)
		}
	}
	return out, nil
}

func (s *memReports) FindReportsByMachine(ctx context.Context, machineID string) ([]models.MaintenanceReport, error) {
	var out []models.MaintenanceReport
	for _, report := range s.reports {
		if report.MachineID == machineID && report.IsActive {
			out = append(out, report)
		}
	}
	return out, nil
}

func (s *memReports) UpdateReport(ctx context.Context, id string, report models.MaintenanceReport) error {
	if _, ok := s.reports[id]; !ok {
		return db.ErrNotFound
	}
	s.reports[id] = report
	return nil
}

type memJobs struct {
	jobs        map[string]models.MaintenanceJob
	assignments []models.Assignment
}

func (s *memJobs) InsertJob(ctx context.Context, job models.MaintenanceJob) (string, error) {
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	s.jobs[job.ID.Hex()] = job
	return job.ID.Hex(), nil
}

func (s *memJobs) FindJobByID(ctx context.Context, id string) (*models.MaintenanceJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &job, nil
}

func (s *memJobs) FindJobByReportID(ctx context.Context, reportID string) (*models.MaintenanceJob, error) {
	for _, job := range s.jobs {
		if job.ReportID == reportID {
			return &job, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memJobs) FindJobsByEngineer(ctx context.Context, engineerID string) ([]models.MaintenanceJob, error) {
	var out []models.MaintenanceJob
	for jobID, job := range s.jobs {
		for _, a := range s.assignments {
			if a.JobID == jobID && a.EngineerID == engineerID && job.IsActive {
				out = append(out, job)
				break
			}
		}
	}
	return out, nil
}

func (s *memJobs) FindOverdueJobs(ctx context.Context, regionID string) ([]models.MaintenanceJob, error) {
	now := time.Now().UTC()
	var out []models.MaintenanceJob
	for _, job := range s.jobs {
		if job.IsActive && !job.Status.IsTerminal() && job.ScheduledDate.Before(now) {
			if regionID == "" || job.RegionID == regionID {
				out = append(out, job)
			}
		}
	}
	return out, nil
}

func (s *memJobs) UpdateJob(ctx context.Context, id string, job models.MaintenanceJob) error {
	if _, ok := s.jobs[id]; !ok {
		return db.ErrNotFound
	}
	s.jobs[id] = job
	return nil
}

func (s *memJobs) InsertAssignment(ctx context.Context, assignment models.Assignment) error {
	s.assignments = append(s.assignments, assignment)
	return nil
}

func (s *memJobs) DeleteAssignmentsByJob(ctx context.Context, jobID string) error {
	kept := s.assignments[:0]
	for _, a := range s.assignments {
		if a.JobID != jobID {
			kept = append(kept, a)
		}
	}
	s.assignments = kept
	return nil
}

func (s *memJobs) FindAssignmentsByJob(ctx context.Context, jobID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memJobs) EngineerWorkloadByRegion(ctx context.Context, regionID string) (map[string]int, error) {
	return map[string]int{}, nil
}

type memMachines struct {
	machines map[string]models.Machine
}

func (s *memMachines) FindMachineByID(ctx context.Context, id string) (*models.Machine, error) {
	machine, ok := s.machines[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &machine, nil
}

func (s *memMachines) UpdateMachineStatus(ctx context.Context, id string, status models.MachineStatus) error {
	machine, ok := s.machines[id]
	if !ok {
		return db.ErrNotFound
	}
	machine.Status = status
	s.machines[id] = machine
	return nil
}

func (s *memMachines) UpdateMaintenanceDates(ctx context.Context, id string, last, next time.Time) error {
	machine, ok := s.machines[id]
	if !ok {
		return db.ErrNotFound
	}
	machine.LastMaintenanceDate = &last
	machine.NextMaintenanceDate = &next
	s.machines[id] = machine
	return nil
}

type memUsers struct {
	users map[string]models.User
}

func (s *memUsers) InsertUser(ctx context.Context, user models.User) error {
	s.users[user.ID.Hex()] = user
	return nil
}

func (s *memUsers) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &user, nil
}

func (s *memUsers) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memUsers) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memUsers) FindUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var out []models.User
	for _, user := range s.users {
		if user.Role == role && user.IsActive {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *memUsers) UpdateUser(ctx context.Context, id string, user models.User) error {
	s.users[id] = user
	return nil
}

func (s *memUsers) UpdateLastLogin(ctx context.Context, id string) error {
	return nil
}

type memNotifications struct {
	notifications []models.Notification
}

func (s *memNotifications) InsertNotification(ctx context.Context, notification models.Notification) error {
	s.notifications = append(s.notifications, notification)
	return nil
}

func (s *memNotifications) InsertNotifications(ctx context.Context, notifications []models.Notification) error {
	s.notifications = append(s.notifications, notifications...)
	return nil
}

func (s *memNotifications) FindNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memNotifications) MarkNotificationRead(ctx context.Context, id string) error {
	for i, n := range s.notifications {
		if n.ID.Hex() == id {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return db.ErrNotFound
}

// handlerEnv wires real workflow services over the in-memory stores.
type handlerEnv struct {
	reports  *memReports
	jobs     *memJobs
	machines *memMachines
	users    *memUsers

	reportService *workflow.ReportService
	jobService    *workflow.JobService
}

func newHandlerEnv() *handlerEnv {
	env := &handlerEnv{
		reports:  &memReports{reports: make(map[string]models.MaintenanceReport)},
		jobs:     &memJobs{jobs: make(map[string]models.MaintenanceJob)},
		machines: &memMachines{machines: make(map[string]models.Machine)},
		users:    &memUsers{users: make(map[string]models.User)},
	}
	notifier := notify.NewNotifier(&memNotifications{}, nil)
	statusSync := workflow.NewStatusSyncService(env.reports, env.jobs, env.machines)
	env.jobService = workflow.NewJobService(env.jobs, env.reports, env.machines, env.users, statusSync, notifier)
	env.reportService = workflow.NewReportService(env.reports, env.machines, env.users, env.jobService, statusSync, notifier)
	return env
}

func (e *handlerEnv) addMachine() string {
	machine := models.Machine{
		ID:         primitive.NewObjectID(),
		Name:       "DR-2000",
		Status:     models.MachineAssigned,
		OperatorID: "op-1",
		RegionID:   "region-1",
	}
	e.machines.machines[machine.ID.Hex()] = machine
	return machine.ID.Hex()
}

func (e *handlerEnv) addEngineer() string {
	user := models.User{
		ID:       primitive.NewObjectID(),
		Username: "engineer",
		Role:     models.RoleMechanicalEngineer,
		IsActive: true,
	}
	e.users.users[user.ID.Hex()] = user
	return user.ID.Hex()
}
