package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/models"
)

// In-memory stores backing the workflow tests. They implement the db
// collection interfaces with the same not-found semantics as the Mongo
// implementations.

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[string]models.MaintenanceReport
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[string]models.MaintenanceReport)}
}

func (s *fakeReportStore) InsertReport(ctx context.Context, report models.MaintenanceReport) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	id := report.ID.Hex()
	s.reports[id] = report
	return id, nil
}

func (s *fakeReportStore) FindReportByID(ctx context.Context, id string) (*models.MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &report, nil
}

func (s *fakeReportStore) FindReportByTicketID(ctx context.Context, ticketID string) (*models.MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, report := range s.reports {
		if report.TicketID == ticketID {
			return &report, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeReportStore) FindReportsByOperator(ctx context.Context, operatorID string) ([]models.MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MaintenanceReport
	for _, report := range s.reports {
		if report.OperatorID == operatorID && report.IsActive {
			out = append(out, report)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportedAt.After(out[j].ReportedAt) })
	return out, nil
}

func (s *fakeReportStore) FindReportsByMachine(ctx context.Context, machineID string) ([]models.MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MaintenanceReport
	for _, report := range s.reports {
		if report.MachineID == machineID && report.IsActive {
			out = append(out, report)
		}
	}
	return out, nil
}

func (s *fakeReportStore) UpdateReport(ctx context.Context, id string, report models.MaintenanceReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return db.ErrNotFound
	}
	s.reports[id] = report
	return nil
}

type fakeJobStore struct {
	mu          sync.Mutex
	jobs        map[string]models.MaintenanceJob
	assignments []models.Assignment
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]models.MaintenanceJob)}
}

func (s *fakeJobStore) InsertJob(ctx context.Context, job models.MaintenanceJob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	id := job.ID.Hex()
	s.jobs[id] = job
	return id, nil
}

func (s *fakeJobStore) FindJobByID(ctx context.Context, id string) (*models.MaintenanceJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &job, nil
}

func (s *fakeJobStore) FindJobByReportID(ctx context.Context, reportID string) (*models.MaintenanceJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.ReportID == reportID {
			return &job, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeJobStore) FindJobsByEngineer(ctx context.Context, engineerID string) ([]models.MaintenanceJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MaintenanceJob
	for jobID, job := range s.jobs {
		if !job.IsActive {
			continue
		}
		if current := s.currentEngineerLocked(jobID); current == engineerID {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *fakeJobStore) FindOverdueJobs(ctx context.Context, regionID string) ([]models.MaintenanceJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var out []models.MaintenanceJob
	for _, job := range s.jobs {
		if !job.IsActive || job.Status.IsTerminal() || !job.ScheduledDate.Before(now) {
			continue
		}
		if regionID != "" && job.RegionID != regionID {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *fakeJobStore) UpdateJob(ctx context.Context, id string, job models.MaintenanceJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return db.ErrNotFound
	}
	s.jobs[id] = job
	return nil
}

func (s *fakeJobStore) InsertAssignment(ctx context.Context, assignment models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if assignment.ID.IsZero() {
		assignment.ID = primitive.NewObjectID()
	}
	s.assignments = append(s.assignments, assignment)
	return nil
}

func (s *fakeJobStore) DeleteAssignmentsByJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.assignments[:0]
	for _, a := range s.assignments {
		if a.JobID != jobID {
			kept = append(kept, a)
		}
	}
	s.assignments = kept
	return nil
}

func (s *fakeJobStore) FindAssignmentsByJob(ctx context.Context, jobID string) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.After(out[j].AssignedAt) })
	return out, nil
}

func (s *fakeJobStore) EngineerWorkloadByRegion(ctx context.Context, regionID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	workload := make(map[string]int)
	for jobID, job := range s.jobs {
		if !job.IsActive || job.RegionID != regionID {
			continue
		}
		if job.Status != models.JobScheduled && job.Status != models.JobInProgress {
			continue
		}
		if engineer := s.currentEngineerLocked(jobID); engineer != "" {
			workload[engineer]++
		}
	}
	return workload, nil
}

// currentEngineerLocked returns the newest assignment for a job. Caller holds
// the lock.
func (s *fakeJobStore) currentEngineerLocked(jobID string) string {
	var engineer string
	var newest time.Time
	for _, a := range s.assignments {
		if a.JobID == jobID && !a.AssignedAt.Before(newest) {
			engineer = a.EngineerID
			newest = a.AssignedAt
		}
	}
	return engineer
}

type fakeMachineStore struct {
	mu           sync.Mutex
	machines     map[string]models.Machine
	statusWrites int
}

func newFakeMachineStore() *fakeMachineStore {
	return &fakeMachineStore{machines: make(map[string]models.Machine)}
}

func (s *fakeMachineStore) put(machine models.Machine) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if machine.ID.IsZero() {
		machine.ID = primitive.NewObjectID()
	}
	id := machine.ID.Hex()
	s.machines[id] = machine
	return id
}

func (s *fakeMachineStore) FindMachineByID(ctx context.Context, id string) (*models.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	machine, ok := s.machines[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &machine, nil
}

func (s *fakeMachineStore) UpdateMachineStatus(ctx context.Context, id string, status models.MachineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	machine, ok := s.machines[id]
	if !ok {
		return db.ErrNotFound
	}
	machine.Status = status
	s.machines[id] = machine
	s.statusWrites++
	return nil
}

func (s *fakeMachineStore) UpdateMaintenanceDates(ctx context.Context, id string, last, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	machine, ok := s.machines[id]
	if !ok {
		return db.ErrNotFound
	}
	machine.LastMaintenanceDate = &last
	machine.NextMaintenanceDate = &next
	s.machines[id] = machine
	return nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
	order []string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) put(user models.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	id := user.ID.Hex()
	s.users[id] = user
	s.order = append(s.order, id)
	return id
}

func (s *fakeUserStore) InsertUser(ctx context.Context, user models.User) error {
	s.put(user)
	return nil
}

func (s *fakeUserStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &user, nil
}

func (s *fakeUserStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeUserStore) FindUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range s.order {
		if user := s.users[id]; user.Role == role && user.IsActive {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *fakeUserStore) UpdateUser(ctx context.Context, id string, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return db.ErrNotFound
	}
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return db.ErrNotFound
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	s.users[id] = user
	return nil
}

type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func (s *fakeNotificationStore) InsertNotification(ctx context.Context, notification models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, notification)
	return nil
}

func (s *fakeNotificationStore) InsertNotifications(ctx context.Context, notifications []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, notifications...)
	return nil
}

func (s *fakeNotificationStore) FindNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) MarkNotificationRead(ctx context.Context, id string) error {
	return nil
}
