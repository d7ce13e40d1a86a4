package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orebase/mine-maintenance/internal/models"
)

func TestSynchronizeReportAndJob_StartsJob(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	report := models.NewMaintenanceReport("op-1", "m-1", "pump", models.CategoryHydraulicProblems, "leak", "", "", models.SeverityHigh)
	require.NoError(t, report.MarkInProgress())
	reportID, _ := env.reports.InsertReport(ctx, report)

	job := models.NewMaintenanceJob("m-1", "", reportID, models.TypeEmergency, "r", 6, "op-1", time.Time{}, true)
	jobID, _ := env.jobs.InsertJob(ctx, job)

	require.NoError(t, env.sync.SynchronizeReportAndJob(ctx, reportID))

	updated, _ := env.jobs.FindJobByID(ctx, jobID)
	assert.Equal(t, models.JobInProgress, updated.Status)
}

func TestSynchronizeReportAndJob_Idempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	report := models.NewMaintenanceReport("op-1", "m-1", "pump", models.CategoryHydraulicProblems, "leak", "", "", models.SeverityHigh)
	require.NoError(t, report.MarkInProgress())
	reportID, _ := env.reports.InsertReport(ctx, report)

	job := models.NewMaintenanceJob("m-1", "", reportID, models.TypeEmergency, "r", 6, "op-1", time.Time{}, true)
	jobID, _ := env.jobs.InsertJob(ctx, job)

	require.NoError(t, env.sync.SynchronizeReportAndJob(ctx, reportID))
	first, _ := env.jobs.FindJobByID(ctx, jobID)

	// Re-running after a partial failure must not change anything
	require.NoError(t, env.sync.SynchronizeReportAndJob(ctx, reportID))
	second, _ := env.jobs.FindJobByID(ctx, jobID)
	assert.Equal(t, first.InProgressAt, second.InProgressAt)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestSynchronizeReportAndJob_ResolvedDoesNotCompleteJob(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	report := models.NewMaintenanceReport("op-1", "m-1", "pump", models.CategoryHydraulicProblems, "leak", "", "", models.SeverityHigh)
	require.NoError(t, report.MarkInProgress())
	require.NoError(t, report.Resolve("fixed"))
	reportID, _ := env.reports.InsertReport(ctx, report)

	job := models.NewMaintenanceJob("m-1", "", reportID, models.TypeEmergency, "r", 6, "op-1", time.Time{}, true)
	require.NoError(t, job.Start())
	jobID, _ := env.jobs.InsertJob(ctx, job)

	require.NoError(t, env.sync.SynchronizeReportAndJob(ctx, reportID))

	// Completion needs operator observations and hours, so the job stays put
	updated, _ := env.jobs.FindJobByID(ctx, jobID)
	assert.Equal(t, models.JobInProgress, updated.Status)
}

func TestSynchronizeReportAndJob_NoJobIsFine(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	report := models.NewMaintenanceReport("op-1", "m-1", "pump", models.CategoryHydraulicProblems, "leak", "", "", models.SeverityHigh)
	reportID, _ := env.reports.InsertReport(ctx, report)

	assert.NoError(t, env.sync.SynchronizeReportAndJob(ctx, reportID))
}

func TestUpdateMachineStatus_BlockingFaultForcesMaintenance(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineAssigned, "op-1", "")

	require.NoError(t, env.sync.UpdateMachineStatus(ctx, machineID, models.SeverityCritical, models.ReportReported))

	machine, _ := env.machines.FindMachineByID(ctx, machineID)
	assert.Equal(t, models.MachineInMaintenance, machine.Status)
}

func TestUpdateMachineStatus_MinorFaultLeavesMachineAlone(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineAssigned, "op-1", "")

	require.NoError(t, env.sync.UpdateMachineStatus(ctx, machineID, models.SeverityMedium, models.ReportReported))

	machine, _ := env.machines.FindMachineByID(ctx, machineID)
	assert.Equal(t, models.MachineAssigned, machine.Status)
	assert.Zero(t, env.machines.statusWrites)
}

func TestUpdateMachineStatus_OutOfServiceNotTouched(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineOutOfService, "", "")

	require.NoError(t, env.sync.UpdateMachineStatus(ctx, machineID, models.SeverityCritical, models.ReportReported))

	machine, _ := env.machines.FindMachineByID(ctx, machineID)
	assert.Equal(t, models.MachineOutOfService, machine.Status)
	assert.Zero(t, env.machines.statusWrites)
}

func TestCanRestoreMachineStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineInMaintenance, "op-1", "")

	blocking := models.NewMaintenanceReport("op-1", machineID, "engine", models.CategoryEngineIssues, "smoke", "", "", models.SeverityCritical)
	blockingID, _ := env.reports.InsertReport(ctx, blocking)

	minor := models.NewMaintenanceReport("op-1", machineID, "bit", models.CategoryDrillBitIssues, "dull", "", "", models.SeverityLow)
	env.reports.InsertReport(ctx, minor)

	ok, err := env.sync.CanRestoreMachineStatus(ctx, machineID)
	require.NoError(t, err)
	assert.False(t, ok, "open blocking report holds the machine")

	// Resolve the blocking report; the open low-severity one does not block
	stored, _ := env.reports.FindReportByID(ctx, blockingID)
	require.NoError(t, stored.MarkInProgress())
	require.NoError(t, stored.Resolve("fixed"))
	require.NoError(t, env.reports.UpdateReport(ctx, blockingID, *stored))

	ok, err = env.sync.CanRestoreMachineStatus(ctx, machineID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanRestoreMachineStatus_IgnoresInactiveReports(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineInMaintenance, "", "")

	blocking := models.NewMaintenanceReport("op-1", machineID, "engine", models.CategoryEngineIssues, "smoke", "", "", models.SeverityCritical)
	blocking.Deactivate()
	env.reports.InsertReport(ctx, blocking)

	ok, err := env.sync.CanRestoreMachineStatus(ctx, machineID)
	require.NoError(t, err)
	assert.True(t, ok, "soft-deleted reports do not block restoration")
}

func TestRestoreMachineStatus_Idempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineInMaintenance, "op-1", "")

	require.NoError(t, env.sync.RestoreMachineStatus(ctx, machineID))
	machine, _ := env.machines.FindMachineByID(ctx, machineID)
	assert.Equal(t, models.MachineAssigned, machine.Status)
	assert.Equal(t, 1, env.machines.statusWrites)

	// Second restore is a no-op, not a second write
	require.NoError(t, env.sync.RestoreMachineStatus(ctx, machineID))
	assert.Equal(t, 1, env.machines.statusWrites)
}

func TestRestoreMachineStatus_AvailableWithoutOperator(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineInMaintenance, "", "")

	require.NoError(t, env.sync.RestoreMachineStatus(ctx, machineID))
	machine, _ := env.machines.FindMachineByID(ctx, machineID)
	assert.Equal(t, models.MachineAvailable, machine.Status)
}

func TestHandleJobCompletion_ManualJobStillRefreshesDates(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineAssigned, "op-1", "")

	job := models.NewMaintenanceJob(machineID, "", "", models.TypePreventive, "6 month service", 4, "planner", time.Time{}, false)
	require.NoError(t, job.Start())
	require.NoError(t, job.Complete("serviced", 4, ""))
	jobID, _ := env.jobs.InsertJob(ctx, job)

	require.NoError(t, env.sync.HandleJobCompletion(ctx, jobID))

	machine, _ := env.machines.FindMachineByID(ctx, machineID)
	require.NotNil(t, machine.LastMaintenanceDate)
	require.NotNil(t, machine.NextMaintenanceDate)
	assert.WithinDuration(t, machine.LastMaintenanceDate.AddDate(0, 6, 0), *machine.NextMaintenanceDate, time.Second)
}

func TestHandleJobCompletion_ResolvesOpenReport(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	machineID := env.addMachine(models.MachineInMaintenance, "", "")

	report := models.NewMaintenanceReport("op-1", machineID, "engine", models.CategoryEngineIssues, "smoke", "", "", models.SeverityHigh)
	require.NoError(t, report.MarkInProgress())
	reportID, _ := env.reports.InsertReport(ctx, report)

	job := models.NewMaintenanceJob(machineID, "", reportID, models.TypeEmergency, "r", 9, "op-1", time.Time{}, true)
	require.NoError(t, job.Start())
	require.NoError(t, job.Complete("rebuilt the engine", 12, ""))
	jobID, _ := env.jobs.InsertJob(ctx, job)

	require.NoError(t, env.sync.HandleJobCompletion(ctx, jobID))

	updated, _ := env.reports.FindReportByID(ctx, reportID)
	assert.Equal(t, models.ReportResolved, updated.Status)
	assert.Equal(t, "rebuilt the engine", updated.ResolutionNotes)

	machine, _ := env.machines.FindMachineByID(ctx, machineID)
	assert.Equal(t, models.MachineAvailable, machine.Status)
}
