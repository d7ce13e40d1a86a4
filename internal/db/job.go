package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/orebase/mine-maintenance/internal/models"
)

// JobCollection defines the interface for maintenance job and assignment
// database operations.
type JobCollection interface {
	InsertJob(ctx context.Context, job models.MaintenanceJob) (string, error)
	FindJobByID(ctx context.Context, id string) (*models.MaintenanceJob, error)
	FindJobByReportID(ctx context.Context, reportID string) (*models.MaintenanceJob, error)
	FindJobsByEngineer(ctx context.Context, engineerID string) ([]models.MaintenanceJob, error)
	FindOverdueJobs(ctx context.Context, regionID string) ([]models.MaintenanceJob, error)
	UpdateJob(ctx context.Context, id string, job models.MaintenanceJob) error
	InsertAssignment(ctx context.Context, assignment models.Assignment) error
	DeleteAssignmentsByJob(ctx context.Context, jobID string) error
	FindAssignmentsByJob(ctx context.Context, jobID string) ([]models.Assignment, error)
	EngineerWorkloadByRegion(ctx context.Context, regionID string) (map[string]int, error)
}

// MongoJobCollection implements JobCollection for MongoDB. Jobs and their
// assignments live in separate collections.
type MongoJobCollection struct {
	Jobs        *mongo.Collection
	Assignments *mongo.Collection
}

// InsertJob inserts a new job and returns its id.
func (c *MongoJobCollection) InsertJob(ctx context.Context, job models.MaintenanceJob) (string, error) {
	res, err := c.Jobs.InsertOne(ctx, job)
	if err != nil {
		return "", err
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

// FindJobByID finds a job by its id.
func (c *MongoJobCollection) FindJobByID(ctx context.Context, id string) (*models.MaintenanceJob, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var job models.MaintenanceJob
	if err := c.Jobs.FindOne(ctx, bson.M{"_id": objectID}).Decode(&job); err != nil {
		return nil, mapErr(err)
	}
	return &job, nil
}

// FindJobByReportID finds the job created from a report, if any.
func (c *MongoJobCollection) FindJobByReportID(ctx context.Context, reportID string) (*models.MaintenanceJob, error) {
	var job models.MaintenanceJob
	if err := c.Jobs.FindOne(ctx, bson.M{"report_id": reportID, "is_active": true}).Decode(&job); err != nil {
		return nil, mapErr(err)
	}
	return &job, nil
}

// FindJobsByEngineer returns the active jobs currently assigned to an
// engineer, emergencies first.
func (c *MongoJobCollection) FindJobsByEngineer(ctx context.Context, engineerID string) ([]models.MaintenanceJob, error) {
	cursor, err := c.Assignments.Find(ctx, bson.M{"engineer_id": engineerID})
	if err != nil {
		return nil, err
	}
	var assignments []models.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(assignments))
	for _, a := range assignments {
		objectID, err := primitive.ObjectIDFromHex(a.JobID)
		if err != nil {
			continue
		}
		ids = append(ids, objectID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "type", Value: -1}, {Key: "scheduled_date", Value: 1}})
	jobCursor, err := c.Jobs.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer jobCursor.Close(ctx)

	var jobs []models.MaintenanceJob
	if err := jobCursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindOverdueJobs returns active non-terminal jobs whose scheduled date has
// passed, optionally restricted to one region.
func (c *MongoJobCollection) FindOverdueJobs(ctx context.Context, regionID string) ([]models.MaintenanceJob, error) {
	filter := bson.M{
		"scheduled_date": bson.M{"$lt": time.Now().UTC()},
		"status":         bson.M{"$nin": []models.JobStatus{models.JobCompleted, models.JobCancelled}},
		"is_active":      true,
	}
	if regionID != "" {
		filter["region_id"] = regionID
	}

	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}})
	cursor, err := c.Jobs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []models.MaintenanceJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJob replaces a job by its id.
func (c *MongoJobCollection) UpdateJob(ctx context.Context, id string, job models.MaintenanceJob) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	job.ID = objectID
	job.UpdatedAt = time.Now().UTC()

	res, err := c.Jobs.ReplaceOne(ctx, bson.M{"_id": objectID}, job)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertAssignment records a job-to-engineer binding.
func (c *MongoJobCollection) InsertAssignment(ctx context.Context, assignment models.Assignment) error {
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	_, err := c.Assignments.InsertOne(ctx, assignment)
	return err
}

// DeleteAssignmentsByJob removes all assignments for a job. Used by bulk
// reassignment, which replaces rather than appends.
func (c *MongoJobCollection) DeleteAssignmentsByJob(ctx context.Context, jobID string) error {
	_, err := c.Assignments.DeleteMany(ctx, bson.M{"job_id": jobID})
	return err
}

// FindAssignmentsByJob returns a job's assignments, newest first.
func (c *MongoJobCollection) FindAssignmentsByJob(ctx context.Context, jobID string) ([]models.Assignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "assigned_at", Value: -1}})
	cursor, err := c.Assignments.Find(ctx, bson.M{"job_id": jobID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []models.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// EngineerWorkloadByRegion counts, per engineer, the active scheduled or
// in-progress jobs in a region for which that engineer holds the current
// assignment. The newest assignment per job is the current one.
func (c *MongoJobCollection) EngineerWorkloadByRegion(ctx context.Context, regionID string) (map[string]int, error) {
	filter := bson.M{
		"region_id": regionID,
		"status":    bson.M{"$in": []models.JobStatus{models.JobScheduled, models.JobInProgress}},
		"is_active": true,
	}
	cursor, err := c.Jobs.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var jobs []models.MaintenanceJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}

	workload := make(map[string]int)
	for _, job := range jobs {
		assignments, err := c.FindAssignmentsByJob(ctx, job.ID.Hex())
		if err != nil {
			return nil, err
		}
		if len(assignments) > 0 {
			workload[assignments[0].EngineerID]++
		}
	}
	return workload, nil
}
