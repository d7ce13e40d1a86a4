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

// ReportCollection defines the interface for maintenance report database
// operations. List queries are scoped to active reports; soft-deleted
// documents stay in the collection for history.
type ReportCollection interface {
	InsertReport(ctx context.Context, report models.MaintenanceReport) (string, error)
	FindReportByID(ctx context.Context, id string) (*models.MaintenanceReport, error)
	FindReportByTicketID(ctx context.Context, ticketID string) (*models.MaintenanceReport, error)
	FindReportsByOperator(ctx context.Context, operatorID string) ([]models.MaintenanceReport, error)
	FindReportsByMachine(ctx context.Context, machineID string) ([]models.MaintenanceReport, error)
	UpdateReport(ctx context.Context, id string, report models.MaintenanceReport) error
}

// MongoReportCollection implements ReportCollection for MongoDB
type MongoReportCollection struct {
	Collection *mongo.Collection
}

// InsertReport inserts a new report and returns its id.
func (c *MongoReportCollection) InsertReport(ctx context.Context, report models.MaintenanceReport) (string, error) {
	res, err := c.Collection.InsertOne(ctx, report)
	if err != nil {
		return "", err
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

// FindReportByID finds a report by its id.
func (c *MongoReportCollection) FindReportByID(ctx context.Context, id string) (*models.MaintenanceReport, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var report models.MaintenanceReport
	if err := c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&report); err != nil {
		return nil, mapErr(err)
	}
	return &report, nil
}

// FindReportByTicketID finds a report by its human-readable ticket id.
func (c *MongoReportCollection) FindReportByTicketID(ctx context.Context, ticketID string) (*models.MaintenanceReport, error) {
	var report models.MaintenanceReport
	if err := c.Collection.FindOne(ctx, bson.M{"ticket_id": ticketID}).Decode(&report); err != nil {
		return nil, mapErr(err)
	}
	return &report, nil
}

// FindReportsByOperator returns the active reports submitted by an operator,
// newest first.
func (c *MongoReportCollection) FindReportsByOperator(ctx context.Context, operatorID string) ([]models.MaintenanceReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "reported_at", Value: -1}})
	cursor, err := c.Collection.Find(ctx, bson.M{"operator_id": operatorID, "is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.MaintenanceReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// FindReportsByMachine returns the active reports for a machine.
func (c *MongoReportCollection) FindReportsByMachine(ctx context.Context, machineID string) ([]models.MaintenanceReport, error) {
	cursor, err := c.Collection.Find(ctx, bson.M{"machine_id": machineID, "is_active": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.MaintenanceReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// UpdateReport replaces a report by its id.
func (c *MongoReportCollection) UpdateReport(ctx context.Context, id string, report models.MaintenanceReport) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	report.ID = objectID
	report.UpdatedAt = time.Now().UTC()

	res, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": objectID}, report)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
