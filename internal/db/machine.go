package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/orebase/mine-maintenance/internal/models"
)

// MachineCollection defines the interface for machine database operations.
// Machine CRUD belongs to machine management; the workflow only reads
// machines and writes their status and maintenance dates.
type MachineCollection interface {
	FindMachineByID(ctx context.Context, id string) (*models.Machine, error)
	UpdateMachineStatus(ctx context.Context, id string, status models.MachineStatus) error
	UpdateMaintenanceDates(ctx context.Context, id string, last, next time.Time) error
}

// MongoMachineCollection implements MachineCollection for MongoDB
type MongoMachineCollection struct {
	Collection *mongo.Collection
}

// FindMachineByID finds a machine by its id.
func (c *MongoMachineCollection) FindMachineByID(ctx context.Context, id string) (*models.Machine, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var machine models.Machine
	if err := c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&machine); err != nil {
		return nil, mapErr(err)
	}
	return &machine, nil
}

// UpdateMachineStatus sets the operational status of a machine.
func (c *MongoMachineCollection) UpdateMachineStatus(ctx context.Context, id string, status models.MachineStatus) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateMaintenanceDates records the last maintenance date and the next due
// date after a completed job.
func (c *MongoMachineCollection) UpdateMaintenanceDates(ctx context.Context, id string, last, next time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"last_maintenance_date": last,
			"next_maintenance_date": next,
			"updated_at":            time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
