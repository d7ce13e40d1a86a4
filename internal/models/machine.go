package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MachineStatus is the operational state of a drilling machine.
type MachineStatus string

const (
	MachineAvailable     MachineStatus = "available"
	MachineAssigned      MachineStatus = "assigned"
	MachineInMaintenance MachineStatus = "in_maintenance"
	MachineOutOfService  MachineStatus = "out_of_service"
)

// ParseMachineStatus parses a machine status string, rejecting unknown values.
func ParseMachineStatus(s string) (MachineStatus, error) {
	switch MachineStatus(s) {
	case MachineAvailable, MachineAssigned, MachineInMaintenance, MachineOutOfService:
		return MachineStatus(s), nil
	default:
		return "", fmt.Errorf("unknown machine status %q", s)
	}
}

// Machine represents a drilling machine at a mining site. Machine CRUD is
// owned by machine management; the maintenance workflow only mutates its
// status and maintenance dates.
type Machine struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                string             `bson:"name" json:"name"`
	Model               string             `bson:"model,omitempty" json:"model,omitempty"`
	SerialNumber        string             `bson:"serial_number,omitempty" json:"serial_number,omitempty"`
	Status              MachineStatus      `bson:"status" json:"status"`
	OperatorID          string             `bson:"operator_id,omitempty" json:"operator_id,omitempty"`
	RegionID            string             `bson:"region_id,omitempty" json:"region_id,omitempty"`
	ProjectID           string             `bson:"project_id,omitempty" json:"project_id,omitempty"`
	LastMaintenanceDate *time.Time         `bson:"last_maintenance_date,omitempty" json:"last_maintenance_date,omitempty"`
	NextMaintenanceDate *time.Time         `bson:"next_maintenance_date,omitempty" json:"next_maintenance_date,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}

// RestoredStatus is the status a machine returns to once no blocking reports
// remain: assigned when it has an operator, otherwise available.
func (m *Machine) RestoredStatus() MachineStatus {
	if m.OperatorID != "" {
		return MachineAssigned
	}
	return MachineAvailable
}
