package models

import "time"

// DriverRole describes how a driver is assigned to a bus.
type DriverRole string

const (
	DriverRoleTitular DriverRole = "titular"
	DriverRoleRelevo  DriverRole = "relevo"
)

// Driver is a person who operates fleet buses.
type Driver struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	RUT       *string   `db:"rut" json:"rut,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// BusDriver links a driver to a bus.
type BusDriver struct {
	BusID      string     `db:"bus_id" json:"busId"`
	DriverID   string     `db:"driver_id" json:"driverId"`
	Role       DriverRole `db:"role" json:"role"`
	AssignedAt time.Time  `db:"assigned_at" json:"assignedAt"`
}

// BusDriverDetail is an assignment enriched with the driver record.
type BusDriverDetail struct {
	BusDriver
	FullName string `db:"full_name" json:"fullName"`
}
