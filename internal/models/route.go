package models

import "time"

// Route is a transport route served by one vehicle/driver pair.
type Route struct {
	ID                string    `db:"id" json:"id"`
	RouteNumber       string    `db:"route_number" json:"route_number"`
	RouteName         string    `db:"route_name" json:"route_name"`
	StartLocation     string    `db:"start_location" json:"start_location"`
	EndLocation       string    `db:"end_location" json:"end_location"`
	Capacity          int       `db:"capacity" json:"capacity"`
	CurrentPassengers int       `db:"current_passengers" json:"current_passengers"`
	DriverID          *string   `db:"driver_id" json:"driver_id,omitempty"`
	VehicleID         *string   `db:"vehicle_id" json:"vehicle_id,omitempty"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// RouteAllocation assigns one student to a route and boarding stop.
type RouteAllocation struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	RouteID      string    `db:"route_id" json:"route_id"`
	BoardingStop string    `db:"boarding_stop" json:"boarding_stop"`
	Active       bool      `db:"active" json:"active"`
	AllocatedAt  time.Time `db:"allocated_at" json:"allocated_at"`
}
