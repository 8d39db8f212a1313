package domain

import "time"

// VehicleType is the service class a vehicle is registered for.
type VehicleType string

const (
	VehicleTypeEconomy VehicleType = "economy"
	VehicleTypeComfort VehicleType = "comfort"
	VehicleTypePremium VehicleType = "premium"
	VehicleTypeXL      VehicleType = "xl"
	VehicleTypeBoda    VehicleType = "boda"
)

// Valid reports whether t is a known vehicle type.
func (t VehicleType) Valid() bool {
	switch t {
	case VehicleTypeEconomy, VehicleTypeComfort, VehicleTypePremium, VehicleTypeXL, VehicleTypeBoda:
		return true
	}
	return false
}

// Vehicle is the car or motorbike registered to a driver.
type Vehicle struct {
	DriverID     string
	Type         VehicleType
	LicensePlate string
	Make         string
	Model        string
	Color        string
}

// DriverLocation is the last known position of a driver (one row per driver).
type DriverLocation struct {
	DriverID  string
	Lat       float64
	Lng       float64
	IsOnline  bool
	UpdatedAt time.Time
}
