package models

import (
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/hr_backend/geo"
)

// Site is a physical work location with a circular geofence.
type Site struct {
	ID            int        `gorm:"primary_key" json:"id"`
	Name          string     `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Latitude      float64    `gorm:"not null" json:"latitude"`
	Longitude     float64    `gorm:"not null" json:"longitude"`
	RadiusMeters  float64    `gorm:"not null" json:"radius_meters"`
	IsActive      bool       `gorm:"not null" json:"is_active"`
	QRIssuedAt    *time.Time `json:"qr_issued_at"`
	QRArtifactRef string     `gorm:"size:255" json:"qr_artifact_ref"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSite struct {
	Name         string  `json:"name" binding:"required,max=100"`
	Latitude     float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude    float64 `json:"longitude" binding:"min=-180,max=180"`
	RadiusMeters float64 `json:"radius_meters" binding:"required,gt=0"`
	IsActive     *bool   `json:"is_active"`
}

func (s Site) Center() geo.Point {
	return geo.Point{Latitude: s.Latitude, Longitude: s.Longitude}
}

func (input *NewSite) Validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return NewValidationError("name", errors.New("name is required"))
	}
	if err := geo.ValidateCoordinates(geo.Point{Latitude: input.Latitude, Longitude: input.Longitude}); err != nil {
		return NewValidationError("latitude/longitude", err)
	}
	if input.RadiusMeters <= 0 {
		return NewValidationError("radius_meters", errors.New("radius must be positive"))
	}
	return nil
}

// Apply copies the input onto s. Name, coordinates and radius stay mutable after QR issuance.
func (input *NewSite) Apply(s *Site) {
	s.Name = input.Name
	s.Latitude = input.Latitude
	s.Longitude = input.Longitude
	s.RadiusMeters = input.RadiusMeters
	if input.IsActive != nil {
		s.IsActive = *input.IsActive
	} else if s.ID == 0 {
		s.IsActive = true
	}
}
