// Package report validates raw appointment events and maps them into
// normalized report records.
package report

import "time"

// AppointmentEvent is a fully validated appointment payload. Every field is
// guaranteed non-empty by ParseAndValidate.
type AppointmentEvent struct {
	PetID   string
	PetName string
	PetType string

	OwnerID      string
	OwnerName    string
	OwnerSurname string

	VetID      string
	VetName    string
	VetSurname string

	AppointmentDate        string
	AppointmentTime        string
	AppointmentType        string
	AppointmentDescription string
}

// PetInfo describes the pet in a report record
type PetInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// OwnerInfo describes the owner, with a combined display name
type OwnerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VetInfo describes the veterinarian, with a combined display name
type VetInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Appointment holds the appointment details of a report record
type Appointment struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ReportRecord is the normalized output handed to downstream consumers.
// It is immutable once constructed; the processor never persists it.
// Downstream stores deduplicate by ID.
type ReportRecord struct {
	ID          string      `json:"id"`
	PetInfo     PetInfo     `json:"petInfo"`
	OwnerInfo   OwnerInfo   `json:"ownerInfo"`
	VetInfo     VetInfo     `json:"vetInfo"`
	Appointment Appointment `json:"appointment"`
	ProcessedAt time.Time   `json:"processedAt"`
	Environment string      `json:"environment"`
}
