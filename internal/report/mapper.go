package report

import "time"

// Mapper transforms validated appointment events into report records. The
// environment tag is read once at construction and constant for the process
// lifetime. Map is a pure function of its input and the clock, so processing
// a duplicate delivery is harmless.
type Mapper struct {
	environment string
	now         func() time.Time
}

// NewMapper creates a mapper stamping records with the given environment tag
func NewMapper(environment string) *Mapper {
	return NewMapperWithClock(environment, time.Now)
}

// NewMapperWithClock creates a mapper with an injectable clock, used by tests
// to freeze processedAt
func NewMapperWithClock(environment string, now func() time.Time) *Mapper {
	return &Mapper{
		environment: environment,
		now:         now,
	}
}

// Map builds the normalized report record for a validated event. It never
// fails: validation has already guaranteed every field is present.
func (m *Mapper) Map(event *AppointmentEvent) ReportRecord {
	return ReportRecord{
		ID: event.PetID,
		PetInfo: PetInfo{
			Name: event.PetName,
			Type: event.PetType,
		},
		OwnerInfo: OwnerInfo{
			ID:   event.OwnerID,
			Name: event.OwnerName + " " + event.OwnerSurname,
		},
		VetInfo: VetInfo{
			ID:   event.VetID,
			Name: event.VetName + " " + event.VetSurname,
		},
		Appointment: Appointment{
			Date:        event.AppointmentDate,
			Time:        event.AppointmentTime,
			Type:        event.AppointmentType,
			Description: event.AppointmentDescription,
		},
		ProcessedAt: m.now().UTC(),
		Environment: m.environment,
	}
}
