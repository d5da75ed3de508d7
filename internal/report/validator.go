package report

import "encoding/json"

// RequiredFields lists every field an appointment event must carry, in wire
// order. A payload missing any of them is rejected.
var RequiredFields = []string{
	"petId",
	"petName",
	"petType",
	"ownerId",
	"ownerName",
	"ownerSurname",
	"vetId",
	"vetName",
	"vetSurname",
	"appointmentDate",
	"appointmentTime",
	"appointmentType",
	"appointmentDescription",
}

// ParseAndValidate deserializes a raw message body and checks the required
// field contract. It returns a MalformedPayloadError when the body is not a
// JSON object, or a MissingFieldError listing every absent, null, non-string
// or empty field. It has no side effects.
func ParseAndValidate(body string) (*AppointmentEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, &MalformedPayloadError{Cause: err}
	}
	if payload == nil {
		return nil, &MalformedPayloadError{}
	}

	values := make(map[string]string, len(RequiredFields))
	var missing []string
	for _, field := range RequiredFields {
		s, ok := payload[field].(string)
		if !ok || s == "" {
			missing = append(missing, field)
			continue
		}
		values[field] = s
	}
	if len(missing) > 0 {
		return nil, &MissingFieldError{Fields: missing}
	}

	return &AppointmentEvent{
		PetID:                  values["petId"],
		PetName:                values["petName"],
		PetType:                values["petType"],
		OwnerID:                values["ownerId"],
		OwnerName:              values["ownerName"],
		OwnerSurname:           values["ownerSurname"],
		VetID:                  values["vetId"],
		VetName:                values["vetName"],
		VetSurname:             values["vetSurname"],
		AppointmentDate:        values["appointmentDate"],
		AppointmentTime:        values["appointmentTime"],
		AppointmentType:        values["appointmentType"],
		AppointmentDescription: values["appointmentDescription"],
	}, nil
}
