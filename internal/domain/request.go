package domain

import "time"

type RequestType string

const (
	TypeFood      RequestType = "food"
	TypeMedical   RequestType = "medical"
	TypeRescue    RequestType = "rescue"
	TypeTransport RequestType = "transport"
	TypeShelter   RequestType = "shelter"
	TypeWater     RequestType = "water"
	TypePower     RequestType = "power"
	TypeOther     RequestType = "other"
)

var knownTypes = map[RequestType]bool{
	TypeFood:      true,
	TypeMedical:   true,
	TypeRescue:    true,
	TypeTransport: true,
	TypeShelter:   true,
	TypeWater:     true,
	TypePower:     true,
	TypeOther:     true,
}

type RequestStatus string

const (
	StatusOpen      RequestStatus = "open"
	StatusAssigned  RequestStatus = "assigned"
	StatusCompleted RequestStatus = "completed"
)

const MaxDescriptionLength = 500

// HelpRequest is the central entity of the system. RequesterID and Location
// are immutable after creation; only the lifecycle manager mutates Status.
type HelpRequest struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requesterId"`
	Types       []RequestType `json:"types"`
	Description string        `json:"description"`
	Contact     string        `json:"contact"`
	Location    GeoPoint      `json:"location"`
	Address     string        `json:"address,omitempty"`
	Status      RequestStatus `json:"status"`
	AssignedTo  string        `json:"assignedTo,omitempty"`
	AssignedAt  *time.Time    `json:"assignedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// NewRequestInput carries the caller-supplied fields for creation.
type NewRequestInput struct {
	RequesterID string
	Types       []RequestType
	Description string
	Contact     string
	Location    GeoPoint
	Address     string
}

// Validate checks the creation input before any persistence happens.
func (in NewRequestInput) Validate() error {
	if len(in.Types) == 0 {
		return ValidationError{Reason: "at least one type is required"}
	}
	for _, t := range in.Types {
		if !knownTypes[t] {
			return ValidationError{Reason: "unknown request type: " + string(t)}
		}
	}
	if in.Description == "" {
		return ValidationError{Reason: "description is required"}
	}
	if len(in.Description) > MaxDescriptionLength {
		return ValidationError{Reason: "description must be 500 characters or less"}
	}
	if in.Contact == "" {
		return ValidationError{Reason: "contact information is required"}
	}
	if !in.Location.Valid() {
		return ValidationError{Reason: "location is out of range"}
	}
	return nil
}
