package domain

import (
	"errors"
	"strings"
	"testing"
)

func validInput() NewRequestInput {
	return NewRequestInput{
		RequesterID: "actor-1",
		Types:       []RequestType{TypeMedical},
		Description: "need help",
		Contact:     "555-0100",
		Location:    GeoPoint{Longitude: -122.42, Latitude: 37.77},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validInput().Validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestValidateRejectsEmptyTypes(t *testing.T) {
	in := validInput()
	in.Types = nil
	err := in.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	in := validInput()
	in.Types = []RequestType{"pizza"}
	if err := in.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateRejectsLongDescription(t *testing.T) {
	in := validInput()
	in.Description = strings.Repeat("x", MaxDescriptionLength+1)
	if err := in.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	in.Description = strings.Repeat("x", MaxDescriptionLength)
	if err := in.Validate(); err != nil {
		t.Fatalf("expected boundary length to pass, got %v", err)
	}
}

func TestValidateRejectsMissingContact(t *testing.T) {
	in := validInput()
	in.Contact = ""
	if err := in.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateRejectsOutOfRangeLocation(t *testing.T) {
	in := validInput()
	in.Location = GeoPoint{Longitude: 200, Latitude: 37.77}
	if err := in.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestErrorKindsAreDistinguishable(t *testing.T) {
	if errors.Is(ConflictError{Reason: "x"}, ErrAuthorization) {
		t.Fatal("conflict must not match authorization")
	}
	if errors.Is(AuthorizationError{Reason: "x"}, ErrConflict) {
		t.Fatal("authorization must not match conflict")
	}
	if !errors.Is(NotFoundError{Resource: "request"}, ErrNotFound) {
		t.Fatal("not-found must match its sentinel")
	}
	if !errors.Is(&ValidationError{Reason: "x"}, ErrValidation) {
		t.Fatal("pointer validation error must match its sentinel")
	}
}
