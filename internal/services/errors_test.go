package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNewServiceError(t *testing.T) {
	err := NewServiceError(CodeInvalidRequest, "month must be between 0 and 11")

	if err.Code != CodeInvalidRequest {
		t.Errorf("Expected code %s, got '%s'", CodeInvalidRequest, err.Code)
	}
	if err.Error() != "month must be between 0 and 11" {
		t.Errorf("Unexpected message '%s'", err.Error())
	}
	if err.Details != nil {
		t.Errorf("Expected nil details, got %v", err.Details)
	}
}

func TestNewServiceErrorWithDetails(t *testing.T) {
	details := map[string]interface{}{"box_id": "1000", "month": 12}
	err := NewServiceErrorWithDetails(CodeInvalidRequest, "Invalid month", details)

	if err.Details["box_id"] != "1000" || err.Details["month"] != 12 {
		t.Errorf("Unexpected details %v", err.Details)
	}
}

func TestServiceError_JSONMarshal(t *testing.T) {
	err := NewServiceErrorWithDetails(CodeBoxNotFound, "box not found", map[string]interface{}{"box_id": "7"})

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Marshal failed: %v", marshalErr)
	}

	var decoded map[string]interface{}
	if unmarshalErr := json.Unmarshal(data, &decoded); unmarshalErr != nil {
		t.Fatalf("Unmarshal failed: %v", unmarshalErr)
	}
	if decoded["code"] != CodeBoxNotFound || decoded["message"] != "box not found" {
		t.Errorf("Unexpected JSON %s", data)
	}

	plain, _ := json.Marshal(NewServiceError(CodeQueryFailed, "x"))
	if string(plain) != `{"code":"QUERY_FAILED","message":"x"}` {
		t.Errorf("Expected empty details to be omitted, got %s", plain)
	}
}

func TestServiceError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := wrapServiceError(CodeQueryFailed, "Failed to read trends", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected ServiceError to unwrap to its cause")
	}
	if err.Details["error"] != "connection refused" {
		t.Errorf("Expected cause in details, got %v", err.Details["error"])
	}
	if NewServiceError(CodeInvalidRequest, "x").Unwrap() != nil {
		t.Error("Expected nil cause for plain ServiceError")
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("rollup: %w", NewServiceError(CodeBoxNotFound, "box 7 not found"))
	if CodeOf(err) != CodeBoxNotFound {
		t.Errorf("Expected %s, got %q", CodeBoxNotFound, CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("Expected empty code for plain error")
	}
}
