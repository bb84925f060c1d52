package common

import (
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"not found", NewAppError("SESSION", "session not found", ErrNotFound), codes.NotFound},
		{"wrapped invalid", fmt.Errorf("upload: %w", NewAppError("UPLOAD", "bad file", ErrInvalidInput)), codes.InvalidArgument},
		{"validation", NewValidator().Field("file", "", Required).Err(), codes.InvalidArgument},
		{"conflict", NewAppError("JOB", "already running", ErrConflict), codes.FailedPrecondition},
		{"plain", fmt.Errorf("boom"), codes.Internal},
		{"already status", status.Error(codes.NotFound, "gone"), codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := status.FromError(ToStatus(tt.err))
			if st.Code() != tt.want {
				t.Errorf("code = %v, want %v", st.Code(), tt.want)
			}
		})
	}
	if ToStatus(nil) != nil {
		t.Error("ToStatus(nil) != nil")
	}
}

func TestUserMessage(t *testing.T) {
	err := fmt.Errorf("ctx: %w", NewAppError("UPLOAD", "CSV file is empty", ErrInvalidInput))
	if got := UserMessage(err); got != "CSV file is empty" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestOneOf(t *testing.T) {
	v := NewValidator().Field("extension", "pdf", OneOf("csv", "xlsx"))
	if got := v.ErrorMessage(); got != "extension must be one of csv, xlsx" {
		t.Errorf("message = %q", got)
	}
	if NewValidator().Field("extension", "csv", OneOf("csv", "xlsx")).HasErrors() {
		t.Error("csv rejected")
	}
}
