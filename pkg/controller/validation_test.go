package controller

import (
	"errors"
	"net/http"
	"testing"
)

type opinionDTO struct {
	EnrollmentID int64  `json:"enrollment_id" validate:"required,gt=0"`
	Score        int    `json:"score" validate:"required"`
	Text         string `json:"text" validate:"max=10"`
}

func TestValidateDTO(t *testing.T) {
	tests := []struct {
		name       string
		dto        any
		wantCode   string
		wantFields map[string]any
	}{
		{name: "valid", dto: &opinionDTO{EnrollmentID: 1, Score: 4, Text: "ok"}},
		{name: "nil", dto: nil, wantCode: "validation.invalid_body"},
		{name: "typed nil", dto: (*opinionDTO)(nil), wantCode: "validation.invalid_body"},
		{
			name:       "json names in details",
			dto:        &opinionDTO{Text: "far too long text"},
			wantCode:   "validation.failed",
			wantFields: map[string]any{"enrollment_id": "required", "score": "required", "text": "max=10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDTO(tt.dto)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var appErr *AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != tt.wantCode || appErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("code=%q status=%d", appErr.Code, appErr.HTTPStatus)
			}
			if tt.wantFields == nil {
				return
			}
			fields, _ := appErr.Details["fields"].(map[string]any)
			if len(fields) != len(tt.wantFields) {
				t.Fatalf("fields = %v, want %v", fields, tt.wantFields)
			}
			for k, v := range tt.wantFields {
				if fields[k] != v {
					t.Errorf("field %s = %v, want %v", k, fields[k], v)
				}
			}
		})
	}
}
