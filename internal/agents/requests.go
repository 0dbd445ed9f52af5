package agents

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidTopK is returned when top_k is outside [1, max].
	ErrInvalidTopK = errors.New("top_k out of range")
	// ErrInvalidRequest is returned when a required field is missing.
	ErrInvalidRequest = errors.New("invalid request")
)

// RecommendRequest asks the clinical agent for evidence-linked guidance.
// A zero TopK means the configured default.
type RecommendRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Question  string `json:"question" validate:"required"`
	TopK      int    `json:"top_k" validate:"min=1,max_top_k"`
}

// ReportRequest carries a raw test report for refinement.
type ReportRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	ReportText string `json:"report_text" validate:"required"`
}

// ChatRequest carries a patient message.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

func newValidator(maxTopK int) *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("max_top_k", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(maxTopK)
	})
	return v
}

// check maps validator failures onto the package sentinels.
func check(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Field() == "TopK" {
			return fmt.Errorf("%w: %v", ErrInvalidTopK, fe.Value())
		}
	}
	return fmt.Errorf("%w: %s is required", ErrInvalidRequest, verrs[0].Field())
}
