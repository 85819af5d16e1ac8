package models

import (
	"strings"

	dErrors "electa/pkg/domain-errors"
)

// RegisterRequest is the admin body for POST /register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	EAddress string `json:"eAddress"`
	Role     Role   `json:"role,omitempty"`
}

func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.EAddress = strings.TrimSpace(r.EAddress)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.EAddress == "" {
		return dErrors.New(dErrors.CodeValidation, "eAddress is required")
	}
	if r.Role != "" && !r.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be voter or admin")
	}
	return nil
}

// EditRequest is the body for PUT /edit.
type EditRequest struct {
	Name     string `json:"name"`
	EAddress string `json:"eAddress"`
}

func (r *EditRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.EAddress = strings.TrimSpace(r.EAddress)
	if r.Name == "" || r.EAddress == "" {
		return dErrors.New(dErrors.CodeValidation, "name and eAddress are required")
	}
	return nil
}
