// Package models holds the login HTTP bodies.
package models

import (
	"strings"

	dErrors "electa/pkg/domain-errors"
)

// GenerateCodeRequest is the body for POST /generateOtp.
type GenerateCodeRequest struct {
	Email string `json:"email"`
}

func (r *GenerateCodeRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}

// LoginRequest is the body for POST /login.
type LoginRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.OTP = strings.TrimSpace(r.OTP)
	if r.Email == "" || r.OTP == "" {
		return dErrors.New(dErrors.CodeValidation, "email and OTP are required")
	}
	return nil
}
