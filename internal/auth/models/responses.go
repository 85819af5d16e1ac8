package models

import (
	accountModels "electa/internal/account/models"
)

type LoginResponse struct {
	Success bool                          `json:"success"`
	User    accountModels.AccountResponse `json:"user"`
	Token   string                        `json:"token"`
}
