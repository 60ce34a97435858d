package models

import (
	"time"

	"github.com/dmitrijs2005/examvault/internal/server/access"
)

type User struct {
	ID           string
	Email        string
	Role         access.Role
	PasswordHash []byte
	Salt         []byte
	CreatedAt    time.Time
}
