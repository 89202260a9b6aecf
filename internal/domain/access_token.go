package domain

import "time"

const (
	RoleAdmin     = "admin"
	RoleComptable = "comptable"
	RoleCaissier  = "caissier"
)

type AccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	SchoolID  string
	Role      string
	ExpiresAt *time.Time
}
