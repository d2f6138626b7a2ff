package user

import "time"

// User is an account of the remote store. Id keys the rows of the account, Uid is the
// public identifier carried by session tokens.
type User struct {
	Id           int
	Uid          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
