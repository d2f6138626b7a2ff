package test_utils

import (
	"context"

	"github.com/baptistelechat/overti-me/pkg/user"
)

var TestUser = user.User{
	Id:    123,
	Uid:   "6f1d2a4e-3b0c-4d8e-9a57-1c2b3d4e5f60",
	Email: "test.user@overti.me",
}

// ContextWithTestUser returns a context carrying TestUser, as the auth middleware would.
func ContextWithTestUser() context.Context {
	return user.WithUser(context.Background(), TestUser)
}
