package user

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type StubUserRepository struct {
	mu     sync.Mutex
	nextId int
	data   map[int]User
}

func NewStubUserRepository() *StubUserRepository {
	return &StubUserRepository{nextId: 0, data: map[int]User{}}
}

func (s *StubUserRepository) CreateUser(ctx context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data {
		if existing.Email == user.Email {
			return User{}, fmt.Errorf("%w: %s", ErrEmailTaken, user.Email)
		}
	}
	s.nextId++
	user.Id = s.nextId
	user.CreatedAt = time.Now()
	s.data[s.nextId] = user
	return user, nil
}

func (s *StubUserRepository) GetUser(ctx context.Context, id int) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.data[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *StubUserRepository) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return s.find(func(u User) bool { return u.Uid == uid })
}

func (s *StubUserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.find(func(u User) bool { return u.Email == email })
}

func (s *StubUserRepository) find(match func(User) bool) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.data {
		if match(user) {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}
