package user

import (
	"context"

	"github.com/sksmith/go-spares/internal/core"
	"github.com/sksmith/go-spares/internal/testutil"
)

type MockUserService struct {
	CreateFunc      func(ctx context.Context, user CreateUserRequest) (User, error)
	LoginFunc       func(ctx context.Context, username, password string) (User, error)
	EnsureAdminFunc func(ctx context.Context, username, password string) error
	*testutil.CallWatcher
}

func NewMockUserService() *MockUserService {
	return &MockUserService{
		CreateFunc:      func(ctx context.Context, user CreateUserRequest) (User, error) { return User{}, nil },
		LoginFunc:       func(ctx context.Context, username, password string) (User, error) { return User{}, nil },
		EnsureAdminFunc: func(ctx context.Context, username, password string) error { return nil },
		CallWatcher:     testutil.NewCallWatcher(),
	}
}

func (u *MockUserService) Create(ctx context.Context, user CreateUserRequest) (User, error) {
	u.AddCall(ctx, user)
	return u.CreateFunc(ctx, user)
}

func (u *MockUserService) Login(ctx context.Context, username, password string) (User, error) {
	u.AddCall(ctx, username, password)
	return u.LoginFunc(ctx, username, password)
}

func (u *MockUserService) EnsureAdmin(ctx context.Context, username, password string) error {
	u.AddCall(ctx, username, password)
	return u.EnsureAdminFunc(ctx, username, password)
}

type MockRepo struct {
	CreateFunc func(ctx context.Context, user *User, tx ...core.UpdateOptions) error
	GetFunc    func(ctx context.Context, username string, tx ...core.QueryOptions) (User, error)
	DeleteFunc func(ctx context.Context, username string, tx ...core.UpdateOptions) error
	*testutil.CallWatcher
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		CreateFunc: func(ctx context.Context, user *User, tx ...core.UpdateOptions) error { return nil },
		GetFunc: func(ctx context.Context, username string, tx ...core.QueryOptions) (User, error) {
			return User{}, core.ErrNotFound
		},
		DeleteFunc:  func(ctx context.Context, username string, tx ...core.UpdateOptions) error { return nil },
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (r *MockRepo) Create(ctx context.Context, user *User, tx ...core.UpdateOptions) error {
	r.AddCall(ctx, user, tx)
	return r.CreateFunc(ctx, user, tx...)
}

func (r *MockRepo) Get(ctx context.Context, username string, tx ...core.QueryOptions) (User, error) {
	r.AddCall(ctx, username, tx)
	return r.GetFunc(ctx, username, tx...)
}

func (r *MockRepo) Delete(ctx context.Context, username string, tx ...core.UpdateOptions) error {
	r.AddCall(ctx, username, tx)
	return r.DeleteFunc(ctx, username, tx...)
}
