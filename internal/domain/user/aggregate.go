package user

import (
	"context"
	"errors"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

var ErrUserNotFound = errors.New("user not found")

// Directory looks up stored customer profiles.
type Directory interface {
	FindUser(ctx context.Context, id string) (*User, error)
}

// User is the stored customer profile used when settling an order.
type User struct {
	ID      string  `json:"id"`
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	Address Address `json:"address"`
}

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
