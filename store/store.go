package store

import (
	"errors"

	"lostfound/model"
)

var (
	// ErrNotFound is returned when no record exists under the given key.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidItemID is returned for item ids that cannot be parsed.
	ErrInvalidItemID = errors.New("invalid item id")
	// ErrDuplicateUsername is returned when registering an existing username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidCredentials is returned when no account matches the given
	// username, password and role exactly.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type IStore interface {
	Init() error
	RegisterUser(user model.User) error
	GetUserByName(username string) (model.User, error)
	GetUserByCredentials(username, password string, role model.Role) (model.User, error)
	EnsureDefaultAdmin() error
	SaveItem(item model.Item) error
	GetItemByID(id string) (model.Item, error)
	GetItems(filter model.ItemFilter) ([]model.Item, error)
	DeleteItem(id string) error
}
