package jsondb

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/rs/xid"
	"github.com/sdomino/scribble"

	"lostfound/model"
	"lostfound/store"
	"lostfound/util"
)

type JsonDB struct {
	conn   *scribble.Driver
	dbPath string
}

// New returns a new pointer JsonDB
func New(dbPath string) (*JsonDB, error) {
	conn, err := scribble.New(dbPath, nil)
	if err != nil {
		return nil, err
	}
	ans := JsonDB{
		conn:   conn,
		dbPath: dbPath,
	}
	return &ans, nil
}

// Init creates the collection directories and bootstraps the default
// admin account when none exists yet.
func (o *JsonDB) Init() error {
	var userPath string = path.Join(o.dbPath, model.UserCollectionName)
	var itemPath string = path.Join(o.dbPath, model.ItemCollectionName)

	// create directories if they do not exist
	if _, err := os.Stat(userPath); os.IsNotExist(err) {
		os.MkdirAll(userPath, os.ModePerm)
	}
	if _, err := os.Stat(itemPath); os.IsNotExist(err) {
		os.MkdirAll(itemPath, os.ModePerm)
	}

	return o.EnsureDefaultAdmin()
}

// EnsureDefaultAdmin writes the well-known admin account if no account
// with the admin role exists. Calling it again is a no-op.
func (o *JsonDB) EnsureDefaultAdmin() error {
	users, err := o.getUsers()
	if err != nil {
		return err
	}
	for _, user := range users {
		if user.Role == model.RoleAdmin {
			return nil
		}
	}

	admin := model.User{
		Username: util.LookupEnvOrString(util.AdminUsernameEnvVar, util.DefaultAdminUsername),
		Password: util.LookupEnvOrString(util.AdminPasswordEnvVar, util.DefaultAdminPassword),
		Role:     model.RoleAdmin,
	}
	return o.conn.Write(model.UserCollectionName, admin.Username, admin)
}

// RegisterUser inserts a new account with the user role. The duplicate
// check is a lookup immediately preceding the insert, not atomic.
func (o *JsonDB) RegisterUser(user model.User) error {
	if _, err := o.GetUserByName(user.Username); err == nil {
		return store.ErrDuplicateUsername
	}
	user.Role = model.RoleUser
	return o.conn.Write(model.UserCollectionName, user.Username, user)
}

// GetUserByName func to get single user from the database
func (o *JsonDB) GetUserByName(username string) (model.User, error) {
	user := model.User{}
	if err := o.conn.Read(model.UserCollectionName, username, &user); err != nil {
		return user, store.ErrNotFound
	}
	return user, nil
}

// GetUserByCredentials returns the account matching username, password
// and role exactly. A mismatch on any field yields ErrInvalidCredentials.
func (o *JsonDB) GetUserByCredentials(username, password string, role model.Role) (model.User, error) {
	user, err := o.GetUserByName(username)
	if err != nil {
		return model.User{}, store.ErrInvalidCredentials
	}
	if user.Password != password || user.Role != role {
		return model.User{}, store.ErrInvalidCredentials
	}
	return user, nil
}

// SaveItem func to save item in the database
func (o *JsonDB) SaveItem(item model.Item) error {
	return o.conn.Write(model.ItemCollectionName, item.ID, item)
}

// GetItemByID func to query single item from the database
func (o *JsonDB) GetItemByID(id string) (model.Item, error) {
	item := model.Item{}
	if _, err := xid.FromString(id); err != nil {
		return item, store.ErrInvalidItemID
	}
	if err := o.conn.Read(model.ItemCollectionName, id, &item); err != nil {
		return item, store.ErrNotFound
	}
	return item, nil
}

// GetItems returns the items matching the filter, newest first. xid ids
// sort chronologically, so insertion order is a sort on id.
func (o *JsonDB) GetItems(filter model.ItemFilter) ([]model.Item, error) {
	items := []model.Item{}

	records, err := o.conn.ReadAll(model.ItemCollectionName)
	if err != nil {
		return items, err
	}

	for _, f := range records {
		item := model.Item{}
		if err := json.Unmarshal([]byte(f), &item); err != nil {
			return items, fmt.Errorf("cannot decode item json structure: %v", err)
		}
		if filter.Match(item) {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ID > items[j].ID
	})

	return items, nil
}

// DeleteItem removes the item if present. Deleting an absent id is a
// no-op, not an error.
func (o *JsonDB) DeleteItem(id string) error {
	recordPath := path.Join(o.dbPath, model.ItemCollectionName, id+".json")
	if _, err := os.Stat(recordPath); os.IsNotExist(err) {
		return nil
	}
	return o.conn.Delete(model.ItemCollectionName, id)
}

func (o *JsonDB) GetPath() string {
	return o.dbPath
}

// getUsers reads every account record in the users collection.
func (o *JsonDB) getUsers() ([]model.User, error) {
	var users []model.User
	records, err := o.conn.ReadAll(model.UserCollectionName)
	if err != nil {
		return users, err
	}
	for _, i := range records {
		user := model.User{}
		if err := json.Unmarshal([]byte(i), &user); err != nil {
			return users, fmt.Errorf("cannot decode user json structure: %v", err)
		}
		users = append(users, user)
	}
	return users, nil
}
