package handler

import (
	"encoding/base64"
	"errors"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/rs/xid"
	"github.com/skip2/go-qrcode"

	"lostfound/emailer"
	"lostfound/model"
	"lostfound/store"
	"lostfound/util"
)

type jsonHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type registerRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type postItemRequest struct {
	Title       string `form:"title" validate:"required"`
	Description string `form:"description" validate:"required"`
	Type        string `form:"type" validate:"required,oneof=lost found"`
	Contact     string `form:"contact"`
}

// itemFilterFromQuery builds the listing filter from the request query
// params. Unknown filter values fall back to "all types".
func itemFilterFromQuery(c echo.Context) model.ItemFilter {
	filter := model.ItemFilter{Query: c.QueryParam("q")}
	if t := model.ItemType(c.QueryParam("filter")); t.Valid() {
		filter.Type = t
	}
	return filter
}

// Home handler renders the listing view
func Home(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter := itemFilterFromQuery(c)

		items, err := db.GetItems(filter)
		if err != nil {
			log.Error("Cannot fetch items from database: ", err)
		}

		return c.Render(http.StatusOK, "landing.html", map[string]interface{}{
			"baseData": model.BaseData{Active: "home", CurrentUser: currentUser(c), Admin: isAdmin(c)},
			"items":    items,
			"filter":   string(filter.Type),
			"q":        filter.Query,
			"flashes":  getFlashes(c),
		})
	}
}

// LoginPage handler
func LoginPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "login.html", map[string]interface{}{
			"error":   "",
			"flashes": getFlashes(c),
		})
	}
}

// Login handler for the user role
func Login(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		return login(c, db, model.RoleUser, "login.html", util.BasePath+"/")
	}
}

// AdminLoginPage handler
func AdminLoginPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "admin_login.html", map[string]interface{}{
			"error":   "",
			"flashes": getFlashes(c),
		})
	}
}

// AdminLogin handler for the admin role
func AdminLogin(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		return login(c, db, model.RoleAdmin, "admin_login.html", util.BasePath+"/admin/dashboard")
	}
}

// login validates the submitted credentials against one role and either
// starts the session or re-renders the form with an error.
func login(c echo.Context, db store.IStore, role model.Role, tmpl, successURL string) error {
	var payload loginRequest
	if err := c.Bind(&payload); err != nil {
		return c.Render(http.StatusBadRequest, tmpl, map[string]interface{}{
			"error": "Invalid credentials", "flashes": []string{},
		})
	}
	if err := c.Validate(&payload); err != nil {
		return c.Render(http.StatusOK, tmpl, map[string]interface{}{
			"error": "Username and password are required", "flashes": []string{},
		})
	}

	user, err := db.GetUserByCredentials(payload.Username, payload.Password, role)
	if err != nil {
		log.Infof("Failed %s login attempt for %q", role, payload.Username)
		return c.Render(http.StatusOK, tmpl, map[string]interface{}{
			"error": "Invalid credentials", "flashes": []string{},
		})
	}

	setSessionUser(c, user.Username, user.Role)
	return c.Redirect(http.StatusFound, successURL)
}

// RegisterPage handler
func RegisterPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "register.html", map[string]interface{}{
			"error":   "",
			"flashes": getFlashes(c),
		})
	}
}

// Register handler creates a new account with the user role
func Register(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload registerRequest
		if err := c.Bind(&payload); err != nil {
			return c.Render(http.StatusBadRequest, "register.html", map[string]interface{}{
				"error": "Username and password are required", "flashes": []string{},
			})
		}
		if err := c.Validate(&payload); err != nil {
			return c.Render(http.StatusOK, "register.html", map[string]interface{}{
				"error": "Username and password are required", "flashes": []string{},
			})
		}

		err := db.RegisterUser(model.User{Username: payload.Username, Password: payload.Password})
		if errors.Is(err, store.ErrDuplicateUsername) {
			setFlash(c, "Username already exists")
			return c.Redirect(http.StatusFound, util.BasePath+"/register")
		}
		if err != nil {
			log.Error("Cannot register user: ", err)
			return c.Render(http.StatusInternalServerError, "register.html", map[string]interface{}{
				"error": "Cannot create the account", "flashes": []string{},
			})
		}

		log.Infof("Registered new user %q", payload.Username)
		setFlash(c, "Registration successful. Please login.")
		return c.Redirect(http.StatusFound, util.BasePath+"/login")
	}
}

// Logout handler
func Logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		clearSession(c)
		return c.Redirect(http.StatusFound, util.BasePath+"/login")
	}
}

// PostItemPage handler
func PostItemPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "post_item.html", map[string]interface{}{
			"baseData": model.BaseData{Active: "post", CurrentUser: currentUser(c), Admin: isAdmin(c)},
			"flashes":  getFlashes(c),
		})
	}
}

// PostItem handler inserts a listing with an optional uploaded photo.
// When a notifier is configured the site operator gets an email about the
// new listing; a notification failure never fails the request.
func PostItem(db store.IStore, notifier emailer.Emailer) echo.HandlerFunc {
	return func(c echo.Context) error {
		var payload postItemRequest
		if err := c.Bind(&payload); err != nil {
			setFlash(c, "Invalid form submission")
			return c.Redirect(http.StatusFound, util.BasePath+"/post")
		}
		if err := c.Validate(&payload); err != nil {
			setFlash(c, "Title, description and a valid type are required")
			return c.Redirect(http.StatusFound, util.BasePath+"/post")
		}

		// gen ID first so the stored filename can be namespaced by it
		guid := xid.New()

		image := ""
		if file, err := c.FormFile("image"); err == nil && file != nil {
			name := util.SanitizeFilename(file.Filename)
			if name != "" {
				src, err := file.Open()
				if err != nil {
					setFlash(c, "Cannot read the uploaded image")
					return c.Redirect(http.StatusFound, util.BasePath+"/post")
				}
				image = guid.String() + "_" + name
				err = util.SaveUpload(image, src)
				src.Close()
				if err != nil {
					log.Error("Cannot save upload: ", err)
					setFlash(c, "Cannot save the uploaded image")
					return c.Redirect(http.StatusFound, util.BasePath+"/post")
				}
			}
		}

		item := model.Item{
			ID:          guid.String(),
			Title:       payload.Title,
			Description: payload.Description,
			Type:        model.ItemType(payload.Type),
			Image:       image,
			PostedBy:    currentUser(c),
			Contact:     payload.Contact,
			CreatedAt:   time.Now().UTC(),
		}
		if err := db.SaveItem(item); err != nil {
			log.Error("Cannot save item: ", err)
			setFlash(c, "Cannot save the listing")
			return c.Redirect(http.StatusFound, util.BasePath+"/post")
		}
		log.Infof("User %q posted %s item %s", item.PostedBy, item.Type, item.ID)

		if notifier != nil {
			notifyNewItem(notifier, item)
		}

		setFlash(c, "Item posted successfully")
		return c.Redirect(http.StatusFound, util.BasePath+"/")
	}
}

func notifyNewItem(notifier emailer.Emailer, item model.Item) {
	subject := "New " + string(item.Type) + " item: " + item.Title
	content := "<p><strong>" + template.HTMLEscapeString(item.Title) + "</strong> (" + string(item.Type) + ")</p>" +
		"<p>" + template.HTMLEscapeString(item.Description) + "</p>" +
		"<p>Posted by " + template.HTMLEscapeString(item.PostedBy) + ", contact: " + template.HTMLEscapeString(item.Contact) + "</p>"

	var attachments []emailer.Attachment
	if item.Image != "" {
		if data, err := os.ReadFile(filepath.Join(util.UploadDir, item.Image)); err == nil {
			attachments = append(attachments, emailer.Attachment{Name: item.Image, Data: data})
		}
	}

	if err := notifier.Send("", util.NotifyEmailTo, subject, content, attachments); err != nil {
		log.Error("Cannot send new item notification: ", err)
	}
}

// ItemDetail handler renders one listing with a permalink QR code
func ItemDetail(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		item, err := db.GetItemByID(c.Param("id"))
		if err != nil {
			setFlash(c, "Item not found")
			return c.Redirect(http.StatusFound, util.BasePath+"/")
		}

		itemData := model.ItemData{Item: &item}
		png, err := qrcode.Encode(util.AppURL+util.BasePath+"/item/"+item.ID, qrcode.Medium, 256)
		if err != nil {
			log.Error("Cannot generate QR code: ", err)
		} else {
			itemData.QRCode = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		}

		return c.Render(http.StatusOK, "item_detail.html", map[string]interface{}{
			"baseData": model.BaseData{Active: "", CurrentUser: currentUser(c), Admin: isAdmin(c)},
			"itemData": itemData,
			"flashes":  getFlashes(c),
		})
	}
}

// AdminDashboard handler lists every item, newest first
func AdminDashboard(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := db.GetItems(model.ItemFilter{})
		if err != nil {
			log.Error("Cannot fetch items from database: ", err)
		}

		return c.Render(http.StatusOK, "admin_dashboard.html", map[string]interface{}{
			"baseData": model.BaseData{Active: "dashboard", CurrentUser: currentUser(c), Admin: true},
			"items":    items,
			"flashes":  getFlashes(c),
		})
	}
}

// AdminDelete handler removes a listing and its stored photo
func AdminDelete(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")

		item, err := db.GetItemByID(id)
		if err == nil {
			if item.Image != "" {
				if err := util.RemoveUpload(item.Image); err != nil {
					log.Error("Cannot remove uploaded file: ", err)
				}
			}
			if err := db.DeleteItem(id); err != nil {
				log.Error("Cannot delete item: ", err)
				setFlash(c, "Cannot delete the listing")
				return c.Redirect(http.StatusFound, util.BasePath+"/admin/dashboard")
			}
			log.Infof("Admin %q deleted item %s", currentUser(c), id)
		}

		setFlash(c, "Item deleted successfully")
		return c.Redirect(http.StatusFound, util.BasePath+"/admin/dashboard")
	}
}

// GetItems handler returns the listing as JSON
func GetItems(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := db.GetItems(itemFilterFromQuery(c))
		if err != nil {
			log.Error("Cannot fetch items from database: ", err)
			return c.JSON(http.StatusInternalServerError, jsonHTTPResponse{false, "Cannot fetch items from database"})
		}
		return c.JSON(http.StatusOK, items)
	}
}

// GetItem handler returns one item as JSON
func GetItem(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		item, err := db.GetItemByID(c.Param("id"))
		if errors.Is(err, store.ErrInvalidItemID) {
			return c.JSON(http.StatusBadRequest, jsonHTTPResponse{false, "Invalid item id"})
		}
		if err != nil {
			return c.JSON(http.StatusNotFound, jsonHTTPResponse{false, "Item not found"})
		}
		return c.JSON(http.StatusOK, item)
	}
}
