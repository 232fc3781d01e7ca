package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"lostfound/handler"
	"lostfound/model"
	"lostfound/router"
	"lostfound/store/jsondb"
	"lostfound/util"
)

// newTestApp wires the full route table against a throwaway database,
// the way main does.
func newTestApp(t *testing.T) (*echo.Echo, *jsondb.JsonDB) {
	t.Helper()
	return newTestAppAt(t, "")
}

// newTestAppAt mounts the route table under a URL prefix, mirroring
// main when -base-path is set.
func newTestAppAt(t *testing.T, basePath string) (*echo.Echo, *jsondb.JsonDB) {
	t.Helper()

	util.BasePath = basePath
	util.AppURL = "http://lostfound.test"
	util.UploadDir = t.TempDir()
	util.SessionSecret = []byte("test-session-secret")

	db, err := jsondb.New(t.TempDir())
	if err != nil {
		t.Fatalf("cannot create test db: %v", err)
	}
	if err := db.Init(); err != nil {
		t.Fatalf("cannot init test db: %v", err)
	}

	app := router.New(os.DirFS("../templates"), map[string]string{}, util.SessionSecret)

	homePath := basePath + "/"
	if basePath != "" {
		homePath = basePath
	}
	app.GET(homePath, handler.Home(db), handler.ValidSession)
	app.GET(basePath+"/login", handler.LoginPage())
	app.POST(basePath+"/login", handler.Login(db))
	app.GET(basePath+"/register", handler.RegisterPage())
	app.POST(basePath+"/register", handler.Register(db))
	app.GET(basePath+"/logout", handler.Logout())
	app.GET(basePath+"/post", handler.PostItemPage(), handler.ValidUserSession)
	app.POST(basePath+"/post", handler.PostItem(db, nil), handler.ValidUserSession)
	app.GET(basePath+"/item/:id", handler.ItemDetail(db), handler.ValidSession)
	app.GET(basePath+"/admin/login", handler.AdminLoginPage())
	app.POST(basePath+"/admin/login", handler.AdminLogin(db))
	app.GET(basePath+"/admin/dashboard", handler.AdminDashboard(db), handler.ValidAdminSession)
	app.GET(basePath+"/admin/delete/:id", handler.AdminDelete(db), handler.ValidAdminSession)
	app.GET(basePath+"/api/items", handler.GetItems(db), handler.ValidSession)
	app.GET(basePath+"/api/item/:id", handler.GetItem(db), handler.ValidSession)

	return app, db
}

func doGet(app *echo.Echo, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func doPostForm(app *echo.Echo, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

// loginAs performs a login POST and returns the session cookies.
func loginAs(t *testing.T, app *echo.Echo, path, username, password string) []*http.Cookie {
	t.Helper()
	rec := doPostForm(app, path, url.Values{"username": {username}, "password": {password}}, nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("login via %s returned status %d, want redirect", path, rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login did not set a session cookie")
	}
	return cookies
}

func registerUser(t *testing.T, db *jsondb.JsonDB, username, password string) {
	t.Helper()
	if err := db.RegisterUser(model.User{Username: username, Password: password}); err != nil {
		t.Fatalf("cannot register test user: %v", err)
	}
}

func TestHomeRequiresSession(t *testing.T) {
	app, _ := newTestApp(t)

	rec := doGet(app, "/", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want redirect", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/login" {
		t.Errorf("redirect location = %q, want /login", loc)
	}
}

func TestUnauthenticatedPostRedirects(t *testing.T) {
	app, db := newTestApp(t)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/post", nil)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login" {
			t.Errorf("%s /post: status %d location %q, want redirect to /login",
				method, rec.Code, rec.Header().Get(echo.HeaderLocation))
		}
	}

	items, err := db.GetItems(model.ItemFilter{})
	if err != nil {
		t.Fatalf("GetItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("unauthenticated request mutated the store: %d items", len(items))
	}
}

func TestLoginSuccessAndFailure(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "alice", "secret")

	cookies := loginAs(t, app, "/login", "alice", "secret")
	if rec := doGet(app, "/", cookies); rec.Code != http.StatusOK {
		t.Errorf("home with session: status %d, want 200", rec.Code)
	}

	// wrong password stays on the form with an error
	rec := doPostForm(app, "/login", url.Values{"username": {"alice"}, "password": {"wrong"}}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("failed login status = %d, want 200 (re-rendered form)", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Error("failed login response does not show the error")
	}

	// a rejected attempt must not touch the session
	failedCookies := rec.Result().Cookies()
	if len(failedCookies) != 0 {
		t.Errorf("failed login set %d cookies, want none", len(failedCookies))
	}
	if home := doGet(app, "/", failedCookies); home.Code != http.StatusFound {
		t.Errorf("failed login granted access to home: status %d", home.Code)
	}

	// an admin account cannot use the user login
	rec = doPostForm(app, "/login", url.Values{"username": {util.DefaultAdminUsername}, "password": {util.DefaultAdminPassword}}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Error("admin credentials must be rejected by the user login flow")
	}
}

func TestRegisterFlow(t *testing.T) {
	app, db := newTestApp(t)

	form := url.Values{"username": {"bob"}, "password": {"hunter2"}}
	rec := doPostForm(app, "/register", form, nil)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login" {
		t.Fatalf("registration: status %d location %q, want redirect to /login",
			rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	if _, err := db.GetUserByName("bob"); err != nil {
		t.Fatalf("registered account not stored: %v", err)
	}

	// duplicate registration redirects back to the form
	rec = doPostForm(app, "/register", form, nil)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/register" {
		t.Errorf("duplicate registration: status %d location %q, want redirect to /register",
			rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestLogout(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "carol", "pw")
	cookies := loginAs(t, app, "/login", "carol", "pw")

	rec := doGet(app, "/logout", cookies)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login" {
		t.Fatalf("logout: status %d, want redirect to /login", rec.Code)
	}

	// the cleared cookie no longer grants access
	cleared := rec.Result().Cookies()
	if rec := doGet(app, "/", cleared); rec.Code != http.StatusFound {
		t.Errorf("session still valid after logout: status %d", rec.Code)
	}
}

func TestPostItemWithUpload(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "dave", "pw")
	cookies := loginAs(t, app, "/login", "dave", "pw")

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.WriteField("title", "Black Wallet")
	mw.WriteField("description", "Lost near the library")
	mw.WriteField("type", "lost")
	mw.WriteField("contact", "dave@example.com")
	fw, err := mw.CreateFormFile("image", "My Photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte("fake png bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/post", body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/" {
		t.Fatalf("post item: status %d location %q, want redirect home", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}

	items, err := db.GetItems(model.ItemFilter{})
	if err != nil || len(items) != 1 {
		t.Fatalf("items = %d (err %v), want 1", len(items), err)
	}
	item := items[0]
	if item.PostedBy != "dave" {
		t.Errorf("posted_by = %q, want the session user", item.PostedBy)
	}
	if item.Type != model.ItemLost {
		t.Errorf("type = %q, want lost", item.Type)
	}

	// stored filename is namespaced by item id and sanitized
	want := item.ID + "_My_Photo.png"
	if item.Image != want {
		t.Errorf("image = %q, want %q", item.Image, want)
	}
	data, err := os.ReadFile(filepath.Join(util.UploadDir, item.Image))
	if err != nil {
		t.Fatalf("uploaded file not stored: %v", err)
	}
	if !bytes.Equal(data, []byte("fake png bytes")) {
		t.Error("stored upload bytes differ from the submitted file")
	}
}

func TestPostItemWithoutImage(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "erin", "pw")
	cookies := loginAs(t, app, "/login", "erin", "pw")

	form := url.Values{
		"title":       {"Car Keys"},
		"description": {"Found in parking lot B"},
		"type":        {"found"},
	}
	rec := doPostForm(app, "/post", form, cookies)
	if rec.Code != http.StatusFound {
		t.Fatalf("post item: status %d, want redirect", rec.Code)
	}

	items, _ := db.GetItems(model.ItemFilter{})
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].Image != "" {
		t.Errorf("image = %q, want none", items[0].Image)
	}
}

func TestPostItemRejectsInvalidType(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "frank", "pw")
	cookies := loginAs(t, app, "/login", "frank", "pw")

	form := url.Values{
		"title":       {"Thing"},
		"description": {"desc"},
		"type":        {"stolen"},
	}
	rec := doPostForm(app, "/post", form, cookies)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/post" {
		t.Errorf("invalid type: status %d location %q, want redirect back to /post",
			rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	items, _ := db.GetItems(model.ItemFilter{})
	if len(items) != 0 {
		t.Error("invalid submission must not be stored")
	}
}

func TestAdminRoleGate(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "grace", "pw")
	userCookies := loginAs(t, app, "/login", "grace", "pw")

	// no session and user session both bounce to the admin login
	for name, cookies := range map[string][]*http.Cookie{"anonymous": nil, "user role": userCookies} {
		rec := doGet(app, "/admin/dashboard", cookies)
		if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/admin/login" {
			t.Errorf("%s: status %d location %q, want redirect to /admin/login",
				name, rec.Code, rec.Header().Get(echo.HeaderLocation))
		}
	}

	// a user session must not reach the posting flow as admin either
	adminCookies := loginAs(t, app, "/admin/login", util.DefaultAdminUsername, util.DefaultAdminPassword)
	rec := doGet(app, "/post", adminCookies)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login" {
		t.Errorf("admin on /post: status %d, want redirect to /login", rec.Code)
	}
}

func TestAdminDeleteItemAndUpload(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "heidi", "pw")
	userCookies := loginAs(t, app, "/login", "heidi", "pw")

	// post an item with a photo
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.WriteField("title", "Umbrella")
	mw.WriteField("description", "black, left on bus 12")
	mw.WriteField("type", "lost")
	fw, _ := mw.CreateFormFile("image", "umbrella.jpg")
	fw.Write([]byte("jpg"))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/post", body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	for _, c := range userCookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("post item: status %d", rec.Code)
	}

	items, _ := db.GetItems(model.ItemFilter{})
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item := items[0]

	adminCookies := loginAs(t, app, "/admin/login", util.DefaultAdminUsername, util.DefaultAdminPassword)
	rec = doGet(app, "/admin/delete/"+item.ID, adminCookies)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/admin/dashboard" {
		t.Fatalf("admin delete: status %d location %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}

	if remaining, _ := db.GetItems(model.ItemFilter{}); len(remaining) != 0 {
		t.Error("item still present after admin delete")
	}
	if _, err := os.Stat(filepath.Join(util.UploadDir, item.Image)); !os.IsNotExist(err) {
		t.Error("uploaded photo still present after admin delete")
	}
}

func TestItemDetail(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "ivan", "pw")
	cookies := loginAs(t, app, "/login", "ivan", "pw")

	form := url.Values{
		"title":       {"Phone"},
		"description": {"blue case"},
		"type":        {"found"},
		"contact":     {"555-0110"},
	}
	if rec := doPostForm(app, "/post", form, cookies); rec.Code != http.StatusFound {
		t.Fatalf("post item: status %d", rec.Code)
	}
	items, _ := db.GetItems(model.ItemFilter{})
	item := items[0]

	rec := doGet(app, "/item/"+item.ID, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("item detail: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Phone") {
		t.Error("detail page does not show the item title")
	}
	if !strings.Contains(rec.Body.String(), "data:image/png;base64,") {
		t.Error("detail page does not carry the permalink QR code")
	}

	// malformed and absent ids both flash and go home
	for _, id := range []string{"not-an-id", "9m4e2mr0ui3e8a215n4g"} {
		rec := doGet(app, "/item/"+id, cookies)
		if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/" {
			t.Errorf("item %q: status %d location %q, want redirect home",
				id, rec.Code, rec.Header().Get(echo.HeaderLocation))
		}
	}
}

func TestHomeFilterAndSearch(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "judy", "pw")
	cookies := loginAs(t, app, "/login", "judy", "pw")

	post := func(title, desc, typ string) {
		form := url.Values{"title": {title}, "description": {desc}, "type": {typ}}
		if rec := doPostForm(app, "/post", form, cookies); rec.Code != http.StatusFound {
			t.Fatalf("post %q: status %d", title, rec.Code)
		}
	}
	post("Black Wallet", "lost near the library", "lost")
	post("Car Keys", "found in parking lot B", "found")

	rec := doGet(app, "/?filter=lost", cookies)
	if !strings.Contains(rec.Body.String(), "Black Wallet") || strings.Contains(rec.Body.String(), "Car Keys") {
		t.Error("type filter did not narrow the listing")
	}

	rec = doGet(app, "/?q=WALLET", cookies)
	if !strings.Contains(rec.Body.String(), "Black Wallet") || strings.Contains(rec.Body.String(), "Car Keys") {
		t.Error("search did not match case-insensitively against title")
	}
}

func TestItemsAPI(t *testing.T) {
	app, db := newTestApp(t)
	registerUser(t, db, "kate", "pw")
	cookies := loginAs(t, app, "/login", "kate", "pw")

	// API is session-gated like the pages
	if rec := doGet(app, "/api/items", nil); rec.Code != http.StatusFound {
		t.Errorf("anonymous API request: status %d, want redirect", rec.Code)
	}

	form := url.Values{"title": {"Scarf"}, "description": {"red wool"}, "type": {"found"}}
	if rec := doPostForm(app, "/post", form, cookies); rec.Code != http.StatusFound {
		t.Fatalf("post item: status %d", rec.Code)
	}

	rec := doGet(app, "/api/items?filter=found", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("api items: status %d", rec.Code)
	}
	var items []model.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("cannot decode api response: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Scarf" {
		t.Errorf("api returned %d items, want the scarf", len(items))
	}

	single := doGet(app, "/api/item/"+items[0].ID, cookies)
	if single.Code != http.StatusOK {
		t.Errorf("api item: status %d", single.Code)
	}
	if rec := doGet(app, "/api/item/not-an-id", cookies); rec.Code != http.StatusBadRequest {
		t.Errorf("api malformed id: status %d, want 400", rec.Code)
	}
	if rec := doGet(app, "/api/item/9m4e2mr0ui3e8a215n4g", cookies); rec.Code != http.StatusNotFound {
		t.Errorf("api absent id: status %d, want 404", rec.Code)
	}
}

func TestMountedUnderBasePath(t *testing.T) {
	app, db := newTestAppAt(t, "/lf")
	registerUser(t, db, "liam", "pw")

	// rendered forms and links carry the prefix
	rec := doGet(app, "/lf/login", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login page: status %d", rec.Code)
	}
	for _, want := range []string{`action="/lf/login"`, `href="/lf/register"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("login page missing %s", want)
		}
	}

	cookies := loginAs(t, app, "/lf/login", "liam", "pw")
	if cookies[0].Path != "/lf/" {
		t.Errorf("session cookie path = %q, want /lf/", cookies[0].Path)
	}

	rec = doGet(app, "/lf/", cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("home under base path: status %d", rec.Code)
	}
	for _, want := range []string{`href="/lf/post"`, `action="/lf/"`, `href="/lf/logout"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("home page missing %s", want)
		}
	}

	// logout expires the cookie at the path it was set on
	rec = doGet(app, "/lf/logout", cookies)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/lf/login" {
		t.Fatalf("logout: status %d location %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			cleared = c
		}
	}
	if cleared == nil {
		t.Fatal("logout did not rewrite the session cookie")
	}
	if cleared.Path != "/lf/" {
		t.Errorf("cleared cookie path = %q, want /lf/", cleared.Path)
	}
	if cleared.MaxAge >= 0 {
		t.Errorf("cleared cookie max-age = %d, want expiry", cleared.MaxAge)
	}
}
