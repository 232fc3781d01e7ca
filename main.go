package main

import (
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"

	"lostfound/emailer"
	"lostfound/handler"
	"lostfound/router"
	"lostfound/store/jsondb"
	"lostfound/util"
)

//go:embed templates
var embeddedTemplates embed.FS

var (
	// command-line banner information
	appVersion = "development"
	gitCommit  = "N/A"
	buildTime  = time.Now().UTC().Format("01-02-2006 15:04:05")
	// configuration variables
	flagBindAddress    string = "0.0.0.0:5000"
	flagSessionSecret  string = "lost_and_found_wp"
	flagBasePath       string
	flagAppURL         string = "http://localhost:5000"
	flagDBPath         string = "./db"
	flagUploadDir      string = "./static/uploads"
	flagEmailFrom      string
	flagEmailFromName  string = "Lost & Found"
	flagNotifyEmailTo  string
	flagSendgridApiKey string
	flagSmtpHostname   string = "127.0.0.1"
	flagSmtpPort       int    = 25
	flagSmtpUsername   string
	flagSmtpPassword   string
	flagSmtpAuthType   string = "None"
	flagSmtpNoTLSCheck bool   = false
	flagSmtpEncryption string = "STARTTLS"
)

func init() {
	// `.env` files are optional
	godotenv.Load()

	// command-line flags and env variables
	flag.StringVar(&flagBindAddress, "bind-address", util.LookupEnvOrString("BIND_ADDRESS", flagBindAddress), "Address:Port to which the app will be bound.")
	flag.StringVar(&flagSessionSecret, "session-secret", util.LookupEnvOrString("SESSION_SECRET", flagSessionSecret), "The key used to encrypt session cookies.")
	flag.StringVar(&flagBasePath, "base-path", util.LookupEnvOrString("BASE_PATH", flagBasePath), "The base path of the URL.")
	flag.StringVar(&flagAppURL, "app-url", util.LookupEnvOrString("APP_URL", flagAppURL), "The public URL of the app, used for permalinks.")
	flag.StringVar(&flagDBPath, "db-path", util.LookupEnvOrString("DB_PATH", flagDBPath), "The directory of the json database.")
	flag.StringVar(&flagUploadDir, "upload-dir", util.LookupEnvOrString("UPLOAD_DIR", flagUploadDir), "The directory uploaded photos are stored in.")
	flag.StringVar(&flagEmailFrom, "email-from", util.LookupEnvOrString("EMAIL_FROM_ADDRESS", flagEmailFrom), "'From' email address.")
	flag.StringVar(&flagEmailFromName, "email-from-name", util.LookupEnvOrString("EMAIL_FROM_NAME", flagEmailFromName), "'From' email name.")
	flag.StringVar(&flagNotifyEmailTo, "notify-email-to", util.LookupEnvOrString("NOTIFY_EMAIL_TO", flagNotifyEmailTo), "Address notified about new listings. Empty disables notifications.")
	flag.StringVar(&flagSendgridApiKey, "sendgrid-api-key", util.LookupEnvOrString("SENDGRID_API_KEY", flagSendgridApiKey), "Your sendgrid api key.")
	flag.StringVar(&flagSmtpHostname, "smtp-hostname", util.LookupEnvOrString("SMTP_HOSTNAME", flagSmtpHostname), "SMTP hostname.")
	flag.IntVar(&flagSmtpPort, "smtp-port", util.LookupEnvOrInt("SMTP_PORT", flagSmtpPort), "SMTP port.")
	flag.StringVar(&flagSmtpUsername, "smtp-username", util.LookupEnvOrString("SMTP_USERNAME", flagSmtpUsername), "SMTP username.")
	flag.StringVar(&flagSmtpPassword, "smtp-password", util.LookupEnvOrString("SMTP_PASSWORD", flagSmtpPassword), "SMTP password.")
	flag.StringVar(&flagSmtpAuthType, "smtp-auth-type", util.LookupEnvOrString("SMTP_AUTH_TYPE", flagSmtpAuthType), "SMTP auth type: PLAIN, LOGIN or NONE.")
	flag.BoolVar(&flagSmtpNoTLSCheck, "smtp-no-tls-check", util.LookupEnvOrBool("SMTP_NO_TLS_CHECK", flagSmtpNoTLSCheck), "Disable TLS certificate verification for SMTP.")
	flag.StringVar(&flagSmtpEncryption, "smtp-encryption", util.LookupEnvOrString("SMTP_ENCRYPTION", flagSmtpEncryption), "SMTP encryption: NONE, SSL, SSLTLS, TLS or STARTTLS.")
	flag.Parse()

	// update runtime config
	util.BindAddress = flagBindAddress
	util.SessionSecret = []byte(flagSessionSecret)
	util.BasePath = flagBasePath
	util.AppURL = flagAppURL
	util.DBPath = flagDBPath
	util.UploadDir = flagUploadDir
	util.EmailFrom = flagEmailFrom
	util.EmailFromName = flagEmailFromName
	util.NotifyEmailTo = flagNotifyEmailTo
	util.SendgridApiKey = flagSendgridApiKey
	util.SmtpHostname = flagSmtpHostname
	util.SmtpPort = flagSmtpPort
	util.SmtpUsername = flagSmtpUsername
	util.SmtpPassword = flagSmtpPassword
	util.SmtpAuthType = flagSmtpAuthType
	util.SmtpNoTLSCheck = flagSmtpNoTLSCheck
	util.SmtpEncryption = flagSmtpEncryption

	// print app information
	fmt.Println("Lost & Found")
	fmt.Println("App Version\t:", appVersion)
	fmt.Println("Git Commit\t:", gitCommit)
	fmt.Println("Build Time\t:", buildTime)
	fmt.Println("Bind address\t:", util.BindAddress)
	fmt.Println("Database path\t:", util.DBPath)
	fmt.Println("Upload dir\t:", util.UploadDir)
}

func main() {
	db, err := jsondb.New(util.DBPath)
	if err != nil {
		log.Fatal("Cannot open the database: ", err)
	}
	if err := db.Init(); err != nil {
		log.Fatal("Cannot initialize the database: ", err)
	}

	// the operator email notifier is optional
	var notifier emailer.Emailer
	if util.NotifyEmailTo != "" {
		if util.SendgridApiKey != "" {
			notifier = emailer.NewSendgridApiMail(util.SendgridApiKey, util.EmailFromName, util.EmailFrom)
		} else {
			notifier = emailer.NewSmtpMail(util.SmtpHostname, util.SmtpPort, util.SmtpUsername, util.SmtpPassword,
				util.SmtpNoTLSCheck, util.SmtpAuthType, util.EmailFromName, util.EmailFrom, util.SmtpEncryption)
		}
	}

	// set app extra data
	extraData := make(map[string]string)
	extraData["appVersion"] = appVersion

	tmplDir, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		log.Fatal(err)
	}

	// register routes
	app := router.New(tmplDir, extraData, util.SessionSecret)

	// RemoveTrailingSlash rewrites "<basePath>/" to "<basePath>" before routing
	homePath := util.BasePath + "/"
	if util.BasePath != "" {
		homePath = util.BasePath
	}
	app.GET(homePath, handler.Home(db), handler.ValidSession)
	app.GET(util.BasePath+"/login", handler.LoginPage())
	app.POST(util.BasePath+"/login", handler.Login(db))
	app.GET(util.BasePath+"/register", handler.RegisterPage())
	app.POST(util.BasePath+"/register", handler.Register(db))
	app.GET(util.BasePath+"/logout", handler.Logout())
	app.GET(util.BasePath+"/post", handler.PostItemPage(), handler.ValidUserSession)
	app.POST(util.BasePath+"/post", handler.PostItem(db, notifier), handler.ValidUserSession)
	app.GET(util.BasePath+"/item/:id", handler.ItemDetail(db), handler.ValidSession)
	app.GET(util.BasePath+"/admin/login", handler.AdminLoginPage())
	app.POST(util.BasePath+"/admin/login", handler.AdminLogin(db))
	app.GET(util.BasePath+"/admin/dashboard", handler.AdminDashboard(db), handler.ValidAdminSession)
	app.GET(util.BasePath+"/admin/delete/:id", handler.AdminDelete(db), handler.ValidAdminSession)
	app.GET(util.BasePath+"/api/items", handler.GetItems(db), handler.ValidSession)
	app.GET(util.BasePath+"/api/item/:id", handler.GetItem(db), handler.ValidSession)

	// serve uploaded photos
	app.Static(util.BasePath+"/static/uploads", util.UploadDir)

	app.Logger.Fatal(app.Start(util.BindAddress))
}
