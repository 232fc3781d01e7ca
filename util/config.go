package util

// Runtime config
var (
	BindAddress    string
	SessionSecret  []byte
	BasePath       string
	AppURL         string
	DBPath         string
	UploadDir      string
	EmailFrom      string
	EmailFromName  string
	NotifyEmailTo  string
	SendgridApiKey string
	SmtpHostname   string
	SmtpPort       int
	SmtpUsername   string
	SmtpPassword   string
	SmtpAuthType   string
	SmtpEncryption string
	SmtpNoTLSCheck bool
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"

	AdminUsernameEnvVar = "LF_ADMIN_USERNAME"
	AdminPasswordEnvVar = "LF_ADMIN_PASSWORD"
	LogLevel            = "LF_LOG_LEVEL"
)
