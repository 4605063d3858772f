package util

const DateFormat = "2006-01-02"

// MaxUserIDLength 与 user_id 列宽一致（按字符计）
const MaxUserIDLength = 191

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// 上下文键
const (
	ContextRequestID = "requestId"
	HeaderRequestID  = "X-Request-ID"
)
