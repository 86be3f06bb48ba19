package logger

import (
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

var (
	rootOnce sync.Once
	root     *logrus.Logger
)

// New returns a logger over the process-wide root, so SetLevel on any of them
// reaches every component logger.
func New() *Logger {
	rootOnce.Do(func() { root = newBase(os.Stdout) })
	return &Logger{Entry: logrus.NewEntry(root)}
}

// NewWithOutput builds a standalone logger writing to w. Tests pass a buffer.
func NewWithOutput(w io.Writer) *Logger {
	return &Logger{Entry: logrus.NewEntry(newBase(w))}
}

func newBase(w io.Writer) *logrus.Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     true,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(w)
	base.SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
	return base
}

// ParseLevel maps LOG_LEVEL values onto logrus levels, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel changes the level of the underlying logger and every entry derived from it.
func (l *Logger) SetLevel(level string) {
	l.Logger.SetLevel(ParseLevel(level))
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", name)}
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithJob tags an entry with the job and owning account.
func (l *Logger) WithJob(jobID, accountID string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"job_id":     jobID,
		"account_id": accountID,
	})
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
