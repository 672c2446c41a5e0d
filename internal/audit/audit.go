package audit

import (
	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

// Event is one moderation decision worth keeping a trail of.
type Event struct {
	Kind      string
	ChatID    int64
	ChatTitle string
	UserID    int64
	Username  string
	Detail    string
}

// Log is the structured audit sink. Implementations must be safe for
// concurrent use.
type Log interface {
	Record(event Event)
}

type logrusLog struct {
	entry *log.Entry
}

func NewLog() Log {
	return &logrusLog{entry: log.WithField("context", "audit")}
}

func (l *logrusLog) Record(event Event) {
	l.entry.WithFields(log.Fields{
		"event_id":   uuid.New(),
		"kind":       event.Kind,
		"chat_id":    event.ChatID,
		"chat_title": event.ChatTitle,
		"user_id":    event.UserID,
		"username":   event.Username,
		"details":    event.Detail,
	}).Info(event.Kind)
}
