package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GoRecoverable runs f and restarts it in a fresh goroutine after a panic.
// A negative maxPanics restarts forever; zero aborts the process on the
// first panic.
func GoRecoverable(maxPanics int, id string, f func()) {
	defer func() {
		err := recover()
		if err == nil {
			return
		}
		log.WithFields(log.Fields{
			"job":    id,
			"panic":  fmt.Sprintf("%v", err),
			"source": identifyPanic(),
		}).Error("job panicked")

		if maxPanics == 0 {
			log.WithField("job", id).Fatalln("panic limit exceeded, exiting")
		}
		if maxPanics > 0 {
			maxPanics--
		}
		log.WithFields(log.Fields{"job": id, "restarts_left": maxPanics}).Debug("restarting job")
		go GoRecoverable(maxPanics, id, f)
	}()
	f()
}

// identifyPanic walks past the runtime frames to the first caller worth
// blaming.
func identifyPanic() string {
	var pc [16]uintptr
	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if strings.HasPrefix(name, "runtime.") {
			continue
		}
		_, line := fn.FileLine(pc)
		return fmt.Sprintf("%s:%d", name, line)
	}
	return "unknown"
}
