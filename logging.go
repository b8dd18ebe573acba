package nircamera

import (
	"context"
	"fmt"

	"github.com/inconshreveable/log15"

	"github.com/DKandrew/NirCamera/log"
)

type log15Handler struct {
	log.Logger
}

// The server and connection internals log through log15 directly, so a
// caller-supplied log.Logger needs converting. If it already satisfies the
// log15.Logger interface (e.g. it came from the log/log15 adapter package),
// downcast and use it directly instead of wrapping it a second time.
func toLog15(l log.Logger) log15.Logger {
	if logger, ok := l.(log15.Logger); ok {
		return logger
	}

	logger := log15.New()
	logger.SetHandler(&log15Handler{l})

	return logger
}

func (l *log15Handler) Log(r *log15.Record) error {
	lvl := log.LogLevelNone
	switch r.Lvl {
	case log15.LvlCrit:
		lvl = log.LogLevelError
	case log15.LvlError:
		lvl = log.LogLevelError
	case log15.LvlWarn:
		lvl = log.LogLevelWarn
	case log15.LvlInfo:
		lvl = log.LogLevelInfo
	case log15.LvlDebug:
		lvl = log.LogLevelDebug
	case log15.LvlDebug + 1:
		lvl = log.LogLevelTrace
	}

	data := make(map[string]interface{}, len(r.Ctx)/2)
	for i := 0; i < len(r.Ctx); i += 2 {
		var (
			k  string
			ok bool
			v  interface{}
		)
		k, ok = r.Ctx[i].(string)
		if !ok {
			k = fmt.Sprint(r.Ctx[i])
		}
		if len(r.Ctx) > i+1 {
			v = r.Ctx[i+1]
		} else {
			v = "MISSING_VALUE"
		}
		data[k] = v
	}

	l.Logger.Log(context.Background(), lvl, r.Msg, data)
	return nil
}

// connLogger scopes a server-wide logger down to one connection slot, the
// way tunnel/client's session scopes a logger per session.
func connLogger(base log15.Logger, slotID int) log15.Logger {
	return base.New("conn_id", slotID)
}
