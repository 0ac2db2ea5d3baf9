// Package command implements the command layer: parsing a frame into
// one of the protocol's command variants and executing it against the
// store over a connection.
package command

import (
	"context"
	"strings"

	"github.com/RamziA961/insomnia-db/internal/frame"
	"github.com/RamziA961/insomnia-db/internal/netconn"
	"github.com/RamziA961/insomnia-db/internal/store"
)

// Command is the shared surface every variant implements.
type Command interface {
	// Representation is the lowercased command name as it appears on the
	// wire.
	Representation() string

	// Execute performs the operation and writes the response frame(s).
	// Returned errors are transport failures (I/O); client-visible
	// application errors are written as Error frames by Execute itself.
	Execute(ctx context.Context, s *store.Store, conn *netconn.Connection, shutdown <-chan struct{}) error

	// ToFrame builds the request frame a client would send to invoke this
	// command.
	ToFrame() frame.Frame
}

type parseFunc func(w *frame.Walker) (Command, error)

var registry = map[string]parseFunc{
	"ping":      func(w *frame.Walker) (Command, error) { return parsePing(w) },
	"get":       func(w *frame.Walker) (Command, error) { return parseGet(w) },
	"set":       func(w *frame.Walker) (Command, error) { return parseSet(w) },
	"publish":   func(w *frame.Walker) (Command, error) { return parsePublish(w) },
	"subscribe": func(w *frame.Walker) (Command, error) { return parseSubscribe(w) },
}

// Dispatch parses f into its command variant and executes it. Parse
// failures, unknown commands, and trailing arguments are written to conn
// as an Error frame rather than returned; only transport-level (write)
// failures are returned.
func Dispatch(ctx context.Context, f frame.Frame, s *store.Store, conn *netconn.Connection, shutdown <-chan struct{}) error {
	w, err := frame.NewWalker(f)
	if err != nil {
		return conn.WriteFrame(frame.Err("ERR expected array frame"))
	}

	name, err := w.NextString()
	if err != nil {
		return conn.WriteFrame(frame.Err("ERR missing command name"))
	}

	parse, ok := registry[strings.ToLower(name)]
	if !ok {
		return conn.WriteFrame(frame.Err("ERR unknown command '" + name + "'"))
	}

	cmd, err := parse(w)
	if err != nil {
		return conn.WriteFrame(frame.Err("ERR " + err.Error()))
	}
	if err := w.Finish(); err != nil {
		return conn.WriteFrame(frame.Err("ERR " + err.Error()))
	}

	return cmd.Execute(ctx, s, conn, shutdown)
}
