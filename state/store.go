// Package state stores the per key and window state of the trigger engine.
package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/RuiFG/streaming-trigger/window"
)

// Namespace scopes state to one key and window.
type Namespace struct {
	Key    string
	Window window.Window
}

func (n Namespace) String() string {
	return fmt.Sprintf("%s@%s", n.Key, n.Window)
}

// Store is a keyed byte store. Calls for one namespace are serialized by the caller.
type Store interface {
	// Get returns the value of field, reporting false when it is unset.
	Get(ns Namespace, field string) ([]byte, bool, error)
	Set(ns Namespace, field string, value []byte) error
	Clear(ns Namespace, field string) error
	// ClearNamespace drops every field of ns.
	ClearNamespace(ns Namespace) error
	Close() error
}

// formatBucket encodes ns as "start:end:key", key last so it may hold any byte.
func formatBucket(ns Namespace) string {
	return strconv.FormatInt(ns.Window.Start(), 10) + ":" + strconv.FormatInt(ns.Window.End(), 10) + ":" + ns.Key
}

func parseBucket(bucket string) (Namespace, error) {
	parts := strings.SplitN(bucket, ":", 3)
	if len(parts) != 3 {
		return Namespace{}, errors.Errorf("malformed namespace bucket %q", bucket)
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Namespace{}, errors.WithMessagef(err, "malformed namespace bucket %q", bucket)
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Namespace{}, errors.WithMessagef(err, "malformed namespace bucket %q", bucket)
	}
	w, err := window.New(start, end)
	if err != nil {
		return Namespace{}, errors.WithMessagef(err, "malformed namespace bucket %q", bucket)
	}
	return Namespace{Key: parts[2], Window: w}, nil
}
