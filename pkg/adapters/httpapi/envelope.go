// Package httpapi talks to the content service and the identity provider
// over HTTP.
package httpapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/orbit/pkg/core"
)

// result is the variant envelope every content route answers with:
// {"Ok": value} or {"Err": "text"}.
type result[T any] struct {
	Ok  *T      `json:"Ok,omitempty"`
	Err *string `json:"Err,omitempty"`
}

// unit decodes the empty payload of {"Ok": null} and {"Ok": {}}.
type unit struct{}

// wireDweet is a dweet as serialized by the content service. Timestamps
// are nanoseconds since the epoch.
type wireDweet struct {
	ID        uint64 `json:"id"`
	Author    string `json:"author"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
}

func (w wireDweet) dweet() core.Dweet {
	return core.Dweet{
		ID:        w.ID,
		Author:    core.NewIdentity(w.Author),
		Message:   w.Message,
		CreatedAt: time.Unix(0, w.CreatedAt).UTC(),
	}
}

func toWire(d core.Dweet) wireDweet {
	return wireDweet{
		ID:        d.ID,
		Author:    d.Author.Handle,
		Message:   d.Message,
		CreatedAt: d.CreatedAt.UnixNano(),
	}
}

func dweets(in []wireDweet) []core.Dweet {
	out := make([]core.Dweet, len(in))
	for i, w := range in {
		out[i] = w.dweet()
	}
	return out
}

type messageBody struct {
	Message string `json:"message"`
}

// decodeResult unwraps an envelope. An Err variant becomes a
// *core.ServerRejection carrying the text verbatim.
func decodeResult[T any](op string, data []byte) (T, error) {
	var zero T
	var r result[T]
	if err := json.Unmarshal(data, &r); err != nil {
		return zero, fmt.Errorf("%s: %w: invalid response: %v", op, core.ErrTransportFailure, err)
	}
	if r.Err != nil {
		return zero, core.Reject(op, *r.Err)
	}
	if r.Ok == nil {
		return zero, nil
	}
	return *r.Ok, nil
}
