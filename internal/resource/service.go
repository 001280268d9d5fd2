// Package resource adapts one upstream REST resource to the normalized
// envelope shape. One generic Service replaces a per-entity service file.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/envelope"
)

// methodOverride is the form field the upstream reads to treat a POST as PUT.
const methodOverride = "_method"

// Payload is the field set of a create or update. When Files is non-empty
// the request is sent as multipart/form-data.
type Payload struct {
	Fields map[string]any
	Files  []apiclient.File
}

// Error is a failed upstream call with its extracted message.
type Error struct {
	Op         string
	Resource   string
	StatusCode int // 0 for transport failures
	Message    string
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// RejectedError is an HTTP success whose envelope says the operation failed.
type RejectedError struct {
	Op       string
	Resource string
	Message  string
}

func (e *RejectedError) Error() string { return e.Message }

// Service talks to one upstream resource.
type Service[T any] struct {
	client *apiclient.Client
	path   string
}

func NewService[T any](client *apiclient.Client, path string) *Service[T] {
	return &Service[T]{client: client, path: path}
}

func (s *Service[T]) Path() string { return s.path }

// List fetches the collection. Unrecognized shapes normalize to an empty
// list; only transport failures return an error.
func (s *Service[T]) List(ctx context.Context, filters url.Values) (envelope.Envelope[[]T], error) {
	body, err := s.client.Get(ctx, "/"+s.path, filters)
	if err != nil {
		return envelope.Envelope[[]T]{Data: []T{}}, s.fail(enum.OpList, err)
	}
	return envelope.DecodeList[T](body, envelope.MsgListed), nil
}

// Detail fetches one record. A response without a recognizable entity is an
// *envelope.InvalidDataError.
func (s *Service[T]) Detail(ctx context.Context, id string) (T, error) {
	var zero T
	body, err := s.client.Get(ctx, s.itemPath(id), nil)
	if err != nil {
		return zero, s.fail(enum.OpDetail, err)
	}
	return envelope.DecodeDetail[T](body)
}

func (s *Service[T]) Create(ctx context.Context, p Payload) (envelope.Envelope[T], error) {
	body, err := s.send(ctx, "/"+s.path, p, false)
	if err != nil {
		return envelope.Envelope[T]{}, s.fail(enum.OpCreate, err)
	}
	return envelope.DecodeWrite[T](body, envelope.MsgCreated), nil
}

// Update posts the fields with a PUT method override. Resources that refuse
// the override (422 or 405) get exactly one plain POST with the original
// fields; the result of whichever attempt ran last is returned.
func (s *Service[T]) Update(ctx context.Context, id string, p Payload) (envelope.Envelope[T], error) {
	path := s.itemPath(id)

	body, err := s.send(ctx, path, p, true)
	if err != nil && overrideRefused(err) {
		body, err = s.send(ctx, path, p, false)
	}
	if err != nil {
		return envelope.Envelope[T]{}, s.fail(enum.OpUpdate, err)
	}
	return envelope.DecodeWrite[T](body, envelope.MsgUpdated), nil
}

// Delete posts to /{resource}/delete/{id}. The response body is ignored
// unless it carries an explicit false status.
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	body, err := s.client.Post(ctx, "/"+s.path+"/delete/"+url.PathEscape(id), nil)
	if err != nil {
		return s.fail(enum.OpDelete, err)
	}
	if msg, rejected := envelope.Rejected(body); rejected {
		return &RejectedError{Op: enum.OpDelete, Resource: s.path, Message: msg}
	}
	return nil
}

func (s *Service[T]) itemPath(id string) string {
	return "/" + s.path + "/" + url.PathEscape(id)
}

func (s *Service[T]) send(ctx context.Context, path string, p Payload, override bool) ([]byte, error) {
	if len(p.Files) > 0 {
		fields := formFields(p.Fields)
		if override {
			fields[methodOverride] = http.MethodPut
		}
		return s.client.PostMultipart(ctx, path, fields, p.Files)
	}

	body := make(map[string]any, len(p.Fields)+1)
	for k, v := range p.Fields {
		body[k] = v
	}
	if override {
		body[methodOverride] = http.MethodPut
	}
	return s.client.Post(ctx, path, body)
}

func (s *Service[T]) fail(op string, err error) error {
	status := 0
	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode
	}
	return &Error{
		Op:         op,
		Resource:   s.path,
		StatusCode: status,
		Message:    envelope.Message(err, envelope.MsgFailed),
		Err:        err,
	}
}

func overrideRefused(err error) bool {
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusUnprocessableEntity ||
		httpErr.StatusCode == http.StatusMethodNotAllowed
}

// formFields flattens JSON-ish values for multipart bodies. Booleans use the
// 1/0 convention the upstream validates against.
func formFields(in map[string]any) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case bool:
			if val {
				out[k] = "1"
			} else {
				out[k] = "0"
			}
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int, int64, int32:
			out[k] = fmt.Sprint(val)
		case json.Number:
			out[k] = val.String()
		case fmt.Stringer:
			out[k] = val.String()
		default:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
