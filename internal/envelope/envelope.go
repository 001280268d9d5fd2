// Package envelope normalizes the upstream's response shapes into one
// Envelope. Each decoder tries the known shapes in a fixed order and falls
// back to a default instead of guessing.
package envelope

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/tidwall/gjson"
)

// Envelope is the normalized response shape handed to callers.
type Envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Default messages per operation.
const (
	MsgListed  = "Records fetched successfully"
	MsgCreated = "Record created successfully"
	MsgUpdated = "Record updated successfully"
	MsgDeleted = "Record deleted successfully"
	MsgFailed  = "Something went wrong. Please try again."
	MsgInvalid = "Unexpected response from server"
)

// InvalidDataError is returned when a detail response holds no entity.
type InvalidDataError struct {
	Message string
}

func (e *InvalidDataError) Error() string {
	if e.Message != "" {
		return "invalid data: " + e.Message
	}
	return "invalid data: no entity in response"
}

// listShape names the shape DecodeList recognized.
type listShape int

const (
	shapeUnknown listShape = iota
	shapeBareArray
	shapeEnvelope
	shapeNested
)

// DecodeList normalizes a list response. Recognized shapes, in order: a bare
// array, {status|success, data: [...]}, and {data: {data: [...]}}. Anything
// else (or items that do not decode into T) yields Status=false and an empty
// slice; it never fails.
func DecodeList[T any](body []byte, defaultMsg string) Envelope[[]T] {
	out := Envelope[[]T]{Data: []T{}}

	shape, root, payload := classifyList(body)
	if shape == shapeUnknown {
		out.Message = messageOr(root, MsgInvalid)
		return out
	}

	var items []T
	if err := json.Unmarshal([]byte(payload.Raw), &items); err != nil {
		out.Message = MsgInvalid
		return out
	}
	if items != nil {
		out.Data = items
	}

	out.Status = true
	if shape != shapeBareArray {
		if flag, ok := statusFlag(root); ok {
			out.Status = flag
		}
	}
	out.Message = messageOr(root, defaultMsg)
	return out
}

func classifyList(body []byte) (listShape, gjson.Result, gjson.Result) {
	if !gjson.ValidBytes(body) {
		return shapeUnknown, gjson.Result{}, gjson.Result{}
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return shapeBareArray, root, root
	}
	if !root.IsObject() {
		return shapeUnknown, root, gjson.Result{}
	}

	data := root.Get("data")
	switch {
	case data.IsArray():
		return shapeEnvelope, root, data
	case data.IsObject() && data.Get("data").IsArray():
		return shapeNested, root, data.Get("data")
	}
	return shapeUnknown, root, gjson.Result{}
}

// DecodeDetail unwraps a single entity from {data: {...}}, {data: {data: {...}}}
// or a bare object carrying an id.
func DecodeDetail[T any](body []byte) (T, error) {
	var zero T
	if !gjson.ValidBytes(body) {
		return zero, &InvalidDataError{}
	}
	root := gjson.ParseBytes(body)

	obj, ok := entityObject(root)
	if !ok {
		return zero, &InvalidDataError{Message: messageOr(root, "")}
	}

	var v T
	if err := json.Unmarshal([]byte(obj.Raw), &v); err != nil {
		return zero, &InvalidDataError{Message: err.Error()}
	}
	return v, nil
}

func entityObject(root gjson.Result) (gjson.Result, bool) {
	if !root.IsObject() {
		return gjson.Result{}, false
	}
	data := root.Get("data")
	if data.IsObject() {
		if inner := data.Get("data"); inner.IsObject() {
			return inner, true
		}
		return data, true
	}
	if root.Get("id").Exists() {
		return root, true
	}
	return gjson.Result{}, false
}

// DecodeWrite normalizes a create/update response. The status flag comes
// from "status" then "success"; when neither is present it defaults to true
// unless the body carries an "error" field. Data is taken from "data" or from
// a bare object with an id, and is left at its zero value otherwise.
func DecodeWrite[T any](body []byte, defaultMsg string) Envelope[T] {
	out := Envelope[T]{Status: true, Message: defaultMsg}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || !gjson.Valid(trimmed) {
		return out
	}
	root := gjson.Parse(trimmed)

	if flag, ok := statusFlag(root); ok {
		out.Status = flag
	} else if root.IsObject() && root.Get("error").Exists() {
		out.Status = false
	}
	if !out.Status {
		out.Message = messageOr(root, errorOr(root, MsgFailed))
	} else {
		out.Message = messageOr(root, defaultMsg)
	}

	if obj, ok := entityObject(root); ok {
		var v T
		if err := json.Unmarshal([]byte(obj.Raw), &v); err == nil {
			out.Data = v
		}
	}
	return out
}

// Rejected reports whether body carries an explicit false status flag.
func Rejected(body []byte) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	root := gjson.ParseBytes(body)
	flag, ok := statusFlag(root)
	if !ok || flag {
		return "", false
	}
	return messageOr(root, errorOr(root, MsgFailed)), true
}

// Message extracts a human-readable message from err. Priority: upstream
// "message", upstream "error", the transport error text, fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) && gjson.ValidBytes(httpErr.Body) {
		root := gjson.ParseBytes(httpErr.Body)
		if msg := stringField(root, "message"); msg != "" {
			return msg
		}
		if msg := stringField(root, "error"); msg != "" {
			return msg
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

// statusFlag reads "status" then "success" as a boolean.
func statusFlag(root gjson.Result) (bool, bool) {
	if !root.IsObject() {
		return false, false
	}
	for _, key := range []string{"status", "success"} {
		if flag, ok := truthy(root.Get(key)); ok {
			return flag, true
		}
	}
	return false, false
}

func truthy(r gjson.Result) (bool, bool) {
	switch r.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	case gjson.Number:
		if r.Num == 0 {
			return false, true
		}
		// HTTP-style codes: 2xx is success.
		if r.Num >= 100 {
			return r.Num >= 200 && r.Num < 300, true
		}
		return true, true
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "true", "success", "ok", "1":
			return true, true
		case "false", "error", "fail", "failed", "failure", "0":
			return false, true
		}
	}
	return false, false
}

func messageOr(root gjson.Result, fallback string) string {
	if msg := stringField(root, "message"); msg != "" {
		return msg
	}
	return fallback
}

func errorOr(root gjson.Result, fallback string) string {
	if msg := stringField(root, "error"); msg != "" {
		return msg
	}
	return fallback
}

func stringField(root gjson.Result, key string) string {
	if !root.IsObject() {
		return ""
	}
	v := root.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}
