package utils

import (
	"encoding/json"
	"errors"
	"io"
	"ms-booking/internal/apperr"
	"net/http"
	"time"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Field     string      `json:"field,omitempty"`
	Remaining *int        `json:"remaining,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// ErrorResponseFor renders err with its kind, field and remaining count when present.
func ErrorResponseFor(err error) (int, APIResponse) {
	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, ErrorResponse("Internal server error", string(apperr.KindInternal))
	}

	resp := ErrorResponse(e.Message, string(e.Kind))
	resp.Field = e.Field
	if e.Kind == apperr.KindInsufficientInventory {
		remaining := e.Remaining
		resp.Remaining = &remaining
	}
	if e.Kind == apperr.KindInternal {
		resp.Message = "Internal server error"
	}
	return apperr.HTTPStatus(e.Kind), resp
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, err error) {
	status, body := ErrorResponseFor(err)
	WriteJSON(w, status, body)
}

// DecodeJSON decodes the request body into dst, reporting malformed bodies as invalid input.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return emptyBody()
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return emptyBody()
		case errors.As(err, &typeErr):
			return apperr.InvalidInput(typeErr.Field, "invalid value for "+typeErr.Field)
		case errors.As(err, &syntaxErr):
			return apperr.InvalidInput("body", "malformed JSON")
		default:
			return apperr.InvalidInput("body", "invalid request body: "+err.Error())
		}
	}
	return nil
}

func emptyBody() error {
	e := apperr.InvalidInput("body", "request body is required")
	e.Err = io.EOF
	return e
}

// IsEmptyBody reports whether err is DecodeJSON's error for a body with no content.
func IsEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
