package server

import (
	"errors"
	"net/http"

	"github.com/lox/blackjackd/internal/blackjack"
)

// errRequest marks malformed or schema-invalid request bodies.
var errRequest = errors.New("invalid request")

// StatusFor maps an error to the HTTP status returned for it.
func StatusFor(err error) int {
	if errors.Is(err, errRequest) {
		return http.StatusUnprocessableEntity
	}
	switch blackjack.KindOf(err) {
	case blackjack.KindNotFound:
		return http.StatusNotFound
	case blackjack.KindInvalidTransition:
		return http.StatusConflict
	case blackjack.KindNotAuthorized:
		return http.StatusUnauthorized
	case blackjack.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorData builds the client-facing error. Fatal and unclassified
// errors are not described to the client; the details go to the log.
func NewErrorData(err error) ErrorData {
	data := ErrorData{Message: err.Error()}

	var e *blackjack.Error
	if errors.As(err, &e) {
		data.GameID = e.GameID
	}

	switch kind := blackjack.KindOf(err); {
	case errors.Is(err, errRequest) && kind == blackjack.KindUnknown:
		data.Code = blackjack.KindValidation.String()
	case errors.Is(err, errRequest):
		// Rejected client input keeps its kind and its description.
		data.Code = kind.String()
	case kind.Fatal():
		data.Code = kind.String()
		data.Message = "game terminated"
	case kind == blackjack.KindUnknown:
		data.Code = "internal_error"
		data.Message = "internal error"
	default:
		data.Code = kind.String()
	}
	return data
}

func requestError(err error) error {
	return errors.Join(errRequest, err)
}
