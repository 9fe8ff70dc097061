package client

import (
	"encoding/json"
	"fmt"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/server"
)

// ServerError is an error reply from the server.
type ServerError struct {
	Code    string
	Message string
	GameID  string
}

func (e *ServerError) Error() string {
	if e.GameID != "" {
		return fmt.Sprintf("server error %s (game %s): %s", e.Code, e.GameID, e.Message)
	}
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// Kind maps the reply code back to the game core's error kind.
func (e *ServerError) Kind() blackjack.Kind {
	for k := blackjack.KindValidation; k <= blackjack.KindNotAuthorized; k++ {
		if k.String() == e.Code {
			return k
		}
	}
	return blackjack.KindUnknown
}

// Is lets callers match replies against the blackjack sentinels, e.g.
// errors.Is(err, blackjack.ErrNotFound).
func (e *ServerError) Is(target error) bool {
	switch e.Kind() {
	case blackjack.KindValidation:
		return target == blackjack.ErrValidation
	case blackjack.KindIntegrity:
		return target == blackjack.ErrIntegrity
	case blackjack.KindInvalidTransition:
		return target == blackjack.ErrInvalidTransition
	case blackjack.KindNotFound:
		return target == blackjack.ErrNotFound
	case blackjack.KindDeckExhausted:
		return target == blackjack.ErrDeckExhausted
	case blackjack.KindNotAuthorized:
		return target == blackjack.ErrNotAuthorized
	}
	return false
}

func decodeError(msg *server.Message) error {
	var data server.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("failed to decode error reply: %w", err)
	}
	return &ServerError{Code: data.Code, Message: data.Message, GameID: data.GameID}
}
