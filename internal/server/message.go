package server

import (
	"encoding/json"
	"time"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
	"github.com/lox/blackjackd/internal/session"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

// CreateGameData is the body of create_game and POST /games.
type CreateGameData struct {
	OwnerID string `json:"ownerId"`
}

// ActionData is the body of action and POST /games/{id}/actions. GameID
// comes from the path over HTTP.
type ActionData struct {
	GameID string `json:"gameId,omitempty"`
	Action string `json:"action"`
}

// VerifyData is the body of POST /verify.
type VerifyData struct {
	Seed string `json:"seed"`
	Hash string `json:"hash"`
}

// ValidateHandsData is the body of POST /validate.
type ValidateHandsData struct {
	PlayerHand  blackjack.Hand `json:"playerHand"`
	DealerHand  blackjack.Hand `json:"dealerHand"`
	Surrendered bool           `json:"surrendered,omitempty"`
}

// Server → Client Messages

// GameCreatedData answers create_game.
type GameCreatedData = session.Deal

// Game status values in HandUpdateData.
const (
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// HandUpdateData reports the game after an action. Result is only set
// when the status is finished.
type HandUpdateData struct {
	GameID       string                `json:"gameId"`
	Status       string                `json:"status"`
	PlayerHand   blackjack.Hand        `json:"playerHand"`
	PlayerTotal  int                   `json:"playerTotal"`
	DealerUpcard deck.Card             `json:"dealerUpcard"`
	Actions      []blackjack.Action    `json:"actions,omitempty"`
	Result       *blackjack.GameResult `json:"result,omitempty"`
}

// NewHandUpdate converts a session update to its wire form.
func NewHandUpdate(u *session.Update) HandUpdateData {
	status := StatusInProgress
	if u.Finished() {
		status = StatusFinished
	}
	return HandUpdateData{
		GameID:       u.GameID,
		Status:       status,
		PlayerHand:   u.PlayerHand,
		PlayerTotal:  u.PlayerTotal,
		DealerUpcard: u.DealerUpcard,
		Actions:      u.Actions,
		Result:       u.Result,
	}
}

// GameResultData is sent once a game finishes.
type GameResultData = blackjack.GameResult

// VerifyResponse answers POST /verify.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// ErrorData describes a failed request. Code is the error kind.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	GameID  string `json:"gameId,omitempty"`
}
