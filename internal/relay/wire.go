package relay

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// HTTP header names and protocol constants shared by the client and the dev server.
const (
	HeaderToken           = "X-CASINOTV-TOKEN"
	HeaderProtocolVersion = "X-CASINOTV-PROTOCOL-VERSION"
	ProtocolVersion       = "1.1"
)

// Bet status strings.
const (
	StatusWon  = "won"
	StatusLost = "lost"
)

// Envelope wraps every JSON response from the game server.
type Envelope struct {
	IsSuccess    bool            `json:"IsSuccess"`
	ResponseData json.RawMessage `json:"ResponseData,omitempty"`
	Error        string          `json:"Error,omitempty"`
}

// SessionResponse is the JSON form of a session id response. The server may
// also answer with a bare string.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

// GameData locates the joined game.
type GameData struct {
	GameURL   string `json:"gameUrl"`
	UserToken string `json:"userToken"`
}

// UserData is the account summary returned on join.
type UserData struct {
	UserID   string          `json:"userId"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// JoinData is the ResponseData of a join.
type JoinData struct {
	GameIDs      []string   `json:"GameIds"`
	GameData     *GameData  `json:"GameData,omitempty"`
	UserData     *UserData  `json:"UserData,omitempty"`
	UserDataList []UserData `json:"UserDataList,omitempty"`
}

// BetPayload is the POST /bet/ request body.
type BetPayload struct {
	ID               string          `json:"id" validate:"omitempty,uuid"`
	Amount           decimal.Decimal `json:"amount"`
	Rate             float64         `json:"rate" validate:"gte=0,lte=100"`
	TargetMultiplier float64         `json:"targetMultiplier" validate:"gte=0"`
	RollMode         string          `json:"rollMode" validate:"omitempty,oneof=inside outside between"`
	Targets          []float64       `json:"targets" validate:"required,min=2,max=4,dive,gte=0,lte=100"`
}

// BetState is the settled bet as reported by the server. ResultValue is the
// roll scaled into [0, 1].
type BetState struct {
	ResultValue    float64         `json:"resultValue"`
	WinAmount      decimal.Decimal `json:"winAmount"`
	Status         string          `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
	Nonce          uint64          `json:"nonce"`
	ServerSeedHash string          `json:"serverSeedHash,omitempty"`
}

// BetData is the ResponseData of a bet.
type BetData struct {
	State BetState `json:"state"`
}
