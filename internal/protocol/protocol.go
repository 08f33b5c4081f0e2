// Package protocol defines the binary wire protocol spoken between game
// clients and the relay server. Every WebSocket frame carries exactly one
// MessagePack-encoded envelope: a numeric tag plus the raw body of the
// variant it names. Both message sets are closed; unknown tags are a decode
// error, never a crash.
package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Tag identifies a message variant inside an envelope.
type Tag uint8

// Client to server tags.
const (
	TagAuth Tag = iota + 1
	TagCreateGame
	TagJoinGame
	TagChangeClass
	TagStartGame
	TagUseAttack
	TagAdminAttack
	TagEndTurn
	TagNextWave
	TagGameOver
	TagInput
	TagFlee
)

// Server to client tags. Kept in a separate numeric range so a frame sent in
// the wrong direction fails decoding instead of being misread.
const (
	TagNewHost Tag = iota + 64
	TagGameState
	TagPlayerJoined
	TagPlayerLeft
	TagPlayerUpdated
	TagGameStarted
	TagCombatAction
	TagTurnChanged
	TagWaveStarted
	TagGameEnded
	TagPlayerUpdate
	TagError
)

type envelope struct {
	T Tag                `msgpack:"t"`
	D msgpack.RawMessage `msgpack:"d"`
}

// ClientMessage is implemented by every client to server variant.
type ClientMessage interface {
	ClientTag() Tag
}

// ServerMessage is implemented by every server to client variant.
type ServerMessage interface {
	ServerTag() Tag
}

// PlayerData is the roster entry carried by GameState and reused by the
// client to build its local view of the room.
type PlayerData struct {
	ID       string  `msgpack:"id"`
	Username string  `msgpack:"username"`
	Class    string  `msgpack:"class"`
	HP       float64 `msgpack:"hp"`
	MaxHP    float64 `msgpack:"max_hp"`
	Speed    float64 `msgpack:"speed"`
	X        float64 `msgpack:"x"`
	Y        float64 `msgpack:"y"`
}

// EnemyData is opaque to the relay: it is carried through StartGame and
// NextWave verbatim and never inspected server-side.
type EnemyData struct {
	ID    string  `msgpack:"id"`
	Name  string  `msgpack:"name"`
	HP    float64 `msgpack:"hp"`
	MaxHP float64 `msgpack:"max_hp"`
	Speed float64 `msgpack:"speed"`
}

// Client to server variants.

type Auth struct {
	Token string `msgpack:"token"`
}

type CreateGame struct {
	GameID      string  `msgpack:"game_id"`
	UserID      string  `msgpack:"user_id"`
	Username    string  `msgpack:"username"`
	PlayerClass string  `msgpack:"player_class"`
	HP          float64 `msgpack:"hp"`
	MaxHP       float64 `msgpack:"max_hp"`
}

type JoinGame struct {
	GameID      string  `msgpack:"game_id"`
	UserID      string  `msgpack:"user_id"`
	Username    string  `msgpack:"username"`
	PlayerClass string  `msgpack:"player_class"`
	HP          float64 `msgpack:"hp"`
	MaxHP       float64 `msgpack:"max_hp"`
}

type ChangeClass struct {
	Class string `msgpack:"class"`
}

type StartGame struct {
	Enemies []EnemyData `msgpack:"enemies"`
}

type UseAttack struct {
	TargetID   *string `msgpack:"target_id"`
	AttackName string  `msgpack:"attack_name"`
	Damage     float64 `msgpack:"damage"`
	ManaCost   float64 `msgpack:"mana_cost"`
	IsArea     bool    `msgpack:"is_area"`
}

type AdminAttack struct {
	TargetID   *string `msgpack:"target_id"`
	AttackName string  `msgpack:"attack_name"`
	Damage     float64 `msgpack:"damage"`
	ActorID    string  `msgpack:"actor_id"`
}

type EndTurn struct {
	NextTurnID string `msgpack:"next_turn_id"`
}

type NextWave struct {
	Enemies []EnemyData `msgpack:"enemies"`
	Gold    int         `msgpack:"gold"`
	Exp     int         `msgpack:"exp"`
}

type GameOver struct {
	Victory bool `msgpack:"victory"`
}

type Input struct {
	X    float64 `msgpack:"x"`
	Y    float64 `msgpack:"y"`
	VX   float64 `msgpack:"vx"`
	VY   float64 `msgpack:"vy"`
	Anim string  `msgpack:"anim"`
}

type Flee struct{}

func (Auth) ClientTag() Tag        { return TagAuth }
func (CreateGame) ClientTag() Tag  { return TagCreateGame }
func (JoinGame) ClientTag() Tag    { return TagJoinGame }
func (ChangeClass) ClientTag() Tag { return TagChangeClass }
func (StartGame) ClientTag() Tag   { return TagStartGame }
func (UseAttack) ClientTag() Tag   { return TagUseAttack }
func (AdminAttack) ClientTag() Tag { return TagAdminAttack }
func (EndTurn) ClientTag() Tag     { return TagEndTurn }
func (NextWave) ClientTag() Tag    { return TagNextWave }
func (GameOver) ClientTag() Tag    { return TagGameOver }
func (Input) ClientTag() Tag       { return TagInput }
func (Flee) ClientTag() Tag        { return TagFlee }

// Server to client variants.

type NewHost struct {
	GameID string `msgpack:"game_id"`
	HostID string `msgpack:"host_id"`
}

type GameState struct {
	Players []PlayerData `msgpack:"players"`
	State   string       `msgpack:"state"`
	HostID  string       `msgpack:"host_id"`
}

type PlayerJoined struct {
	PlayerID string  `msgpack:"player_id"`
	Username string  `msgpack:"username"`
	Class    string  `msgpack:"class"`
	HP       float64 `msgpack:"hp"`
	MaxHP    float64 `msgpack:"max_hp"`
}

type PlayerLeft struct {
	PlayerID string `msgpack:"player_id"`
}

type PlayerUpdated struct {
	PlayerID string `msgpack:"player_id"`
	Class    string `msgpack:"class"`
}

type GameStarted struct {
	Enemies []EnemyData `msgpack:"enemies"`
}

type CombatAction struct {
	ActorID     string   `msgpack:"actor_id"`
	TargetID    *string  `msgpack:"target_id"`
	ActionName  string   `msgpack:"action_name"`
	Damage      float64  `msgpack:"damage"`
	ManaCost    float64  `msgpack:"mana_cost"`
	IsArea      bool     `msgpack:"is_area"`
	TargetNewHP *float64 `msgpack:"target_new_hp"`
}

type TurnChanged struct {
	CurrentTurnID string `msgpack:"current_turn_id"`
}

type WaveStarted struct {
	Enemies []EnemyData `msgpack:"enemies"`
	Gold    int         `msgpack:"gold"`
	Exp     int         `msgpack:"exp"`
}

type GameEnded struct {
	Victory bool `msgpack:"victory"`
}

type PlayerUpdate struct {
	PlayerID string  `msgpack:"player_id"`
	X        float64 `msgpack:"x"`
	Y        float64 `msgpack:"y"`
	Anim     string  `msgpack:"anim"`
}

type Error struct {
	Message string `msgpack:"message"`
}

func (NewHost) ServerTag() Tag       { return TagNewHost }
func (GameState) ServerTag() Tag     { return TagGameState }
func (PlayerJoined) ServerTag() Tag  { return TagPlayerJoined }
func (PlayerLeft) ServerTag() Tag    { return TagPlayerLeft }
func (PlayerUpdated) ServerTag() Tag { return TagPlayerUpdated }
func (GameStarted) ServerTag() Tag   { return TagGameStarted }
func (CombatAction) ServerTag() Tag  { return TagCombatAction }
func (TurnChanged) ServerTag() Tag   { return TagTurnChanged }
func (WaveStarted) ServerTag() Tag   { return TagWaveStarted }
func (GameEnded) ServerTag() Tag     { return TagGameEnded }
func (PlayerUpdate) ServerTag() Tag  { return TagPlayerUpdate }
func (Error) ServerTag() Tag         { return TagError }

// EncodeClient serializes a client to server message into one frame.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	return encode(uint8(msg.ClientTag()), msg)
}

// EncodeServer serializes a server to client message into one frame.
func EncodeServer(msg ServerMessage) ([]byte, error) {
	return encode(uint8(msg.ServerTag()), msg)
}

func encode(tag uint8, body any) ([]byte, error) {
	raw, err := msgpack.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body (tag %d): %w", tag, err)
	}
	frame, err := msgpack.Marshal(envelope{T: Tag(tag), D: raw})
	if err != nil {
		return nil, fmt.Errorf("encode envelope (tag %d): %w", tag, err)
	}
	return frame, nil
}

// DecodeClient parses one inbound frame into its client message variant.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg ClientMessage
	switch env.T {
	case TagAuth:
		msg = &Auth{}
	case TagCreateGame:
		msg = &CreateGame{}
	case TagJoinGame:
		msg = &JoinGame{}
	case TagChangeClass:
		msg = &ChangeClass{}
	case TagStartGame:
		msg = &StartGame{}
	case TagUseAttack:
		msg = &UseAttack{}
	case TagAdminAttack:
		msg = &AdminAttack{}
	case TagEndTurn:
		msg = &EndTurn{}
	case TagNextWave:
		msg = &NextWave{}
	case TagGameOver:
		msg = &GameOver{}
	case TagInput:
		msg = &Input{}
	case TagFlee:
		msg = &Flee{}
	default:
		return nil, fmt.Errorf("unknown client message tag %d", env.T)
	}

	if err := msgpack.Unmarshal(env.D, msg); err != nil {
		return nil, fmt.Errorf("decode body (tag %d): %w", env.T, err)
	}
	return msg, nil
}

// DecodeServer parses one inbound frame into its server message variant.
func DecodeServer(data []byte) (ServerMessage, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg ServerMessage
	switch env.T {
	case TagNewHost:
		msg = &NewHost{}
	case TagGameState:
		msg = &GameState{}
	case TagPlayerJoined:
		msg = &PlayerJoined{}
	case TagPlayerLeft:
		msg = &PlayerLeft{}
	case TagPlayerUpdated:
		msg = &PlayerUpdated{}
	case TagGameStarted:
		msg = &GameStarted{}
	case TagCombatAction:
		msg = &CombatAction{}
	case TagTurnChanged:
		msg = &TurnChanged{}
	case TagWaveStarted:
		msg = &WaveStarted{}
	case TagGameEnded:
		msg = &GameEnded{}
	case TagPlayerUpdate:
		msg = &PlayerUpdate{}
	case TagError:
		msg = &Error{}
	default:
		return nil, fmt.Errorf("unknown server message tag %d", env.T)
	}

	if err := msgpack.Unmarshal(env.D, msg); err != nil {
		return nil, fmt.Errorf("decode body (tag %d): %w", env.T, err)
	}
	return msg, nil
}
