package relay

// Direction tells whether a tapped message left for the server or came back from it.
type Direction string

const (
	Send    Direction = "send"
	Deliver Direction = "deliver"
)

// Event names mirrored to the tap.
const (
	EventSessionRequest  = "api:get_session_id:request"
	EventSessionResponse = "api:get_session_id:response"
	EventJoinRequest     = "api:join:request"
	EventJoinResponse    = "api:join:response"
	EventBetRequest      = "api:bet:request"
	EventBetResponse     = "api:bet:response"
)

// Message is one relay exchange as seen by a Tap. Payload is the decoded
// response on Deliver, or the request body (nil for GETs) on Send. Err is set
// when the exchange failed.
type Message struct {
	Direction Direction
	Event     string
	Payload   any
	Err       error
}

// Tap observes relay traffic. It runs on the caller's goroutine and must not block.
type Tap func(Message)
