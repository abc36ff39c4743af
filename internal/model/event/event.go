// Package event defines the units a session feeds into the conversation
// pipeline and the events the pipeline emits back.
package event

// Unit is one inbound piece of user input. Implemented only by TextUnit and
// AudioUnit.
type Unit interface {
	unit()
}

// TextUnit carries typed user text.
type TextUnit struct {
	Content string
}

// AudioUnit carries one complete recorded utterance.
type AudioUnit struct {
	Data []byte
}

func (TextUnit) unit()  {}
func (AudioUnit) unit() {}

// Kind discriminates outbound events on the wire.
type Kind string

const (
	KindTranscript Kind = "transcript"
	KindResponse   Kind = "llm_response"
	KindAudio      Kind = "audio"
	KindError      Kind = "error"
)

// Event is one outbound pipeline result. Implemented only by Transcript,
// Response, Audio and Error.
type Event interface {
	Kind() Kind
}

// Transcript is the recognised text of an AudioUnit.
type Transcript struct {
	Text string
}

// Response is the generated reply.
type Response struct {
	Text string
}

// Audio is a complete synthesized reply.
type Audio struct {
	Data []byte
}

// Error terminates an invocation early.
type Error struct {
	Message string
}

func (Transcript) Kind() Kind { return KindTranscript }
func (Response) Kind() Kind   { return KindResponse }
func (Audio) Kind() Kind      { return KindAudio }
func (Error) Kind() Kind      { return KindError }
