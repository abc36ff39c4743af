package pipeline

import "github.com/aura-companion/gateway/internal/model/event"

// Result is a fully drained invocation, used by request/response endpoints.
type Result struct {
	Transcript string
	Response   string
	Audio      []byte
	Error      string
}

// Collect drains ch until the invocation ends.
func Collect(ch <-chan event.Event) Result {
	var res Result
	for e := range ch {
		switch ev := e.(type) {
		case event.Transcript:
			res.Transcript = ev.Text
		case event.Response:
			res.Response = ev.Text
		case event.Audio:
			res.Audio = ev.Data
		case event.Error:
			res.Error = ev.Message
		}
	}
	return res
}
