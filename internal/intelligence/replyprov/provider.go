// Package replyprov defines the conversational reply provider used for
// follow-up exchanges at the door. The pipeline's ring replies are canned;
// only multi-turn conversations consult a provider, and the intelligence
// engine screens whatever comes back before it is spoken.
package replyprov

import "context"

// Speaker labels for conversation turns.
const (
	SpeakerVisitor  = "visitor"
	SpeakerOwner    = "owner"
	SpeakerDoorbell = "doorbell"
)

// Turn is one prior utterance handed to the provider as context.
type Turn struct {
	Speaker string
	Text    string
}

// Request carries one conversational exchange. History is already bounded
// by the caller; Perception is a one-line scene summary and may be empty.
type Request struct {
	SessionID  string
	Message    string
	FromOwner  bool
	History    []Turn
	Perception string
}

// Provider generates the doorbell's next line. Implementations own their
// retry policy; the caller owns the overall deadline via ctx.
type Provider interface {
	Reply(ctx context.Context, req Request) (string, error)
}
