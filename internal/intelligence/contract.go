package intelligence

import (
	"regexp"
	"strings"

	"github.com/dwarpal-ai/dwarpal/internal/vocab"
)

// Rule names recorded on audit rows and metrics when a generated reply is
// suppressed.
const (
	RuleOccupancyReveal = "occupancy_reveal"
	RuleCredentialEcho  = "credential_echo"
	RuleShellPattern    = "shell_pattern"
)

// occupancyReveals are phrases that would confirm or deny that anyone is
// home. The doorbell must never speak them.
var occupancyReveals = []string{
	"no one is home", "no one home", "nobody is home", "nobody home",
	"not at home", "home alone", "house is empty", "empty house",
	"owner is out", "owner is away", "away right now", "out of town",
	"ghar khali", "koi nahi hai", "akele",
}

var credentialWords = []string{"otp", "password", "passcode", "pin"}

var shellSymbols = []string{"$(", "`", "&&", "||", "#!"}

var shellWords = []string{"sudo", "rm", "bash"}

var digitRunRE = regexp.MustCompile(`\d{4,}`)

// scanReply checks generated text against the output safety contract.
// ok is false when the text must not be spoken; rule names the pattern
// that tripped.
func scanReply(text string) (rule string, ok bool) {
	lower := strings.ToLower(text)
	if vocab.Matches(lower, occupancyReveals) {
		return RuleOccupancyReveal, false
	}
	if digitRunRE.MatchString(lower) || vocab.Matches(lower, credentialWords) {
		return RuleCredentialEcho, false
	}
	for _, sym := range shellSymbols {
		if strings.Contains(lower, sym) {
			return RuleShellPattern, false
		}
	}
	if vocab.Matches(lower, shellWords) {
		return RuleShellPattern, false
	}
	return "", true
}
