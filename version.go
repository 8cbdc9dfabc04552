// Package speakstudio is a conversation-practice front end for
// OpenAI-compatible chat models.  The completion client lives in the
// openai package, the command line in cli, and the collaborators it
// uses (usage counters, transcripts, prompts, shadowing) in their own
// packages.
package speakstudio

const version = "0.3.0"

// CodeVersion returns the version of the speakstudio code.
func CodeVersion() string {
	return version
}
