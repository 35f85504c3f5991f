package translator

import (
	"strings"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
)

// buildSystemPrompt returns the instruction sent with every translation.
// strict is used for the single retry after an unchanged answer.
func buildSystemPrompt(target config.Language, strict bool) string {
	name := target.Name()

	var prompt strings.Builder
	prompt.WriteString("You are a translator for Twitch chat messages. ")
	prompt.WriteString("Detect the source language automatically and translate the message literally into " + name + ".\n")
	prompt.WriteString("Rules:\n")
	prompt.WriteString("- Keep emotes, commands (words starting with !) and mentions (words starting with @) exactly as written.\n")
	prompt.WriteString("- Do not add emojis, emoticons, quotes, notes or explanations.\n")
	prompt.WriteString("- Keep the formatting and capitalization style of the original.\n")
	prompt.WriteString("- If the message is already in " + name + ", return it unchanged.\n")
	if strict {
		prompt.WriteString("\nYour previous answer repeated the message unchanged, but it is not written in " + name + ". ")
		prompt.WriteString("Translate every word that is not an emote, command or mention into " + name + ".\n")
	}
	prompt.WriteString("Reply with the translation only.")
	return prompt.String()
}

var quotePairs = [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}}

// cleanReply trims whitespace and quotes the model wrapped around the answer.
func cleanReply(source, reply string) string {
	reply = strings.TrimSpace(reply)
	for _, q := range quotePairs {
		if strings.HasPrefix(source, q[0]) {
			continue
		}
		if len(reply) > len(q[0])+len(q[1]) && strings.HasPrefix(reply, q[0]) && strings.HasSuffix(reply, q[1]) {
			reply = strings.TrimSpace(reply[len(q[0]) : len(reply)-len(q[1])])
		}
	}
	return reply
}
