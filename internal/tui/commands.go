package tui

import (
	"strings"
)

const helpText = `Type a question and press Enter to ask the current model.

Commands:
  /model [ID]     show or switch the model (cloud: %s)
  /add PATHS...   add text files to the documents
  /paste IMAGE    recognize the text in an image (temporary document)
  /note [TEXT]    set the paste text used with every question (empty clears it)
  /save           save recognized and pasted text as a memo document
  /reset          delete every document
  /docs           list documents and preview the latest ones
  /show N         show document N
  /key clear      delete the stored Gemini API key
  /help           show this help

PgUp/PgDn scroll, Ctrl+C quits.`

// command is one parsed slash command.
type command struct {
	name string
	args []string
	// rest is the raw text after the command name.
	rest string
}

func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	return command{name: strings.ToLower(name), args: strings.Fields(rest), rest: rest}, true
}
