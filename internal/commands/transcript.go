package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/styles"
)

const timeLayout = "2006-01-02 15:04"

// writeTranscript prints messages as a readable conversation.
func writeTranscript(w io.Writer, msgs []chat.Message) error {
	for _, m := range msgs {
		if err := writeMessage(w, m); err != nil {
			return err
		}
	}
	return nil
}

func writeMessage(w io.Writer, m chat.Message) error {
	name := styles.MentorStyle.Render("Mentor")
	if m.FromUser() {
		name = styles.UserStyle.Render("You")
	}

	meta := styles.DividerStyle.Render(fmt.Sprintf("%s · %s", m.CreatedAt.Local().Format(timeLayout), m.Category))
	_, err := fmt.Fprintf(w, "%s %s\n%s\n\n", name, meta, styles.ContentStyle.Render(strings.TrimSpace(m.Content)))
	return err
}

// writeJSONLines encodes one message per line.
func writeJSONLines(w io.Writer, msgs []chat.Message) error {
	enc := json.NewEncoder(w)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	return nil
}
