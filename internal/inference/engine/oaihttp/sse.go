package oaihttp

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// streamSSE reads an event stream and calls onEvent once per dispatched
// event. A truncated final event is still delivered.
func streamSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""
		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line = strings.TrimRight(line, "\r\n"); strings.HasPrefix(line, "data:") {
					dataLines = append(dataLines, fieldValue(line, "data:"))
				}
				return flush()
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends event.
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		// Comment.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventName = fieldValue(line, "event:")
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, fieldValue(line, "data:"))
			continue
		}
	}
}

// fieldValue drops the field name and at most one leading space.
func fieldValue(line, field string) string {
	v := strings.TrimPrefix(line, field)
	return strings.TrimPrefix(v, " ")
}
