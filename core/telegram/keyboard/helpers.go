package keyboard

import tele "gopkg.in/telebot.v4"

// Button is a reply keyboard button. A non-empty WebAppURL turns it into a mini-app launcher.
type Button struct {
	Text      string
	WebAppURL string
}

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a reply keyboard from rows of text.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// Grid lays buttons out n per row and appends tail rows verbatim.
func Grid(buttons []Button, n int, tail ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := make([]tele.Row, 0, len(buttons)/max(n, 1)+len(tail)+1)
	for _, chunk := range ChunkButtons(buttons, n) {
		rows = append(rows, markup.Row(toBtns(markup, chunk)...))
	}
	for _, row := range tail {
		if len(row) > 0 {
			rows = append(rows, markup.Row(toBtns(markup, row)...))
		}
	}
	markup.Reply(rows...)
	return markup
}

func toBtns(markup *tele.ReplyMarkup, row []Button) []tele.Btn {
	out := make([]tele.Btn, 0, len(row))
	for _, b := range row {
		if b.WebAppURL != "" {
			out = append(out, markup.WebApp(b.Text, &tele.WebApp{URL: b.WebAppURL}))
			continue
		}
		out = append(out, markup.Text(b.Text))
	}
	return out
}

// ChunkButtons splits a flat list into rows with up to n buttons per row.
func ChunkButtons[T any](buttons []T, n int) [][]T {
	if n <= 1 {
		out := make([][]T, 0, len(buttons))
		for _, b := range buttons {
			out = append(out, []T{b})
		}
		return out
	}
	var rows [][]T
	for i := 0; i < len(buttons); i += n {
		end := min(i+n, len(buttons))
		rows = append(rows, buttons[i:end])
	}
	return rows
}

// Texts converts labels into plain buttons.
func Texts(labels ...string) []Button {
	out := make([]Button, len(labels))
	for i, l := range labels {
		out[i] = Button{Text: l}
	}
	return out
}

// Labels flattens a reply keyboard back into rows of labels. Handy in tests and logs.
func Labels(markup *tele.ReplyMarkup) [][]string {
	if markup == nil {
		return nil
	}
	out := make([][]string, 0, len(markup.ReplyKeyboard))
	for _, row := range markup.ReplyKeyboard {
		labels := make([]string, 0, len(row))
		for _, b := range row {
			labels = append(labels, b.Text)
		}
		out = append(out, labels)
	}
	return out
}
