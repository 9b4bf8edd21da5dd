package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

// sendContext records what a handler sends without talking to Telegram.
type sendContext struct {
	tele.Context
	what []any
	opts [][]any
}

func (c *sendContext) Send(what any, opts ...any) error {
	c.what = append(c.what, what)
	c.opts = append(c.opts, opts)
	return nil
}

func TestTeleTransportSendText(t *testing.T) {
	c := &sendContext{}
	tr := NewTeleTransport(c, nil)
	kb := &tele.ReplyMarkup{ResizeKeyboard: true}

	require.NoError(t, tr.SendText(context.Background(), "с клавиатурой", kb))
	require.NoError(t, tr.SendText(context.Background(), "без клавиатуры", nil))

	assert.Equal(t, []any{"с клавиатурой", "без клавиатуры"}, c.what)
	assert.Equal(t, []any{kb}, c.opts[0])
	assert.Empty(t, c.opts[1])
}
