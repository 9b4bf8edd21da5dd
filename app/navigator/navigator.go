// Package navigator walks users through the menu tree.
//
// A user is either at the root or at some node. Text equal to a label of the
// current level moves the user to that node; Back moves one level up. Any
// other text is declined without a reply.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/app/delivery"
	"github.com/ewaproduct/ewabot/app/session"
	"github.com/ewaproduct/ewabot/app/tree"
	"github.com/ewaproduct/ewabot/core/locale"
	"github.com/ewaproduct/ewabot/core/logger"
	"github.com/ewaproduct/ewabot/core/telegram/keyboard"
)

// Tree is the read side of the menu store.
type Tree interface {
	Roots(ctx context.Context) ([]tree.Node, error)
	Children(ctx context.Context, parentID int64) ([]tree.Node, error)
	FindByLabel(ctx context.Context, parentID *int64, label string) ([]tree.Node, error)
	Node(ctx context.Context, id int64) (tree.Node, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	Attachment(ctx context.Context, nodeID int64) (*tree.Attachment, error)
}

// Sessions persists the user position.
type Sessions interface {
	Session(ctx context.Context, clientID int64) (session.Session, error)
	SetCurrentNode(ctx context.Context, clientID int64, nodeID *int64, expected int64) (int64, error)
}

// Deliverer sends node content.
type Deliverer interface {
	Deliver(ctx context.Context, tr delivery.Transport, req delivery.Request) delivery.Report
}

// Options configures the navigator.
type Options struct {
	// MainExtras are appended to the root menu after the tree roots.
	MainExtras []keyboard.Button
	// Columns is the number of buttons per row; two by default.
	Columns int
}

// Navigator is the menu state machine.
type Navigator struct {
	tree     Tree
	sessions Sessions
	delivery Deliverer
	loc      locale.Localizer
	extras   []keyboard.Button
	system   map[string]struct{}
	columns  int
	back     string
}

// New wires a navigator.
func New(t Tree, s Sessions, d Deliverer, loc locale.Localizer, opts Options) *Navigator {
	if opts.Columns <= 0 {
		opts.Columns = 2
	}
	system := make(map[string]struct{}, len(opts.MainExtras))
	for _, b := range opts.MainExtras {
		system[b.Text] = struct{}{}
	}
	return &Navigator{
		tree:     t,
		sessions: s,
		delivery: d,
		loc:      loc,
		extras:   opts.MainExtras,
		system:   system,
		columns:  opts.Columns,
		back:     loc.MustLocalize(locale.ButtonBack),
	}
}

// Request is one incoming text of a known client.
type Request struct {
	ClientID  int64
	Text      string
	Transport delivery.Transport
}

// Accepts reports whether text is meaningful at the client's current position.
func (n *Navigator) Accepts(ctx context.Context, clientID int64, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == n.back {
		return true, nil
	}
	if _, ok := n.system[text]; ok || text == "" {
		return false, nil
	}
	sess, err := n.sessions.Session(ctx, clientID)
	if err != nil {
		return false, err
	}
	found, err := n.tree.FindByLabel(ctx, sess.CurrentNodeID, text)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// Handle runs one transition. It returns false when the text was declined.
func (n *Navigator) Handle(ctx context.Context, req Request) (bool, error) {
	text := strings.TrimSpace(req.Text)
	if _, ok := n.system[text]; ok || text == "" {
		return false, nil
	}
	sess, err := n.sessions.Session(ctx, req.ClientID)
	if err != nil {
		return false, err
	}
	if text == n.back {
		return true, n.handleBack(ctx, req, sess)
	}

	found, err := n.tree.FindByLabel(ctx, sess.CurrentNodeID, text)
	if err != nil {
		return false, err
	}
	if len(found) == 0 {
		logger.Debug(ctx, logger.CompNavigator, "nav.unknown",
			slog.String("status", "skip"),
			slog.Int64("client_id", req.ClientID),
		)
		return false, nil
	}
	if len(found) > 1 {
		logger.Warn(ctx, logger.CompNavigator, "nav.duplicate_label",
			slog.String("label", text),
			slog.Int("matches", len(found)),
			slog.Int64("node_id", found[0].ID),
		)
	}
	return true, n.selectNode(ctx, req, sess, found[0])
}

// ShowRoot resets the client to the root and renders the main menu with greeting.
func (n *Navigator) ShowRoot(ctx context.Context, req Request, greeting string) error {
	sess, err := n.sessions.Session(ctx, req.ClientID)
	if err != nil {
		return err
	}
	if !sess.AtRoot() {
		if err := n.move(ctx, req.ClientID, sess, nil); err != nil {
			return err
		}
	}
	if greeting == "" {
		greeting = n.loc.MustLocalize(locale.MenuReady)
	}
	return n.renderRoot(ctx, req.Transport, greeting)
}

// MainMenu builds the root keyboard.
func (n *Navigator) MainMenu(ctx context.Context) (*tele.ReplyMarkup, error) {
	roots, err := n.tree.Roots(ctx)
	if err != nil {
		return nil, err
	}
	buttons := make([]keyboard.Button, 0, len(roots)+len(n.extras))
	for _, r := range roots {
		if _, ok := n.system[r.Label]; ok {
			continue
		}
		buttons = append(buttons, keyboard.Button{Text: r.Label})
	}
	buttons = append(buttons, n.extras...)
	return keyboard.Grid(buttons, n.columns), nil
}

func (n *Navigator) handleBack(ctx context.Context, req Request, sess session.Session) error {
	if sess.AtRoot() {
		return n.renderRoot(ctx, req.Transport, n.loc.MustLocalize(locale.MenuMainTitle))
	}
	cur, err := n.tree.Node(ctx, *sess.CurrentNodeID)
	if errors.Is(err, tree.ErrNotFound) {
		cur = tree.Node{}
	} else if err != nil {
		return err
	}
	if err := n.move(ctx, req.ClientID, sess, cur.ParentID); err != nil {
		return err
	}
	logger.Info(ctx, logger.CompNavigator, "nav.back",
		slog.Int64("client_id", req.ClientID),
		slog.Int64("from", *sess.CurrentNodeID),
	)
	if cur.ParentID == nil {
		return n.renderRoot(ctx, req.Transport, n.loc.MustLocalize(locale.MenuMainTitle))
	}
	parent, err := n.tree.Node(ctx, *cur.ParentID)
	if err != nil {
		return err
	}
	kb, err := n.submenu(ctx, parent.ID)
	if err != nil {
		return err
	}
	return req.Transport.SendText(ctx, parent.Label, kb)
}

func (n *Navigator) selectNode(ctx context.Context, req Request, sess session.Session, node tree.Node) error {
	if err := n.move(ctx, req.ClientID, sess, &node.ID); err != nil {
		return err
	}
	hasChildren, err := n.tree.HasChildren(ctx, node.ID)
	if err != nil {
		return err
	}
	var kb *tele.ReplyMarkup
	if hasChildren {
		if kb, err = n.submenu(ctx, node.ID); err != nil {
			return err
		}
	} else {
		kb = keyboard.Grid(keyboard.Texts(n.back), 1)
	}

	att, err := n.tree.Attachment(ctx, node.ID)
	if err != nil {
		return err
	}
	logger.Info(ctx, logger.CompNavigator, "nav.select",
		slog.Int64("client_id", req.ClientID),
		slog.Int64("node_id", node.ID),
		slog.Bool("leaf", !hasChildren),
		slog.Bool("content", att != nil),
	)
	if att != nil {
		rep := n.delivery.Deliver(ctx, req.Transport, delivery.Request{
			Attachment: att,
			Fallback:   node.Label,
			Keyboard:   kb,
		})
		if rep.KeyboardSent {
			return nil
		}
		if rep.Failed {
			return fmt.Errorf("navigator: deliver node %d: %w", node.ID, rep.Err)
		}
	}
	return req.Transport.SendText(ctx, node.Label, kb)
}

func (n *Navigator) submenu(ctx context.Context, parentID int64) (*tele.ReplyMarkup, error) {
	kids, err := n.tree.Children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	buttons := make([]keyboard.Button, 0, len(kids))
	for _, k := range kids {
		buttons = append(buttons, keyboard.Button{Text: k.Label})
	}
	return keyboard.Grid(buttons, n.columns, keyboard.Texts(n.back)), nil
}

func (n *Navigator) renderRoot(ctx context.Context, tr delivery.Transport, text string) error {
	kb, err := n.MainMenu(ctx)
	if err != nil {
		return err
	}
	return tr.SendText(ctx, text, kb)
}

// move writes the new position, retrying once on a concurrent update.
func (n *Navigator) move(ctx context.Context, clientID int64, sess session.Session, target *int64) error {
	_, err := n.sessions.SetCurrentNode(ctx, clientID, target, sess.Version)
	if !errors.Is(err, session.ErrStaleSession) {
		return err
	}
	fresh, err := n.sessions.Session(ctx, clientID)
	if err != nil {
		return err
	}
	_, err = n.sessions.SetCurrentNode(ctx, clientID, target, fresh.Version)
	return err
}
