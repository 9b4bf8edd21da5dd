package tree

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ewaproduct/ewabot/core/logger"
)

const nodeColumns = `id, label, parent_id, weight`

// Store reads and writes the menu tree.
type Store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

// NewStore wraps db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

// InTx runs fn against a store bound to one transaction.
func (s *Store) InTx(ctx context.Context, fn func(*Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tree: begin: %w", err)
	}
	if err := fn(&Store{ext: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tree: commit: %w", err)
	}
	return nil
}

// Roots returns the top-level nodes in menu order.
func (s *Store) Roots(ctx context.Context) ([]Node, error) {
	return s.siblings(ctx, nil)
}

// Children returns the children of parentID in menu order.
func (s *Store) Children(ctx context.Context, parentID int64) ([]Node, error) {
	return s.siblings(ctx, &parentID)
}

func (s *Store) siblings(ctx context.Context, parentID *int64) ([]Node, error) {
	var (
		nodes []Node
		err   error
	)
	if parentID == nil {
		err = sqlx.SelectContext(ctx, s.ext, &nodes, s.ext.Rebind(
			`SELECT `+nodeColumns+` FROM tree_nodes WHERE parent_id IS NULL ORDER BY weight DESC, label ASC, id ASC`))
	} else {
		err = sqlx.SelectContext(ctx, s.ext, &nodes, s.ext.Rebind(
			`SELECT `+nodeColumns+` FROM tree_nodes WHERE parent_id = ? ORDER BY weight DESC, label ASC, id ASC`), *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("tree: list nodes: %w", err)
	}
	return nodes, nil
}

// FindByLabel returns every node under parentID (nil for the root set) whose
// label equals label, in menu order. More than one result means the sibling
// uniqueness rule was bypassed; callers decide how to resolve it.
func (s *Store) FindByLabel(ctx context.Context, parentID *int64, label string) ([]Node, error) {
	var (
		nodes []Node
		err   error
	)
	if parentID == nil {
		err = sqlx.SelectContext(ctx, s.ext, &nodes, s.ext.Rebind(
			`SELECT `+nodeColumns+` FROM tree_nodes WHERE parent_id IS NULL AND label = ? ORDER BY weight DESC, id ASC`), label)
	} else {
		err = sqlx.SelectContext(ctx, s.ext, &nodes, s.ext.Rebind(
			`SELECT `+nodeColumns+` FROM tree_nodes WHERE parent_id = ? AND label = ? ORDER BY weight DESC, id ASC`), *parentID, label)
	}
	if err != nil {
		return nil, fmt.Errorf("tree: find by label: %w", err)
	}
	return nodes, nil
}

// Node loads a node by id.
func (s *Store) Node(ctx context.Context, id int64) (Node, error) {
	var n Node
	err := sqlx.GetContext(ctx, s.ext, &n, s.ext.Rebind(`SELECT `+nodeColumns+` FROM tree_nodes WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Node{}, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Node{}, fmt.Errorf("tree: load node: %w", err)
	}
	return n, nil
}

// HasChildren reports whether id has at least one child.
func (s *Store) HasChildren(ctx context.Context, id int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, s.ext, &n, s.ext.Rebind(
		`SELECT COUNT(1) FROM tree_nodes WHERE parent_id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("tree: count children: %w", err)
	}
	return n > 0, nil
}

// Attachment returns the content of nodeID with its media in order.
// A node without content yields (nil, nil).
func (s *Store) Attachment(ctx context.Context, nodeID int64) (*Attachment, error) {
	var a Attachment
	err := sqlx.GetContext(ctx, s.ext, &a, s.ext.Rebind(
		`SELECT id, node_id, kind, body_text FROM attachments WHERE node_id = ?`), nodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tree: load attachment: %w", err)
	}
	err = sqlx.SelectContext(ctx, s.ext, &a.Media, s.ext.Rebind(
		`SELECT id, attachment_id, source_path, COALESCE(thumbnail_path, '') AS thumbnail_path, position
		   FROM media_items WHERE attachment_id = ? ORDER BY position ASC, id ASC`), a.ID)
	if err != nil {
		return nil, fmt.Errorf("tree: load media: %w", err)
	}
	return &a, nil
}

// CreateNode inserts a node under parentID (nil for the root set).
func (s *Store) CreateNode(ctx context.Context, parentID *int64, label string, weight int) (Node, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Node{}, ErrEmptyLabel
	}
	var n Node
	err := s.InTx(ctx, func(tx *Store) error {
		if parentID != nil {
			if _, err := tx.Node(ctx, *parentID); err != nil {
				return err
			}
		}
		if err := tx.ensureUniqueLabel(ctx, parentID, label, 0); err != nil {
			return err
		}
		var id int64
		err := sqlx.GetContext(ctx, tx.ext, &id, tx.ext.Rebind(
			`INSERT INTO tree_nodes (label, parent_id, weight) VALUES (?, ?, ?) RETURNING id`),
			label, parentID, weight)
		if err != nil {
			return fmt.Errorf("tree: insert node: %w", err)
		}
		n = Node{ID: id, Label: label, ParentID: parentID, Weight: weight}
		return nil
	})
	if err != nil {
		return Node{}, err
	}
	logger.Debug(ctx, logger.CompTree, "tree.node.create",
		slog.Int64("node_id", n.ID),
		slog.String("label", n.Label),
	)
	return n, nil
}

// MoveNode re-parents id under newParent (nil moves it to the root set).
func (s *Store) MoveNode(ctx context.Context, id int64, newParent *int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		n, err := tx.Node(ctx, id)
		if err != nil {
			return err
		}
		if newParent != nil {
			for cur := newParent; cur != nil; {
				if *cur == id {
					return ErrCycle
				}
				p, err := tx.Node(ctx, *cur)
				if err != nil {
					return err
				}
				cur = p.ParentID
			}
		}
		if err := tx.ensureUniqueLabel(ctx, newParent, n.Label, id); err != nil {
			return err
		}
		_, err = tx.ext.ExecContext(ctx, tx.ext.Rebind(
			`UPDATE tree_nodes SET parent_id = ? WHERE id = ?`), newParent, id)
		if err != nil {
			return fmt.Errorf("tree: move node: %w", err)
		}
		return nil
	})
}

func (s *Store) ensureUniqueLabel(ctx context.Context, parentID *int64, label string, except int64) error {
	same, err := s.FindByLabel(ctx, parentID, label)
	if err != nil {
		return err
	}
	for _, n := range same {
		if n.ID != except {
			return fmt.Errorf("%q: %w", label, ErrDuplicateLabel)
		}
	}
	return nil
}

// PutAttachment creates or replaces the kind and text of the node's attachment.
// Existing media must stay compatible with the new kind.
func (s *Store) PutAttachment(ctx context.Context, nodeID int64, kind Kind, text string) (Attachment, error) {
	if !kind.Valid() {
		return Attachment{}, ErrInvalidKind
	}
	var out Attachment
	err := s.InTx(ctx, func(tx *Store) error {
		if _, err := tx.Node(ctx, nodeID); err != nil {
			return err
		}
		cur, err := tx.Attachment(ctx, nodeID)
		if err != nil {
			return err
		}
		if cur == nil {
			var id int64
			err := sqlx.GetContext(ctx, tx.ext, &id, tx.ext.Rebind(
				`INSERT INTO attachments (node_id, kind, body_text) VALUES (?, ?, ?) RETURNING id`),
				nodeID, string(kind), text)
			if err != nil {
				return fmt.Errorf("tree: insert attachment: %w", err)
			}
			out = Attachment{ID: id, NodeID: nodeID, Kind: kind, Text: text}
			return nil
		}
		for _, m := range cur.Media {
			if kind == KindText || !kind.Accepts(m.SourcePath) {
				return fmt.Errorf("%s as %s: %w", m.SourcePath, kind, ErrIncompatibleMedia)
			}
		}
		_, err = tx.ext.ExecContext(ctx, tx.ext.Rebind(
			`UPDATE attachments SET kind = ?, body_text = ? WHERE id = ?`), string(kind), text, cur.ID)
		if err != nil {
			return fmt.Errorf("tree: update attachment: %w", err)
		}
		out = *cur
		out.Kind, out.Text = kind, text
		return nil
	})
	return out, err
}

// AddMediaItem appends a file to an attachment after checking its extension.
func (s *Store) AddMediaItem(ctx context.Context, attachmentID int64, source, thumbnail string) (MediaItem, error) {
	source = strings.TrimSpace(source)
	var out MediaItem
	err := s.InTx(ctx, func(tx *Store) error {
		var kind Kind
		err := sqlx.GetContext(ctx, tx.ext, &kind, tx.ext.Rebind(
			`SELECT kind FROM attachments WHERE id = ?`), attachmentID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("attachment %d: %w", attachmentID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("tree: load attachment kind: %w", err)
		}
		if kind == KindText || !kind.Accepts(source) {
			return fmt.Errorf("%s as %s: %w", source, kind, ErrIncompatibleMedia)
		}
		var pos int
		err = sqlx.GetContext(ctx, tx.ext, &pos, tx.ext.Rebind(
			`SELECT COALESCE(MAX(position), -1) + 1 FROM media_items WHERE attachment_id = ?`), attachmentID)
		if err != nil {
			return fmt.Errorf("tree: next position: %w", err)
		}
		var thumb any
		if t := strings.TrimSpace(thumbnail); t != "" {
			thumb = t
		}
		var id int64
		err = sqlx.GetContext(ctx, tx.ext, &id, tx.ext.Rebind(
			`INSERT INTO media_items (attachment_id, source_path, thumbnail_path, position) VALUES (?, ?, ?, ?) RETURNING id`),
			attachmentID, source, thumb, pos)
		if err != nil {
			return fmt.Errorf("tree: insert media: %w", err)
		}
		out = MediaItem{ID: id, AttachmentID: attachmentID, SourcePath: source, ThumbnailPath: strings.TrimSpace(thumbnail), Position: pos}
		return nil
	})
	return out, err
}

// Outline renders the whole tree, one node per line, indented by depth.
func (s *Store) Outline(ctx context.Context) (string, error) {
	var nodes []Node
	if err := sqlx.SelectContext(ctx, s.ext, &nodes,
		`SELECT `+nodeColumns+` FROM tree_nodes ORDER BY weight DESC, label ASC, id ASC`); err != nil {
		return "", fmt.Errorf("tree: outline: %w", err)
	}
	var kinds []struct {
		NodeID int64 `db:"node_id"`
		Kind   Kind  `db:"kind"`
		Media  int   `db:"media"`
	}
	if err := sqlx.SelectContext(ctx, s.ext, &kinds,
		`SELECT a.node_id, a.kind, COUNT(m.id) AS media
		   FROM attachments a LEFT JOIN media_items m ON m.attachment_id = a.id
		  GROUP BY a.node_id, a.kind`); err != nil {
		return "", fmt.Errorf("tree: outline attachments: %w", err)
	}
	content := make(map[int64]string, len(kinds))
	for _, k := range kinds {
		if k.Media > 0 {
			content[k.NodeID] = fmt.Sprintf(" [%s×%d]", k.Kind, k.Media)
		} else {
			content[k.NodeID] = fmt.Sprintf(" [%s]", k.Kind)
		}
	}

	children := make(map[int64][]Node)
	var roots []Node
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		children[*n.ParentID] = append(children[*n.ParentID], n)
	}

	var b strings.Builder
	var walk func(list []Node, depth int)
	walk = func(list []Node, depth int) {
		for _, n := range list {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString("• ")
			b.WriteString(n.Label)
			b.WriteString(content[n.ID])
			b.WriteByte('\n')
			walk(children[n.ID], depth+1)
		}
	}
	walk(roots, 0)
	return strings.TrimRight(b.String(), "\n"), nil
}
