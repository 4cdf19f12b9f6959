// Package thread turns the flat, time-ordered comment list returned by the
// store into the two-level structure the public thread renders: root comments
// carrying ordered reply lists.
package thread

import "newsdesk/internal/model"

// CollapsedRootLimit is how many root comments the collapsed thread shows.
const CollapsedRootLimit = 2

// Build groups a flat comment list into root comments with reply lists and
// stamps per-viewer like flags.
//
// Grouping follows parent ids literally: each comment attaches to whatever
// record its ParentID names, in input order. A comment whose parent does not
// resolve to anything in the input is absorbed as a root rather than dropped,
// which keeps replies visible when their parent was rejected or deleted
// later. Chains deeper than one level are never rendered recursively; each
// root's reply list is the depth-first flattening of all its descendants, so
// the output is always exactly two levels. Callers should pass comments
// ascending by creation time; that order is preserved within each level.
func Build(flat []model.Comment, liked map[int64]bool) []model.Comment {
	if len(flat) == 0 {
		return []model.Comment{}
	}

	byID := make(map[int64]struct{}, len(flat))
	children := make(map[int64][]*model.Comment, len(flat))
	roots := make([]*model.Comment, 0, len(flat))

	for i := range flat {
		byID[flat[i].ID] = struct{}{}
	}

	for i := range flat {
		c := flat[i] // copy; the input slice is left untouched
		c.Replies = nil
		c.ViewerHasLiked = liked[c.ID]
		node := &c

		if c.ParentID != nil {
			if _, ok := byID[*c.ParentID]; ok {
				children[*c.ParentID] = append(children[*c.ParentID], node)
				continue
			}
		}
		roots = append(roots, node)
	}

	out := make([]model.Comment, len(roots))
	for i, r := range roots {
		root := *r
		root.Replies = collectReplies(children, root.ID, nil)
		if root.Replies == nil {
			root.Replies = []model.Comment{}
		}
		out[i] = root
	}
	return out
}

// collectReplies appends id's children depth-first: each reply is followed by
// its own replies, flattened into the same list.
func collectReplies(children map[int64][]*model.Comment, id int64, acc []model.Comment) []model.Comment {
	for _, child := range children[id] {
		acc = append(acc, *child)
		acc = collectReplies(children, child.ID, acc)
	}
	return acc
}

// Flatten is the inverse of Build for grouping purposes: it walks roots in
// order, emitting each root followed by its replies. Parent links are
// preserved, so Build(Flatten(tree)) reproduces the same grouping.
func Flatten(roots []model.Comment) []model.Comment {
	var out []model.Comment
	for _, r := range roots {
		replies := r.Replies
		r.Replies = nil
		out = append(out, r)
		out = append(out, replies...)
	}
	return out
}

// Window applies the collapsed-view policy: at most CollapsedRootLimit roots
// are visible until the caller expands. Hidden counts roots only, not replies.
// Pure view state, nothing here is persisted.
func Window(roots []model.Comment, expanded bool) (visible []model.Comment, hidden int) {
	if expanded || len(roots) <= CollapsedRootLimit {
		return roots, 0
	}
	return roots[:CollapsedRootLimit], len(roots) - CollapsedRootLimit
}
