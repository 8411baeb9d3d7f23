package services

import (
	"github.com/google/uuid"
	"github.com/mindgraph/backend/internal/models"
)

// AccessLevel is a viewer's computed permission on a mindmap, ordered
// from weakest to strongest.
type AccessLevel int

const (
	AccessDenied AccessLevel = iota
	AccessPublicView
	AccessViewerShare
	AccessEditorShare
	AccessOwner
)

func (l AccessLevel) String() string {
	switch l {
	case AccessOwner:
		return "owner"
	case AccessEditorShare:
		return "editor_share"
	case AccessViewerShare:
		return "viewer_share"
	case AccessPublicView:
		return "public_view"
	default:
		return "denied"
	}
}

// CanRead reports whether the level allows reading the full record.
// Anonymous share-token access does not go through levels at all.
func (l AccessLevel) CanRead() bool {
	return l > AccessDenied
}

// CanWrite reports whether the level allows mutating operations. Only the
// owner may write; an edit grant marks the share as editable for clients
// but grants no write access on this surface.
func (l AccessLevel) CanWrite() bool {
	return l == AccessOwner
}

// EvaluateAccess computes the requester's permission on a mindmap from
// its owner, visibility and grant set. It is pure: no store access, no
// side effects. requester is nil for anonymous callers.
//
// Priority: ownership, then an explicit grant, then public visibility.
func EvaluateAccess(ownerID uuid.UUID, visibility models.MindmapVisibility, grants []models.MindmapShare, requester *uuid.UUID) AccessLevel {
	if requester != nil {
		if *requester == ownerID {
			return AccessOwner
		}
		for _, grant := range grants {
			if grant.UserID == *requester {
				if grant.CanEdit {
					return AccessEditorShare
				}
				return AccessViewerShare
			}
		}
	}

	if visibility == models.VisibilityPublic {
		return AccessPublicView
	}

	return AccessDenied
}
