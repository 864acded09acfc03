package flow

import (
	"context"
	"errors"

	"caretoplay/internal/domain"
)

// Share sub-states, nested under a flow's askToShare state.
const (
	ShareIdle    State = "idle"
	ShareAsking  State = "asking"
	ShareSharing State = "sharing"
	ShareShared  State = "shared"
	ShareFailed  State = "error"
)

// shareFailureMessage maps a share rejection to the inline message shown next to
// the copied link.
func shareFailureMessage(err error) string {
	var shareErr *ShareError
	if !errors.As(err, &shareErr) {
		return "Sharing failed."
	}
	switch shareErr.Name {
	case ShareUnsupported:
		return "Sharing is not supported on this device."
	case ShareInternalError:
		return "Something went wrong while sharing."
	case ShareTimeout:
		return "Sharing took too long."
	default:
		return "Sharing failed."
	}
}

// runShare tries the native share sheet and falls back to copying the link.
// enter is called for every sub-state reached.
func (e *env) runShare(ctx context.Context, quizSetKey string, req ShareRequest, enter func(sub State, message string)) {
	enter(ShareSharing, "")
	err := e.Sharer.Share(ctx, req)
	if err == nil {
		e.snap(domain.SnapShare, quizSetKey)
		enter(ShareShared, "")
		return
	}
	e.log.Debug().Err(err).Str("quizSetKey", quizSetKey).Msg("native share rejected, copying link")

	msg := shareFailureMessage(err)
	if cerr := e.Clipboard.CopyLink(ctx, req.URL); cerr != nil {
		e.log.Debug().Err(cerr).Msg("copy link")
		enter(ShareFailed, msg+" Copy this link to share: "+req.URL)
		return
	}
	e.snap(domain.SnapShare, quizSetKey)
	enter(ShareShared, msg+" Link copied to clipboard.")
}
