// Package webhook handles incoming GitHub webhook events.
package webhook

import (
	"fmt"
	"time"

	"github.com/google/go-github/v53/github"
)

// VerifySignature validates the X-Hub-Signature-256 header against the payload.
func VerifySignature(payload []byte, signature string, secret []byte) error {
	if err := github.ValidateSignature(signature, payload, secret); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

// ParseEvent parses a webhook payload based on the event type. Only push
// and ping events are supported.
func ParseEvent(eventType string, payload []byte) (interface{}, error) {
	switch eventType {
	case "push", "ping":
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s event: %w", eventType, err)
	}
	return event, nil
}

// isDefaultBranch reports whether a push landed on the repository's default
// branch.
func isDefaultBranch(e *github.PushEvent) bool {
	branch := e.GetRepo().GetDefaultBranch()
	if branch == "" {
		branch = e.GetRepo().GetMasterBranch()
	}
	return branch != "" && e.GetRef() == "refs/heads/"+branch
}

// pushTime is the best available commit time for a push: the head commit's
// timestamp, then the repository's pushed_at, then now.
func pushTime(e *github.PushEvent, now time.Time) time.Time {
	if ts := e.GetHeadCommit().GetTimestamp(); !ts.IsZero() {
		return ts.Time
	}
	if ts := e.GetRepo().GetPushedAt(); !ts.IsZero() {
		return ts.Time
	}
	return now
}
