package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// RenameChannel is the broker channel carrying author-rename events.
const RenameChannel = "author-renames"

const applyTimeout = time.Minute

// RenameEvent is the payload of an author-rename fan-out message.
type RenameEvent struct {
	AuthorID int    `json:"authorId"`
	Name     string `json:"name"`
}

// AuthorNameUpdater rewrites the denormalized author name across a
// collection of authored resources.
type AuthorNameUpdater interface {
	UpdateAuthorName(ctx context.Context, authorID int, name string) error
}

// RenamePublisher publishes fan-out events to a broker channel. It is
// satisfied by *mq.MQ.
type RenamePublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// RenameFanout propagates a user's new display name to the posts and
// comments they authored. The propagation is best effort and is never
// transactional with the profile update itself: a partially renamed set of
// resources is an accepted, eventually-consistent state.
type RenameFanout struct {
	posts     AuthorNameUpdater
	comments  AuthorNameUpdater
	publisher RenamePublisher
}

// NewRenameFanout constructs a fan-out over the given collections.
// publisher may be nil, in which case events are applied in-process.
func NewRenameFanout(posts, comments AuthorNameUpdater, publisher RenamePublisher) *RenameFanout {
	return &RenameFanout{
		posts:     posts,
		comments:  comments,
		publisher: publisher,
	}
}

// Propagate kicks off the rename fan-out without blocking the caller on the
// bulk rewrites. With a broker configured the event is published for a
// subscriber to apply; otherwise the rewrites run on a background goroutine.
// Failures are swallowed: the identity update already succeeded.
func (f *RenameFanout) Propagate(ctx context.Context, authorID int, name string) {
	if f.publisher != nil {
		data, err := json.Marshal(RenameEvent{AuthorID: authorID, Name: name})
		if err == nil {
			if _, err := f.publisher.Publish(ctx, RenameChannel, data, nil); err == nil {
				return
			}
		}
		// Broker unavailable; fall through to the in-process path.
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
		defer cancel()
		_ = f.Apply(ctx, authorID, name)
	}()
}

// Apply performs the bulk author-name rewrites. Both collections are
// attempted even if the first fails.
func (f *RenameFanout) Apply(ctx context.Context, authorID int, name string) error {
	return errors.Join(
		f.posts.UpdateAuthorName(ctx, authorID, name),
		f.comments.UpdateAuthorName(ctx, authorID, name),
	)
}

// DecodeRenameEvent parses a fan-out message payload.
func DecodeRenameEvent(data []byte) (RenameEvent, error) {
	var event RenameEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return RenameEvent{}, err
	}
	if event.AuthorID < 1 {
		return RenameEvent{}, errors.New("rename event missing author id")
	}
	return event, nil
}
