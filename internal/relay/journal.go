package relay

import (
	"github.com/dgnsrekt/avsync/internal/storage"
)

// Recorder receives activity journal entries.
type Recorder interface {
	Record(e storage.Entry) error
}

// JournalFeed publishes journal entries on the mode and tab feeds and
// forwards them to Next, if set.
type JournalFeed struct {
	Broker *Broker
	Next   Recorder
}

// FeedFor returns the feed an entry kind is published on, or "" if the
// kind is journal-only.
func FeedFor(kind string) string {
	switch kind {
	case "mode", "setting", "audio_device":
		return FeedMode
	case "resource", "resume_point", "tab_removed":
		return FeedTab
	}
	return ""
}

func (f JournalFeed) Record(e storage.Entry) error {
	if feed := FeedFor(e.Kind); feed != "" && f.Broker != nil {
		f.Broker.PublishJSON(feed, e)
	}
	if f.Next == nil {
		return nil
	}
	return f.Next.Record(e)
}
