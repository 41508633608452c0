package action

import (
	"encoding/json"
	"testing"

	"github.com/dgnsrekt/avsync/internal/relay"
	"github.com/dgnsrekt/avsync/internal/types"
)

func TestToolbarTracksState(t *testing.T) {
	tb := NewToolbar(nil)
	tb.SetIcon(types.IconSet{"19": "img/icon19.png"})
	tb.SetTitle("Enabled")

	tab := types.TabID(3)
	tb.SetBadge(&tab, "⌛", "#FFFFFF")
	tb.SetBadge(nil, "", "")

	st := tb.State()
	if st.Title != "Enabled" || st.Icon["19"] != "img/icon19.png" {
		t.Fatalf("State() = %+v", st)
	}
	if len(st.Badges) != 1 || st.Badges[0].TabID != 3 || st.Badges[0].Text != "⌛" || st.Badges[0].Color != "#FFFFFF" {
		t.Fatalf("Badges = %+v; want one hourglass badge on tab 3", st.Badges)
	}

	tb.SetBadge(&tab, "", "")
	if got := len(tb.State().Badges); got != 0 {
		t.Fatalf("len(Badges) after clear = %d; want 0", got)
	}
}

func TestToolbarPublishesChanges(t *testing.T) {
	b := relay.NewBroker()
	_, ch := b.Subscribe()
	tb := NewToolbar(b)

	tb.SetTitle("Disabled")

	select {
	case evt := <-ch:
		if evt.Feed != relay.FeedAction {
			t.Fatalf("feed = %q; want %q", evt.Feed, relay.FeedAction)
		}
		var st State
		if err := json.Unmarshal([]byte(evt.Payload), &st); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if st.Title != "Disabled" {
			t.Fatalf("published title = %q; want Disabled", st.Title)
		}
	default:
		t.Fatal("no event published")
	}
}

func TestForgetTab(t *testing.T) {
	tb := NewToolbar(nil)
	tab := types.TabID(8)
	tb.SetBadge(&tab, "⌛", "")
	tb.ForgetTab(tab)
	if got := len(tb.State().Badges); got != 0 {
		t.Fatalf("len(Badges) = %d; want 0", got)
	}
}
