package notify

import (
	"sort"

	"github.com/nhle/socialterm/internal/model"
)

// mergeHistory reconciles the local history with a fetched one. Entries
// are unique by id; the fetched copy's content wins but an entry read on
// either side stays read. The result is ordered newest first.
func mergeHistory(local, fetched []model.Notification) []model.Notification {
	localByID := make(map[model.NotificationID]model.Notification, len(local))
	for _, n := range local {
		localByID[n.ID] = n
	}

	out := make([]model.Notification, 0, len(local)+len(fetched))
	seen := make(map[model.NotificationID]bool, len(local)+len(fetched))

	for _, n := range fetched {
		if seen[n.ID] {
			continue
		}
		if l, ok := localByID[n.ID]; ok {
			n.Read = n.Read || l.Read
			if n.ReceivedAt.IsZero() {
				n.ReceivedAt = l.ReceivedAt
			}
		}
		seen[n.ID] = true
		out = append(out, n)
	}

	for _, n := range local {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortTime().After(out[j].SortTime())
	})
	return out
}

func indexOf(ns []model.Notification, id model.NotificationID) int {
	for i := range ns {
		if ns[i].ID == id {
			return i
		}
	}
	return -1
}

func countUnread(ns []model.Notification) int {
	n := 0
	for i := range ns {
		if !ns[i].Read {
			n++
		}
	}
	return n
}
