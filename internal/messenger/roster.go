package messenger

import (
	"sort"
	"sync"
)

// Roster tracks which users have been seen in which chats. The Bot API
// cannot enumerate chat members, so this stands in for member listing.
type Roster struct {
	mu      sync.Mutex
	members map[string]map[string]bool
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{members: make(map[string]map[string]bool)}
}

// Observe records that user was seen in channel.
func (r *Roster) Observe(channel, user string) {
	if channel == "" || user == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[channel]
	if !ok {
		set = make(map[string]bool)
		r.members[channel] = set
	}
	set[user] = true
}

// Members returns the users seen in channel, sorted.
func (r *Roster) Members(channel string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.members[channel]))
	for user := range r.members[channel] {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}
