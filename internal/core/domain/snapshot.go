package domain

import (
	"sort"
	"time"
)

// Snapshot is an immutable export of every collaborator's state.
// States is keyed by collaborator name.
type Snapshot struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	States    map[string][]byte `json:"states"`
}

// SnapshotInfo is the metadata view of a Snapshot.
type SnapshotInfo struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Collaborators []string  `json:"collaborators"`
	Bytes         int       `json:"bytes"`
}

// Info summarizes the snapshot without its payloads.
func (s Snapshot) Info() SnapshotInfo {
	info := SnapshotInfo{ID: s.ID, Timestamp: s.Timestamp}
	for name, blob := range s.States {
		info.Collaborators = append(info.Collaborators, name)
		info.Bytes += len(blob)
	}
	sort.Strings(info.Collaborators)
	return info
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{ID: s.ID, Timestamp: s.Timestamp, States: make(map[string][]byte, len(s.States))}
	for name, blob := range s.States {
		out.States[name] = append([]byte(nil), blob...)
	}
	return out
}
