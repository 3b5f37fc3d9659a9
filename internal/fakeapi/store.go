package fakeapi

import (
	"sort"
	"sync"
)

type ItemRow struct {
	ItemsID     int    `json:"items_id"`
	ItemName    string `json:"item_name"`
	Unit        string `json:"unit,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

type CommunityRow struct {
	CommunityID  int     `json:"community_id"`
	CredentialID int     `json:"credential_id"`
	MemberID     *int    `json:"member_id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	MemberCount  int     `json:"member_count"`
	CreatedAt    string  `json:"created_at,omitempty"`

	passwordHash []byte
}

type MemberRow struct {
	MemberID       int    `json:"member_id"`
	SpecialNotesID *int   `json:"special_notes_id"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type SpecialNoteRow struct {
	SpecialNotesID   int    `json:"special_notes_id"`
	NotesContentJSON string `json:"notes_content_json"`
	CreatedAt        string `json:"created_at,omitempty"`
}

type RequestContentRow struct {
	RequestContentID int     `json:"request_content_id"`
	ItemsID          int     `json:"items_id"`
	Number           int     `json:"number"`
	OtherNote        *string `json:"other_note"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

type SupportRequestRow struct {
	RequestID        int    `json:"request_id"`
	CommunityID      int    `json:"community_id"`
	RequestContentID int    `json:"request_content_id"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at,omitempty"`
}

type ShelterInfoRow struct {
	ShelterInfo int     `json:"shelter_info"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// store is the in-memory database. Identifiers are per-table sequences
// starting at 1, like SQLite's integer primary keys.
type store struct {
	mu sync.Mutex

	seq map[string]int

	items           map[int]ItemRow
	communities     map[int]*CommunityRow
	members         map[int]MemberRow
	specialNotes    map[int]SpecialNoteRow
	requestContents map[int]RequestContentRow
	supportRequests map[int]SupportRequestRow
	shelters        map[int]ShelterInfoRow
}

func newStore() *store {
	return &store{
		seq:             map[string]int{},
		items:           map[int]ItemRow{},
		communities:     map[int]*CommunityRow{},
		members:         map[int]MemberRow{},
		specialNotes:    map[int]SpecialNoteRow{},
		requestContents: map[int]RequestContentRow{},
		supportRequests: map[int]SupportRequestRow{},
		shelters:        map[int]ShelterInfoRow{},
	}
}

// next must be called with mu held.
func (s *store) next(table string) int {
	s.seq[table]++
	return s.seq[table]
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func values[V any](mu *sync.Mutex, m map[int]V) []V {
	mu.Lock()
	defer mu.Unlock()
	out := make([]V, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func (s *store) communityList() []CommunityRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CommunityRow, 0, len(s.communities))
	for _, k := range sortedKeys(s.communities) {
		out = append(out, *s.communities[k])
	}
	return out
}
