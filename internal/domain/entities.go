package domain

import (
	"time"
)

// Kind describes one API collection: where it lives and which response
// field carries the new identifier.
type Kind struct {
	Name    string
	Path    string
	IDField string
}

var (
	KindItem           = Kind{Name: "item", Path: "/items/", IDField: "items_id"}
	KindCommunity      = Kind{Name: "community", Path: "/communities/", IDField: "community_id"}
	KindRequestContent = Kind{Name: "request_content", Path: "/request_content/", IDField: "request_content_id"}
	KindSupportRequest = Kind{Name: "support_request", Path: "/support_requests/", IDField: "request_id"}
	KindMember         = Kind{Name: "member", Path: "/members/", IDField: "member_id"}
	KindSpecialNote    = Kind{Name: "special_note", Path: "/special_notes/", IDField: "special_notes_id"}
	KindShelterInfo    = Kind{Name: "shelter_info", Path: "/shelter_info/", IDField: "shelter_info"}
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

type Point struct {
	Latitude  float64 `yaml:"lat" json:"latitude"`
	Longitude float64 `yaml:"lon" json:"longitude"`
}

type Item struct {
	Name        string `json:"item_name" yaml:"item_name" validate:"required"`
	Unit        string `json:"unit,omitempty" yaml:"unit"`
	Category    string `json:"category,omitempty" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description"`
}

type Community struct {
	Name        string  `json:"name" validate:"required"`
	Latitude    float64 `json:"latitude" validate:"latitude"`
	Longitude   float64 `json:"longitude" validate:"longitude"`
	MemberCount int     `json:"member_count" validate:"gte=0"`
	CreatedAt   string  `json:"created_at,omitempty"`
	Password    string  `json:"password,omitempty"`
	MemberID    *ID     `json:"member_id,omitempty"`
}

// CommunityRecord is a community as returned by GET /communities/.
type CommunityRecord struct {
	CommunityID ID      `json:"community_id"`
	MemberID    *ID     `json:"member_id,omitempty"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	MemberCount int     `json:"member_count"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

type Member struct {
	SpecialNotesID *ID    `json:"special_notes_id,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type SpecialNote struct {
	NotesContentJSON string `json:"notes_content_json" validate:"required"`
	CreatedAt        string `json:"created_at,omitempty"`
}

type RequestContent struct {
	ItemsID   ID      `json:"items_id" validate:"required"`
	Number    int     `json:"number" validate:"gt=0"`
	OtherNote *string `json:"other_note,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

type SupportRequest struct {
	CommunityID      ID     `json:"community_id" validate:"required"`
	RequestContentID ID     `json:"request_content_id" validate:"required"`
	Status           Status `json:"status" validate:"required,oneof=pending processing completed"`
	CreatedAt        string `json:"created_at,omitempty"`
}

type ShelterInfo struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Notes     string  `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

type TokenRequest struct {
	UserType    string `json:"user_type" validate:"required,oneof=community gov"`
	Username    string `json:"username,omitempty" validate:"required_if=UserType gov"`
	CommunityID *ID    `json:"community_id,omitempty" validate:"required_if=UserType community"`
	Password    string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Role        string `json:"role"`
}

// Credential is what an operator (or a bootstrap run) supplies to obtain a token.
type Credential struct {
	CommunityID ID
	Username    string
	Password    string
}

func (c Credential) IsZero() bool {
	return c.Password == "" || (c.CommunityID.IsZero() && c.Username == "")
}

// Timestamp formats t the way the frontend's Date.toISOString does.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
