package fakeapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

type communityCreate struct {
	Name        string   `json:"name" binding:"required"`
	Password    string   `json:"password" binding:"required"`
	MemberID    *int     `json:"member_id"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	MemberCount *int     `json:"member_count"`
	CreatedAt   string   `json:"created_at"`
}

type communityUpdate struct {
	Name        string   `json:"name" binding:"required"`
	Password    string   `json:"password" binding:"required"`
	MemberID    *int     `json:"member_id"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	MemberCount *int     `json:"member_count"`
	CreatedAt   string   `json:"created_at"`
}

type itemCreate struct {
	ItemName    string `json:"item_name" binding:"required"`
	Unit        string `json:"unit"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type requestContentCreate struct {
	ItemsID   *int    `json:"items_id" binding:"required"`
	Number    *int    `json:"number" binding:"required"`
	OtherNote *string `json:"other_note"`
	CreatedAt string  `json:"created_at"`
}

type supportRequestCreate struct {
	CommunityID      *int   `json:"community_id" binding:"required"`
	RequestContentID *int   `json:"request_content_id" binding:"required"`
	Status           string `json:"status" binding:"omitempty,oneof=pending processing completed"`
	CreatedAt        string `json:"created_at"`
}

type memberCreate struct {
	SpecialNotesID *int   `json:"special_notes_id"`
	CreatedAt      string `json:"created_at"`
}

type specialNoteCreate struct {
	NotesContentJSON string `json:"notes_content_json"`
	CreatedAt        string `json:"created_at"`
}

type shelterInfoCreate struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Notes     string   `json:"notes"`
	CreatedAt string   `json:"created_at"`
}

func (s *Server) createCommunity(c *gin.Context) {
	var req communityCreate
	if !bindJSON(c, &req) {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "password could not be hashed")
		return
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if req.MemberID != nil {
		if _, ok := s.db.members[*req.MemberID]; !ok {
			detail(c, http.StatusConflict, fmt.Sprintf("Member with id %d not found", *req.MemberID))
			return
		}
	}
	row := &CommunityRow{
		CommunityID:  s.db.next("communities"),
		CredentialID: s.db.next("credentials"),
		MemberID:     req.MemberID,
		Name:         req.Name,
		Latitude:     deref(req.Latitude),
		Longitude:    deref(req.Longitude),
		MemberCount:  deref(req.MemberCount),
		CreatedAt:    req.CreatedAt,
		passwordHash: hash,
	}
	s.db.communities[row.CommunityID] = row
	c.JSON(http.StatusOK, *row)
}

func (s *Server) listCommunities(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows := s.db.communityList()
	if skip < 0 {
		skip = 0
	}
	if skip > len(rows) {
		skip = len(rows)
	}
	rows = rows[skip:]
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) updateCommunity(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "community id must be an integer")
		return
	}
	var req communityUpdate
	if !bindJSON(c, &req) {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "password could not be hashed")
		return
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row, ok := s.db.communities[id]
	if !ok {
		detail(c, http.StatusNotFound, "Community not found")
		return
	}
	if req.MemberID != nil {
		if _, ok := s.db.members[*req.MemberID]; !ok {
			detail(c, http.StatusConflict, fmt.Sprintf("Member with id %d not found", *req.MemberID))
			return
		}
	}
	row.Name = req.Name
	row.MemberID = req.MemberID
	row.passwordHash = hash
	if req.Latitude != nil {
		row.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		row.Longitude = *req.Longitude
	}
	if req.MemberCount != nil {
		row.MemberCount = *req.MemberCount
	}
	if req.CreatedAt != "" {
		row.CreatedAt = req.CreatedAt
	}
	c.JSON(http.StatusOK, *row)
}

func (s *Server) createItem(c *gin.Context) {
	var req itemCreate
	if !bindJSON(c, &req) {
		return
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row := ItemRow{
		ItemsID:     s.db.next("items"),
		ItemName:    req.ItemName,
		Unit:        req.Unit,
		Category:    req.Category,
		Description: req.Description,
	}
	s.db.items[row.ItemsID] = row
	c.JSON(http.StatusOK, row)
}

func (s *Server) createRequestContent(c *gin.Context) {
	var req requestContentCreate
	if !bindJSON(c, &req) {
		return
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.items[*req.ItemsID]; !ok {
		detail(c, http.StatusConflict, fmt.Sprintf("Item with id %d not found", *req.ItemsID))
		return
	}
	row := RequestContentRow{
		RequestContentID: s.db.next("request_content"),
		ItemsID:          *req.ItemsID,
		Number:           *req.Number,
		OtherNote:        req.OtherNote,
		CreatedAt:        req.CreatedAt,
	}
	s.db.requestContents[row.RequestContentID] = row
	c.JSON(http.StatusOK, row)
}

func (s *Server) createSupportRequest(c *gin.Context) {
	var req supportRequestCreate
	if !bindJSON(c, &req) {
		return
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.communities[*req.CommunityID]; !ok {
		detail(c, http.StatusConflict, fmt.Sprintf("Community with id %d not found", *req.CommunityID))
		return
	}
	if _, ok := s.db.requestContents[*req.RequestContentID]; !ok {
		detail(c, http.StatusConflict, fmt.Sprintf("Request content with id %d not found", *req.RequestContentID))
		return
	}
	status := req.Status
	if status == "" {
		status = "pending"
	}
	row := SupportRequestRow{
		RequestID:        s.db.next("support_requests"),
		CommunityID:      *req.CommunityID,
		RequestContentID: *req.RequestContentID,
		Status:           status,
		CreatedAt:        req.CreatedAt,
	}
	s.db.supportRequests[row.RequestID] = row
	c.JSON(http.StatusOK, row)
}

func (s *Server) createMember(c *gin.Context) {
	var req memberCreate
	if !bindJSON(c, &req) {
		return
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if req.SpecialNotesID != nil {
		if _, ok := s.db.specialNotes[*req.SpecialNotesID]; !ok {
			detail(c, http.StatusConflict, fmt.Sprintf("Special note with id %d not found", *req.SpecialNotesID))
			return
		}
	}
	row := MemberRow{
		MemberID:       s.db.next("members"),
		SpecialNotesID: req.SpecialNotesID,
		CreatedAt:      req.CreatedAt,
	}
	s.db.members[row.MemberID] = row
	c.JSON(http.StatusOK, row)
}

func (s *Server) createSpecialNote(c *gin.Context) {
	var req specialNoteCreate
	if !bindJSON(c, &req) {
		return
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row := SpecialNoteRow{
		SpecialNotesID:   s.db.next("special_notes"),
		NotesContentJSON: req.NotesContentJSON,
		CreatedAt:        req.CreatedAt,
	}
	s.db.specialNotes[row.SpecialNotesID] = row
	c.JSON(http.StatusOK, row)
}

func (s *Server) createShelterInfo(c *gin.Context) {
	var req shelterInfoCreate
	if !bindJSON(c, &req) {
		return
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row := ShelterInfoRow{
		ShelterInfo: s.db.next("shelter_info"),
		Latitude:    deref(req.Latitude),
		Longitude:   deref(req.Longitude),
		Notes:       req.Notes,
		CreatedAt:   req.CreatedAt,
	}
	s.db.shelters[row.ShelterInfo] = row
	c.JSON(http.StatusOK, row)
}

// ---------------- helpers ----------------

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// bindJSON decodes the body into dst and answers 422 with a validation
// detail list when that fails.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
		return false
	}
	return true
}

func validationDetail(err error) []gin.H {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []gin.H{{"loc": []string{"body"}, "msg": err.Error(), "type": "json_invalid"}}
	}
	out := make([]gin.H, 0, len(verrs))
	for _, fe := range verrs {
		msg := "Field required"
		if fe.Tag() != "required" {
			msg = fmt.Sprintf("Input should satisfy %s=%s", fe.Tag(), fe.Param())
		}
		out = append(out, gin.H{
			"loc":  []string{"body", snakeCase(fe.Field())},
			"msg":  msg,
			"type": fe.Tag(),
		})
	}
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = true
	}
	return b.String()
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
