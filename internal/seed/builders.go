package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBA-HOK/CoCoIRU/internal/client"
	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

// Builders turn generator output plus foreign keys into one API call each and
// return the identifier unchanged; a zero ID means the call failed and was
// already logged by the client.

func (r *Runner) createItem(ctx context.Context, s Session, item domain.Item) domain.ID {
	id, _ := r.API.Create(ctx, client.Request{
		Kind:    domain.KindItem,
		Payload: item,
		Label:   item.Name,
		Token:   s.Token,
	})
	return id
}

// newCommunity draws a community payload; index names it.
func (r *Runner) newCommunity(index int) domain.Community {
	f := r.Config.Fixtures
	p := r.Gen.Coordinates(f.Center, f.CoordRange, f.Mode(), f.Precision)
	return domain.Community{
		Name:        fmt.Sprintf("%s %d", f.NamePrefix, index),
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		MemberCount: r.Gen.Int(f.MemberCountMin, f.MemberCountMax),
		CreatedAt:   r.timestamp(),
		Password:    r.Gen.Password(f.PasswordLength),
	}
}

func (r *Runner) createCommunity(ctx context.Context, s Session, c domain.Community) domain.ID {
	id, _ := r.API.Create(ctx, client.Request{
		Kind:    domain.KindCommunity,
		Payload: c,
		Label:   c.Name,
		Token:   s.Token,
	})
	return id
}

func (r *Runner) createShelterInfo(ctx context.Context, s Session, index int) domain.ID {
	f := r.Config.Fixtures
	p := r.Gen.Coordinates(f.Center, f.CoordRange, f.Mode(), f.Precision)
	label := fmt.Sprintf("避難所 %d", index)
	id, _ := r.API.Create(ctx, client.Request{
		Kind: domain.KindShelterInfo,
		Payload: domain.ShelterInfo{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Notes:     label,
			CreatedAt: r.timestamp(),
		},
		Label: label,
		Token: s.Token,
	})
	return id
}

func (r *Runner) createRequestContent(ctx context.Context, s Session, itemID domain.ID, number int) domain.ID {
	id, _ := r.API.Create(ctx, client.Request{
		Kind: domain.KindRequestContent,
		Payload: domain.RequestContent{
			ItemsID:   itemID,
			Number:    number,
			CreatedAt: r.timestamp(),
		},
		Label: fmt.Sprintf("items_id=%s number=%d", itemID, number),
		Token: s.Token,
	})
	return id
}

func (r *Runner) createSupportRequest(ctx context.Context, s Session, communityID, requestContentID domain.ID, status domain.Status) domain.ID {
	id, _ := r.API.Create(ctx, client.Request{
		Kind: domain.KindSupportRequest,
		Payload: domain.SupportRequest{
			CommunityID:      communityID,
			RequestContentID: requestContentID,
			Status:           status,
			CreatedAt:        r.timestamp(),
		},
		Label: fmt.Sprintf("community_id=%s request_content_id=%s status=%s", communityID, requestContentID, status),
		Token: s.Token,
	})
	return id
}

func (r *Runner) createSpecialNote(ctx context.Context, s Session, text string) domain.ID {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		content = []byte(text)
	}
	id, _ := r.API.Create(ctx, client.Request{
		Kind: domain.KindSpecialNote,
		Payload: domain.SpecialNote{
			NotesContentJSON: string(content),
			CreatedAt:        r.timestamp(),
		},
		Label: text,
		Token: s.Token,
	})
	return id
}

func (r *Runner) createMember(ctx context.Context, s Session, specialNotesID domain.ID) domain.ID {
	var ref *domain.ID
	if !specialNotesID.IsZero() {
		ref = &specialNotesID
	}
	id, _ := r.API.Create(ctx, client.Request{
		Kind: domain.KindMember,
		Payload: domain.Member{
			SpecialNotesID: ref,
			CreatedAt:      r.timestamp(),
		},
		Label: fmt.Sprintf("special_notes_id=%s", specialNotesID),
		Token: s.Token,
	})
	return id
}

// updateCommunityMember rewrites c with memberID, carrying the fields the
// API would otherwise reset. The API requires a password on every update and
// never returns the current one, so password replaces it.
func (r *Runner) updateCommunityMember(ctx context.Context, s Session, c domain.CommunityRecord, memberID domain.ID, password string) bool {
	return r.API.Update(ctx, client.Request{
		Kind: domain.KindCommunity,
		Payload: domain.Community{
			Name:        c.Name,
			Latitude:    c.Latitude,
			Longitude:   c.Longitude,
			MemberCount: c.MemberCount,
			CreatedAt:   c.CreatedAt,
			MemberID:    &memberID,
			Password:    password,
		},
		Label: c.Name,
		Token: s.Token,
	}, c.CommunityID)
}
