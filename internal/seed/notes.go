package seed

import (
	"context"
	"fmt"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

type noteResult struct {
	note    domain.ID
	member  domain.ID
	updated bool
}

// Notes attaches a special note, through a new member, to a random subset of
// the communities the API already holds. Listing communities needs a gov
// session, and every member-link update sets a new community password.
func (r *Runner) Notes(ctx context.Context) (sum *Summary, err error) {
	rn := r.begin(ctx, "notes")
	defer func() { r.finish(ctx, rn, err) }()

	if !r.Config.Auth.Disabled {
		rn.session, err = r.authenticateGov(ctx, rn)
		if err != nil {
			return nil, err
		}
	}

	communities, err := r.API.ListCommunities(ctx, rn.session.Token)
	if err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	targets := make([]domain.CommunityRecord, 0, len(communities))
	for _, c := range communities {
		if c.CommunityID.IsZero() {
			continue
		}
		targets = append(targets, c)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("list communities: %w", ErrEmptyPool)
	}

	f := r.Config.Fixtures
	type job struct {
		community domain.CommunityRecord
		text      string
		password  string
	}
	var jobs []job
	for _, c := range targets {
		if r.Gen.Chance(f.NoteProbability) {
			jobs = append(jobs, job{
				community: c,
				text:      f.Notes[r.Gen.Pick(len(f.Notes))],
				password:  r.Gen.Password(f.PasswordLength),
			})
		}
	}
	rn.log.Info("phase started", "phase", "notes", "communities", len(targets), "tasks", len(jobs))

	results := fanOut(ctx, r.Config.API.Concurrency, len(jobs), func(ctx context.Context, i int) noteResult {
		var res noteResult
		res.note = r.createSpecialNote(ctx, rn.session, jobs[i].text)
		if res.note.IsZero() {
			return res
		}
		res.member = r.createMember(ctx, rn.session, res.note)
		if res.member.IsZero() {
			return res
		}
		res.updated = r.updateCommunityMember(ctx, rn.session, jobs[i].community, res.member, jobs[i].password)
		return res
	})

	var rows []domain.Created
	var notes, members, updated int
	for i, res := range results {
		if res.note.IsZero() {
			continue
		}
		notes++
		rows = append(rows, domain.Created{Kind: domain.KindSpecialNote.Name, ID: res.note, Label: jobs[i].text})
		if res.member.IsZero() {
			continue
		}
		members++
		rows = append(rows, domain.Created{
			Kind:       domain.KindMember.Name,
			ID:         res.member,
			ParentKind: domain.KindSpecialNote.Name,
			ParentID:   res.note,
		})
		if res.updated {
			updated++
			rn.summary.Credentials = append(rn.summary.Credentials, CommunityCredential{
				Name:     jobs[i].community.Name,
				ID:       jobs[i].community.CommunityID,
				Password: jobs[i].password,
			})
		}
	}
	r.record(ctx, rn, rows)

	rn.summary.add(domain.KindSpecialNote.Name, len(jobs), notes)
	rn.summary.add(domain.KindMember.Name, notes, members)
	rn.summary.add(kindCommunityUpdate, members, updated)
	rn.log.Info("phase finished", "phase", "notes", "updated", updated)
	return rn.summary, nil
}
