package seed

import (
	"context"
	"fmt"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

// chain is one request-content → support-request pair under a community.
type chain struct {
	community domain.ID
	item      domain.ID
	number    int
	status    domain.Status
}

type chainResult struct {
	requestContent domain.ID
	supportRequest domain.ID
}

// Requests seeds items, communities (and shelter infos), then per community a
// random number of request-content → support-request chains.
func (r *Runner) Requests(ctx context.Context) (sum *Summary, err error) {
	rn := r.begin(ctx, "requests")
	defer func() { r.finish(ctx, rn, err) }()

	if !r.Config.Auth.Disabled {
		rn.session, err = r.authenticate(ctx, rn)
		if err != nil {
			return nil, err
		}
	}

	items, err := r.itemsPhase(ctx, rn)
	if err != nil {
		return nil, err
	}
	communities, err := r.communitiesPhase(ctx, rn, r.Config.Fixtures.Communities)
	if err != nil {
		return nil, err
	}
	r.requestsPhase(ctx, rn, items, communities)

	return rn.summary, nil
}

func (r *Runner) itemsPhase(ctx context.Context, rn *run) ([]domain.ID, error) {
	catalog := r.Config.Fixtures.Items
	rn.log.Info("phase started", "phase", "items", "tasks", len(catalog))

	ids := fanOut(ctx, r.Config.API.Concurrency, len(catalog), func(ctx context.Context, i int) domain.ID {
		return r.createItem(ctx, rn.session, catalog[i])
	})

	rows := make([]domain.Created, 0, len(ids))
	for i, id := range ids {
		if !id.IsZero() {
			rows = append(rows, domain.Created{Kind: domain.KindItem.Name, ID: id, Label: catalog[i].Name})
		}
	}
	r.record(ctx, rn, rows)

	pool := domain.Compact(ids)
	rn.summary.add(domain.KindItem.Name, len(catalog), len(pool))
	if len(pool) == 0 {
		return nil, fmt.Errorf("items phase: %w", ErrEmptyPool)
	}
	rn.log.Info("phase finished", "phase", "items", "created", len(pool))
	return pool, nil
}

// communitiesPhase creates n communities alongside the configured shelter
// infos and returns the community pool.
func (r *Runner) communitiesPhase(ctx context.Context, rn *run, n int) ([]domain.ID, error) {
	shelters := r.Config.Fixtures.Shelters
	rn.log.Info("phase started", "phase", "communities", "tasks", n+shelters)

	payloads := make([]domain.Community, n)
	for i := range payloads {
		payloads[i] = r.newCommunity(i + 1)
	}
	ids := fanOut(ctx, r.Config.API.Concurrency, n+shelters, func(ctx context.Context, i int) domain.ID {
		if i < n {
			return r.createCommunity(ctx, rn.session, payloads[i])
		}
		return r.createShelterInfo(ctx, rn.session, i-n+1)
	})
	communityIDs, shelterIDs := ids[:n], ids[n:]

	rows := make([]domain.Created, 0, len(ids))
	for i, id := range communityIDs {
		if !id.IsZero() {
			rows = append(rows, domain.Created{Kind: domain.KindCommunity.Name, ID: id, Label: payloads[i].Name})
			rn.summary.Credentials = append(rn.summary.Credentials, CommunityCredential{
				Name:     payloads[i].Name,
				ID:       id,
				Password: payloads[i].Password,
			})
		}
	}
	for _, id := range shelterIDs {
		if !id.IsZero() {
			rows = append(rows, domain.Created{Kind: domain.KindShelterInfo.Name, ID: id})
		}
	}
	r.record(ctx, rn, rows)

	pool := domain.Compact(communityIDs)
	rn.summary.add(domain.KindCommunity.Name, n, len(pool))
	if shelters > 0 {
		rn.summary.add(domain.KindShelterInfo.Name, shelters, len(domain.Compact(shelterIDs)))
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("communities phase: %w", ErrEmptyPool)
	}
	rn.log.Info("phase finished", "phase", "communities", "created", len(pool))
	return pool, nil
}

func (r *Runner) requestsPhase(ctx context.Context, rn *run, items, communities []domain.ID) {
	f := r.Config.Fixtures

	var chains []chain
	for _, c := range communities {
		for j, n := 0, r.Gen.Int(1, f.RequestsPerCommunity); j < n; j++ {
			chains = append(chains, chain{
				community: c,
				item:      items[r.Gen.Pick(len(items))],
				number:    r.Gen.Int(f.QuantityMin, f.QuantityMax),
				status:    r.Gen.Status(),
			})
		}
	}
	rn.log.Info("phase started", "phase", "requests", "tasks", len(chains))

	results := fanOut(ctx, r.Config.API.Concurrency, len(chains), func(ctx context.Context, i int) chainResult {
		ch := chains[i]
		var res chainResult
		res.requestContent = r.createRequestContent(ctx, rn.session, ch.item, ch.number)
		if res.requestContent.IsZero() {
			return res
		}
		res.supportRequest = r.createSupportRequest(ctx, rn.session, ch.community, res.requestContent, ch.status)
		return res
	})

	var rows []domain.Created
	var rcOK, srOK int
	for i, res := range results {
		if res.requestContent.IsZero() {
			continue
		}
		rcOK++
		rows = append(rows, domain.Created{
			Kind:       domain.KindRequestContent.Name,
			ID:         res.requestContent,
			ParentKind: domain.KindItem.Name,
			ParentID:   chains[i].item,
		})
		if res.supportRequest.IsZero() {
			continue
		}
		srOK++
		rows = append(rows, domain.Created{
			Kind:       domain.KindSupportRequest.Name,
			ID:         res.supportRequest,
			Label:      string(chains[i].status),
			ParentKind: domain.KindCommunity.Name,
			ParentID:   chains[i].community,
		})
	}
	r.record(ctx, rn, rows)

	rn.summary.add(domain.KindRequestContent.Name, len(chains), rcOK)
	rn.summary.add(domain.KindSupportRequest.Name, rcOK, srOK)
	rn.log.Info("phase finished", "phase", "requests", "support_requests", srOK)
}
