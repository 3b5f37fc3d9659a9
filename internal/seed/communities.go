package seed

import "context"

// Communities creates fixtures.count communities, each with a generated
// password, and prints their credentials. Community creation needs no token,
// so the auth phase only runs when auth.communities is set.
func (r *Runner) Communities(ctx context.Context) (sum *Summary, err error) {
	rn := r.begin(ctx, "communities")
	defer func() { r.finish(ctx, rn, err) }()

	if r.Config.Auth.Communities && !r.Config.Auth.Disabled {
		rn.session, err = r.authenticate(ctx, rn)
		if err != nil {
			return nil, err
		}
	}

	if _, err = r.communitiesPhase(ctx, rn, r.Config.Fixtures.Count); err != nil {
		return nil, err
	}
	return rn.summary, nil
}
