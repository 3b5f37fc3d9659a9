package seed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/IBA-HOK/CoCoIRU/internal/client"
	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

// Session is the authenticated identity a run acts under. The zero Session
// sends no Authorization header.
type Session struct {
	Token      string
	Role       string
	ExpiresAt  time.Time
	Credential domain.Credential
	// Bootstrapped is set when the credential belongs to a community this run created.
	Bootstrapped bool
}

type credentialSource string

const (
	sourceGov       credentialSource = "gov"
	sourceConfig    credentialSource = "config"
	sourceStore     credentialSource = "store"
	sourceBootstrap credentialSource = "bootstrap"
)

// authenticate resolves a credential and exchanges it for a token. Every
// failure wraps ErrAuth.
func (r *Runner) authenticate(ctx context.Context, rn *run) (Session, error) {
	cred, source := r.resolveCredential(ctx, rn)

	var rows []domain.Created
	if cred.IsZero() {
		var err error
		cred, rows, err = r.bootstrap(ctx, rn)
		if err != nil {
			return Session{}, err
		}
		source = sourceBootstrap
	}

	sess, err := r.issue(ctx, cred)
	if err != nil && source == sourceStore && client.StatusCode(err) == http.StatusUnauthorized {
		rn.log.Warn("stored credential rejected, bootstrapping a new one", "community_id", cred.CommunityID.String())
		cred, rows, err = r.bootstrap(ctx, rn)
		if err != nil {
			return Session{}, err
		}
		source = sourceBootstrap
		sess, err = r.issue(ctx, cred)
	}
	r.record(ctx, rn, rows)
	if err != nil {
		return Session{}, fmt.Errorf("%w: issue token (%s credential): %w", ErrAuth, source, err)
	}
	sess.Bootstrapped = source == sourceBootstrap

	rn.log.Info("authenticated", "source", string(source), "role", sess.Role, "expires_at", sess.ExpiresAt)
	if !sess.ExpiresAt.IsZero() {
		if left := sess.ExpiresAt.Sub(r.now()); left < r.Config.API.Timeout.Duration {
			rn.log.Warn("token expires before a single request timeout elapses", "remaining", left)
		}
	}

	if sess.Bootstrapped {
		r.persistBootstrap(ctx, rn, cred)
	}
	return sess, nil
}

// authenticateGov logs in with the configured gov credential only. Community
// credentials are never tried: the endpoints that need this session reject
// them.
func (r *Runner) authenticateGov(ctx context.Context, rn *run) (Session, error) {
	a := r.Config.Auth
	if a.GovUsername == "" || a.GovPassword == "" {
		return Session{}, fmt.Errorf("%w: %s workflow needs auth.gov_username and auth.gov_password", ErrAuth, rn.summary.Workflow)
	}
	sess, err := r.issue(ctx, domain.Credential{Username: a.GovUsername, Password: a.GovPassword})
	if err != nil {
		return Session{}, fmt.Errorf("%w: issue token (%s credential): %w", ErrAuth, sourceGov, err)
	}
	if sess.Role != "gov" {
		return Session{}, fmt.Errorf("%w: token for %q has role %q, need gov", ErrAuth, a.GovUsername, sess.Role)
	}
	rn.log.Info("authenticated", "source", string(sourceGov), "role", sess.Role, "expires_at", sess.ExpiresAt)
	return sess, nil
}

func (r *Runner) resolveCredential(ctx context.Context, rn *run) (domain.Credential, credentialSource) {
	a := r.Config.Auth
	if a.GovUsername != "" && a.GovPassword != "" {
		return domain.Credential{Username: a.GovUsername, Password: a.GovPassword}, sourceGov
	}
	if a.CommunityID != "" && a.CommunityPassword != "" {
		return domain.Credential{CommunityID: domain.IDFromString(a.CommunityID), Password: a.CommunityPassword}, sourceConfig
	}
	if r.Creds != nil {
		cred, err := r.Creds.Load(ctx)
		if err != nil {
			rn.log.Warn("credential store read failed", "error", err)
		} else if !cred.IsZero() {
			return cred, sourceStore
		}
	}
	return domain.Credential{}, sourceBootstrap
}

// bootstrap creates the community whose credential the run will log in with.
// Community creation is the one endpoint the API serves without a token.
func (r *Runner) bootstrap(ctx context.Context, rn *run) (domain.Credential, []domain.Created, error) {
	f := r.Config.Fixtures
	password := r.Config.Auth.BootstrapPassword
	if password == "" {
		password = r.Gen.Password(max(12, f.PasswordLength))
	}
	c := domain.Community{
		Name:        f.NamePrefix + " bootstrap",
		Latitude:    f.Center.Latitude,
		Longitude:   f.Center.Longitude,
		MemberCount: 0,
		CreatedAt:   r.timestamp(),
		Password:    password,
	}
	id := r.createCommunity(ctx, Session{}, c)
	if id.IsZero() {
		return domain.Credential{}, nil, fmt.Errorf("%w: bootstrap community could not be created", ErrAuth)
	}
	rn.log.Info("bootstrap community created", "community_id", id.String())
	rows := []domain.Created{{Kind: domain.KindCommunity.Name, ID: id, Label: c.Name}}
	return domain.Credential{CommunityID: id, Password: password}, rows, nil
}

func (r *Runner) issue(ctx context.Context, cred domain.Credential) (Session, error) {
	req := domain.TokenRequest{Password: cred.Password}
	if cred.Username != "" {
		req.UserType = "gov"
		req.Username = cred.Username
	} else {
		id := cred.CommunityID
		req.UserType = "community"
		req.CommunityID = &id
	}

	resp, err := r.API.IssueToken(ctx, req)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Token:      resp.AccessToken,
		Role:       resp.Role,
		Credential: cred,
		ExpiresAt:  tokenExpiry(resp.AccessToken),
	}
	if sess.ExpiresAt.IsZero() && resp.ExpiresIn > 0 {
		sess.ExpiresAt = r.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return sess, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// seeder has no key and only uses it for diagnostics.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (r *Runner) persistBootstrap(ctx context.Context, rn *run, cred domain.Credential) {
	if r.Creds != nil {
		if err := r.Creds.Save(ctx, cred); err != nil {
			rn.log.Warn("credential store write failed", "error", err)
		} else {
			rn.log.Info("bootstrap credential saved", "community_id", cred.CommunityID.String())
			return
		}
	}
	fmt.Fprintf(r.out(), "bootstrap community created; to reuse it set\n  SEED_COMMUNITY_ID=%s\n  SEED_COMMUNITY_PASSWORD=%s\n",
		cred.CommunityID.String(), cred.Password)
}
