package seed

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/IBA-HOK/CoCoIRU/internal/client"
	"github.com/IBA-HOK/CoCoIRU/internal/domain"
	"github.com/IBA-HOK/CoCoIRU/internal/fakeapi"
)

func startFakeAPI(t *testing.T, opts fakeapi.Options) (*fakeapi.Server, *client.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	opts.BcryptCost = bcrypt.MinCost
	api, err := fakeapi.New(opts)
	if err != nil {
		t.Fatalf("fakeapi.New: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	c, err := client.New(client.Options{
		BaseURL:    srv.URL + fakeapi.Prefix,
		Timeout:    5 * time.Second,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return api, c
}

func TestEndToEndRequestsWorkflow(t *testing.T) {
	api, c := startFakeAPI(t, fakeapi.Options{})
	r, _ := newTestRunner(c)

	sum, err := r.Requests(context.Background())
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if got := sum.Succeeded(domain.KindItem); got != 5 || len(api.Items()) != 5 {
		t.Fatalf("items summary=%d stored=%d", got, len(api.Items()))
	}
	if got := sum.Succeeded(domain.KindCommunity); got != 10 {
		t.Fatalf("communities=%d", got)
	}
	srs := sum.Succeeded(domain.KindSupportRequest)
	if srs < 10 || srs > 30 || srs != len(api.SupportRequests()) {
		t.Fatalf("support requests summary=%d stored=%d", srs, len(api.SupportRequests()))
	}
	for _, row := range api.SupportRequests() {
		switch row.Status {
		case "pending", "processing", "completed":
		default:
			t.Fatalf("status=%q", row.Status)
		}
	}
	for _, row := range api.Communities()[1:] {
		if row.Latitude < 35.1314-1e-9 || row.Latitude > 35.2314+1e-9 ||
			row.Longitude < 136.8563-1e-9 || row.Longitude > 136.9563+1e-9 {
			t.Fatalf("community %d at (%v, %v)", row.CommunityID, row.Latitude, row.Longitude)
		}
	}
}

func TestEndToEndBootstrapTokenOnEveryCall(t *testing.T) {
	api, c := startFakeAPI(t, fakeapi.Options{})
	r, out := newTestRunner(c)

	if _, err := r.Requests(context.Background()); err != nil {
		t.Fatalf("Requests: %v", err)
	}

	reqs := api.Requests()
	if len(reqs) < 3 {
		t.Fatalf("requests=%d", len(reqs))
	}
	if reqs[0].Method != http.MethodPost || reqs[0].Path != fakeapi.Prefix+"/communities/" || reqs[0].Authorization != "" {
		t.Fatalf("first call=%+v", reqs[0])
	}
	if reqs[1].Path != fakeapi.Prefix+"/token" {
		t.Fatalf("second call=%+v", reqs[1])
	}
	bearer := reqs[2].Authorization
	if !strings.HasPrefix(bearer, "Bearer ") {
		t.Fatalf("third call without bearer: %+v", reqs[2])
	}
	for _, rq := range reqs[2:] {
		if rq.Authorization != bearer {
			t.Fatalf("%s %s sent %q", rq.Method, rq.Path, rq.Authorization)
		}
	}

	bootstraps := 0
	for _, row := range api.Communities() {
		if strings.HasSuffix(row.Name, " bootstrap") {
			bootstraps++
		}
	}
	if bootstraps != 1 {
		t.Fatalf("bootstrap communities=%d", bootstraps)
	}
	if !strings.Contains(out.String(), "SEED_COMMUNITY_ID=1") {
		t.Fatalf("operator hint missing:\n%s", out.String())
	}
}

func TestEndToEndInjectedRequestContentFailures(t *testing.T) {
	api, c := startFakeAPI(t, fakeapi.Options{
		Fail: func(method, path string, n int) bool {
			return path == fakeapi.Prefix+"/request_content/" && n%2 == 0
		},
	})
	r, _ := newTestRunner(c)

	sum, err := r.Requests(context.Background())
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	rcs := api.RequestContents()
	if sum.Succeeded(domain.KindRequestContent) != len(rcs) {
		t.Fatalf("summary=%d stored=%d", sum.Succeeded(domain.KindRequestContent), len(rcs))
	}
	if sum.Attempted(domain.KindRequestContent) == len(rcs) {
		t.Fatalf("expected some injected failures")
	}
	if len(api.SupportRequests()) != len(rcs) {
		t.Fatalf("support requests=%d request contents=%d", len(api.SupportRequests()), len(rcs))
	}
	for _, rq := range api.Requests() {
		if rq.Path == fakeapi.Prefix+"/support_requests/" && strings.Contains(string(rq.Body), `"request_content_id":null`) {
			t.Fatalf("support request with null reference: %s", rq.Body)
		}
	}
}

func TestEndToEndEmptyItemPool(t *testing.T) {
	api, c := startFakeAPI(t, fakeapi.Options{
		Fail: func(method, path string, n int) bool { return path == fakeapi.Prefix+"/items/" },
	})
	r, _ := newTestRunner(c)

	if _, err := r.Requests(context.Background()); err == nil {
		t.Fatalf("expected ErrEmptyPool")
	}
	for _, rq := range api.Requests() {
		switch rq.Path {
		case fakeapi.Prefix + "/request_content/", fakeapi.Prefix + "/support_requests/":
			t.Fatalf("unexpected %s after empty item pool", rq.Path)
		}
	}
	if n := len(api.Communities()); n != 1 {
		t.Fatalf("communities=%d, want only the bootstrap one", n)
	}
}

func TestEndToEndCommunitiesThenNotes(t *testing.T) {
	api, c := startFakeAPI(t, fakeapi.Options{GovUsers: map[string]string{"admin": "s3cret"}})
	r, _ := newTestRunner(c)
	r.Config.Fixtures.Count = 6

	seeded, err := r.Communities(context.Background())
	if err != nil {
		t.Fatalf("Communities: %v", err)
	}
	if n := len(api.Communities()); n != 6 {
		t.Fatalf("communities=%d", n)
	}

	// A community login cannot list communities.
	login := seeded.Credentials[0]
	r.Config.Auth.CommunityID = login.ID.String()
	r.Config.Auth.CommunityPassword = login.Password
	r.Config.Fixtures.NoteProbability = 1
	if _, err := r.Notes(context.Background()); !errors.Is(err, ErrAuth) {
		t.Fatalf("Notes with community credential: err=%v", err)
	}

	r.Config.Auth.GovUsername = "admin"
	r.Config.Auth.GovPassword = "s3cret"
	sum, err := r.Notes(context.Background())
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if sum.Updated() != 6 || len(api.SpecialNotes()) != 6 {
		t.Fatalf("updated=%d notes=%d", sum.Updated(), len(api.SpecialNotes()))
	}
	for _, row := range api.Communities() {
		if row.MemberID == nil {
			t.Fatalf("community %d not linked", row.CommunityID)
		}
	}
	for _, m := range api.Members() {
		if m.SpecialNotesID == nil {
			t.Fatalf("member %d without note", m.MemberID)
		}
	}

	// Updates replace community passwords; the summary carries the new ones.
	if len(sum.Credentials) != 6 {
		t.Fatalf("credentials=%d", len(sum.Credentials))
	}
	for _, cred := range sum.Credentials {
		id := cred.ID
		if _, err := c.IssueToken(context.Background(), domain.TokenRequest{
			UserType: "community", CommunityID: &id, Password: cred.Password,
		}); err != nil {
			t.Fatalf("login with rotated password for %s: %v", cred.Name, err)
		}
	}
}

func TestEndToEndGovLoginWithShelters(t *testing.T) {
	api, c := startFakeAPI(t, fakeapi.Options{GovUsers: map[string]string{"admin": "s3cret"}})
	r, _ := newTestRunner(c)
	r.Config.Auth.GovUsername = "admin"
	r.Config.Auth.GovPassword = "s3cret"
	r.Config.Fixtures.Shelters = 2

	sum, err := r.Requests(context.Background())
	if err != nil {
		t.Fatalf("Requests: %v", err)
	}
	if got := sum.Succeeded(domain.KindShelterInfo); got != 2 || len(api.Shelters()) != 2 {
		t.Fatalf("shelters succeeded=%d stored=%d", got, len(api.Shelters()))
	}
	for _, row := range api.Shelters() {
		if row.Notes == "" || row.Latitude == 0 {
			t.Fatalf("shelter=%+v", row)
		}
	}
	if n := len(api.Communities()); n != r.Config.Fixtures.Communities {
		t.Fatalf("communities=%d, bootstrap must be skipped", n)
	}

	reqs := api.Requests()
	if len(reqs) == 0 || reqs[0].Path != fakeapi.Prefix+"/token" {
		t.Fatalf("first request=%+v", reqs)
	}
	if !bytes.Contains(reqs[0].Body, []byte(`"user_type":"gov"`)) {
		t.Fatalf("token body=%s", reqs[0].Body)
	}
	auth := ""
	for _, req := range reqs[1:] {
		if auth == "" {
			auth = req.Authorization
		}
		if req.Authorization == "" || req.Authorization != auth {
			t.Fatalf("%s %s sent Authorization %q", req.Method, req.Path, req.Authorization)
		}
	}
}
