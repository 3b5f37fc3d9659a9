package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
	"github.com/IBA-HOK/CoCoIRU/internal/observability"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func newTestClient(t *testing.T, maxRetries int, rt roundTripperFunc) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:    "http://api.test/api/v1/",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
		Backoff:    time.Millisecond,
		HTTPClient: &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestCreateReturnsIdentifierAndSendsBearer(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/api/v1/items/" {
			t.Fatalf("unexpected %s %s", req.Method, req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("authorization=%q", got)
		}
		if req.Header.Get("X-Request-ID") == "" {
			t.Fatalf("missing request id")
		}
		var in map[string]any
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			t.Fatalf("decode req: %v", err)
		}
		if in["item_name"] != "毛布" {
			t.Fatalf("payload=%v", in)
		}
		return jsonResponse(http.StatusOK, `{"items_id": 12, "item_name": "毛布"}`), nil
	})

	id, ok := c.Create(context.Background(), Request{
		Kind:    domain.KindItem,
		Payload: domain.Item{Name: "毛布", Unit: "枚"},
		Label:   "item 毛布",
		Token:   "tok-1",
	})
	if !ok {
		t.Fatalf("expected success")
	}
	if id.Raw() != "12" {
		t.Fatalf("id=%s", id.Raw())
	}
}

func TestCreateUsesKindIdentifierFieldOnly(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"items_id": 3}`), nil
	})
	_, ok := c.Create(context.Background(), Request{
		Kind:    domain.KindCommunity,
		Payload: domain.Community{Name: "c", Latitude: 35, Longitude: 136},
	})
	if ok {
		t.Fatalf("expected failure when community_id is absent")
	}
}

func TestCreateRejectionIsNullResult(t *testing.T) {
	var calls int32
	c := newTestClient(t, 3, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusConflict, `{"detail": "Item with id 99 not found"}`), nil
	})
	id, ok := c.Create(context.Background(), Request{
		Kind:    domain.KindRequestContent,
		Payload: domain.RequestContent{ItemsID: domain.IDFromString("99"), Number: 5},
	})
	if ok || !id.IsZero() {
		t.Fatalf("expected null result, got %v %v", id, ok)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("4xx must not be retried, calls=%d", got)
	}
}

func TestCreateRetriesTransientFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, 2, func(req *http.Request) (*http.Response, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return nil, errors.New("connection reset")
		case 2:
			return jsonResponse(http.StatusServiceUnavailable, `{"detail":"busy"}`), nil
		default:
			return jsonResponse(http.StatusOK, `{"member_id": "m-1"}`), nil
		}
	})
	id, ok := c.Create(context.Background(), Request{Kind: domain.KindMember, Payload: domain.Member{}})
	if !ok || id.String() != "m-1" {
		t.Fatalf("id=%v ok=%v", id, ok)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls=%d", got)
	}
}

func TestCreateNeverSendsInvalidPayload(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request to %s", req.URL.Path)
		return nil, nil
	})
	_, ok := c.Create(context.Background(), Request{
		Kind:    domain.KindSupportRequest,
		Payload: domain.SupportRequest{CommunityID: domain.IDFromString("1"), Status: domain.StatusPending},
	})
	if ok {
		t.Fatalf("expected failure")
	}
}

func TestUpdatePutsToResourcePath(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPut || req.URL.Path != "/api/v1/communities/7" {
			t.Fatalf("unexpected %s %s", req.Method, req.URL.Path)
		}
		var in map[string]any
		_ = json.NewDecoder(req.Body).Decode(&in)
		if in["member_id"] != float64(4) {
			t.Fatalf("payload=%v", in)
		}
		return jsonResponse(http.StatusOK, `{"community_id": 7}`), nil
	})
	mid := domain.IDFromString("4")
	ok := c.Update(context.Background(), Request{
		Kind:    domain.KindCommunity,
		Payload: domain.Community{Name: "c", Latitude: 35, Longitude: 136, MemberID: &mid},
	}, domain.IDFromString("7"))
	if !ok {
		t.Fatalf("expected success")
	}
}

func TestIssueTokenErrors(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/token" {
			t.Fatalf("path=%s", req.URL.Path)
		}
		if req.Header.Get("Authorization") != "" {
			t.Fatalf("token endpoint must be called without a bearer")
		}
		return jsonResponse(http.StatusUnauthorized, `{"detail":"Invalid credentials"}`), nil
	})
	cid := domain.IDFromString("1")
	_, err := c.IssueToken(context.Background(), domain.TokenRequest{UserType: "community", CommunityID: &cid, Password: "x"})
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err=%v", err)
	}
	if herr.DetailString() != "Invalid credentials" {
		t.Fatalf("detail=%q", herr.DetailString())
	}
	if IsTransport(err) {
		t.Fatalf("rejection classified as transport")
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("status=%d", StatusCode(err))
	}
}

func TestListCommunities(t *testing.T) {
	c := newTestClient(t, 0, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/api/v1/communities/" {
			t.Fatalf("unexpected %s %s", req.Method, req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `[{"community_id":1,"name":"a","latitude":35.1,"longitude":136.9,"member_count":10}]`), nil
	})
	rows, err := c.ListCommunities(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListCommunities: %v", err)
	}
	if len(rows) != 1 || rows[0].CommunityID.String() != "1" || rows[0].MemberCount != 10 {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestHTTPErrorDetailRendering(t *testing.T) {
	herr := parseHTTPError(422, []byte(`{"detail":[{"loc":["body","name"],"msg":"field required"}]}`))
	if !strings.Contains(herr.DetailString(), "field required") {
		t.Fatalf("detail=%s", herr.DetailString())
	}
	plain := parseHTTPError(502, []byte("bad gateway"))
	if plain.DetailString() != "bad gateway" || !plain.Retryable() {
		t.Fatalf("plain=%+v", plain)
	}
}

func TestBadResponseIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, 3, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(http.StatusOK, `not json`), nil
	})
	if _, ok := c.Create(context.Background(), Request{Kind: domain.KindSpecialNote, Payload: domain.SpecialNote{NotesContentJSON: "x"}}); ok {
		t.Fatalf("expected failure")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls=%d", got)
	}
}

func TestCallsAreCounted(t *testing.T) {
	m := observability.NewMetrics()
	var calls atomic.Int32
	c, err := New(Options{
		BaseURL:    "http://api.test/api/v1",
		MaxRetries: 1,
		Backoff:    time.Millisecond,
		Metrics:    m,
		HTTPClient: &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			switch calls.Add(1) {
			case 1:
				return jsonResponse(http.StatusServiceUnavailable, `{"detail":"busy"}`), nil
			case 2:
				return jsonResponse(http.StatusOK, `{"items_id": 1}`), nil
			default:
				return jsonResponse(http.StatusConflict, `{"detail":"dup"}`), nil
			}
		})},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	item := Request{Kind: domain.KindItem, Payload: domain.Item{Name: "水", Unit: "本"}}
	if _, ok := c.Create(context.Background(), item); !ok {
		t.Fatalf("expected retry to succeed")
	}
	if _, ok := c.Create(context.Background(), item); ok {
		t.Fatalf("expected conflict")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`cocoiru_seed_api_calls_total{kind="item",op="create",outcome="ok"} 1`,
		`cocoiru_seed_api_calls_total{kind="item",op="create",outcome="rejected"} 1`,
		`cocoiru_seed_api_retries_total{method="POST"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
