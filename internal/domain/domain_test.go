package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestIDRoundTripKeepsLiteral(t *testing.T) {
	cases := []struct {
		in      string
		wantStr string
	}{
		{in: `17`, wantStr: "17"},
		{in: `"c-9f2"`, wantStr: "c-9f2"},
	}
	for _, tc := range cases {
		var id ID
		if err := json.Unmarshal([]byte(tc.in), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if id.String() != tc.wantStr {
			t.Fatalf("String=%q want %q", id.String(), tc.wantStr)
		}
		out, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(out) != tc.in {
			t.Fatalf("marshal=%s want %s", out, tc.in)
		}
	}
}

func TestIDNullAndRejects(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`null`), &id); err != nil || !id.IsZero() {
		t.Fatalf("null: id=%v err=%v", id, err)
	}
	if err := json.Unmarshal([]byte(`{"a":1}`), &id); err == nil {
		t.Fatalf("expected error for object identifier")
	}
	if b, _ := json.Marshal(ID{}); string(b) != "null" {
		t.Fatalf("zero marshal=%s", b)
	}
}

func TestIDFromString(t *testing.T) {
	if got := IDFromString("42").Raw(); got != "42" {
		t.Fatalf("raw=%s", got)
	}
	if got := IDFromString("abc").Raw(); got != `"abc"` {
		t.Fatalf("raw=%s", got)
	}
	if !IDFromString("").IsZero() {
		t.Fatalf("empty should be zero")
	}
}

func TestCompactDropsZero(t *testing.T) {
	ids := []ID{IDFromString("1"), {}, IDFromString("3")}
	out := Compact(ids)
	if len(out) != 2 || out[0].String() != "1" || out[1].String() != "3" {
		t.Fatalf("out=%v", out)
	}
}

func TestValidateRejectsZeroReferences(t *testing.T) {
	err := Validate(SupportRequest{CommunityID: IDFromString("4"), Status: StatusPending})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "request_content_id is required") {
		t.Fatalf("err=%v", err)
	}

	err = Validate(SupportRequest{
		CommunityID:      IDFromString("4"),
		RequestContentID: IDFromString("8"),
		Status:           Status("approved"),
	})
	if err == nil || !strings.Contains(err.Error(), "status must be one of") {
		t.Fatalf("err=%v", err)
	}

	ok := SupportRequest{CommunityID: IDFromString("4"), RequestContentID: IDFromString("8"), Status: StatusCompleted}
	if err := Validate(ok); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestValidateCommunityAndToken(t *testing.T) {
	if err := Validate(Community{Name: "x", Latitude: 95, Longitude: 136}); err == nil {
		t.Fatalf("expected latitude error")
	}
	if err := Validate(RequestContent{ItemsID: IDFromString("1"), Number: 0}); err == nil {
		t.Fatalf("expected number error")
	}
	if err := Validate(TokenRequest{UserType: "community", Password: "p"}); err == nil {
		t.Fatalf("expected community_id error")
	}
	cid := IDFromString("3")
	if err := Validate(TokenRequest{UserType: "community", CommunityID: &cid, Password: "p"}); err != nil {
		t.Fatalf("valid token request rejected: %v", err)
	}
	if err := Validate(TokenRequest{UserType: "gov", Username: "gov_admin", Password: "p"}); err != nil {
		t.Fatalf("valid gov request rejected: %v", err)
	}
}

func TestTimestampFormat(t *testing.T) {
	ts := Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("JST", 9*3600)))
	if ts != "2024-01-01T18:04:05.006Z" {
		t.Fatalf("ts=%s", ts)
	}
}
