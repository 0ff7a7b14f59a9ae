package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const profilePayload = `{"data":{"user":{"username":"kompascom","edge_owner_to_timeline_media":{"edges":[
 {"node":{"shortcode":"AAA","taken_at_timestamp":1704268800,"edge_media_to_caption":{"edges":[{"node":{"text":"Gempa di Cianjur"}}]}}},
 {"node":{"shortcode":"BBB","edge_media_to_caption":{"edges":[]}}},
 {"node":{"shortcode":"","edge_media_to_caption":{"edges":[{"node":{"text":"skipped"}}]}}},
 {"node":{"shortcode":"CCC","edge_media_to_caption":{"edges":[{"node":{"text":"Gempa susulan"}}]}}}
]}}}}`

const hashtagPayload = `{"graphql":{"hashtag":{"edge_hashtag_to_media":{"edges":[
 {"node":{"shortcode":"H1","owner":{"username":"someone"},"edge_media_to_caption":{"edges":[{"node":{"text":"#banjir hari ini"}}]}}},
 {"node":{"shortcode":"H2","owner":{"username":"other"},"edge_media_to_caption":{"edges":[]}}}
]}}}}`

func newInstagramServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/login/":
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok", Path: "/"})
		case "/accounts/login/ajax/":
			if r.Header.Get("X-CSRFToken") != "tok" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(`{"authenticated":true,"status":"ok"}`))
		case "/api/v1/users/web_profile_info/":
			if r.URL.Query().Get("username") != "kompascom" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(profilePayload))
		case "/explore/tags/banjir/":
			_, _ = w.Write([]byte(hashtagPayload))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestPhotoFetcherAccounts(t *testing.T) {
	srv := newInstagramServer(t)
	defer srv.Close()

	f := NewPhotoFetcher("user", "pw", []string{"kompascom", "unknown"})
	f.BaseURL = srv.URL

	res := f.Fetch(context.Background(), "", 2)
	if res.Status != StatusOK {
		t.Fatalf("status = %s (%v)", res.Status, res.Err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected per-account cap of 2, got %d", len(res.Records))
	}
	first := res.Records[0].(PhotoPost)
	if first.Shortcode != "AAA" || first.Owner != "kompascom" || first.Caption != "Gempa di Cianjur" || first.TakenAt == nil {
		t.Fatalf("unexpected post: %+v", first)
	}
	if res.Records[1].(PhotoPost).Caption != "" {
		t.Fatalf("missing caption should stay empty for the normalizer")
	}

	res = f.Fetch(context.Background(), "gempa", 5)
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 matching posts, got %d", len(res.Records))
	}
}

func TestPhotoFetcherNegativeLimitIsUncapped(t *testing.T) {
	srv := newInstagramServer(t)
	defer srv.Close()

	f := NewPhotoFetcher("user", "pw", []string{"kompascom"})
	f.BaseURL = srv.URL

	res := f.Fetch(context.Background(), "", -1)
	if res.Status != StatusOK || len(res.Records) != 3 {
		t.Fatalf("expected all 3 posts, got status=%s records=%d", res.Status, len(res.Records))
	}
}

func TestPhotoFetcherHashtag(t *testing.T) {
	srv := newInstagramServer(t)
	defer srv.Close()

	f := NewPhotoFetcher("user", "pw", nil)
	f.BaseURL = srv.URL

	res := f.Fetch(context.Background(), "#banjir", 1)
	if len(res.Records) != 1 {
		t.Fatalf("expected hashtag cap of 1, got %d", len(res.Records))
	}
	if p := res.Records[0].(PhotoPost); p.Owner != "someone" || p.Shortcode != "H1" {
		t.Fatalf("unexpected post: %+v", p)
	}
}

func TestPhotoFetcherAllAccountsFailed(t *testing.T) {
	srv := newInstagramServer(t)
	defer srv.Close()

	f := NewPhotoFetcher("user", "pw", []string{"nobody"})
	f.BaseURL = srv.URL
	res := f.Fetch(context.Background(), "", 5)
	if res.Status != StatusFailed || res.Err == nil {
		t.Fatalf("expected failed result, got %+v", res)
	}
}

func TestPhotoFetcherDisabled(t *testing.T) {
	res := NewPhotoFetcher("user", "", nil).Fetch(context.Background(), "", 5)
	if res.Status != StatusDisabled {
		t.Fatalf("expected disabled, got %s", res.Status)
	}
}
