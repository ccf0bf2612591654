package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hamed0406/uptimenotifier/internal/config"
)

func TestSMS_OK(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"uid": q.Get("uid"), "pwd": q.Get("pwd"), "phone": q.Get("phone"), "msg": q.Get("msg"),
		}
		gotAuth = r.Header.Get("X-Mashape-Authorization")
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s, err := NewSMSSender(config.SMSChannel{
		Endpoint: ts.URL + "/index.php",
		Props:    config.Props{"uid": "u1", "pwd": "p1", "auth-token": "tok"},
	})
	if err != nil {
		t.Fatalf("NewSMSSender: %v", err)
	}
	if err := s.Send(context.Background(), Message{To: "5551234567", Body: "api-1 is DOWN"}); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if gotQuery["uid"] != "u1" || gotQuery["pwd"] != "p1" || gotQuery["phone"] != "5551234567" {
		t.Fatalf("query not as expected: %v", gotQuery)
	}
	if gotQuery["msg"] != "api-1 is DOWN" {
		t.Fatalf("message not escaped/decoded correctly: %q", gotQuery["msg"])
	}
	if gotAuth != "tok" {
		t.Fatalf("auth header: %q", gotAuth)
	}
}

func TestSMS_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s, _ := NewSMSSender(config.SMSChannel{
		Endpoint: ts.URL,
		Props:    config.Props{"uid": "u", "pwd": "p", "auth-token": "t"},
	})
	if err := s.Send(context.Background(), Message{To: "5551234567", Body: "x"}); err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestSMS_RefusesIncompleteConfig(t *testing.T) {
	_, err := NewSMSSender(config.SMSChannel{Props: config.Props{"uid": "u", "pwd": "p"}})
	if !errors.Is(err, ErrIncompleteConfig) {
		t.Fatalf("want ErrIncompleteConfig, got %v", err)
	}
}
