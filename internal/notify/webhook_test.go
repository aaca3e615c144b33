package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWebhookURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{
			name:     "placeholders in path",
			endpoint: "https://api.day.app/KEY/{title}/{body}",
			want:     "https://api.day.app/KEY/Task%20reminder/3%20days%20left",
		},
		{
			name:     "placeholders in query",
			endpoint: "https://hook.example.com/send?t={title}&b={body}",
			want:     "https://hook.example.com/send?t=Task%20reminder&b=3%20days%20left",
		},
		{
			name:     "no placeholders",
			endpoint: "https://hook.example.com/send",
			want:     "https://hook.example.com/send?title=Task%20reminder&body=3%20days%20left",
		},
		{
			name:     "no placeholders with existing query",
			endpoint: "https://hook.example.com/send?key=abc",
			want:     "https://hook.example.com/send?key=abc&title=Task%20reminder&body=3%20days%20left",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildWebhookURL(tt.endpoint, "Task reminder", "3 days left"))
		})
	}
}

func TestBuildWebhookURLEscapesReservedCharacters(t *testing.T) {
	got := BuildWebhookURL("https://h.example/{title}", "a/b&c", "x")
	assert.Equal(t, "https://h.example/a%2Fb%26c", got)
}

func TestWebhookDeliverSuccess(t *testing.T) {
	var gotTitle, gotBody, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotTitle = r.URL.Query().Get("title")
		gotBody = r.URL.Query().Get("body")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewWebhookDeliverer(time.Second)
	err := d.Deliver(context.Background(), srv.URL+"/push", "Task reminder: Gym", "Due today! (progress: 0/3)")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "Task reminder: Gym", gotTitle)
	assert.Equal(t, "Due today! (progress: 0/3)", gotBody)
}

func TestWebhookDeliverFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewWebhookDeliverer(time.Second).Deliver(context.Background(), srv.URL, "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "bad key")
}

func TestWebhookDeliverTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := NewWebhookDeliverer(50*time.Millisecond).Deliver(context.Background(), srv.URL, "t", "b")
	assert.Error(t, err)
}
