package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"proj", "orders", "projects/proj/topics/orders"},
		{"proj", " orders ", "projects/proj/topics/orders"},
		{"proj", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "orders", ""},
		{"proj", "", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesSkipsBlanks(t *testing.T) {
	got := topicNames(config.PubSubConfig{OrdersTopic: "orders", InventoryTopic: "  "})
	if len(got) != 1 || got[0] != "orders" {
		t.Fatalf("unexpected topics %v", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	if !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestIsPermanent(t *testing.T) {
	c := &Client{}
	if !c.IsPermanent(status.Error(codes.NotFound, "gone")) {
		t.Fatal("not found should be permanent")
	}
	if c.IsPermanent(status.Error(codes.Unavailable, "try later")) {
		t.Fatal("unavailable should be retried")
	}
}

func TestPublishWithoutClient(t *testing.T) {
	var c *Client
	if err := c.Publish(context.Background(), "orders", outbox.Message{}); err == nil {
		t.Fatal("expected error without client")
	}
}
