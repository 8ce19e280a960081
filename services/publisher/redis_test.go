package publisher

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"bizfinder/internal/scraper"
)

// This test requires a running Redis instance and is skipped otherwise
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	pub := NewRedisPublisher(ctx, "localhost:6379", 0, "test_listings", 100)
	defer pub.Close()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}
	defer client.Del(ctx, "test_listings")

	err := client.XGroupCreateMkStream(ctx, "test_listings", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		t.Fatal(err)
	}

	messages := make(chan string, 1)
	go func() {
		message, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_listings", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    0,
		}).Result()
		assert.NoError(t, err)
		messages <- message[0].Messages[0].Values["listing"].(string)
	}()

	time.Sleep(100 * time.Millisecond)

	price := int64(7_500_000)
	err = pub.PublishListing(&scraper.ScrapedListing{
		IsNew: true,
		Listing: scraper.ListingCreate{
			SourceID:         scraper.SourceFlippa,
			ExternalID:       "11827252",
			URL:              "https://flippa.com/11827252",
			Title:            "Established SaaS Tool",
			AskingPriceCents: &price,
			Status:           scraper.StatusActive,
		},
	})
	assert.NoError(t, err)

	select {
	case msg := <-messages:
		var entry streamEntry
		assert.NoError(t, json.Unmarshal([]byte(msg), &entry))
		assert.Equal(t, "flippa", entry.SourceID)
		assert.Equal(t, "11827252", entry.ExternalID)
		assert.True(t, entry.IsNew)
		assert.NotNil(t, entry.AskingPriceCents)
		assert.Equal(t, int64(7_500_000), *entry.AskingPriceCents)
	case <-time.After(time.Second):
		t.Error("Timed out waiting for message")
	}

	assert.NoError(t, pub.Trim())
}
