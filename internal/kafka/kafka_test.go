package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/floor-guesser/internal/domain"
)

func TestDecodeSubmission(t *testing.T) {
	sub, err := DecodeSubmission([]byte(`{"user_id":4,"total_score":312,"rounds_played":5}`))
	if err != nil {
		t.Fatalf("DecodeSubmission error: %v", err)
	}
	assert.Equal(t, int64(4), *sub.UserID)
	assert.Equal(t, 312, sub.TotalScore)
	assert.Equal(t, 5, sub.RoundsPlayed)
}

func TestDecodeSubmissionRejects(t *testing.T) {
	cases := map[string]string{
		"guest":          `{"total_score":10,"rounds_played":5}`,
		"zero user":      `{"user_id":0,"total_score":10,"rounds_played":5}`,
		"negative score": `{"user_id":1,"total_score":-1,"rounds_played":5}`,
		"negative round": `{"user_id":1,"total_score":1,"rounds_played":-5}`,
	}
	for name, body := range cases {
		if _, err := DecodeSubmission([]byte(body)); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}

	if _, err := DecodeSubmission([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed message")
	}
}

func TestEventMessage(t *testing.T) {
	event := domain.GameCompletedEvent{
		EventID:     "e-1",
		UserID:      9,
		TotalScore:  250,
		Rank:        3,
		IsNewRecord: true,
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}

	msg, err := eventMessage("game-completed", event)
	if err != nil {
		t.Fatalf("eventMessage error: %v", err)
	}
	assert.Equal(t, "game-completed", msg.Topic)

	key, _ := msg.Key.Encode()
	assert.Equal(t, "9", string(key))

	value, _ := msg.Value.Encode()
	var decoded domain.GameCompletedEvent
	if err := json.Unmarshal(value, &decoded); err != nil {
		t.Fatalf("decoding value: %v", err)
	}
	assert.Equal(t, event, decoded)
}
