package transcriber

import (
	"context"

	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
)

// Result carries the server's transcript of an answer and its feedback.
type Result struct {
	Transcript string `json:"transcript"`
	Feedback   string `json:"feedback"`
}

// Service submits a recorded answer together with the question it answers.
type Service interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Submit uploads the clip and waits for transcript and feedback.
	Submit(ctx context.Context, audio recorder.Recording, question string) (Result, error)
}
