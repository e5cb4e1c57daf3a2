package repositories

import "context"

// DialogueGenerator abstracts the language model that writes the avatar's replies
type DialogueGenerator interface {
	// GenerateReply sends the user utterance and returns the model's raw JSON output
	GenerateReply(ctx context.Context, utterance string) (string, error)
}

// Embedder turns text into a vector for similarity search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
