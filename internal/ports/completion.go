package ports

import "context"

type CompletionRequest struct {
	Instructions string
	UserText     string
	Credential   string
}

type CompletionClient interface {
	Send(ctx context.Context, req CompletionRequest) (string, error)
}
