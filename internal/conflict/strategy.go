package conflict

import (
	"context"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// Strategy is an extension point that finds conflicts git itself does not
// report. root is the repository's working-tree root. Returned conflicts go
// through the same analysis as merge and status conflicts.
type Strategy interface {
	Name() string
	Detect(ctx context.Context, root string) ([]models.Conflict, error)
}

// NoSemanticStrategy is the default semantic strategy. Code-level overlap
// analysis is not implemented, so it never reports anything.
type NoSemanticStrategy struct{}

func (NoSemanticStrategy) Name() string { return "semantic" }

func (NoSemanticStrategy) Detect(context.Context, string) ([]models.Conflict, error) {
	return nil, nil
}

// NoProactiveStrategy is the default proactive strategy. Prediction from
// historical change patterns is not implemented, so it never reports anything.
type NoProactiveStrategy struct{}

func (NoProactiveStrategy) Name() string { return "proactive" }

func (NoProactiveStrategy) Detect(context.Context, string) ([]models.Conflict, error) {
	return nil, nil
}
