package simulate

import (
	"context"

	"github.com/example/wanistats/internal/app"
	"github.com/example/wanistats/internal/domain/model"
)

// memoryClient serves one account's dataset in place of the WaniKani
// API, so refreshes run the real pipeline without network traffic.
type memoryClient struct {
	data *dataset
}

var _ app.Client = (*memoryClient)(nil)

func (c *memoryClient) User(_ context.Context) (model.Account, error) {
	return c.data.account, nil
}

func (c *memoryClient) LevelProgressions(_ context.Context) ([]model.LevelProgression, error) {
	return c.data.progressions, nil
}

func (c *memoryClient) Assignments(_ context.Context) ([]model.Assignment, error) {
	return c.data.assignments, nil
}

func (c *memoryClient) Subjects(_ context.Context) ([]model.Subject, error) {
	return c.data.subjects, nil
}

func (c *memoryClient) SRSStages(_ context.Context) ([]model.Stage, error) {
	return c.data.stages, nil
}

func (c *memoryClient) Reviews(_ context.Context) ([]model.Review, error) {
	return c.data.reviews, nil
}
