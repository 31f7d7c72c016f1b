package app

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"ivsite-bot/internal/domain/entity"
)

type fakeGenerator struct {
	mu       sync.Mutex
	requests []entity.GenerateRequest
	response string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, req entity.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
