package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ivsite-bot/internal/domain/entity"
	"ivsite-bot/internal/infrastructure/storage"
)

func TestOperatorService_BeginUploadAndHome(t *testing.T) {
	repo := storage.NewMemoryOperatorRepository()
	svc := NewOperatorService(repo)
	ctx := context.Background()

	op, err := svc.BeginUpload(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.ModeUpload, op.Mode)

	op, err = svc.Home(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.ModeHome, op.Mode)
}

func TestOperatorService_SetMode(t *testing.T) {
	repo := storage.NewMemoryOperatorRepository()
	svc := NewOperatorService(repo)
	ctx := context.Background()

	op, err := svc.SetMode(ctx, 2, 20, entity.ModeLabelScan)
	require.NoError(t, err)
	require.Equal(t, entity.ModeLabelScan, op.Mode)
}

func TestOperatorService_SetAutoCapture(t *testing.T) {
	repo := storage.NewMemoryOperatorRepository()
	svc := NewOperatorService(repo)
	ctx := context.Background()

	op, err := svc.SetAutoCapture(ctx, 3, 30, true)
	require.NoError(t, err)
	require.True(t, op.AutoCapture)
	require.Equal(t, entity.ModeCamera, op.Mode)

	op, err = svc.SetAutoCapture(ctx, 3, 30, false)
	require.NoError(t, err)
	require.False(t, op.AutoCapture)
	require.Equal(t, entity.ModeHome, op.Mode)
}

func TestOperatorService_ConcurrentModeChanges(t *testing.T) {
	repo := storage.NewMemoryOperatorRepository()
	svc := NewOperatorService(repo)
	ctx := context.Background()

	op, err := svc.Get(ctx, 1, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.SetMode(ctx, 1, 1, entity.ModeResult)
	}()
	go func() {
		defer wg.Done()
		_, _ = svc.SetAutoCapture(ctx, 1, 1, true)
	}()
	// Полученная ранее копия не меняется из других горутин.
	require.Equal(t, entity.ModeHome, op.Mode)
	wg.Wait()

	got, err := svc.Get(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, got.AutoCapture)
}
