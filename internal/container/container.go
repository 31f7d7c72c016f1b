package container

import (
	"github.com/sirupsen/logrus"

	app "ivsite-bot/internal/application"
	"ivsite-bot/internal/domain/port"
)

type Container struct {
	OperatorService  *app.OperatorService
	WorkspaceService *app.WorkspaceService
	Acquisition      *app.Acquisition
}

// Options зависимости инфраструктуры и параметры съёмки.
type Options struct {
	Operators   port.OperatorRepository
	Generator   port.Generator
	Camera      port.CameraOpener
	Acquisition app.AcquisitionConfig
	Language    string
	CacheSize   int
	Logger      *logrus.Logger
}

func New(opts Options) (*Container, error) {
	classifier, err := app.NewFluidClassifier(opts.Generator, opts.Language, opts.CacheSize, opts.Logger)
	if err != nil {
		return nil, err
	}
	analyzer := app.NewComplicationAnalyzer(opts.Generator, opts.Language, opts.Logger)

	operatorService := app.NewOperatorService(opts.Operators)
	workspaceService := app.NewWorkspaceService(operatorService, analyzer, classifier, opts.Logger)

	return &Container{
		OperatorService:  operatorService,
		WorkspaceService: workspaceService,
		Acquisition:      app.NewAcquisition(opts.Camera, opts.Acquisition, opts.Logger),
	}, nil
}
