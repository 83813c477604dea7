package activity

import (
	"github.com/smallbiznis/invoiceflow/internal/activity/domain"
	"github.com/smallbiznis/invoiceflow/internal/activity/repository"
	"github.com/smallbiznis/invoiceflow/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc domain.Service) domain.Recorder { return svc }),
)
