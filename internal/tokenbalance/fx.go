package tokenbalance

import (
	"github.com/smallbiznis/backoffice/internal/tokenbalance/repository"
	"github.com/smallbiznis/backoffice/internal/tokenbalance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tokenbalance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
