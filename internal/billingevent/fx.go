package billingevent

import (
	"github.com/smallbiznis/backoffice/internal/billingevent/publisher"
	"github.com/smallbiznis/backoffice/internal/billingevent/repository"
	"github.com/smallbiznis/backoffice/internal/billingevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingevent",
	fx.Provide(repository.Provide),
	fx.Provide(publisher.New),
	fx.Provide(service.NewEmitter),
	fx.Provide(service.NewRelay),
)
