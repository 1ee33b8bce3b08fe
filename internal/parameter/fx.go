package parameter

import (
	"github.com/smallbiznis/paramstore/internal/parameter/repository"
	"github.com/smallbiznis/paramstore/internal/parameter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("parameter.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
