package identity

import (
	"github.com/smallbiznis/paramstore/internal/identity/repository"
	"github.com/smallbiznis/paramstore/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewResolver),
)
