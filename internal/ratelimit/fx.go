package ratelimit

import "go.uber.org/fx"

var Module = fx.Module("rate.limit",
	fx.Provide(NewAuthLimiter),
	fx.Provide(func(l *AuthLimiter) *Locker { return l.Locker() }),
)
