package migration

import (
	"context"

	"github.com/smallbiznis/invoiceflow/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, p seed.Params) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		return seed.EnsureBootstrapAdmin(context.Background(), p)
	}),
)
