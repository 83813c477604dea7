package metricsexport

import (
	"context"
	"errors"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"gorm.io/gorm"
)

// Collector holds point-in-time business gauges refreshed from the database.
type Collector struct {
	invoices  *prometheus.GaugeVec
	users     prometheus.Gauge
	companies prometheus.Gauge
	memory    prometheus.Gauge
}

func NewCollector(registerer prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		invoices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invoiceflow_invoices",
			Help: "Stored invoices by status.",
		}, []string{"status"}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoiceflow_users",
			Help: "Registered users.",
		}),
		companies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoiceflow_companies",
			Help: "Stored client companies.",
		}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoiceflow_process_memory_bytes",
			Help: "Bytes obtained from the OS by the Go runtime.",
		}),
	}

	var err error
	if c.invoices, err = register(registerer, c.invoices); err != nil {
		return nil, err
	}
	if c.users, err = register(registerer, c.users); err != nil {
		return nil, err
	}
	if c.companies, err = register(registerer, c.companies); err != nil {
		return nil, err
	}
	if c.memory, err = register(registerer, c.memory); err != nil {
		return nil, err
	}
	return c, nil
}

// register returns the already registered collector when one exists so a
// second Collector writes to the series being scraped.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	if err := registerer.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

type statusCount struct {
	Status string
	Count  int64
}

// Refresh recounts every gauge. Statuses with no invoices report zero.
func (c *Collector) Refresh(ctx context.Context, db *gorm.DB) error {
	if c == nil || db == nil {
		return nil
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.memory.Set(float64(m.Sys))

	var rows []statusCount
	if err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count FROM invoices GROUP BY status`,
	).Scan(&rows).Error; err != nil {
		return err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	for _, status := range invoicedomain.Statuses() {
		c.invoices.WithLabelValues(string(status)).Set(float64(counts[string(status)]))
	}

	var users, companies int64
	if err := db.WithContext(ctx).Table("users").Count(&users).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Table("companies").Count(&companies).Error; err != nil {
		return err
	}
	c.users.Set(float64(users))
	c.companies.Set(float64(companies))
	return nil
}
