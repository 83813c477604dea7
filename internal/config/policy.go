package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	TransitionPolicyPermissive = "permissive"
	TransitionPolicyStrict     = "strict"
)

// InvoicePolicy holds invoice rules that can change without a restart.
type InvoicePolicy struct {
	NumberTemplate          string   `mapstructure:"numberTemplate"`
	TransitionPolicy        string   `mapstructure:"transitionPolicy"`
	AttachmentExtensions    []string `mapstructure:"attachmentExtensions"`
	AttachmentMaxNameLength int      `mapstructure:"attachmentMaxNameLength"`
}

func DefaultInvoicePolicy() InvoicePolicy {
	return InvoicePolicy{
		NumberTemplate:          "INV-{YYYY}-{SEQ3}",
		TransitionPolicy:        TransitionPolicyPermissive,
		AttachmentExtensions:    []string{"pdf", "png", "jpg", "jpeg", "doc", "docx", "xls", "xlsx"},
		AttachmentMaxNameLength: 128,
	}
}

// AllowsExtension reports whether ext (without dot) is an accepted attachment type.
func (p InvoicePolicy) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return false
	}
	for _, allowed := range p.AttachmentExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

type PolicyConfigHolder struct {
	current atomic.Value // holds InvoicePolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy InvoicePolicy) *PolicyConfigHolder {
	holder := &PolicyConfigHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyConfigHolder(cfg Config, log *zap.Logger) (*PolicyConfigHolder, error) {
	log = log.Named("config.policy")
	v := viper.New()

	if cfg.PolicyConfigPath != "" {
		v.SetConfigFile(filepath.Clean(cfg.PolicyConfigPath))
	} else {
		v.SetConfigName("invoiceflow")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/invoiceflow")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("INVOICEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvoicePolicy()
	v.SetDefault("invoice.numberTemplate", defaults.NumberTemplate)
	v.SetDefault("invoice.transitionPolicy", defaults.TransitionPolicy)
	v.SetDefault("invoice.attachmentExtensions", defaults.AttachmentExtensions)
	v.SetDefault("invoice.attachmentMaxNameLength", defaults.AttachmentMaxNameLength)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var policy InvoicePolicy
	if err := v.UnmarshalKey("invoice", &policy); err != nil {
		return nil, err
	}
	if err := ValidateInvoicePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated InvoicePolicy
		if err := v.UnmarshalKey("invoice", &updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := ValidateInvoicePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyConfigHolder) Get() InvoicePolicy {
	return h.current.Load().(InvoicePolicy)
}

func ValidateInvoicePolicy(p InvoicePolicy) error {
	if !strings.Contains(p.NumberTemplate, "{SEQ") {
		return fmt.Errorf("invoice.numberTemplate must contain a {SEQ} token")
	}
	switch p.TransitionPolicy {
	case TransitionPolicyPermissive, TransitionPolicyStrict:
	default:
		return fmt.Errorf("invoice.transitionPolicy %q is not supported", p.TransitionPolicy)
	}
	if len(p.AttachmentExtensions) == 0 {
		return errors.New("invoice.attachmentExtensions cannot be empty")
	}
	if p.AttachmentMaxNameLength <= 0 || p.AttachmentMaxNameLength > 255 {
		return errors.New("invoice.attachmentMaxNameLength must be within 1..255")
	}
	return nil
}
