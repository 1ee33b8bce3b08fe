package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultTransactionTimeout     = 30 * time.Second
	DefaultTransactionMaxAttempts = 3
	DefaultClientConfigTTL        = 5 * time.Minute
	DefaultIdentityTTL            = 24 * time.Hour
)

// Policy holds runtime tunables that may change without a restart.
type Policy struct {
	Transaction TransactionPolicy `mapstructure:"transaction"`
	Cache       CachePolicy       `mapstructure:"cache"`
}

type TransactionPolicy struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"maxAttempts"`
}

type CachePolicy struct {
	ClientConfigTTL time.Duration `mapstructure:"clientConfigTTL"`
	IdentityTTL     time.Duration `mapstructure:"identityTTL"`
}

func DefaultPolicy() Policy {
	return Policy{
		Transaction: TransactionPolicy{
			Timeout:     DefaultTransactionTimeout,
			MaxAttempts: DefaultTransactionMaxAttempts,
		},
		Cache: CachePolicy{
			ClientConfigTTL: DefaultClientConfigTTL,
			IdentityTTL:     DefaultIdentityTTL,
		},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

func NewPolicyHolder(log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("config.policy")
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/paramstore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARAMSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("transaction.timeout", defaults.Transaction.Timeout)
	v.SetDefault("transaction.maxAttempts", defaults.Transaction.MaxAttempts)
	v.SetDefault("cache.clientConfigTTL", defaults.Cache.ClientConfigTTL)
	v.SetDefault("cache.identityTTL", defaults.Cache.IdentityTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return nil, err
	}
	if err := validatePolicy(p); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(p)
	if !fileLoaded {
		log.Info("policy file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	if h == nil {
		return DefaultPolicy()
	}
	p, ok := h.current.Load().(Policy)
	if !ok {
		return DefaultPolicy()
	}
	return p
}

func validatePolicy(p Policy) error {
	if p.Transaction.Timeout <= 0 {
		return errors.New("transaction.timeout must be positive")
	}
	if p.Transaction.MaxAttempts < 1 {
		return errors.New("transaction.maxAttempts must be at least 1")
	}
	if p.Cache.ClientConfigTTL <= 0 {
		return errors.New("cache.clientConfigTTL must be positive")
	}
	if p.Cache.IdentityTTL <= 0 {
		return errors.New("cache.identityTTL must be positive")
	}
	return nil
}
