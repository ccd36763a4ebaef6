package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BenefitRule maps a resolved report kind to the voucher benefit it earns.
type BenefitRule struct {
	Kind               string `mapstructure:"kind"`
	DiscountPercentage int    `mapstructure:"discountPercentage"`
	ValidityDays       int    `mapstructure:"validityDays"`
}

type BenefitPolicy struct {
	Rules []BenefitRule `mapstructure:"rules"`
}

func DefaultBenefitPolicy() BenefitPolicy {
	return BenefitPolicy{
		Rules: []BenefitRule{
			{Kind: "MerchantIssue", DiscountPercentage: 10, ValidityDays: 30},
			{Kind: "PenaltyReport", DiscountPercentage: 5, ValidityDays: 30},
		},
	}
}

// BenefitPolicyHolder serves the current benefit policy and hot-reloads it
// when the backing file changes.
type BenefitPolicyHolder struct {
	current atomic.Value // holds BenefitPolicy
}

func NewBenefitPolicyHolder() (*BenefitPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("benefits")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/agenthub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AGENTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	policy := DefaultBenefitPolicy()
	if fileFound {
		var loaded BenefitPolicy
		if err := v.UnmarshalKey("benefit", &loaded); err != nil {
			return nil, err
		}
		if err := validateBenefitPolicy(loaded); err != nil {
			return nil, err
		}
		policy = loaded
	}

	holder := &BenefitPolicyHolder{}
	holder.current.Store(policy)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BenefitPolicy
			if err := v.UnmarshalKey("benefit", &updated); err != nil {
				log.Printf("[benefit-policy] reload failed: %v", err)
				return
			}
			if err := validateBenefitPolicy(updated); err != nil {
				log.Printf("[benefit-policy] invalid policy ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[benefit-policy] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *BenefitPolicyHolder) Get() BenefitPolicy {
	return h.current.Load().(BenefitPolicy)
}

// RuleFor returns the benefit rule for a report kind, falling back to the
// compiled-in defaults when the policy file omits the kind.
func (h *BenefitPolicyHolder) RuleFor(kind string) BenefitRule {
	for _, rule := range h.Get().Rules {
		if rule.Kind == kind {
			return rule
		}
	}
	for _, rule := range DefaultBenefitPolicy().Rules {
		if rule.Kind == kind {
			return rule
		}
	}
	return BenefitRule{Kind: kind}
}

// Validity converts a rule's validity window into an expiry offset; a zero
// window means the voucher never expires.
func (r BenefitRule) Validity() time.Duration {
	if r.ValidityDays <= 0 {
		return 0
	}
	return time.Duration(r.ValidityDays) * 24 * time.Hour
}

func validateBenefitPolicy(policy BenefitPolicy) error {
	if len(policy.Rules) == 0 {
		return errors.New("benefit.rules cannot be empty")
	}
	for _, rule := range policy.Rules {
		if strings.TrimSpace(rule.Kind) == "" {
			return errors.New("benefit rule kind cannot be empty")
		}
		if rule.DiscountPercentage <= 0 || rule.DiscountPercentage > 100 {
			return errors.New("benefit discountPercentage must be within (0, 100]")
		}
	}
	return nil
}
