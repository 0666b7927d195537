// Package settingsstore models the read-only typed settings view the
// Secure Rendering Core consumes (spec §6 "Settings store"). Citadel owns
// this store; the on-disk profile format is a convenience the ambient
// stack provides, not something the core depends on beyond the Settings
// struct itself.
package settingsstore

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// FingerprintLevel is the anti-fingerprinting transform scope.
type FingerprintLevel string

const (
	FingerprintNone    FingerprintLevel = "None"
	FingerprintBasic   FingerprintLevel = "Basic"
	FingerprintMedium  FingerprintLevel = "Medium"
	FingerprintMaximum FingerprintLevel = "Maximum"
)

// DNSMode is a hint passed through to the network collaborator.
type DNSMode string

const (
	DNSLocalCache DNSMode = "LocalCache"
	DNSDoH        DNSMode = "DoH"
	DNSDoT        DNSMode = "DoT"
	DNSSystem     DNSMode = "System"
)

// TabsLayout is cosmetic only.
type TabsLayout string

const (
	TabsVertical   TabsLayout = "Vertical"
	TabsHorizontal TabsLayout = "Horizontal"
)

// Settings is the typed key/value view from spec §6. Field names mirror
// the dotted keys in the table there.
type Settings struct {
	PrivacyFingerprintLevel  FingerprintLevel `yaml:"privacy.fingerprint_level" envconfig:"PRIVACY_FINGERPRINT_LEVEL"`
	PrivacyDNSMode           DNSMode          `yaml:"privacy.dns_mode" envconfig:"PRIVACY_DNS_MODE"`
	PrivacyEnforceHTTPS      bool             `yaml:"privacy.enforce_https" envconfig:"PRIVACY_ENFORCE_HTTPS"`
	PrivacyStripTrackingURLs bool             `yaml:"privacy.strip_tracking_params" envconfig:"PRIVACY_STRIP_TRACKING_PARAMS"`
	SecurityMaxMemoryMB      int              `yaml:"security.max_memory_mb" envconfig:"SECURITY_MAX_MEMORY_MB"`
	SecurityMaxNestingDepth  int              `yaml:"security.max_nesting_depth" envconfig:"SECURITY_MAX_NESTING_DEPTH"`
	SecurityMaxElements      int              `yaml:"security.max_elements" envconfig:"SECURITY_MAX_ELEMENTS"`
	SecurityAllowScripts     bool             `yaml:"security.allow_scripts" envconfig:"SECURITY_ALLOW_SCRIPTS"`
	UITabsLayout             TabsLayout       `yaml:"ui.tabs_layout" envconfig:"UI_TABS_LAYOUT"`
}

// Default returns the conservative-by-default profile.
func Default() Settings {
	return Settings{
		PrivacyFingerprintLevel:  FingerprintBasic,
		PrivacyDNSMode:           DNSSystem,
		PrivacyEnforceHTTPS:      true,
		PrivacyStripTrackingURLs: true,
		SecurityMaxMemoryMB:      256,
		SecurityMaxNestingDepth:  512,
		SecurityMaxElements:      250_000,
		SecurityAllowScripts:     true,
		UITabsLayout:             TabsHorizontal,
	}
}

// Store holds a read-only, atomically-swappable Settings snapshot. Live
// operations see the snapshot they started with (spec §9 "Global mutable
// settings").
type Store struct {
	snapshot atomic.Pointer[Settings]
}

// NewStore builds a Store seeded with s.
func NewStore(s Settings) *Store {
	st := &Store{}
	st.snapshot.Store(&s)
	return st
}

// Load returns the current snapshot.
func (st *Store) Load() Settings {
	return *st.snapshot.Load()
}

// Swap atomically replaces the snapshot.
func (st *Store) Swap(s Settings) {
	st.snapshot.Store(&s)
}

// Load composes defaults, an optional YAML profile file, and environment
// variable overrides, in that precedence order (profile overrides
// defaults, env overrides the profile).
func Load(profilePath string) (Settings, error) {
	s := Default()

	if profilePath != "" {
		data, err := os.ReadFile(profilePath)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings profile: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings profile: %w", err)
		}
	}

	if err := envconfig.Process("citadel", &s); err != nil {
		return Settings{}, fmt.Errorf("apply env overrides: %w", err)
	}

	return s, nil
}
