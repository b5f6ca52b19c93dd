package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Norgate-AV/spbuild/internal/config"
	"github.com/Norgate-AV/spbuild/internal/unit"
	"github.com/Norgate-AV/spbuild/internal/version"
)

// SettingsIdentity is the ledger header entry holding the settings fingerprint
const SettingsIdentity = "spbuild-settings"

// settingsHeader hashes every setting that changes compiler output into a
// synthetic header, so a settings change invalidates the cache like a header edit
func settingsHeader(cfg *config.Config) unit.Header {
	var b strings.Builder

	fmt.Fprintf(&b, "version=%s\n", version.Version)
	fmt.Fprintf(&b, "backend=%s\n", cfg.Backend)
	fmt.Fprintf(&b, "instance=%s\n", cfg.Instance)
	fmt.Fprintf(&b, "toolchain=%s\n", cfg.Toolchain)
	fmt.Fprintf(&b, "sdk=%s\n", cfg.SDK)
	fmt.Fprintf(&b, "machine=%s\n", cfg.Machine)
	fmt.Fprintf(&b, "debug=%t\n", cfg.Debug)
	fmt.Fprintf(&b, "defines=%s\n", cfg.Defines)

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, "option.%s=%s\n", k, cfg.Options[k])
	}

	return unit.Header{
		Identity: SettingsIdentity,
		Hash:     unit.HashBytes([]byte(b.String())),
	}
}

// trackedHeaders returns the project headers plus the settings fingerprint
func trackedHeaders(cfg *config.Config, headers []unit.Header) []unit.Header {
	out := make([]unit.Header, 0, len(headers)+1)
	out = append(out, headers...)

	return append(out, settingsHeader(cfg))
}
