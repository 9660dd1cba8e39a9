package config

import (
	"strings"

	"github.com/crystaldolphin/mcpconverse/internal/config/provider"
	"github.com/crystaldolphin/mcpconverse/internal/providers"
)

// MatchResult is the resolved LLM provider config and registry name for a model.
type MatchResult struct {
	Provider *provider.ProviderConfig // nil for ambient-auth providers (bedrock)
	Name     string                   // e.g. "bedrock", "openrouter"
}

// usable reports whether spec can serve requests with the current config.
func (c *Config) usable(spec *providers.ProviderSpec) (*provider.ProviderConfig, bool) {
	if spec.AmbientAuth {
		return nil, true
	}
	p := c.ProviderByName(spec.Name)
	if p == nil {
		return nil, false
	}
	if p.APIKey != "" || (spec.IsLocal && p.APIBase != "") {
		return p, true
	}
	return p, false
}

// MatchProvider resolves which provider config and registry entry to use for model.
// If model is empty, agent.model is used.
//
// Priority order:
//  1. Explicit provider prefix in model string (e.g. "deepseek/deepseek-chat" → deepseek)
//  2. Keyword match in model name (registry order)
//  3. Fallback: first provider with credentials, then bedrock
func (c *Config) MatchProvider(model string) MatchResult {
	if model == "" {
		model = c.Agent.Model
	}
	modelLower := strings.ToLower(model)
	modelNorm := strings.ReplaceAll(modelLower, "-", "_")
	modelPrefix, _, hasPrefix := strings.Cut(modelLower, "/")
	normalizedPrefix := strings.ReplaceAll(modelPrefix, "-", "_")

	kwMatches := func(kw string) bool {
		kw = strings.ToLower(kw)
		kwNorm := strings.ReplaceAll(kw, "-", "_")
		return strings.Contains(modelLower, kw) || strings.Contains(modelNorm, kwNorm)
	}

	// 1. Explicit provider prefix wins.
	if hasPrefix {
		for i := range providers.PROVIDERS {
			spec := &providers.PROVIDERS[i]
			if normalizedPrefix != spec.Name {
				continue
			}
			if p, ok := c.usable(spec); ok {
				return MatchResult{Provider: p, Name: spec.Name}
			}
		}
	}

	// 2. Keyword match.
	for i := range providers.PROVIDERS {
		spec := &providers.PROVIDERS[i]
		for _, kw := range spec.Keywords {
			if !kwMatches(kw) {
				continue
			}
			if p, ok := c.usable(spec); ok {
				return MatchResult{Provider: p, Name: spec.Name}
			}
			break
		}
	}

	// 3. Fallback: first provider holding credentials.
	for i := range providers.PROVIDERS {
		spec := &providers.PROVIDERS[i]
		if spec.AmbientAuth {
			continue
		}
		if p, ok := c.usable(spec); ok {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	return MatchResult{Name: provider.ProviderBedrock}
}

// GetAPIBase resolves the effective API base URL for model.
// Precedence: user-configured apiBase > spec.DefaultAPIBase.
func (c *Config) GetAPIBase(model string) string {
	result := c.MatchProvider(model)
	if result.Provider != nil && result.Provider.APIBase != "" {
		return result.Provider.APIBase
	}
	if spec := providers.FindByName(result.Name); spec != nil {
		return spec.DefaultAPIBase
	}
	return ""
}

// GetAPIKey returns the API key for model (or "").
func (c *Config) GetAPIKey(model string) string {
	if p := c.MatchProvider(model).Provider; p != nil {
		return p.APIKey
	}
	return ""
}

// ProviderParams assembles the factory parameters for the configured model.
func (c *Config) ProviderParams() providers.Params {
	result := c.MatchProvider("")
	params := providers.Params{
		APIBase:      c.GetAPIBase(""),
		DefaultModel: c.Agent.Model,
		ProviderName: result.Name,
		Region:       c.Providers.Bedrock.Region,
		Profile:      c.Providers.Bedrock.Profile,
		MaxRetries:   c.Providers.Bedrock.MaxRetries,
	}
	if result.Provider != nil {
		params.APIKey = result.Provider.APIKey
		params.ExtraHeaders = result.Provider.ExtraHeaders
	}
	return params
}
