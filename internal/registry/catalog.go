package registry

// DefaultCatalog is the built-in model table used when no catalog file is
// configured. Capability scores and reliability values are tunable data, not
// contracts; only their relative ordering matters to the router.
func DefaultCatalog() []ModelDescriptor {
	return []ModelDescriptor{
		{
			ID:           "gpt-4o",
			DisplayName:  "GPT-4o",
			Provider:     "openai",
			Capabilities: Capabilities{Reasoning: 8, Coding: 8, Speed: 7},
			CostTier:     CostTierMedium,
			SpeedTier:    "fast",
			Reliability:  0.97,
		},
		{
			ID:           "gpt-4o-mini",
			DisplayName:  "GPT-4o mini",
			Provider:     "openai",
			Capabilities: Capabilities{Reasoning: 6, Coding: 6, Speed: 9},
			CostTier:     CostTierLow,
			SpeedTier:    "fast",
			Reliability:  0.96,
		},
		{
			ID:           "o1-mini",
			DisplayName:  "o1-mini",
			Provider:     "openai",
			Capabilities: Capabilities{Reasoning: 9, Coding: 8, Speed: 4},
			CostTier:     CostTierHigh,
			SpeedTier:    "slow",
			Reliability:  0.94,
		},
		{
			ID:           "claude-3-5-sonnet-20241022",
			DisplayName:  "Claude 3.5 Sonnet",
			Provider:     "anthropic",
			Capabilities: Capabilities{Reasoning: 9, Coding: 9, Speed: 6},
			CostTier:     CostTierMedium,
			SpeedTier:    "medium",
			Reliability:  0.96,
		},
		{
			ID:           "claude-3-haiku-20240307",
			DisplayName:  "Claude 3 Haiku",
			Provider:     "anthropic",
			Capabilities: Capabilities{Reasoning: 5, Coding: 5, Speed: 9},
			CostTier:     CostTierLow,
			SpeedTier:    "fast",
			Reliability:  0.95,
		},
		{
			ID:           "meta-llama/llama-3.1-70b-instruct",
			DisplayName:  "Llama 3.1 70B Instruct",
			Provider:     "openrouter",
			Capabilities: Capabilities{Reasoning: 7, Coding: 6, Speed: 6},
			CostTier:     CostTierLow,
			SpeedTier:    "medium",
			Reliability:  0.9,
		},
		{
			ID:           "mistralai/mistral-7b-instruct",
			DisplayName:  "Mistral 7B Instruct",
			Provider:     "openrouter",
			Capabilities: Capabilities{Reasoning: 4, Coding: 4, Speed: 9},
			CostTier:     CostTierFree,
			SpeedTier:    "fast",
			Reliability:  0.88,
		},
	}
}
