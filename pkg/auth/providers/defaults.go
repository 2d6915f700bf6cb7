package providers

// DefaultConfigs holds default configurations for well-known providers.
var DefaultConfigs = map[string]*ProviderConfig{
	"intra": {
		Name:        "intra",
		Type:        "intra",
		AuthURL:     "https://api.intra.42.fr/oauth/authorize",
		TokenURL:    "https://api.intra.42.fr/oauth/token",
		UserInfoURL: "https://api.intra.42.fr/v2/me",
		Scopes:      []string{"public"},
		// The intra API throttles aggressively; stay under its per-second budget.
		RequestsPerSec: 2,
	},
}
