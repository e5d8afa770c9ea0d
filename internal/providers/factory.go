package providers

import (
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/bedrock"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"

	"llm_router/internal/models"
	"llm_router/internal/utils"
)

// DefaultBedrockRegion is used when no region is configured.
const DefaultBedrockRegion = "us-east-1"

// FactoryConfig holds the per-provider defaults used when a build carries
// no explicit credential or endpoint.
type FactoryConfig struct {
	// DefaultKeys are environment-derived secrets per provider. A Bedrock
	// value may be a bearer API key or an "AKID:SECRET" pair.
	DefaultKeys map[models.ProviderKind]string

	// BaseURLs override provider endpoints. Bedrock endpoints come from
	// the region.
	BaseURLs map[models.ProviderKind]string

	BedrockRegion string

	HTTPClient *http.Client
}

// Factory builds ChatClients, one constructor per provider kind.
type Factory struct {
	cfg    FactoryConfig
	logger *utils.Logger
}

// NewFactory creates a client factory
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.BedrockRegion == "" {
		cfg.BedrockRegion = DefaultBedrockRegion
	}
	return &Factory{cfg: cfg, logger: utils.NewLogger("providers")}
}

// Build returns a client for wireModel on kind. credential takes precedence
// over the configured default; with neither the client is unauthenticated
// and the provider decides whether that is acceptable.
//
// Build panics with ErrUnsupportedProvider for a kind outside the closed
// set, which signals a catalog/code mismatch rather than a request error.
func (f *Factory) Build(kind models.ProviderKind, wireModel, credential string) (ChatClient, error) {
	key := credential
	if key == "" {
		key = f.cfg.DefaultKeys[kind]
	}
	baseURL := f.cfg.BaseURLs[kind]

	var (
		provider fantasy.Provider
		err      error
	)
	//exhaustive:enforce
	switch kind {
	case models.ProviderAnthropic:
		provider, err = f.newAnthropic(key, baseURL)
	case models.ProviderOpenAI:
		provider, err = f.newOpenAI(key, baseURL)
	case models.ProviderGoogle:
		provider, err = f.newGoogle(key, baseURL)
	case models.ProviderBedrock:
		provider, err = f.newBedrock(key)
	default:
		panic(fmt.Errorf("%w: %q", ErrUnsupportedProvider, kind))
	}
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Built chat client",
		"provider", kind,
		"model", wireModel,
		"api_model", APIModel(kind, wireModel),
		"key", utils.Fingerprint(key),
	)
	return newFantasyClient(kind, wireModel, provider), nil
}

func (f *Factory) newAnthropic(key, baseURL string) (fantasy.Provider, error) {
	var opts []anthropic.Option
	if key != "" {
		opts = append(opts, anthropic.WithAPIKey(key))
	}
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(baseURL, "/v1")))
	}
	if f.cfg.HTTPClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(f.cfg.HTTPClient))
	}
	provider, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("new fantasy anthropic provider: %w", err)
	}
	return provider, nil
}

func (f *Factory) newOpenAI(key, baseURL string) (fantasy.Provider, error) {
	var opts []fopenai.Option
	if key != "" {
		opts = append(opts, fopenai.WithAPIKey(key))
	}
	if baseURL != "" {
		opts = append(opts, fopenai.WithBaseURL(baseURL))
	}
	if f.cfg.HTTPClient != nil {
		opts = append(opts, fopenai.WithHTTPClient(f.cfg.HTTPClient))
	}
	provider, err := fopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("new fantasy openai provider: %w", err)
	}
	return provider, nil
}

func (f *Factory) newGoogle(key, baseURL string) (fantasy.Provider, error) {
	var opts []fgoogle.Option
	if key != "" {
		opts = append(opts, fgoogle.WithGeminiAPIKey(key))
	}
	if baseURL != "" {
		opts = append(opts, fgoogle.WithBaseURL(baseURL))
	}
	if f.cfg.HTTPClient != nil {
		opts = append(opts, fgoogle.WithHTTPClient(f.cfg.HTTPClient))
	}
	provider, err := fgoogle.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("new fantasy google provider: %w", err)
	}
	return provider, nil
}

func (f *Factory) newBedrock(key string) (fantasy.Provider, error) {
	var opts []bedrock.Option
	switch pair, ok := parseAWSKeyPair(key); {
	case ok:
		opts = append(opts,
			bedrock.WithAPIKey(sigV4Placeholder),
			bedrock.WithHTTPClient(signingClient(f.cfg.HTTPClient, pair, f.cfg.BedrockRegion)),
		)
	case key != "":
		opts = append(opts, bedrock.WithAPIKey(key))
		if f.cfg.HTTPClient != nil {
			opts = append(opts, bedrock.WithHTTPClient(f.cfg.HTTPClient))
		}
	default:
		// ambient AWS credential chain
		if f.cfg.HTTPClient != nil {
			opts = append(opts, bedrock.WithHTTPClient(f.cfg.HTTPClient))
		}
	}
	provider, err := bedrock.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("new fantasy bedrock provider: %w", err)
	}
	return provider, nil
}
