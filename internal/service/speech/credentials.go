package speech

import (
	"fmt"
	"strings"

	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
)

// resolveCredentials returns the normalized API key and base URL, with an
// explicit error when either is missing.
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("speech configuration not initialized")
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return "", "", fmt.Errorf("speech configuration missing API key")
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	return key, base, nil
}
