package signing

import (
	"github.com/raigotchi/petops/internal/config"
)

// NewSignerFromConfig picks the KMS signer when an endpoint is configured,
// otherwise the in-process actor key.
func NewSignerFromConfig(cfg config.Config) (Signer, error) {
	if cfg.KMSEndpoint != "" {
		return NewKMSSigner(KMSConfig{Endpoint: cfg.KMSEndpoint})
	}
	return NewLocalSigner(cfg.SignerKeyB64, cfg.SignerID)
}
