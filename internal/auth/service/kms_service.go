package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"gocloud.dev/secrets"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KMSService unwraps JWT signing secrets stored as KMS ciphertexts.
type KMSService interface {
	// OpenKeeper opens a keeper for the key URI.
	// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
	OpenKeeper(ctx context.Context, keyURI string) (KeyDecrypter, error)

	// DecryptSigningKeys decodes and decrypts the base64 ciphertexts of the
	// access and refresh secrets.
	DecryptSigningKeys(
		ctx context.Context,
		keeper KeyDecrypter,
		accessCiphertext, refreshCiphertext string,
	) (access []byte, refresh []byte, err error)
}

type kmsService struct{}

// NewKMSService creates a new KMS service instance.
func NewKMSService() KMSService {
	return &kmsService{}
}

func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (KeyDecrypter, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

func (k *kmsService) DecryptSigningKeys(
	ctx context.Context,
	keeper KeyDecrypter,
	accessCiphertext, refreshCiphertext string,
) ([]byte, []byte, error) {
	access, err := decryptBase64(ctx, keeper, accessCiphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt access signing key: %w", err)
	}
	refresh, err := decryptBase64(ctx, keeper, refreshCiphertext)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt refresh signing key: %w", err)
	}
	return access, refresh, nil
}

func decryptBase64(ctx context.Context, keeper KeyDecrypter, ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 ciphertext: %w", err)
	}
	return keeper.Decrypt(ctx, raw)
}
