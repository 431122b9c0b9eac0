// Package credentials stores provider API keys in the OS keyring.
package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "lazyopenai"

type KeyType string

const (
	KeyOpenAI    KeyType = "openai_api_key"
	KeyAzure     KeyType = "azure_openai_api_key"
	KeyAnthropic KeyType = "anthropic_api_key"
)

// All lists every key the CLI manages, in display order.
var All = []KeyType{KeyOpenAI, KeyAzure, KeyAnthropic}

func Set(key KeyType, value string) error {
	return keyring.Set(serviceName, string(key), value)
}

func Get(key KeyType) (string, error) {
	return keyring.Get(serviceName, string(key))
}

func Delete(key KeyType) error {
	return keyring.Delete(serviceName, string(key))
}

// GetOrEnv returns envValue when set, otherwise the stored key, otherwise "".
func GetOrEnv(key KeyType, envValue string) string {
	if envValue != "" {
		return envValue
	}
	val, err := Get(key)
	if err != nil {
		return ""
	}
	return val
}

func ListConfigured() map[KeyType]bool {
	result := make(map[KeyType]bool, len(All))
	for _, k := range All {
		_, err := Get(k)
		result[k] = err == nil
	}
	return result
}

// ClearAll deletes every stored key. Keys that were never stored are not an error.
func ClearAll() error {
	var lastErr error
	for _, k := range All {
		if err := Delete(k); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			lastErr = err
		}
	}
	return lastErr
}

// Setup stores the non-empty keys.
func Setup(values map[KeyType]string) error {
	for _, k := range All {
		v := values[k]
		if v == "" {
			continue
		}
		if err := Set(k, v); err != nil {
			return fmt.Errorf("failed to store %s: %w", k, err)
		}
	}
	return nil
}
