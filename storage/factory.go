package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/document-registry/interfaces"
)

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory struct {
	log *slog.Logger
}

func NewStorageBackendFactory(log *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{log: log}
}

// StorageBackendFor creates the backend named by location.
func (sf *StorageBackendFactory) StorageBackendFor(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	switch location.Scheme {
	case "file":
		return sf.createFileBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	case "ipfs":
		return sf.createIPFSBackend(location)
	case "vault":
		return sf.createVaultBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiBackend creates a MultiStorageBackend over every location that
// yields a valid backend. Invalid locations are logged and skipped.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations))
	for _, location := range locations {
		backend, err := sf.StorageBackendFor(location)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("scheme", location.Scheme),
				slog.String("host", location.Host))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}
	return NewMultiStorageBackend(backends, sf.log), nil
}

// ParseLocations parses a list of location URIs, failing on the first
// invalid one.
func ParseLocations(uris []string) ([]interfaces.StorageBackendLocation, error) {
	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(strings.TrimSpace(uri))
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return locations, nil
}

// file:///absolute/path or file://./relative/path
func (sf *StorageBackendFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}
	return NewFileBackend(path, sf.log)
}

// s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=...&endpoint=...
func (sf *StorageBackendFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	accessKey, secretKey, err := splitAuth(location.Auth)
	if err != nil {
		return nil, err
	}
	return NewS3Backend(S3Config{
		Bucket:    location.Host,
		Prefix:    location.Path,
		Region:    location.GetParam("region"),
		Endpoint:  location.GetParam("endpoint"),
		AccessKey: accessKey,
		SecretKey: secretKey,
	}, sf.log)
}

// ipfs://host[:port]/root?timeout=30s
func (sf *StorageBackendFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host, port := splitHostPort(location.Host, "5001")

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}
	return NewIPFSBackend(host, port, location.Path, timeout, sf.log)
}

// vault://TOKEN@host[:port]/mount/path?tls=false
func (sf *StorageBackendFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing Vault host", interfaces.ErrInvalidLocationURI)
	}
	token, _, err := splitAuth(location.Auth)
	if err != nil {
		return nil, err
	}

	scheme := "https"
	if location.GetParam("tls") == "false" {
		scheme = "http"
	}

	mount, dataPath, _ := strings.Cut(strings.TrimPrefix(location.Path, "/"), "/")
	return NewVaultBackend(scheme+"://"+location.Host, token, mount, dataPath, sf.log)
}

// splitAuth splits url userinfo "user:password" into its unescaped parts.
func splitAuth(auth string) (string, string, error) {
	if auth == "" {
		return "", "", nil
	}
	rawUser, rawPassword, _ := strings.Cut(auth, ":")
	user, err := url.PathUnescape(rawUser)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid credentials: %v", interfaces.ErrInvalidLocationURI, err)
	}
	password, err := url.PathUnescape(rawPassword)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid credentials: %v", interfaces.ErrInvalidLocationURI, err)
	}
	return user, password, nil
}

func splitHostPort(hostport, defaultPort string) (string, string) {
	host, port, found := strings.Cut(hostport, ":")
	if !found || port == "" {
		return host, defaultPort
	}
	return host, port
}
