package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/document-registry/interfaces"
)

// IPFSBackend adds content to an IPFS node and links it into the node's
// mutable file system under <root>/<type>/<content id>, which is what
// makes it retrievable by content ID rather than by CID.
type IPFSBackend struct {
	shell       *shell.Shell
	apiAddr     string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend connects to the IPFS HTTP API at host:port.
func NewIPFSBackend(host, port, root string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS host", interfaces.ErrInvalidLocationURI)
	}
	if root == "" || root == "/" {
		root = "/docregistry"
	}
	root = "/" + strings.Trim(root, "/")

	apiAddr := host + ":" + port
	sh := shell.NewShell(apiAddr)
	sh.SetTimeout(timeout)

	return &IPFSBackend{
		shell:       sh,
		apiAddr:     apiAddr,
		root:        root,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiAddr, root, timeout),
	}, nil
}

func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	mfsPath := b.mfsPath(id, contentType)

	reader, err := b.shell.FilesRead(ctx, mfsPath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from IPFS: %w", mfsPath, err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("path", mfsPath),
		slog.String("content_id", shortID(id)),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	mfsPath := b.mfsPath(id, contentType)

	cid, err := b.shell.Add(bytes.NewReader(data), shell.Pin(true))
	if err != nil {
		return id, fmt.Errorf("failed to add content to IPFS: %w", err)
	}

	dir := path.Dir(mfsPath)
	if err := b.shell.Request("files/mkdir", dir).Option("parents", true).Exec(ctx, nil); err != nil {
		return id, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	// Re-storing identical content is a no-op.
	if _, err := b.shell.FilesStat(ctx, mfsPath); err == nil {
		return id, nil
	}
	if err := b.shell.FilesCp(ctx, "/ipfs/"+cid, mfsPath); err != nil {
		return id, fmt.Errorf("failed to link %s to %s: %w", cid, mfsPath, err)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("ipfsCID", cid),
		slog.String("path", mfsPath),
		slog.String("contentID", id.String()))
	return id, nil
}

func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSBackend) Name() string {
	return "ipfs-" + b.apiAddr
}

func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) mfsPath(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return path.Join(b.root, objectName(id, contentType))
}
