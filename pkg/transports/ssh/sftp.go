package ssh

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/sftp"
)

// ReadFile reads a remote file over SFTP.
func (c *SSHClient) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &TransportError{
			Op:          "read",
			Err:         fmt.Errorf("failed to start sftp: %w", err),
			IsTemporary: true,
			IsAuthError: false,
		}
	}
	defer sftpClient.Close()

	// Closing the client unblocks a read stuck on a dead connection.
	stop := context.AfterFunc(ctx, func() { _ = sftpClient.Close() })
	defer stop()

	f, err := sftpClient.Open(remotePath)
	if err != nil {
		return nil, &TransportError{
			Op:          "read",
			Err:         fmt.Errorf("failed to open %s: %w", remotePath, err),
			IsTemporary: false,
			IsAuthError: false,
		}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &TransportError{
			Op:          "read",
			Err:         fmt.Errorf("failed to read %s: %w", remotePath, err),
			IsTemporary: true,
			IsAuthError: false,
		}
	}

	c.logger.Debug().
		Str("path", remotePath).
		Int("bytes", len(data)).
		Msg("remote file read")

	return data, nil
}
