package engine

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads configuration text from a local file, such as a copy of
// a daemon's saved configuration.
type FileSource struct {
	Path string
}

// ReadConfig implements ConfigSource.
func (fs FileSource) ReadConfig(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		return "", NewPermanentError(fmt.Sprintf("failed to read %s", fs.Path), err).
			WithCode(ErrCodeFetchFailed)
	}
	return string(data), nil
}
