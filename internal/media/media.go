// Package media uploads files to the media service.
package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
)

var log = logging.NewNamed("media")

// Uploader sends a multipart form. *api.Client implements it.
type Uploader interface {
	Upload(
		ctx context.Context,
		path string,
		fields map[string]string,
		fileField, fileName string,
		file io.Reader,
		result interface{},
		opts ...api.RequestOption,
	) error
	Delete(ctx context.Context, path string, result interface{}, opts ...api.RequestOption) error
}

// Store uploads and deletes media owned by the current user.
type Store struct {
	up Uploader
}

func New(up Uploader) *Store {
	return &Store{up: up}
}

// Upload sends r as fileName on behalf of userID.
func (s *Store) Upload(ctx context.Context, userID, fileName string, r io.Reader) (model.Media, api.Result) {
	if userID == "" {
		return model.Media{}, api.Result{Message: "Not logged in."}
	}

	var m model.Media
	err := s.up.Upload(ctx, "/media/upload",
		map[string]string{"userId": userID},
		"file", filepath.Base(fileName), r, &m,
	)
	if err != nil {
		log.Warn("upload failed", zap.String("file", fileName), zap.Error(err))
		return model.Media{}, api.ResultOf(err)
	}
	return m, api.OK
}

// Delete removes mediaID.
func (s *Store) Delete(ctx context.Context, mediaID string) api.Result {
	path := fmt.Sprintf("/media/%s", url.PathEscape(mediaID))
	if err := s.up.Delete(ctx, path, nil); err != nil {
		return api.ResultOf(err)
	}
	return api.OK
}
