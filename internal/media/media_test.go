package media

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
)

var ctx = context.Background()

func TestStore_Upload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/api/media/upload", r.URL.Path)
			assert.Equal(t, "u1", r.FormValue("userId"))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			_ = json.NewEncoder(w).Encode(model.Media{
				ID:               "m1",
				UserID:           "u1",
				OriginalFileName: hdr.Filename,
				Size:             int64(len(data)),
				CreatedAt:        "2025-03-01T10:00:00",
			})
		case http.MethodDelete:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	s := New(api.NewClient(srv.URL + "/api"))

	m, res := s.Upload(ctx, "u1", "/tmp/photos/cat.png", strings.NewReader("PNGDATA"))
	require.Equal(t, api.OK, res)
	assert.Equal(t, "cat.png", m.OriginalFileName)
	assert.Equal(t, int64(7), m.Size)

	_, res = s.Upload(ctx, "", "cat.png", strings.NewReader("x"))
	assert.False(t, res.Success)

	assert.Equal(t, api.Result{Message: "Access denied."}, s.Delete(ctx, "m1"))
}
