package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
)

var ctx = context.Background()

func newConfig() model.GraphQLConfig {
	return model.GraphQLConfig{
		DefaultService: "feed",
		Endpoints: map[string]string{
			"feed": "http://feed/graphql",
			"user": "http://user/graphql",
		},
		// lowercased the way viper reads it
		Operations: map[string]string{"getuser": "user", "me": "user"},
	}
}

func TestClient_Endpoint(t *testing.T) {
	c := NewClient(nil, newConfig())

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"mapped operation", Request{OperationName: "getUser"}, "http://user/graphql"},
		{"default service", Request{OperationName: "getFeed"}, "http://feed/graphql"},
		{"explicit service wins", Request{OperationName: "me", Service: "feed"}, "http://feed/graphql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Endpoint(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := c.Endpoint(Request{Service: "media"})
	require.ErrorIs(t, err, ErrUnknownService)

	c.SetEndpoint("media", "http://media/graphql")
	c.SetDefaultService("media")
	got, err := c.Endpoint(Request{OperationName: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "http://media/graphql", got)
}

func TestClient_Do(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")

		var p payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		switch p.OperationName {
		case "getUser":
			assert.Equal(t, "u1", p.Variables["id"])
			_, _ = w.Write([]byte(`{"data":{"getUser":{"id":"u1","username":"ann"}}}`))
		default:
			_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Not authorized"}]}`))
		}
	}))
	defer srv.Close()

	cfg := newConfig()
	cfg.Endpoints = map[string]string{"feed": srv.URL, "user": srv.URL}
	gw := api.NewClient("http://unused", api.WithTokenSource(api.TokenFunc(func() string { return "tok" })))
	c := NewClient(gw, cfg)

	var data struct {
		GetUser model.User `json:"getUser"`
	}
	err := c.Do(ctx, Request{
		OperationName: "getUser",
		Query:         "query getUser($id: ID!) { getUser(id: $id) { id username } }",
		Variables:     map[string]interface{}{"id": "u1"},
	}, &data)
	require.NoError(t, err)
	assert.Equal(t, "ann", data.GetUser.Username)
	assert.Equal(t, "Bearer tok", auth)

	err = c.Do(ctx, Request{OperationName: "getFeed", Query: "query getFeed { getFeed { id } }"}, nil)
	var gqlErrs Errors
	require.True(t, errors.As(err, &gqlErrs))
	assert.Equal(t, "Not authorized", api.Classify(err))
}
