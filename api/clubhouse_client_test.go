package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouseexport/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *ClubhouseClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClubhouseClient(srv.URL+"/", "abc123", 5*time.Second)
}

func TestFetchResource_ListsCollection(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/members", r.URL.Path)
		assert.Equal(t, "abc123", r.Header.Get("Clubhouse-Token"))
		w.Write([]byte(`[{"id":1,"name":"Alice"}]`))
	})

	records, err := client.FetchResource(context.Background(), models.ResourceMembers)
	require.NoError(t, err)
	require.Len(t, records, 1)

	id, _ := records[0].Get("id")
	assert.Equal(t, json.Number("1"), id)
	name, _ := records[0].Get("name")
	assert.Equal(t, "Alice", name)
}

func TestFetchResource_SearchesStories(t *testing.T) {
	testCases := []struct {
		resource  models.Resource
		storyType string
	}{
		{models.ResourceBugs, "bug"},
		{models.ResourceFeatures, "feature"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.resource), func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/stories/search", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var body map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]string{"story_type": tc.storyType}, body)

				w.Write([]byte(`[{"id":7,"story_type":"` + tc.storyType + `"}]`))
			})

			records, err := client.FetchResource(context.Background(), tc.resource)
			require.NoError(t, err)
			require.Len(t, records, 1)
			got, _ := records[0].Get("story_type")
			assert.Equal(t, tc.storyType, got)
		})
	}
}

func TestFetchResource_AuthError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})

	_, err := client.FetchResource(context.Background(), models.ResourceMembers)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsNetworkError(err))
}

func TestFetchResource_NetworkErrors(t *testing.T) {
	t.Run("ServerError", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := client.FetchResource(context.Background(), models.ResourceEpics)
		require.Error(t, err)
		assert.True(t, IsNetworkError(err))
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("HTMLErrorPage", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html><body>\n<h1>Bad Gateway</h1>\n<p>upstream &amp; proxy</p></body></html>"))
		})
		_, err := client.FetchResource(context.Background(), models.ResourceEpics)
		require.Error(t, err)
		assert.True(t, IsNetworkError(err))
		assert.Contains(t, err.Error(), "(HTTP 502): Bad Gateway upstream & proxy")
		assert.NotContains(t, err.Error(), "<h1>")
	})

	t.Run("InvalidBody", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"message":"not a list"}`))
		})
		_, err := client.FetchResource(context.Background(), models.ResourceLabels)
		require.Error(t, err)
		assert.True(t, IsNetworkError(err))
	})

	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client := NewClubhouseClient(url, "abc123", time.Second)
		_, err := client.FetchResource(context.Background(), models.ResourceProjects)
		require.Error(t, err)
		assert.True(t, IsNetworkError(err))
	})
}

func TestDecodeRecords_PreservesKeyOrder(t *testing.T) {
	records, err := DecodeRecords(strings.NewReader(`[{"z":1,"a":{"m":true,"b":null},"k":[1,"x"]}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	keys := make([]string, 0)
	for _, m := range records[0].Members {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"z", "a", "k"}, keys)

	nested, _ := records[0].Get("a")
	inner, ok := nested.(models.RawRecord)
	require.True(t, ok)
	assert.Equal(t, "m", inner.Members[0].Key)
	assert.Equal(t, true, inner.Members[0].Value)
	assert.Nil(t, inner.Members[1].Value)

	list, _ := records[0].Get("k")
	assert.Equal(t, []any{json.Number("1"), "x"}, list)
}

func TestDecodeRecords_DuplicateKeysKeepLastValue(t *testing.T) {
	records, err := DecodeRecordsBytes([]byte(`[{"id":1,"name":"old","id":2,"meta":{"x":1,"x":2}}]`))
	require.NoError(t, err)
	require.Len(t, records, 1)

	keys := make([]string, 0)
	for _, m := range records[0].Members {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"id", "name", "meta"}, keys)

	id, _ := records[0].Get("id")
	assert.Equal(t, json.Number("2"), id)

	meta, _ := records[0].Get("meta")
	inner, ok := meta.(models.RawRecord)
	require.True(t, ok)
	require.Len(t, inner.Members, 1)
	assert.Equal(t, json.Number("2"), inner.Members[0].Value)
}

func TestDecodeRecords_DataEnvelope(t *testing.T) {
	records, err := DecodeRecordsBytes([]byte(`{"data":[{"id":1},{"id":2}],"next":null}`))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDecodeRecords_Empty(t *testing.T) {
	records, err := DecodeRecordsBytes([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeRecords_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"Scalar":       `42`,
		"NonObject":    `[1,2]`,
		"Truncated":    `[{"id":1}`,
		"TrailingData": `[] []`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecordsBytes([]byte(body))
			require.Error(t, err)
		})
	}
}
