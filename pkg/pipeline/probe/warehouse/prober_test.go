package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeprobe/lakeprobe/pkg/pipeline"
)

const listPage1 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>warehouse</Name>
  <Prefix>public/users</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>tok2</NextContinuationToken>
  <Contents><Key>public/users_a1b2/data/00000-1.parquet</Key><Size>4096</Size></Contents>
  <Contents><Key>public/users_a1b2/metadata/v1.metadata.json</Key><Size>512</Size></Contents>
</ListBucketResult>`

const listPage2 = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>warehouse</Name>
  <Prefix>public/users</Prefix>
  <KeyCount>1</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>public/users_a1b2/metadata/snap-1.avro</Key><Size>256</Size></Contents>
</ListBucketResult>`

func newTestProber(t *testing.T, handler http.Handler) *Prober {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := &Prober{}
	cfg := fmt.Sprintf(`{"endpoint":%q,"bucket":"warehouse","accessKey":"admin","secretKey":"password"}`, srv.URL)
	require.NoError(t, p.Connect(json.RawMessage(cfg)))
	return p
}

func TestCount(t *testing.T) {
	t.Run("pages through listings", func(t *testing.T) {
		var prefixes []string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}
			prefixes = append(prefixes, r.URL.Query().Get("prefix"))
			w.Header().Set("Content-Type", "application/xml")
			if r.URL.Query().Get("continuation-token") == "" {
				fmt.Fprint(w, listPage1)
				return
			}
			fmt.Fprint(w, listPage2)
		})
		p := newTestProber(t, handler)

		n, err := p.Count(context.Background(), pipeline.Scope{Schema: "public", Table: "users"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		require.NotEmpty(t, prefixes)
		assert.Equal(t, "public/users", prefixes[0])
	})

	t.Run("empty prefix", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>warehouse</Name><KeyCount>0</KeyCount><IsTruncated>false</IsTruncated>
</ListBucketResult>`)
		})
		p := newTestProber(t, handler)

		n, err := p.Count(context.Background(), pipeline.Scope{Schema: "public", Table: "orders"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestConnectMissingBucket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := &Prober{}
	cfg := fmt.Sprintf(`{"endpoint":%q,"bucket":"missing"}`, srv.URL)
	err := p.Connect(json.RawMessage(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLookupUnsupported(t *testing.T) {
	p := &Prober{}
	_, err := p.Lookup(context.Background(), pipeline.Query{})
	assert.ErrorIs(t, err, pipeline.ErrUnsupported)
}
